package relay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitWake(t *testing.T, n *Notifier) {
	t.Helper()
	select {
	case <-n.Wake():
	case <-time.After(5 * time.Second):
		t.Fatal("no wake signal")
	}
}

func TestNotifier_wakes_on_new_file_in_new_subdir(t *testing.T) {
	root := t.TempDir()
	n, err := NewNotifier(root, discardLogger())
	require.NoError(t, err)
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sub := filepath.Join(root, "2026-03-01")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitWake(t, n)

	// The new directory is watched once its create event has been handled.
	require.Eventually(t, func() bool {
		for _, p := range n.watcher.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "seg.mp4"), []byte("x"), 0o644))
	waitWake(t, n)
}

func TestNotifier_missing_root(t *testing.T) {
	_, err := NewNotifier(filepath.Join(t.TempDir(), "nope"), discardLogger())
	require.Error(t, err)
}
