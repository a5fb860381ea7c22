package relay

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Notifier watches the segment tree and posts a wake signal whenever an
// entry is created or renamed into it. Writes are ignored: the device writes
// continuously and a new file is what marks the previous one finished.
// fsnotify is not recursive, so directories are added as they appear.
type Notifier struct {
	watcher *fsnotify.Watcher
	wake    chan struct{}
	log     *slog.Logger
}

// NewNotifier starts watching root and every directory below it.
func NewNotifier(root string, log *slog.Logger) (*Notifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	n := &Notifier{
		watcher: w,
		wake:    make(chan struct{}, 1),
		log:     log,
	}
	if err := n.addTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return n, nil
}

// Wake returns the channel the scan loop selects on while sleeping.
// Signals coalesce: at most one is pending.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

// Run dispatches events until ctx is done or the watcher closes.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(ev)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			// Overflow and the like only cost latency; the loop still polls.
			n.log.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the underlying watcher.
func (n *Notifier) Close() error {
	return n.watcher.Close()
}

func (n *Notifier) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if err := n.addTree(ev.Name); err != nil {
			n.log.Debug("watch new directory failed",
				slog.String("path", ev.Name),
				slog.String("error", err.Error()))
		}
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
		n.signal()
	}
}

func (n *Notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// addTree adds path and its subdirectories. Non-directories are ignored.
func (n *Notifier) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return n.watcher.Add(p)
	})
}
