// Package media wraps the external ffprobe and ffmpeg processes that validate
// and forward segments.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"segment-relay/internal/relay"
)

// maxDiagnostic bounds how much process output is kept for logs.
const maxDiagnostic = 2048

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}

// run executes bin with args under timeout. stdout is returned; stderr is
// kept (tail only) for the diagnostic. The returned Result is failed unless
// the process exited 0.
func run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, relay.Result) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: maxDiagnostic}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	return stdout.Bytes(), classify(ctx, err, timeout, stderr.String())
}

func classify(ctx context.Context, err error, timeout time.Duration, diag string) relay.Result {
	if err == nil {
		return relay.Succeeded()
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return relay.Failed(relay.KindTimeout, joinDiag(fmt.Sprintf("killed after %s", timeout), diag))
	case errors.Is(ctx.Err(), context.Canceled):
		return relay.Failed(relay.KindCanceled, joinDiag("interrupted", diag))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return relay.Failed(relay.KindRejected, joinDiag(fmt.Sprintf("exit status %d", exitErr.ExitCode()), diag))
	}
	return relay.Failed(relay.KindExec, err.Error())
}

func joinDiag(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + ": " + tail
}
