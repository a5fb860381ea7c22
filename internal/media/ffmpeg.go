package media

import (
	"context"
	"time"

	"segment-relay/internal/relay"
)

// FFmpegForwarder pushes a segment to an RTMP destination in real time
// without re-encoding.
type FFmpegForwarder struct {
	Bin     string
	Timeout time.Duration
}

// NewFFmpegForwarder returns a forwarder running bin with the given ceiling.
func NewFFmpegForwarder(bin string, timeout time.Duration) *FFmpegForwarder {
	return &FFmpegForwarder{Bin: bin, Timeout: timeout}
}

// Forward implements relay.Forwarder.
func (f *FFmpegForwarder) Forward(ctx context.Context, path, destination string) relay.Result {
	if destination == "" {
		return relay.Failed(relay.KindExec, "no destination configured")
	}
	_, res := run(ctx, f.Timeout, f.Bin,
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-re",
		"-i", path,
		"-c", "copy",
		"-f", "flv",
		destination,
	)
	return res
}
