package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"segment-relay/internal/relay"
)

// ffprobeOutput is the subset of `ffprobe -print_format json` we inspect.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// FFprobeValidator reports a segment valid when ffprobe can read it, it has a
// video stream and a positive duration. A file the device is still writing,
// or one cut short, typically lacks its index and fails to probe.
type FFprobeValidator struct {
	Bin     string
	Timeout time.Duration
}

// NewFFprobeValidator returns a validator running bin with the given ceiling.
func NewFFprobeValidator(bin string, timeout time.Duration) *FFprobeValidator {
	return &FFprobeValidator{Bin: bin, Timeout: timeout}
}

// Validate implements relay.Validator.
func (v *FFprobeValidator) Validate(ctx context.Context, path string) relay.Result {
	out, res := run(ctx, v.Timeout, v.Bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if !res.OK {
		return res
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return relay.Failed(relay.KindRejected, fmt.Sprintf("unreadable ffprobe output: %v", err))
	}
	if !hasVideo(probe) {
		return relay.Failed(relay.KindRejected, "no video stream")
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || d <= 0 {
		return relay.Failed(relay.KindRejected, fmt.Sprintf("no usable duration %q", probe.Format.Duration))
	}
	return relay.Succeeded()
}

func hasVideo(p ffprobeOutput) bool {
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			return true
		}
	}
	return false
}
