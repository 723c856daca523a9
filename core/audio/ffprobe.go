package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// FFprobe reads stream information ffprobe can see but tag readers cannot,
// the duration of containers without a header length in particular.
type FFprobe struct {
	ffprobePath string
	timeout     time.Duration
	run         commandRunner
}

// NewFFprobe creates a new FFprobe.
func NewFFprobe(ffprobePath string, timeout time.Duration) *FFprobe {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &FFprobe{ffprobePath: ffprobePath, timeout: timeout, run: execRunner}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the length of the first audio stream in seconds. A file
// without an audio stream or a usable duration is an error.
func (p *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,duration",
		"-of", "json",
		path,
	}
	out, stderr, err := p.run(ctx, p.ffprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w: %s", path, err, tail(stderr))
	}
	return parseDuration(out)
}

func parseDuration(raw []byte) (float64, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	hasAudio := false
	durationStr := probe.Format.Duration
	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		hasAudio = true
		// Ogg/Opus report it on the stream only.
		if durationStr == "" {
			durationStr = s.Duration
		}
		break
	}
	if !hasAudio {
		return 0, fmt.Errorf("no audio stream found")
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, fmt.Errorf("duration could not be determined (%q)", durationStr)
	}
	return duration, nil
}
