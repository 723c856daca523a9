package audio

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

const (
	// FragmentExt is the container extension of every produced fragment.
	FragmentExt = ".webm"
	// FragmentContentType is the MIME type fragments are stored with.
	FragmentContentType = "audio/webm"
)

// Metadata is what the extractor reads from a staged audio file.
type Metadata struct {
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	DurationSeconds float64 `json:"duration"`
	Lyrics          string  `json:"lyrics,omitempty"`
	Cover           []byte  `json:"-"`
	CoverMimeType   string  `json:"coverMimeType,omitempty"`
}

// HasCover reports whether an embedded picture was found.
func (m *Metadata) HasCover() bool { return len(m.Cover) > 0 }

// MetadataExtractor reads tags and duration without touching the file.
type MetadataExtractor interface {
	Extract(ctx context.Context, path string) (*Metadata, error)
}

// Segmenter splits a staged file into numbered fragments under outputDir and
// returns how many fragments are actually on disk.
type Segmenter interface {
	Segment(ctx context.Context, inputPath, outputDir string, totalDurationSeconds float64) (int, error)
}

// commandRunner runs an external binary and returns its captured streams.
type commandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// ffmpeg children may keep the pipes open after the kill.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

const maxDiagnosticBytes = 2048

// tail keeps the end of a diagnostic stream, where ffmpeg puts the actual error.
func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxDiagnosticBytes {
		b = b[len(b)-maxDiagnosticBytes:]
	}
	return string(b)
}
