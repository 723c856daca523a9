package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"FragFM/core/errs"
	"FragFM/logger"
)

// FFmpegSegmenter implements Segmenter using ffmpeg's segment muxer.
type FFmpegSegmenter struct {
	ffmpegPath      string
	bitrate         string
	fragmentSeconds int
	timeout         time.Duration
	run             commandRunner
}

// NewFFmpegSegmenter creates a new FFmpegSegmenter.
func NewFFmpegSegmenter(ffmpegPath, bitrate string, fragmentSeconds int, timeout time.Duration) *FFmpegSegmenter {
	return &FFmpegSegmenter{
		ffmpegPath:      ffmpegPath,
		bitrate:         bitrate,
		fragmentSeconds: fragmentSeconds,
		timeout:         timeout,
		run:             execRunner,
	}
}

// FragmentSeconds returns the fixed fragment length.
func (p *FFmpegSegmenter) FragmentSeconds() int { return p.fragmentSeconds }

// segmentArgs builds the ffmpeg command line. Fragments are Opus in WebM,
// numbered from 1, with every source tag dropped.
func (p *FFmpegSegmenter) segmentArgs(inputPath, outputDir string) []string {
	return []string{
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "libopus",
		"-b:a", p.bitrate,
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-f", "segment",
		"-segment_time", strconv.Itoa(p.fragmentSeconds),
		"-segment_start_number", "1",
		"-reset_timestamps", "1",
		filepath.Join(outputDir, "%d"+FragmentExt),
	}
}

// Segment transcodes inputPath into fragments under outputDir. The returned
// count is what is on disk, not what the duration predicts.
func (p *FFmpegSegmenter) Segment(ctx context.Context, inputPath, outputDir string, totalDurationSeconds float64) (int, error) {
	const op = "audio.Segment"

	if totalDurationSeconds <= 0 || math.IsNaN(totalDurationSeconds) {
		return 0, errs.E(errs.UnreadableMedia, op, "the audio duration could not be determined", nil)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, errs.E(errs.Internal, op, "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := p.segmentArgs(inputPath, outputDir)
	logger.Info("executing ffmpeg segmentation",
		logger.String("input", inputPath),
		logger.String("outputDir", outputDir),
		logger.String("command", p.ffmpegPath+" "+strings.Join(args, " ")))

	start := time.Now()
	_, stderr, err := p.run(ctx, p.ffmpegPath, args...)
	if err != nil {
		return 0, errs.NewTranscode(op, p.classify(ctx, err, stderr))
	}

	count, err := CountFragments(outputDir)
	if err != nil {
		return 0, errs.NewTranscode(op, &errs.TranscodeError{ExitCode: 0, Stderr: tail(stderr), Reason: err.Error(), Err: err})
	}
	if count == 0 {
		return 0, errs.NewTranscode(op, &errs.TranscodeError{ExitCode: 0, Stderr: tail(stderr), Reason: "ffmpeg produced no audio fragments"})
	}

	expected := ExpectedFragments(totalDurationSeconds, p.fragmentSeconds)
	if expected != count {
		logger.Warn("fragment count differs from duration estimate",
			logger.Int("expected", expected),
			logger.Int("actual", count),
			logger.Float64("duration", totalDurationSeconds))
	}
	logger.Info("segmentation completed",
		logger.String("outputDir", outputDir),
		logger.Int("fragments", count),
		logger.Duration("elapsed", time.Since(start)))
	return count, nil
}

func (p *FFmpegSegmenter) classify(ctx context.Context, err error, stderr []byte) *errs.TranscodeError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &errs.TranscodeError{
			ExitCode: -1,
			Stderr:   tail(stderr),
			Reason:   fmt.Sprintf("ffmpeg timed out after %s", p.timeout),
			Err:      ctx.Err(),
		}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &errs.TranscodeError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   tail(stderr),
			Reason:   lastLine(stderr, "ffmpeg exited with an error"),
			Err:      err,
		}
	}
	return &errs.TranscodeError{ExitCode: -1, Stderr: tail(stderr), Reason: "could not run ffmpeg: " + err.Error(), Err: err}
}

// lastLine returns the final non-empty diagnostic line, which is where ffmpeg
// states why it gave up.
func lastLine(stderr []byte, fallback string) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return fallback
}

// ExpectedFragments is the arithmetic estimate ceil(duration / fragmentSeconds).
func ExpectedFragments(durationSeconds float64, fragmentSeconds int) int {
	if durationSeconds <= 0 || fragmentSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(durationSeconds / float64(fragmentSeconds)))
}

// FragmentPath returns the local path of fragment n inside dir.
func FragmentPath(dir string, n int) string {
	return filepath.Join(dir, strconv.Itoa(n)+FragmentExt)
}

// CountFragments counts the numbered fragments in dir. Numbering must run
// contiguously from 1; a gap is reported as an error.
func CountFragments(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list fragments in %s: %w", dir, err)
	}

	seen := make(map[int]bool)
	highest := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, FragmentExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, FragmentExt))
		if err != nil || n < 1 {
			continue
		}
		seen[n] = true
		if n > highest {
			highest = n
		}
	}

	for n := 1; n <= highest; n++ {
		if !seen[n] {
			return 0, fmt.Errorf("fragment %d is missing (found %d fragments up to %d)", n, len(seen), highest)
		}
	}
	return highest, nil
}
