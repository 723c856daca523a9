package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FragFM/core/errs"
	"FragFM/logger"

	"github.com/gabriel-vasile/mimetype"
)

// sniffBytes is how much of an upload is read to detect its real type.
const sniffBytes = 3072

// containers that may carry an audio-only stream but sniff as video or
// generic ogg; ffprobe rejects them later if no audio stream is present.
var audioContainers = []string{"video/webm", "video/mp4", "video/ogg", "application/ogg", "video/x-matroska", "video/3gpp"}

// UploadFile is a raw upload as received from the client.
type UploadFile struct {
	Filename    string
	ContentType string // declared by the client
	Size        int64  // -1 when unknown
	Body        io.Reader
}

// Stage writes the upload under a fresh unique name in the staging
// directory and returns that name.
func (o *Orchestrator) Stage(ctx context.Context, f UploadFile) (string, error) {
	const op = "ingest.Stage"

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "audio/") {
		return "", errs.Validationf(op, "only audio files are allowed")
	}
	if f.Size > o.maxUploadBytes {
		return "", errs.Validationf(op, "file exceeds the %d MB limit", o.maxUploadBytes>>20)
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errs.E(errs.Internal, op, "", fmt.Errorf("failed to read upload: %w", err))
	}
	head = head[:n]
	if n == 0 {
		return "", errs.Validationf(op, "the uploaded file is empty")
	}
	detected := mimetype.Detect(head)
	if !isAudio(detected) {
		return "", errs.Validationf(op, "only audio files are allowed (detected %s)", detected.String())
	}

	if err := os.MkdirAll(o.tempDir, 0755); err != nil {
		return "", errs.E(errs.Internal, op, "", fmt.Errorf("failed to create staging directory: %w", err))
	}
	name := o.stagedName(f.Filename, detected.Extension())
	path := filepath.Join(o.tempDir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", errs.E(errs.Internal, op, "", fmt.Errorf("failed to create staged file: %w", err))
	}
	written, err := writeStaged(out, head, f.Body, o.maxUploadBytes)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	logState(Staged, name, "",
		logger.String("detected", detected.String()),
		logger.Int64("bytes", written))
	return name, nil
}

// writeStaged copies the sniffed head and the rest of the body, enforcing
// the ceiling on the bytes actually received.
func writeStaged(w io.Writer, head []byte, rest io.Reader, limit int64) (int64, error) {
	const op = "ingest.Stage"
	if _, err := w.Write(head); err != nil {
		return 0, errs.E(errs.Internal, op, "", fmt.Errorf("failed to write staged file: %w", err))
	}
	copied, err := io.Copy(w, io.LimitReader(rest, limit-int64(len(head))+1))
	total := int64(len(head)) + copied
	if err != nil {
		return total, errs.E(errs.Internal, op, "", fmt.Errorf("failed to write staged file: %w", err))
	}
	if total > limit {
		return total, errs.Validationf(op, "file exceeds the %d MB limit", limit>>20)
	}
	return total, nil
}

func isAudio(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
		for _, c := range audioContainers {
			if m.Is(c) {
				return true
			}
		}
	}
	return false
}

// stagedName is "{unix-nanos}-{random}{ext}". The extension comes from the
// client file name when it looks sane, otherwise from the sniffed type.
func (o *Orchestrator) stagedName(original, detectedExt string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !validExt(ext) {
		ext = detectedExt
	}
	return fmt.Sprintf("%d-%d%s", o.now().UnixNano(), rand.Int63n(1e9), ext)
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 || ext[0] != '.' {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// stagedPath resolves a client-supplied staged name. Only bare file names
// produced by Stage are accepted.
func (o *Orchestrator) stagedPath(op, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", errs.Validationf(op, "invalid staged file reference")
	}
	return filepath.Join(o.tempDir, name), nil
}

// Discard removes a staged upload the client decided not to commit.
// Discarding twice is not an error.
func (o *Orchestrator) Discard(ctx context.Context, stagedName string) error {
	path, err := o.stagedPath("ingest.Discard", stagedName)
	if err != nil {
		return err
	}
	removeQuietly(path)
	logState(Failed, stagedName, "", logger.String("reason", "discarded by client"))
	return nil
}

// SweepStale deletes staging entries older than maxAge; they belong to
// attempts that will never finish, e.g. from before a restart.
func (o *Orchestrator) SweepStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(o.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := o.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(o.tempDir, entry.Name())); err != nil {
			logger.Warn("failed to sweep staging entry",
				logger.String("entry", entry.Name()),
				logger.ErrorField(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("swept stale staging entries", logger.Int("removed", removed))
	}
	return removed, nil
}

// RunSweeper sweeps periodically until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.SweepStale(maxAge); err != nil {
				logger.Warn("staging sweep failed", logger.ErrorField(err))
			}
		}
	}
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove staged file", logger.String("path", path), logger.ErrorField(err))
	}
}
