package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FragFM/core/audio"
	"FragFM/core/errs"
	"FragFM/logger"
	"FragFM/model"
	"FragFM/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// uploadConcurrency bounds in-flight PutObject calls for one song.
	uploadConcurrency = 8
	// compensationTimeout applies to the prefix delete after a failure,
	// which must run even when the request context is gone.
	compensationTimeout = 2 * time.Minute
	defaultCoverMime    = "image/webp"
)

// ObjectStore is the part of the object store gateway ingestion needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Catalog persists the song row that marks an ingestion as committed.
type Catalog interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
}

// Options configures an Orchestrator.
type Options struct {
	TempDir        string
	MaxUploadBytes int64
}

// Orchestrator drives one upload from staging to a committed song.
type Orchestrator struct {
	extractor      audio.MetadataExtractor
	segmenter      audio.Segmenter
	store          ObjectStore
	catalog        Catalog
	tempDir        string
	maxUploadBytes int64

	newUUID func() string
	now     func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(opts Options, extractor audio.MetadataExtractor, segmenter audio.Segmenter, store ObjectStore, catalog Catalog) *Orchestrator {
	return &Orchestrator{
		extractor:      extractor,
		segmenter:      segmenter,
		store:          store,
		catalog:        catalog,
		tempDir:        opts.TempDir,
		maxUploadBytes: opts.MaxUploadBytes,
		newUUID:        uuid.NewString,
		now:            time.Now,
	}
}

// PreviewMetadata is the extracted metadata as shown to the client; the
// cover travels base64 encoded.
type PreviewMetadata struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Album         string  `json:"album"`
	Duration      float64 `json:"duration"`
	Lyrics        *string `json:"lyrics"`
	Cover         *string `json:"cover"`
	CoverMimeType *string `json:"coverMimeType"`
}

// Preview is returned after staging so the client can confirm or edit.
type Preview struct {
	TempFilename string          `json:"tempFilename"`
	Metadata     PreviewMetadata `json:"metadata"`
}

// Preview extracts metadata from a staged file without creating any catalog
// or storage state. An unreadable file is removed.
func (o *Orchestrator) Preview(ctx context.Context, stagedName string) (*Preview, error) {
	const op = "ingest.Preview"
	path, err := o.stagedPath(op, stagedName)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errs.NotFoundf(op, "staged file not found")
	}

	meta, err := o.extractor.Extract(ctx, path)
	if err != nil {
		removeQuietly(path)
		logState(Failed, stagedName, "", logger.ErrorField(err))
		return nil, err
	}

	p := &Preview{
		TempFilename: stagedName,
		Metadata: PreviewMetadata{
			Title:    meta.Title,
			Artist:   meta.Artist,
			Album:    meta.Album,
			Duration: meta.DurationSeconds,
		},
	}
	if meta.Lyrics != "" {
		p.Metadata.Lyrics = &meta.Lyrics
	}
	if meta.HasCover() {
		cover := base64.StdEncoding.EncodeToString(meta.Cover)
		mime := meta.CoverMimeType
		p.Metadata.Cover = &cover
		p.Metadata.CoverMimeType = &mime
	}
	logState(MetadataPreviewed, stagedName, "", logger.Float64("duration", meta.DurationSeconds))
	return p, nil
}

// CommitRequest is the client's confirmation of a staged upload.
type CommitRequest struct {
	StagedName string
	Title      string
	Artist     string
	Album      string
}

// Result describes a committed song.
type Result struct {
	ID            int64   `json:"id"`
	UUID          string  `json:"uuid"`
	FragmentCount int     `json:"fragmentCount"`
	Duration      float64 `json:"duration"`
}

// Commit segments the staged file, uploads every artifact and inserts the
// catalog row. Any failure after the song identifier exists removes what was
// uploaded under its prefix. The staged file and the working directory are
// removed whatever the outcome.
func (o *Orchestrator) Commit(ctx context.Context, req CommitRequest) (*Result, error) {
	const op = "ingest.Commit"

	path, err := o.stagedPath(op, req.StagedName)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	artist := strings.TrimSpace(req.Artist)
	if title == "" || artist == "" {
		return nil, errs.Validationf(op, "title and artist are required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errs.NotFoundf(op, "staged file not found")
	}

	songUUID := o.newUUID()
	outputDir := filepath.Join(o.tempDir, songUUID)
	defer o.cleanup(path, outputDir)

	fail := func(err error) (*Result, error) {
		logState(Failed, req.StagedName, songUUID, logger.ErrorField(err))
		o.compensate(ctx, songUUID)
		return nil, err
	}

	// duration is re-derived here; the preview may be stale or forged
	logState(Segmenting, req.StagedName, songUUID)
	meta, err := o.extractor.Extract(ctx, path)
	if err != nil {
		return fail(err)
	}
	if meta.DurationSeconds <= 0 {
		return fail(errs.E(errs.UnreadableMedia, op, "the audio duration could not be determined", nil))
	}
	reported, err := o.segmenter.Segment(ctx, path, outputDir, meta.DurationSeconds)
	if err != nil {
		return fail(err)
	}
	count, err := audio.CountFragments(outputDir)
	if err != nil {
		return fail(errs.NewTranscode(op, &errs.TranscodeError{ExitCode: 0, Reason: err.Error(), Err: err}))
	}
	if count == 0 {
		return fail(errs.NewTranscode(op, &errs.TranscodeError{ExitCode: 0, Reason: "ffmpeg produced no audio fragments"}))
	}
	if count != reported {
		logger.Warn("segmenter count differs from files on disk",
			logger.String("uuid", songUUID),
			logger.Int("reported", reported),
			logger.Int("onDisk", count))
	}

	logState(Uploading, req.StagedName, songUUID, logger.Int("fragments", count))
	if err := o.upload(ctx, songUUID, outputDir, count, meta); err != nil {
		return fail(err)
	}

	logState(Cataloging, req.StagedName, songUUID)
	song := &model.Song{
		UUID:          songUUID,
		Title:         title,
		Artist:        artist,
		Duration:      meta.DurationSeconds,
		FragmentCount: count,
		Active:        true,
	}
	if album := strings.TrimSpace(req.Album); album != "" {
		song.Album = &album
	}
	id, err := o.catalog.CreateSong(ctx, song)
	if err != nil {
		return fail(err)
	}

	logState(Committed, req.StagedName, songUUID,
		logger.Int64("id", id),
		logger.Int("fragments", count))
	return &Result{ID: id, UUID: songUUID, FragmentCount: count, Duration: meta.DurationSeconds}, nil
}

// upload puts every fragment, the cover and the lyrics concurrently. The
// first failure cancels the uploads still queued and is returned once the
// in-flight ones have settled.
func (o *Orchestrator) upload(ctx context.Context, songUUID, outputDir string, count int, meta *audio.Metadata) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	if meta.HasCover() {
		mime := meta.CoverMimeType
		if mime == "" {
			mime = defaultCoverMime
		}
		g.Go(func() error {
			return o.store.Put(gctx, storage.CoverKey(songUUID), meta.Cover, mime)
		})
	}
	if meta.Lyrics != "" {
		g.Go(func() error {
			return o.store.Put(gctx, storage.LyricsKey(songUUID), []byte(meta.Lyrics), storage.LyricsMimeType)
		})
	}
	for n := 1; n <= count; n++ {
		// g.Go blocks while all slots are busy; once a sibling fails nothing
		// new is queued.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(audio.FragmentPath(outputDir, n))
			if err != nil {
				return errs.E(errs.Internal, "ingest.upload", "", fmt.Errorf("failed to read fragment %d: %w", n, err))
			}
			return o.store.Put(gctx, storage.FragmentKey(songUUID, n), data, audio.FragmentContentType)
		})
	}
	return g.Wait()
}

// compensate removes whatever was uploaded for the song. Its own failure is
// logged and never replaces the error being reported.
func (o *Orchestrator) compensate(ctx context.Context, songUUID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	prefix := storage.SongPrefix(songUUID)
	if err := o.store.DeletePrefix(ctx, prefix); err != nil {
		logger.Error("compensation failed, objects may remain under prefix",
			logger.String("uuid", songUUID),
			logger.String("prefix", prefix),
			logger.ErrorField(err))
		return
	}
	logger.Info("compensation completed", logger.String("uuid", songUUID))
}

// cleanup removes local state for one attempt; running it twice is harmless.
func (o *Orchestrator) cleanup(stagedPath, outputDir string) {
	removeQuietly(stagedPath)
	if err := os.RemoveAll(outputDir); err != nil {
		logger.Warn("failed to remove working directory",
			logger.String("dir", outputDir),
			logger.ErrorField(err))
	}
}
