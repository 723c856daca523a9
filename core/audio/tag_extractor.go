package audio

import (
	"context"
	"strings"

	"FragFM/core/errs"
	"FragFM/logger"

	"github.com/gabriel-vasile/mimetype"
	"go.senan.xyz/taglib"
)

const (
	unknownTitle  = "Unknown Title"
	unknownArtist = "Unknown Artist"
	unknownAlbum  = "Unknown Album"

	defaultCoverMimeType = "image/jpeg"
)

// tagReader is the part of taglib the extractor uses.
type tagReader interface {
	ReadTags(path string) (map[string][]string, error)
	ReadProperties(path string) (taglib.Properties, error)
	ReadImage(path string) ([]byte, error)
}

type taglibReader struct{}

func (taglibReader) ReadTags(path string) (map[string][]string, error) {
	return taglib.ReadTags(path)
}

func (taglibReader) ReadProperties(path string) (taglib.Properties, error) {
	return taglib.ReadProperties(path)
}

func (taglibReader) ReadImage(path string) ([]byte, error) {
	return taglib.ReadImage(path)
}

// durationProber measures a file taglib cannot give a length for.
type durationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// TagExtractor implements MetadataExtractor with taglib, falling back to
// ffprobe for the duration.
type TagExtractor struct {
	tags  tagReader
	probe durationProber
}

// NewTagExtractor creates a new TagExtractor.
func NewTagExtractor(probe durationProber) *TagExtractor {
	return &TagExtractor{tags: taglibReader{}, probe: probe}
}

// Extract returns the file's tags, duration, lyrics and embedded cover.
func (e *TagExtractor) Extract(ctx context.Context, path string) (*Metadata, error) {
	const op = "audio.Extract"

	tags, err := e.tags.ReadTags(path)
	if err != nil {
		// formats taglib does not know may still be playable
		logger.Warn("taglib could not read tags",
			logger.String("path", path),
			logger.ErrorField(err))
		tags = nil
	}

	var duration float64
	props, propsErr := e.tags.ReadProperties(path)
	if propsErr == nil {
		duration = props.Length.Seconds()
	}
	if duration <= 0 {
		duration, err = e.probe.Duration(ctx, path)
		if err != nil {
			return nil, errs.E(errs.UnreadableMedia, op, "could not read the audio file metadata", err)
		}
	}

	meta := &Metadata{
		Title:           firstTagValue(tags, unknownTitle, taglib.Title),
		Artist:          firstTagValue(tags, unknownArtist, taglib.Artist, taglib.AlbumArtist),
		Album:           firstTagValue(tags, unknownAlbum, taglib.Album),
		DurationSeconds: duration,
		Lyrics:          firstTagValue(tags, "", "LYRICS", "UNSYNCEDLYRICS"),
	}

	if propsErr == nil && len(props.Images) > 0 {
		cover, err := e.tags.ReadImage(path)
		if err != nil {
			// a broken picture should not reject an otherwise playable file
			logger.Warn("could not extract embedded cover",
				logger.String("path", path),
				logger.ErrorField(err))
		} else if len(cover) > 0 {
			meta.Cover = cover
			meta.CoverMimeType = coverMimeType(props.Images[0].MIMEType, cover)
		}
	}
	return meta, nil
}

// firstTagValue returns the first non-blank value under any of keys.
func firstTagValue(tags map[string][]string, fallback string, keys ...string) string {
	for _, k := range keys {
		for _, v := range tags[k] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return fallback
}

// coverMimeType trusts the declared picture type and sniffs the bytes when
// the tag carries none.
func coverMimeType(declared string, data []byte) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return defaultCoverMimeType
}
