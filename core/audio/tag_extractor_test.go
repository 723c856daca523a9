package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"FragFM/core/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/taglib"
)

type fakeTags struct {
	tags     map[string][]string
	tagsErr  error
	props    taglib.Properties
	propsErr error
	image    []byte
	imageErr error
}

func (f *fakeTags) ReadTags(path string) (map[string][]string, error) { return f.tags, f.tagsErr }

func (f *fakeTags) ReadProperties(path string) (taglib.Properties, error) {
	return f.props, f.propsErr
}

func (f *fakeTags) ReadImage(path string) ([]byte, error) { return f.image, f.imageErr }

type fakeProbe struct {
	duration float64
	err      error
	calls    int
}

func (f *fakeProbe) Duration(ctx context.Context, path string) (float64, error) {
	f.calls++
	return f.duration, f.err
}

func newTestExtractor(tags *fakeTags, probe *fakeProbe) *TagExtractor {
	e := NewTagExtractor(probe)
	e.tags = tags
	return e
}

func TestExtractReadsTagsLengthAndCover(t *testing.T) {
	probe := &fakeProbe{}
	e := newTestExtractor(&fakeTags{
		tags: map[string][]string{
			taglib.Title:  {"Cielo"},
			taglib.Artist: {" ", "Ana"},
			"LYRICS":      {"la la la"},
		},
		props: taglib.Properties{
			Length: 215*time.Second + 481*time.Millisecond,
			Images: []taglib.ImageDesc{{MIMEType: "image/png"}},
		},
		image: []byte("\x89PNG fake"),
	}, probe)

	meta, err := e.Extract(context.Background(), "/tmp/staged.mp3")
	require.NoError(t, err)

	assert.Equal(t, "Cielo", meta.Title)
	assert.Equal(t, "Ana", meta.Artist)
	assert.Equal(t, unknownAlbum, meta.Album)
	assert.InDelta(t, 215.481, meta.DurationSeconds, 0.0001)
	assert.Equal(t, "la la la", meta.Lyrics)
	assert.True(t, meta.HasCover())
	assert.Equal(t, "image/png", meta.CoverMimeType)
	assert.Zero(t, probe.calls, "taglib length is used when present")
}

func TestExtractFallsBackToProbeForDuration(t *testing.T) {
	probe := &fakeProbe{duration: 42.5}
	e := newTestExtractor(&fakeTags{
		tags:  map[string][]string{taglib.Title: {"Ogg Song"}, taglib.AlbumArtist: {"Band"}, taglib.Album: {"Live"}, "UNSYNCEDLYRICS": {"words"}},
		props: taglib.Properties{},
	}, probe)

	meta, err := e.Extract(context.Background(), "/tmp/staged.opus")
	require.NoError(t, err)
	assert.Equal(t, 1, probe.calls)
	assert.Equal(t, 42.5, meta.DurationSeconds)
	assert.Equal(t, "Band", meta.Artist)
	assert.Equal(t, "Live", meta.Album)
	assert.Equal(t, "words", meta.Lyrics)
	assert.False(t, meta.HasCover())
}

func TestExtractWithoutReadableTags(t *testing.T) {
	e := newTestExtractor(&fakeTags{
		tagsErr:  errors.New("invalid file"),
		propsErr: errors.New("invalid file"),
	}, &fakeProbe{duration: 12})

	meta, err := e.Extract(context.Background(), "/tmp/staged.wav")
	require.NoError(t, err)
	assert.Equal(t, unknownTitle, meta.Title)
	assert.Equal(t, unknownArtist, meta.Artist)
	assert.Equal(t, 12.0, meta.DurationSeconds)
}

func TestExtractUnreadableMedia(t *testing.T) {
	e := newTestExtractor(&fakeTags{
		tagsErr:  errors.New("invalid file"),
		propsErr: errors.New("invalid file"),
	}, &fakeProbe{err: errors.New("no audio stream found")})

	meta, err := e.Extract(context.Background(), "/tmp/notes.txt")
	require.Error(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, errs.UnreadableMedia, errs.KindOf(err))
}

func TestExtractCoverFailureIsNotFatal(t *testing.T) {
	e := newTestExtractor(&fakeTags{
		props:    taglib.Properties{Length: 3 * time.Second, Images: []taglib.ImageDesc{{MIMEType: "image/jpeg"}}},
		imageErr: errors.New("truncated picture frame"),
	}, &fakeProbe{})

	meta, err := e.Extract(context.Background(), "/tmp/staged.mp3")
	require.NoError(t, err)
	assert.False(t, meta.HasCover())
}

func TestCoverMimeType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/webp", coverMimeType("image/webp", nil))
	assert.Equal(t, "image/png", coverMimeType("", png))
	assert.Equal(t, "image/jpeg", coverMimeType("", []byte("????")))
}
