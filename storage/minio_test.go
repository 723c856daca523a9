package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"FragFM/core/errs"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObject struct {
	data        []byte
	contentType string
}

// memClient is an in-memory stand-in for the MinIO client.
type memClient struct {
	mu        sync.Mutex
	objects   map[string]memObject
	putErr    error
	listErr   error
	removeErr map[string]error
	signErr   error
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string]memObject), removeErr: make(map[string]error)}
}

func (m *memClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putErr != nil {
		return minio.UploadInfo{}, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: opts.ContentType}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (m *memClient) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, params url.Values) (*url.URL, error) {
	if m.signErr != nil {
		return nil, m.signErr
	}
	return url.Parse("https://minio.test/" + bucket + "/" + key + "?X-Amz-Expires=" + expires.String())
}

func (m *memClient) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	m.mu.Lock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sizes := make(map[string]int64, len(keys))
	for _, k := range keys {
		sizes[k] = int64(len(m.objects[k].data))
	}
	m.mu.Unlock()
	sort.Strings(keys)

	ch := make(chan minio.ObjectInfo, len(keys)+1)
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k, Size: sizes[k], LastModified: time.Unix(1700000000, 0)}
	}
	if m.listErr != nil {
		ch <- minio.ObjectInfo{Err: m.listErr}
	}
	close(ch)
	return ch
}

func (m *memClient) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	if err := m.removeErr[key]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memClient) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newTestGateway() (*Gateway, *memClient) {
	mc := newMemClient()
	return &Gateway{client: mc, bucket: "fragfm"}, mc
}

func TestPutStoresContentType(t *testing.T) {
	g, mc := newTestGateway()
	ctx := context.Background()

	require.NoError(t, g.Put(ctx, FragmentKey("abc", 1), []byte("opus"), "audio/webm"))
	assert.Equal(t, "audio/webm", mc.objects["songs/abc/1.webm"].contentType)

	mc.putErr = errors.New("connection reset")
	err := g.Put(ctx, "songs/abc/2.webm", []byte("x"), "audio/webm")
	require.Error(t, err)
	assert.Equal(t, errs.StorageWrite, errs.KindOf(err))
}

func TestSignedReadURLDoesNotRequireObject(t *testing.T) {
	g, mc := newTestGateway()

	u, err := g.SignedReadURL(context.Background(), CoverKey("missing"), time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "songs/missing/cover.webp")

	mc.signErr = errors.New("bad credentials")
	_, err = g.SignedReadURL(context.Background(), CoverKey("missing"), time.Hour)
	assert.Equal(t, errs.StorageRead, errs.KindOf(err))
}

func TestDeletePrefixRemovesOnlyThatSong(t *testing.T) {
	g, mc := newTestGateway()
	ctx := context.Background()
	for _, k := range []string{FragmentKey("a", 1), FragmentKey("a", 2), CoverKey("a"), LyricsKey("a"), FragmentKey("ab", 1)} {
		require.NoError(t, g.Put(ctx, k, []byte("x"), "application/octet-stream"))
	}

	require.NoError(t, g.DeletePrefix(ctx, SongPrefix("a")))
	assert.Equal(t, []string{"songs/ab/1.webm"}, mc.keys())

	// already empty: no-op
	require.NoError(t, g.DeletePrefix(ctx, SongPrefix("a")))
}

func TestDeleteRemovesOnlyThatKey(t *testing.T) {
	g, mc := newTestGateway()
	ctx := context.Background()
	old := PlaylistCoverKey(1, 1700000000000, ".png")
	for _, k := range []string{old, old + ".bak", PlaylistCoverKey(12, 1700000000000, ".png")} {
		require.NoError(t, g.Put(ctx, k, []byte("x"), "image/png"))
	}

	require.NoError(t, g.Delete(ctx, old))
	assert.Equal(t, []string{old + ".bak", "covers/playlists/12-1700000000000.png"}, mc.keys())

	// missing object: no-op
	require.NoError(t, g.Delete(ctx, old))

	mc.removeErr["covers/playlists/12-1700000000000.png"] = errors.New("timeout")
	err := g.Delete(ctx, "covers/playlists/12-1700000000000.png")
	assert.Equal(t, errs.StorageDelete, errs.KindOf(err))

	assert.Equal(t, errs.Validation, errs.KindOf(g.Delete(ctx, "")))
}

func TestDeletePrefixContinuesPastFailuresAndIsRetryable(t *testing.T) {
	g, mc := newTestGateway()
	ctx := context.Background()
	for n := 1; n <= 3; n++ {
		require.NoError(t, g.Put(ctx, FragmentKey("a", n), []byte("x"), "audio/webm"))
	}
	mc.removeErr[FragmentKey("a", 2)] = errors.New("timeout")

	err := g.DeletePrefix(ctx, SongPrefix("a"))
	require.Error(t, err)
	assert.Equal(t, errs.StorageDelete, errs.KindOf(err))
	assert.Equal(t, []string{"songs/a/2.webm"}, mc.keys())

	delete(mc.removeErr, FragmentKey("a", 2))
	require.NoError(t, g.DeletePrefix(ctx, SongPrefix("a")))
	assert.Empty(t, mc.keys())
}

func TestDeletePrefixListingFailure(t *testing.T) {
	g, mc := newTestGateway()
	mc.listErr = errors.New("access denied")

	err := g.DeletePrefix(context.Background(), SongPrefix("a"))
	assert.Equal(t, errs.StorageDelete, errs.KindOf(err))
}

func TestDeletePrefixRejectsEmptyPrefix(t *testing.T) {
	g, _ := newTestGateway()
	err := g.DeletePrefix(context.Background(), "")
	assert.Equal(t, errs.Validation, errs.KindOf(err))
}

func TestListAndReport(t *testing.T) {
	g, _ := newTestGateway()
	ctx := context.Background()
	require.NoError(t, g.Put(ctx, FragmentKey("a", 1), make([]byte, 2048), "audio/webm"))
	require.NoError(t, g.Put(ctx, CoverKey("a"), make([]byte, 100), "image/png"))

	objects, stats, err := g.List(ctx, "songs/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
	assert.EqualValues(t, 2, stats.TotalObjects)
	assert.EqualValues(t, 2148, stats.TotalSize)
	assert.EqualValues(t, 2048, stats.ByType["audio"])
	assert.EqualValues(t, 100, stats.ByType["image"])

	var buf bytes.Buffer
	require.NoError(t, g.PrintBucketStatus(ctx, &buf, "songs/", true))
	assert.Contains(t, buf.String(), "songs/a/ (2 objects)")
	assert.Contains(t, buf.String(), "2.1 KB")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "songs/u1/", SongPrefix("u1"))
	assert.Equal(t, "songs/u1/12.webm", FragmentKey("u1", 12))
	assert.Equal(t, "songs/u1/cover.webp", CoverKey("u1"))
	assert.Equal(t, "songs/u1/lyrics.lrc", LyricsKey("u1"))
	assert.Equal(t, "covers/playlists/7-1700000000000.png", PlaylistCoverKey(7, 1700000000000, ".PNG"))
	assert.Equal(t, "covers/playlists/7-5.jpg", PlaylistCoverKey(7, 5, "jpg"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3*1024*1024))
}
