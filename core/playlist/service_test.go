package playlist

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"FragFM/core/errs"
	"FragFM/core/song"
	"FragFM/model"
	"FragFM/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type urlSigner struct{}

func (urlSigner) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://store.example/" + key, nil
}

type decorator struct{}

func (decorator) Decorate(ctx context.Context, s model.Song) (model.SongInfo, error) {
	return model.SongInfo{Song: s, CoverURL: "cover:" + s.UUID, LyricsURL: "lyrics:" + s.UUID}, nil
}

type coverStore struct {
	mu      sync.Mutex
	objects map[string]string // key -> content type
	putErr  error
}

func (c *coverStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.objects[key] = contentType
	return nil
}

func (c *coverStore) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *coverStore) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, gdb.AutoMigrate(&model.Song{}, &model.Playlist{}, &model.PlaylistSong{}))

	store := &coverStore{objects: map[string]string{}}
	svc := NewService(repository.NewGormPlaylistRepository(gdb), decorator{}, song.NewSigner(urlSigner{}, nil), store,
		Options{AssetURLTTL: time.Hour, MaxCoverBytes: 1 << 10})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, gdb, store
}

func seedSong(t *testing.T, gdb *gorm.DB, uuid string, active bool) model.Song {
	t.Helper()
	s := model.Song{UUID: uuid, Title: "T " + uuid, Artist: "A", Duration: 30, FragmentCount: 3, Active: active}
	require.NoError(t, gdb.Create(&s).Error)
	return s
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestCreateAndListUseDefaultCover(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	desc := "  late night  "

	created, err := svc.Create(ctx, " Chill ", &desc)
	require.NoError(t, err)
	assert.Equal(t, "Chill", created.Name)
	require.NotNil(t, created.Description)
	assert.Equal(t, "late night", *created.Description)
	assert.Equal(t, DefaultCoverURL, *created.CoverURL)

	_, err = svc.Create(ctx, "Chill", nil)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
	_, err = svc.Create(ctx, "   ", nil)
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	views, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, DefaultCoverURL, *views[0].CoverURL)
}

func TestGetReturnsOnlyActiveSongs(t *testing.T) {
	svc, gdb, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "Mix", nil)
	require.NoError(t, err)

	live := seedSong(t, gdb, "live", true)
	hidden := seedSong(t, gdb, "hidden", false)
	require.NoError(t, svc.AddSong(ctx, p.ID, live.ID))
	require.NoError(t, svc.AddSong(ctx, p.ID, live.ID))
	require.NoError(t, svc.AddSong(ctx, p.ID, hidden.ID))

	detail, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Songs, 1)
	assert.Equal(t, "cover:live", detail.Songs[0].CoverURL)

	admin, err := svc.AdminList(ctx)
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.ElementsMatch(t, []int64{live.ID, hidden.ID}, admin[0].SongIDs)

	require.NoError(t, svc.RemoveSong(ctx, p.ID, live.ID))
	detail, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Songs)

	assert.Equal(t, errs.NotFound, errs.KindOf(svc.AddSong(ctx, p.ID, 9999)))
	_, err = svc.Get(ctx, 9999)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, gdb, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "Old", nil)
	require.NoError(t, err)
	s := seedSong(t, gdb, "keep", true)
	require.NoError(t, svc.AddSong(ctx, p.ID, s.ID))

	updated, err := svc.Update(ctx, p.ID, "New", nil)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	_, err = svc.Update(ctx, 9999, "X", nil)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))

	require.NoError(t, svc.Delete(ctx, p.ID))
	var members int64
	require.NoError(t, gdb.Model(&model.PlaylistSong{}).Count(&members).Error)
	assert.Zero(t, members)
	var songs int64
	require.NoError(t, gdb.Model(&model.Song{}).Count(&songs).Error)
	assert.EqualValues(t, 1, songs, "deleting a playlist keeps its songs")
	assert.Equal(t, errs.NotFound, errs.KindOf(svc.Delete(ctx, p.ID)))
}

func TestReorder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, "A", nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, "B", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Reorder(ctx, []model.PlaylistOrder{{ID: a.ID, SortOrder: 2}, {ID: b.ID, SortOrder: 1}}))
	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, []string{views[0].Name, views[1].Name})

	assert.Equal(t, errs.Validation, errs.KindOf(svc.Reorder(ctx, nil)))
	assert.Equal(t, errs.Validation, errs.KindOf(svc.Reorder(ctx, []model.PlaylistOrder{{ID: a.ID}, {ID: a.ID}})))
}

func TestUploadCoverReplacesPrevious(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "Covered", nil)
	require.NoError(t, err)

	view, err := svc.UploadCover(ctx, p.ID, CoverUpload{ContentType: "image/png", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	firstKey := fmt.Sprintf("covers/playlists/%d-1700000000000.png", p.ID)
	assert.Equal(t, "https://store.example/"+firstKey, *view.CoverURL)
	assert.Equal(t, "image/png", store.objects[firstKey])

	// an unrelated object sharing the old key as a prefix stays put
	store.objects[firstKey+".bak"] = "image/png"

	svc.now = func() time.Time { return time.UnixMilli(1700000005000) }
	_, err = svc.UploadCover(ctx, p.ID, CoverUpload{ContentType: "image/png", Size: -1, Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.NotContains(t, store.objects, firstKey)
	assert.Contains(t, store.objects, firstKey+".bak")
	assert.Len(t, store.objects, 2)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, *views[0].CoverURL, "1700000005000.png")
}

func TestUploadCoverRejections(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "P", nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   int64
		up   CoverUpload
		kind errs.Kind
	}{
		{"declared audio", p.ID, CoverUpload{ContentType: "audio/mpeg", Size: 10, Body: bytes.NewReader(pngHeader)}, errs.Validation},
		{"declared too large", p.ID, CoverUpload{ContentType: "image/png", Size: 4096, Body: bytes.NewReader(pngHeader)}, errs.Validation},
		{"actually too large", p.ID, CoverUpload{ContentType: "image/png", Size: -1, Body: bytes.NewReader(append(pngHeader, make([]byte, 2048)...))}, errs.Validation},
		{"not an image", p.ID, CoverUpload{ContentType: "image/png", Size: 5, Body: strings.NewReader("hello")}, errs.Validation},
		{"unknown playlist", 9999, CoverUpload{ContentType: "image/png", Size: -1, Body: bytes.NewReader(pngHeader)}, errs.NotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadCover(ctx, tc.id, tc.up)
			assert.Equal(t, tc.kind, errs.KindOf(err))
		})
	}
	assert.Empty(t, store.objects)
}
