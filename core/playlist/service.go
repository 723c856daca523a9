package playlist

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"FragFM/core/errs"
	"FragFM/core/song"
	"FragFM/logger"
	"FragFM/model"
	"FragFM/repository"
	"FragFM/storage"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultCoverURL is served for playlists without an uploaded cover.
const DefaultCoverURL = "https://cdn-icons-png.flaticon.com/512/14793/14793826.png"

// SongDecorator attaches signed asset URLs to a song.
type SongDecorator interface {
	Decorate(ctx context.Context, s model.Song) (model.SongInfo, error)
}

// CoverStore stores playlist covers.
type CoverStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Options configures the playlist service.
type Options struct {
	AssetURLTTL     time.Duration
	MaxCoverBytes   int64
	DefaultCoverURL string
}

// Service manages playlists and their memberships.
type Service struct {
	repo   repository.PlaylistRepository
	songs  SongDecorator
	signer *song.Signer
	covers CoverStore
	opts   Options
	now    func() time.Time
}

// NewService creates a new Service.
func NewService(repo repository.PlaylistRepository, songs SongDecorator, signer *song.Signer, covers CoverStore, opts Options) *Service {
	if opts.DefaultCoverURL == "" {
		opts.DefaultCoverURL = DefaultCoverURL
	}
	return &Service{repo: repo, songs: songs, signer: signer, covers: covers, opts: opts, now: time.Now}
}

func (s *Service) view(ctx context.Context, p model.Playlist) (model.PlaylistView, error) {
	v := model.PlaylistView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		SortOrder:   p.SortOrder,
	}
	cover := s.opts.DefaultCoverURL
	if p.CoverKey != nil && *p.CoverKey != "" {
		url, err := s.signer.Sign(ctx, *p.CoverKey, s.opts.AssetURLTTL)
		if err != nil {
			return v, err
		}
		cover = url
	}
	v.CoverURL = &cover
	return v, nil
}

// List returns the public playlists ordered by position, then name.
func (s *Service) List(ctx context.Context) ([]model.PlaylistView, error) {
	playlists, err := s.repo.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.PlaylistView, 0, len(playlists))
	for _, p := range playlists {
		v, err := s.view(ctx, p)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Get returns a playlist with its active songs.
func (s *Service) Get(ctx context.Context, id int64) (*model.PlaylistDetail, error) {
	p, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, *p)
	if err != nil {
		return nil, err
	}
	songs, err := s.repo.ListActiveSongs(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.PlaylistDetail{PlaylistView: v, Songs: make([]model.SongInfo, 0, len(songs))}
	for _, sg := range songs {
		info, err := s.songs.Decorate(ctx, sg)
		if err != nil {
			return nil, err
		}
		detail.Songs = append(detail.Songs, info)
	}
	return detail, nil
}

// AdminList returns every playlist with its member song ids.
func (s *Service) AdminList(ctx context.Context) ([]model.PlaylistAdminView, error) {
	playlists, members, err := s.repo.ListPlaylistsAdmin(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.PlaylistAdminView, 0, len(playlists))
	for _, p := range playlists {
		v, err := s.view(ctx, p)
		if err != nil {
			return nil, err
		}
		ids := members[p.ID]
		if ids == nil {
			ids = []int64{}
		}
		views = append(views, model.PlaylistAdminView{PlaylistView: v, CreatedAt: p.CreatedAt, SongIDs: ids})
	}
	return views, nil
}

func normalize(op, name string, description *string) (string, *string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, errs.Validationf(op, "playlist name is required")
	}
	if description != nil {
		d := strings.TrimSpace(*description)
		if d == "" {
			description = nil
		} else {
			description = &d
		}
	}
	return name, description, nil
}

// Create adds a playlist. Names are unique.
func (s *Service) Create(ctx context.Context, name string, description *string) (*model.PlaylistView, error) {
	name, description, err := normalize("playlist.Create", name, description)
	if err != nil {
		return nil, err
	}
	p := &model.Playlist{Name: name, Description: description}
	if err := s.repo.CreatePlaylist(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("playlist created", logger.Int64("id", p.ID), logger.String("name", name))
	v, err := s.view(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update renames a playlist and replaces its description.
func (s *Service) Update(ctx context.Context, id int64, name string, description *string) (*model.PlaylistView, error) {
	name, description, err := normalize("playlist.Update", name, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePlaylist(ctx, id, name, description); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.view(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes a playlist and its memberships; the songs stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	if p.CoverKey != nil {
		s.dropCover(ctx, *p.CoverKey)
	}
	return nil
}

// AddSong is idempotent.
func (s *Service) AddSong(ctx context.Context, playlistID, songID int64) error {
	return s.repo.AddSong(ctx, playlistID, songID)
}

func (s *Service) RemoveSong(ctx context.Context, playlistID, songID int64) error {
	return s.repo.RemoveSong(ctx, playlistID, songID)
}

// Reorder assigns positions to playlists atomically.
func (s *Service) Reorder(ctx context.Context, order []model.PlaylistOrder) error {
	const op = "playlist.Reorder"
	if len(order) == 0 {
		return errs.Validationf(op, "order must not be empty")
	}
	seen := make(map[int64]bool, len(order))
	for _, o := range order {
		if o.ID <= 0 {
			return errs.Validationf(op, "invalid playlist id %d", o.ID)
		}
		if seen[o.ID] {
			return errs.Validationf(op, "playlist %d listed twice", o.ID)
		}
		seen[o.ID] = true
	}
	return s.repo.Reorder(ctx, order)
}

// CoverUpload is an uploaded cover image.
type CoverUpload struct {
	ContentType string // declared by the client
	Size        int64  // -1 when unknown
	Body        io.Reader
}

// UploadCover stores a new cover and points the playlist at it. The previous
// cover object is removed once the new one is in place.
func (s *Service) UploadCover(ctx context.Context, id int64, up CoverUpload) (*model.PlaylistView, error) {
	const op = "playlist.UploadCover"

	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
		return nil, errs.Validationf(op, "only image files are allowed")
	}
	if up.Size > s.opts.MaxCoverBytes {
		return nil, errs.Validationf(op, "cover exceeds the %d MB limit", s.opts.MaxCoverBytes>>20)
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, s.opts.MaxCoverBytes+1))
	if err != nil {
		return nil, errs.E(errs.Internal, op, "", fmt.Errorf("failed to read cover: %w", err))
	}
	if int64(len(data)) > s.opts.MaxCoverBytes {
		return nil, errs.Validationf(op, "cover exceeds the %d MB limit", s.opts.MaxCoverBytes>>20)
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, errs.Validationf(op, "only image files are allowed (detected %s)", detected.String())
	}

	p, err := s.repo.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	key := storage.PlaylistCoverKey(id, s.now().UnixMilli(), detected.Extension())
	if err := s.covers.Put(ctx, key, data, detected.String()); err != nil {
		return nil, err
	}
	if err := s.repo.SetCover(ctx, id, key); err != nil {
		s.dropCover(ctx, key)
		return nil, err
	}
	if p.CoverKey != nil && *p.CoverKey != key {
		s.dropCover(ctx, *p.CoverKey)
	}

	p.CoverKey = &key
	v, err := s.view(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// dropCover removes a cover object; a failure only leaves an unreferenced
// object behind.
func (s *Service) dropCover(ctx context.Context, key string) {
	if err := s.covers.Delete(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn("failed to remove playlist cover", logger.String("key", key), logger.ErrorField(err))
	}
}
