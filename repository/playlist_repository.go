package repository

import (
	"context"
	"errors"
	"fmt"

	"FragFM/core/errs"
	"FragFM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaylistRepository defines playlist and membership operations.
type PlaylistRepository interface {
	ListPlaylists(ctx context.Context) ([]model.Playlist, error)
	ListPlaylistsAdmin(ctx context.Context) ([]model.Playlist, map[int64][]int64, error)
	GetPlaylist(ctx context.Context, id int64) (*model.Playlist, error)
	ListActiveSongs(ctx context.Context, playlistID int64) ([]model.Song, error)
	CreatePlaylist(ctx context.Context, p *model.Playlist) error
	UpdatePlaylist(ctx context.Context, id int64, name string, description *string) error
	DeletePlaylist(ctx context.Context, id int64) error
	AddSong(ctx context.Context, playlistID, songID int64) error
	RemoveSong(ctx context.Context, playlistID, songID int64) error
	Reorder(ctx context.Context, order []model.PlaylistOrder) error
	SetCover(ctx context.Context, id int64, coverKey string) error
}

// gormPlaylistRepository implements PlaylistRepository with GORM.
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository creates a new gormPlaylistRepository.
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

func gormErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NotFoundf(op, "playlist not found")
	case errors.Is(err, gorm.ErrDuplicatedKey), isDuplicateKey(err):
		return errs.E(errs.Conflict, op, "a playlist with that name already exists", err)
	default:
		return errs.E(errs.Catalog, op, "", err)
	}
}

func (r *gormPlaylistRepository) ListPlaylists(ctx context.Context) ([]model.Playlist, error) {
	var playlists []model.Playlist
	if err := r.db.WithContext(ctx).Order("sort_order ASC").Order("name ASC").Find(&playlists).Error; err != nil {
		return nil, gormErr("repository.ListPlaylists", err)
	}
	return playlists, nil
}

// ListPlaylistsAdmin returns every playlist and its member song ids.
func (r *gormPlaylistRepository) ListPlaylistsAdmin(ctx context.Context) ([]model.Playlist, map[int64][]int64, error) {
	const op = "repository.ListPlaylistsAdmin"
	db := r.db.WithContext(ctx)

	var playlists []model.Playlist
	if err := db.Order("sort_order ASC").Order("created_at DESC").Find(&playlists).Error; err != nil {
		return nil, nil, gormErr(op, err)
	}

	var memberships []model.PlaylistSong
	if err := db.Order("added_at ASC").Order("song_id ASC").Find(&memberships).Error; err != nil {
		return nil, nil, gormErr(op, err)
	}
	members := make(map[int64][]int64, len(playlists))
	for _, m := range memberships {
		members[m.PlaylistID] = append(members[m.PlaylistID], m.SongID)
	}
	return playlists, members, nil
}

func (r *gormPlaylistRepository) GetPlaylist(ctx context.Context, id int64) (*model.Playlist, error) {
	var p model.Playlist
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, gormErr("repository.GetPlaylist", err)
	}
	return &p, nil
}

// ListActiveSongs returns the playlist's active songs in the order they were added.
func (r *gormPlaylistRepository) ListActiveSongs(ctx context.Context, playlistID int64) ([]model.Song, error) {
	var songs []model.Song
	err := r.db.WithContext(ctx).
		Model(&model.Song{}).
		Joins("JOIN playlist_songs ON playlist_songs.song_id = songs.id").
		Where("playlist_songs.playlist_id = ? AND songs.active = ?", playlistID, true).
		Order("playlist_songs.added_at ASC").
		Order("songs.id ASC").
		Find(&songs).Error
	if err != nil {
		return nil, gormErr("repository.ListActiveSongs", err)
	}
	return songs, nil
}

func (r *gormPlaylistRepository) CreatePlaylist(ctx context.Context, p *model.Playlist) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return gormErr("repository.CreatePlaylist", err)
	}
	return nil
}

func (r *gormPlaylistRepository) UpdatePlaylist(ctx context.Context, id int64, name string, description *string) error {
	const op = "repository.UpdatePlaylist"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Playlist
		if err := tx.Select("id").First(&p, id).Error; err != nil {
			return gormErr(op, err)
		}
		err := tx.Model(&model.Playlist{}).Where("id = ?", id).
			Updates(map[string]any{"name": name, "description": description}).Error
		if err != nil {
			return gormErr(op, err)
		}
		return nil
	})
}

// DeletePlaylist removes the playlist and its memberships.
func (r *gormPlaylistRepository) DeletePlaylist(ctx context.Context, id int64) error {
	const op = "repository.DeletePlaylist"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&model.PlaylistSong{}).Error; err != nil {
			return gormErr(op, err)
		}
		res := tx.Delete(&model.Playlist{}, id)
		if res.Error != nil {
			return gormErr(op, res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.NotFoundf(op, "playlist not found")
		}
		return nil
	})
}

// AddSong adds a membership; adding an existing one is a no-op.
func (r *gormPlaylistRepository) AddSong(ctx context.Context, playlistID, songID int64) error {
	const op = "repository.AddSong"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Playlist{}).Where("id = ?", playlistID).Count(&n).Error; err != nil {
			return gormErr(op, err)
		}
		if n == 0 {
			return errs.NotFoundf(op, "playlist not found")
		}
		if err := tx.Model(&model.Song{}).Where("id = ?", songID).Count(&n).Error; err != nil {
			return gormErr(op, err)
		}
		if n == 0 {
			return errs.NotFoundf(op, "song not found")
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.PlaylistSong{PlaylistID: playlistID, SongID: songID}).Error
		if err != nil {
			return gormErr(op, err)
		}
		return nil
	})
}

func (r *gormPlaylistRepository) RemoveSong(ctx context.Context, playlistID, songID int64) error {
	err := r.db.WithContext(ctx).
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Delete(&model.PlaylistSong{}).Error
	if err != nil {
		return gormErr("repository.RemoveSong", err)
	}
	return nil
}

// Reorder applies every position in one transaction; any failure leaves the
// previous order untouched.
func (r *gormPlaylistRepository) Reorder(ctx context.Context, order []model.PlaylistOrder) error {
	const op = "repository.Reorder"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range order {
			err := tx.Model(&model.Playlist{}).Where("id = ?", o.ID).Update("sort_order", o.SortOrder).Error
			if err != nil {
				return gormErr(op, fmt.Errorf("playlist %d: %w", o.ID, err))
			}
		}
		return nil
	})
}

func (r *gormPlaylistRepository) SetCover(ctx context.Context, id int64, coverKey string) error {
	const op = "repository.SetCover"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Playlist
		if err := tx.Select("id").First(&p, id).Error; err != nil {
			return gormErr(op, err)
		}
		if err := tx.Model(&model.Playlist{}).Where("id = ?", id).Update("cover_key", coverKey).Error; err != nil {
			return gormErr(op, err)
		}
		return nil
	})
}
