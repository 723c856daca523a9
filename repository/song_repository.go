package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"FragFM/core/errs"
	"FragFM/logger"
	"FragFM/model"
)

// SongRepository defines the catalog operations on songs.
type SongRepository interface {
	CreateSong(ctx context.Context, song *model.Song) (int64, error)
	GetActiveSongByUUID(ctx context.Context, uuid string) (*model.Song, error)
	GetSongByID(ctx context.Context, id int64) (*model.Song, error)
	ListSongs(ctx context.Context) ([]*model.Song, error)
	UpdateSong(ctx context.Context, id int64, upd model.SongUpdate) error
	DeleteSong(ctx context.Context, id int64) error
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{db: db}
}

const songColumns = `id, uuid, title, artist, album, duration, fragment_count, active, uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*model.Song, error) {
	song := &model.Song{}
	var album sql.NullString
	if err := row.Scan(&song.ID, &song.UUID, &song.Title, &song.Artist, &album, &song.Duration,
		&song.FragmentCount, &song.Active, &song.UploadedAt); err != nil {
		return nil, err
	}
	if album.Valid {
		song.Album = &album.String
	}
	return song, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreateSong inserts the song inside a transaction and returns its row id.
// This is the point after which an ingested song exists.
func (r *mysqlSongRepository) CreateSong(ctx context.Context, song *model.Song) (int64, error) {
	const op = "repository.CreateSong"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO songs (uuid, title, artist, album, duration, fragment_count, active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to prepare statement for CreateSong: %w", err))
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, song.UUID, song.Title, song.Artist, nullString(song.Album), song.Duration, song.FragmentCount)
	if err != nil {
		return 0, catalogErr(op, "a song with this identifier already exists", fmt.Errorf("failed to execute CreateSong: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to get last insert ID for CreateSong: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to commit CreateSong: %w", err))
	}

	logger.Debug("song row created", logger.Int64("id", id), logger.String("uuid", song.UUID))
	return id, nil
}

// GetActiveSongByUUID returns a playable song; inactive songs are not found.
func (r *mysqlSongRepository) GetActiveSongByUUID(ctx context.Context, uuid string) (*model.Song, error) {
	const op = "repository.GetActiveSongByUUID"
	row := r.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE uuid = ? AND active = 1`, uuid)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf(op, "song not found")
	}
	if err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to scan song by uuid %s: %w", uuid, err))
	}
	return song, nil
}

// GetSongByID retrieves a song by its row id regardless of the active flag.
func (r *mysqlSongRepository) GetSongByID(ctx context.Context, id int64) (*model.Song, error) {
	const op = "repository.GetSongByID"
	row := r.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf(op, "song not found")
	}
	if err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to scan song by ID %d: %w", id, err))
	}
	return song, nil
}

// ListSongs returns every song, newest upload first.
func (r *mysqlSongRepository) ListSongs(ctx context.Context) ([]*model.Song, error) {
	const op = "repository.ListSongs"
	rows, err := r.db.QueryContext(ctx, `SELECT `+songColumns+` FROM songs ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to query songs: %w", err))
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("failed to scan song in ListSongs: %w", err))
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.E(errs.Catalog, op, "", fmt.Errorf("error during rows iteration in ListSongs: %w", err))
	}
	return songs, nil
}

// UpdateSong writes the admin-editable fields.
func (r *mysqlSongRepository) UpdateSong(ctx context.Context, id int64, upd model.SongUpdate) error {
	const op = "repository.UpdateSong"
	stmt, err := r.db.PrepareContext(ctx, `UPDATE songs SET title = ?, artist = ?, album = ?, active = ? WHERE id = ?`)
	if err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to prepare statement for UpdateSong: %w", err))
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, upd.Title, upd.Artist, nullString(upd.Album), upd.Active, id); err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to execute UpdateSong for ID %d: %w", id, err))
	}
	return nil
}

// DeleteSong removes the song and its playlist memberships in one transaction.
func (r *mysqlSongRepository) DeleteSong(ctx context.Context, id int64) error {
	const op = "repository.DeleteSong"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE song_id = ?`, id); err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to delete memberships of song %d: %w", id, err))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to delete song %d: %w", id, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFoundf(op, "song not found")
	}
	if err := tx.Commit(); err != nil {
		return errs.E(errs.Catalog, op, "", fmt.Errorf("failed to commit DeleteSong: %w", err))
	}
	return nil
}
