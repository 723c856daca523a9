package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"FragFM/core/errs"
	"FragFM/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var songRowColumns = []string{"id", "uuid", "title", "artist", "album", "duration", "fragment_count", "active", "uploaded_at"}

func strPtr(s string) *string { return &s }

func TestCreateSongCommitsAndReturnsID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO songs`).
		ExpectExec().
		WithArgs("u-1", "Cielo", "Ana", nil, 215.5, 22).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	id, err := repo.CreateSong(context.Background(), &model.Song{
		UUID: "u-1", Title: "Cielo", Artist: "Ana", Album: strPtr(""), Duration: 215.5, FragmentCount: 22,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
}

func TestCreateSongRollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO songs`).
		ExpectExec().
		WithArgs("u-1", "Cielo", "Ana", "Live", 10.0, 1).
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := repo.CreateSong(context.Background(), &model.Song{
		UUID: "u-1", Title: "Cielo", Artist: "Ana", Album: strPtr("Live"), Duration: 10, FragmentCount: 1,
	})
	require.Error(t, err)
	assert.Equal(t, errs.Catalog, errs.KindOf(err))
}

func TestCreateSongDuplicateIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO songs`).
		ExpectExec().
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'u-1' for key 'uuid'"})
	mock.ExpectRollback()

	_, err := repo.CreateSong(context.Background(), &model.Song{UUID: "u-1", Title: "T", Artist: "A", Duration: 1, FragmentCount: 1})
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}

func TestGetActiveSongByUUID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, uuid, title, artist, album, duration, fragment_count, active, uploaded_at FROM songs WHERE uuid = \? AND active = 1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(songRowColumns).AddRow(7, "u-1", "Cielo", "Ana", "Live", 25.0, 3, true, now))

	song, err := repo.GetActiveSongByUUID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, song.ID)
	require.NotNil(t, song.Album)
	assert.Equal(t, "Live", *song.Album)
	assert.Equal(t, 3, song.FragmentCount)
	assert.True(t, song.Active)
}

func TestGetActiveSongByUUIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectQuery(`FROM songs WHERE uuid = \?`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows(songRowColumns))

	_, err := repo.GetActiveSongByUUID(context.Background(), "gone")
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestListSongsNewestFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM songs ORDER BY uploaded_at DESC`).
		WillReturnRows(sqlmock.NewRows(songRowColumns).
			AddRow(2, "u-2", "B", "Y", nil, 30.0, 3, false, now).
			AddRow(1, "u-1", "A", "X", "Alb", 12.0, 2, true, now.Add(-time.Hour)))

	songs, err := repo.ListSongs(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "u-2", songs[0].UUID)
	assert.Nil(t, songs[0].Album)
	assert.False(t, songs[0].Active)
}

func TestUpdateSong(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectPrepare(`UPDATE songs SET title = \?, artist = \?, album = \?, active = \? WHERE id = \?`).
		ExpectExec().
		WithArgs("New", "Artist", nil, false, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSong(context.Background(), 5, model.SongUpdate{Title: "New", Artist: "Artist", Active: false})
	require.NoError(t, err)
}

func TestDeleteSongRemovesMembershipsFirst(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM playlist_songs WHERE song_id = \?`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM songs WHERE id = \?`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteSong(context.Background(), 5))
}

func TestDeleteSongMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMySQLSongRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM playlist_songs`).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM songs`).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteSong(context.Background(), 9)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}
