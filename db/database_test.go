package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingWithRetrySucceedsAfterFailures(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	require.NoError(t, pingWithRetry(context.Background(), db, 5, time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWithRetryGivesUp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	err = pingWithRetry(context.Background(), db, 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pingWithRetry(ctx, db, 5, time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInitDBCreatesTablesInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "songs", "playlists", "playlist_songs"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table + " (")).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, InitDB(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitDBReportsFailingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS songs").WillReturnError(errors.New("syntax error"))

	err = InitDB(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "songs table")
}
