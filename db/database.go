package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FragFM/config"
	"FragFM/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// ConnectDB opens the MySQL pool and waits for the server to answer,
// retrying with a fixed backoff. Exhausting the attempts is a startup error.
func ConnectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := pingWithRetry(ctx, db, cfg.DBConnectAttempts, cfg.DBConnectBackoff); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Successfully connected to the database.",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, backoff time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Warn("database connection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("maxAttempts", attempts),
			logger.ErrorField(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database connection cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
}

var schema = []struct {
	table string
	ddl   string
}{
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		name VARCHAR(255),
		password_hash VARCHAR(255) NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		last_login DATETIME NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"songs", `
	CREATE TABLE IF NOT EXISTS songs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		artist VARCHAR(255) NOT NULL,
		album VARCHAR(255),
		duration DOUBLE NOT NULL,
		fragment_count INT NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1,
		uploaded_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_songs_uploaded_at (uploaded_at),
		CONSTRAINT chk_songs_fragments CHECK (fragment_count >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"playlists", `
	CREATE TABLE IF NOT EXISTS playlists (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		cover_key VARCHAR(767),
		sort_order INT NOT NULL DEFAULT 0,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"playlist_songs", `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id BIGINT NOT NULL,
		song_id BIGINT NOT NULL,
		added_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		PRIMARY KEY (playlist_id, song_id),
		CONSTRAINT fk_playlist_songs_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		CONSTRAINT fk_playlist_songs_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// InitDB creates the tables if they don't exist.
func InitDB(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
		logger.Info("table initialized (or already exists)", logger.String("table", t.table))
	}
	return nil
}
