package cmd

import (
	"database/sql"

	"FragFM/cache"
	"FragFM/config"
	"FragFM/core/auth"
	"FragFM/core/ingest"
	"FragFM/core/playlist"
	"FragFM/core/song"
	"FragFM/repository"
	"FragFM/server"
	"FragFM/storage"

	"gorm.io/gorm"
)

// buildHandler assembles the services behind the HTTP API.
func buildHandler(cfg *config.Config, sqlDB *sql.DB, gormDB *gorm.DB, gateway *storage.Gateway, urlCache cache.URLCache, orchestrator *ingest.Orchestrator) *server.APIHandler {
	signer := song.NewSigner(gateway, urlCache)
	songs := song.NewService(repository.NewMySQLSongRepository(sqlDB), signer, gateway, song.Options{
		AssetURLTTL:    cfg.AssetURLTTL,
		FragmentURLTTL: cfg.FragmentURLTTL,
	})
	playlists := playlist.NewService(repository.NewGormPlaylistRepository(gormDB), songs, signer, gateway, playlist.Options{
		AssetURLTTL:   cfg.AssetURLTTL,
		MaxCoverBytes: cfg.MaxCoverBytes,
	})

	return server.NewAPIHandler(
		repository.NewMySQLUserRepository(sqlDB),
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL),
		auth.NewPasswordHasher(cfg.BcryptCost),
		orchestrator,
		songs,
		playlists,
		server.Options{
			MaxUploadBytes:      cfg.MaxUploadBytes,
			MaxCoverBytes:       cfg.MaxCoverBytes,
			SecureCookies:       cfg.CookieSecure,
			RegistrationEnabled: cfg.RegistrationEnabled,
			ProcessTimeout:      cfg.ProcessTimeout,
		},
	)
}
