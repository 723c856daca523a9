package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FragFM/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterConfig holds what the router needs besides the handler.
type RouterConfig struct {
	CORSOrigin string
	Checks     map[string]HealthCheck
}

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *APIHandler, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware, corsMiddleware(cfg.CORSOrigin))

	router.HandleFunc("/health", healthHandler(cfg.Checks)).Methods(http.MethodGet)

	// 用户认证相关的API端点
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet)

	// 歌曲相关的API端点
	api.HandleFunc("/songs/admin/upload-extract", h.AuthMiddleware(h.UploadExtractHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/admin/process-save", h.AuthMiddleware(h.ProcessSaveHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/admin/discard", h.AuthMiddleware(h.DiscardHandler)).Methods(http.MethodPost)
	api.HandleFunc("/songs/admin", h.AuthMiddleware(h.ListSongsAdminHandler)).Methods(http.MethodGet)
	api.HandleFunc("/songs/admin/{id:[0-9]+}", h.AuthMiddleware(h.UpdateSongHandler)).Methods(http.MethodPut)
	api.HandleFunc("/songs/admin/{id:[0-9]+}", h.AuthMiddleware(h.DeleteSongHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/songs/{uuid}/info", h.SongInfoHandler).Methods(http.MethodGet)
	api.HandleFunc("/songs/{uuid}/fragments/secure-urls", h.FragmentURLsHandler).Methods(http.MethodGet)
	api.HandleFunc("/songs/{uuid}/fragment/{n}/secure-url", h.FragmentURLHandler).Methods(http.MethodGet)

	// 歌单相关的API端点
	api.HandleFunc("/playlists", h.ListPlaylistsHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlists", h.AuthMiddleware(h.CreatePlaylistHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/admin", h.AuthMiddleware(h.ListPlaylistsAdminHandler)).Methods(http.MethodGet)
	api.HandleFunc("/playlists/admin/order", h.AuthMiddleware(h.ReorderPlaylistsHandler)).Methods(http.MethodPut)
	api.HandleFunc("/playlists/admin/{id:[0-9]+}", h.AuthMiddleware(h.UpdatePlaylistHandler)).Methods(http.MethodPut)
	api.HandleFunc("/playlists/admin/{id:[0-9]+}", h.AuthMiddleware(h.DeletePlaylistHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/admin/{id:[0-9]+}/cover", h.AuthMiddleware(h.UploadPlaylistCoverHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{playlistId:[0-9]+}/songs/{songId:[0-9]+}", h.AuthMiddleware(h.AddPlaylistSongHandler)).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{playlistId:[0-9]+}/songs/{songId:[0-9]+}", h.AuthMiddleware(h.RemovePlaylistSongHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id:[0-9]+}", h.GetPlaylistHandler).Methods(http.MethodGet)

	// preflight requests are answered by the CORS middleware; the route
	// only has to exist so mux does not answer 405 first
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	return router
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		result := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result["status"] = "degraded"
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		writeJSON(w, status, result)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logger.Info("http request",
			logger.String("requestId", requestIDFrom(r.Context())),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Int("bytes", rec.bytes),
			logger.Duration("elapsed", time.Since(start)))
	})
}

// corsMiddleware allows the configured front-end origin with credentials,
// which the cookie session needs; a wildcard origin cannot carry them.
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqOrigin := r.Header.Get("Origin"); reqOrigin != "" && reqOrigin == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Run serves handler on addr until SIGINT, SIGTERM or ctx ends, then shuts
// down gracefully, letting in-flight requests finish within shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 设置服务器超时（上传和处理耗时较长，不设置写超时）
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
