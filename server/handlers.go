package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"FragFM/core/auth"
	"FragFM/core/errs"
	"FragFM/core/ingest"
	"FragFM/core/playlist"
	"FragFM/logger"
	"FragFM/model"
	"FragFM/repository"

	"github.com/gorilla/mux"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Ingestor is the upload pipeline as the HTTP layer sees it.
type Ingestor interface {
	Stage(ctx context.Context, f ingest.UploadFile) (string, error)
	Preview(ctx context.Context, stagedName string) (*ingest.Preview, error)
	Commit(ctx context.Context, req ingest.CommitRequest) (*ingest.Result, error)
	Discard(ctx context.Context, stagedName string) error
}

// SongService serves playback URLs and admin catalog operations.
type SongService interface {
	Info(ctx context.Context, songUUID string) (*model.SongInfo, error)
	FragmentURL(ctx context.Context, songUUID string, n int) (*model.FragmentURL, error)
	FragmentURLs(ctx context.Context, songUUID string, start, count int) ([]model.FragmentURL, error)
	List(ctx context.Context) ([]*model.Song, error)
	Update(ctx context.Context, id int64, upd model.SongUpdate) (*model.Song, error)
	Delete(ctx context.Context, id int64) error
}

// PlaylistService manages playlists.
type PlaylistService interface {
	List(ctx context.Context) ([]model.PlaylistView, error)
	Get(ctx context.Context, id int64) (*model.PlaylistDetail, error)
	AdminList(ctx context.Context) ([]model.PlaylistAdminView, error)
	Create(ctx context.Context, name string, description *string) (*model.PlaylistView, error)
	Update(ctx context.Context, id int64, name string, description *string) (*model.PlaylistView, error)
	Delete(ctx context.Context, id int64) error
	AddSong(ctx context.Context, playlistID, songID int64) error
	RemoveSong(ctx context.Context, playlistID, songID int64) error
	Reorder(ctx context.Context, order []model.PlaylistOrder) error
	UploadCover(ctx context.Context, id int64, up playlist.CoverUpload) (*model.PlaylistView, error)
}

// Options carries the HTTP-level settings of the handlers.
type Options struct {
	MaxUploadBytes      int64
	MaxCoverBytes       int64
	SecureCookies       bool
	RegistrationEnabled bool
	// ProcessTimeout bounds one process-save request; segmenting and
	// uploading a long file takes minutes.
	ProcessTimeout time.Duration
}

// APIHandler 处理所有API请求
type APIHandler struct {
	users     repository.UserRepository
	tokens    *auth.TokenManager
	passwords *auth.PasswordHasher
	ingestor  Ingestor
	songs     SongService
	playlists PlaylistService
	opts      Options
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	passwords *auth.PasswordHasher,
	ingestor Ingestor,
	songs SongService,
	playlists PlaylistService,
	opts Options,
) *APIHandler {
	return &APIHandler{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		ingestor:  ingestor,
		songs:     songs,
		playlists: playlists,
		opts:      opts,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusFor maps an error kind to the HTTP status returned to the client.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch errs.KindOf(err) {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.UnreadableMedia:
		return http.StatusUnprocessableEntity
	case errs.Transcode, errs.StorageWrite, errs.StorageRead, errs.StorageDelete:
		return http.StatusBadGateway
	case errs.Conflict:
		return http.StatusConflict
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error and sends only its user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := errs.Message(err)
	if status == http.StatusRequestEntityTooLarge {
		msg = "request body too large"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("requestId", requestIDFrom(r.Context())),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.ErrorField(err))
	} else {
		logger.Info("request rejected",
			logger.String("requestId", requestIDFrom(r.Context())),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.ErrorField(err))
	}
	writeMessage(w, status, msg)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validationf("server.decodeJSON", "request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errs.E(errs.Validation, "server.decodeJSON", "invalid request body", err)
	}
	return nil
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validationf("server.pathID", "invalid %s", name)
	}
	return id, nil
}
