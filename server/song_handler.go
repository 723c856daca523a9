package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"FragFM/core/errs"
	"FragFM/core/ingest"
	"FragFM/model"

	"github.com/gorilla/mux"
)

// multipartOverhead leaves room for boundaries and headers on top of the
// file ceiling.
const multipartOverhead = 1 << 20

// UploadExtractHandler stages an uploaded audio file and returns its
// metadata for the client to confirm.
func (h *APIHandler) UploadExtractHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, errs.E(errs.Validation, "server.UploadExtract", "a multipart upload is required", err))
		return
	}

	var staged string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, r, errs.E(errs.Validation, "server.UploadExtract", "malformed multipart body", err))
			return
		}
		if part.FormName() != "audioFile" || part.FileName() == "" {
			part.Close()
			continue
		}
		staged, err = h.ingestor.Stage(r.Context(), ingest.UploadFile{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        -1,
			Body:        part,
		})
		part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		break
	}
	if staged == "" {
		writeMessage(w, http.StatusBadRequest, "no audio file was uploaded")
		return
	}

	preview, err := h.ingestor.Preview(r.Context(), staged)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type processSaveRequest struct {
	TempFilename string `json:"tempFilename"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Album        string `json:"album"`
}

type processSaveResponse struct {
	Message string `json:"message"`
	*ingest.Result
}

// ProcessSaveHandler commits a staged upload.
func (h *APIHandler) ProcessSaveHandler(w http.ResponseWriter, r *http.Request) {
	var req processSaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if h.opts.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.ProcessTimeout)
		defer cancel()
	}
	res, err := h.ingestor.Commit(ctx, ingest.CommitRequest{
		StagedName: req.TempFilename,
		Title:      req.Title,
		Artist:     req.Artist,
		Album:      req.Album,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, processSaveResponse{Message: "song processed and saved", Result: res})
}

// DiscardHandler drops a staged upload the client will not commit.
func (h *APIHandler) DiscardHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TempFilename string `json:"tempFilename"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ingestor.Discard(r.Context(), req.TempFilename); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "upload discarded")
}

// ListSongsAdminHandler lists every song, newest first.
func (h *APIHandler) ListSongsAdminHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.songs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if songs == nil {
		songs = []*model.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

type updateSongRequest struct {
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	Album  *string `json:"album"`
	Active *bool   `json:"active"`
}

// UpdateSongHandler edits a song's admin fields.
func (h *APIHandler) UpdateSongHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateSongRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	// omitting the flag keeps the song visible
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	song, err := h.songs.Update(r.Context(), id, model.SongUpdate{
		Title:  req.Title,
		Artist: req.Artist,
		Album:  req.Album,
		Active: active,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// DeleteSongHandler removes a song, its objects and its memberships.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.songs.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "song deleted")
}

// SongInfoHandler returns an active song with signed cover and lyrics URLs.
func (h *APIHandler) SongInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := h.songs.Info(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// FragmentURLHandler signs a single fragment.
func (h *APIHandler) FragmentURLHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid fragment number")
		return
	}
	frag, err := h.songs.FragmentURL(r.Context(), mux.Vars(r)["uuid"], n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": frag.URL})
}

// FragmentURLsHandler signs a window of fragments given by start and count.
func (h *APIHandler) FragmentURLsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err1 := strconv.Atoi(q.Get("start"))
	count, err2 := strconv.Atoi(q.Get("count"))
	if err1 != nil || err2 != nil {
		writeMessage(w, http.StatusBadRequest, "start and count must be positive integers")
		return
	}
	urls, err := h.songs.FragmentURLs(r.Context(), mux.Vars(r)["uuid"], start, count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, urls)
}
