package server

import (
	"errors"
	"io"
	"net/http"

	"FragFM/core/errs"
	"FragFM/core/playlist"
	"FragFM/model"
)

type playlistRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type reorderRequest struct {
	Playlists []struct {
		ID        int64 `json:"id"`
		SortOrder *int  `json:"sortOrder"`
	} `json:"playlists"`
}

// ListPlaylistsHandler 获取所有歌单
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.playlists.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetPlaylistHandler 获取歌单及其歌曲
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.playlists.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *APIHandler) ListPlaylistsAdminHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.playlists.AdminList(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.playlists.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req playlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.playlists.Update(r.Context(), id, req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.playlists.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "playlist deleted")
}

// ReorderPlaylistsHandler 更新歌单顺序
func (h *APIHandler) ReorderPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Playlists == nil {
		writeMessage(w, http.StatusBadRequest, "expected an array of playlists")
		return
	}
	order := make([]model.PlaylistOrder, 0, len(req.Playlists))
	for _, p := range req.Playlists {
		if p.SortOrder == nil {
			writeMessage(w, http.StatusBadRequest, "every playlist needs a sortOrder")
			return
		}
		order = append(order, model.PlaylistOrder{ID: p.ID, SortOrder: *p.SortOrder})
	}
	if err := h.playlists.Reorder(r.Context(), order); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "playlist order updated")
}

// UploadPlaylistCoverHandler 上传歌单封面（表单字段 playlistCover）
func (h *APIHandler) UploadPlaylistCoverHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxCoverBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, errs.E(errs.Validation, "server.UploadPlaylistCover", "a multipart upload is required", err))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, r, errs.E(errs.Validation, "server.UploadPlaylistCover", "malformed multipart body", err))
			return
		}
		if part.FormName() != "playlistCover" || part.FileName() == "" {
			part.Close()
			continue
		}
		view, err := h.playlists.UploadCover(r.Context(), id, playlist.CoverUpload{
			ContentType: part.Header.Get("Content-Type"),
			Size:        -1,
			Body:        part,
		})
		part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}
	writeMessage(w, http.StatusBadRequest, "no image was uploaded")
}

func (h *APIHandler) AddPlaylistSongHandler(w http.ResponseWriter, r *http.Request) {
	playlistID, songID, ok := h.membershipIDs(w, r)
	if !ok {
		return
	}
	if err := h.playlists.AddSong(r.Context(), playlistID, songID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "song added to playlist")
}

func (h *APIHandler) RemovePlaylistSongHandler(w http.ResponseWriter, r *http.Request) {
	playlistID, songID, ok := h.membershipIDs(w, r)
	if !ok {
		return
	}
	if err := h.playlists.RemoveSong(r.Context(), playlistID, songID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "song removed from playlist")
}

func (h *APIHandler) membershipIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	playlistID, err := pathID(r, "playlistId")
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	songID, err := pathID(r, "songId")
	if err != nil {
		writeError(w, r, err)
		return 0, 0, false
	}
	return playlistID, songID, true
}
