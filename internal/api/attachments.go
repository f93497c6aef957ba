package api

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daylog/internal/notebook"
)

const maxUploadBytes = notebook.MaxAttachmentSize

// ServeAttachment handles GET /api/attachments/*.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	rel := wildcardPath(r)
	abs, err := h.svc.AttachmentFile(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); errors.Is(statErr, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// UploadAttachment handles POST /api/attachments/{year}/{month}
// (multipart/form-data, field "file").
//
//	@Summary		Upload an attachment into a month's assets directory
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			year	path		string	true	"Year (YYYY)"
//	@Param			month	path		string	true	"Month (MM)"
//	@Param			file	formData	file	true	"Attachment"
//	@Success		201		{object}	notebook.Attachment
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/attachments/{year}/{month} [post]
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	a, err := h.svc.UploadAttachment(r.Context(), chi.URLParam(r, "year"), chi.URLParam(r, "month"), header.Filename, data)
	if err != nil {
		writeError(w, "upload attachment", err, "filename", header.Filename)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// FetchAttachment handles POST /api/attachments/{year}/{month}/fetch.
// The body names an http(s) URL or a base64 data URI.
func (h *Handler) FetchAttachment(w http.ResponseWriter, r *http.Request) {
	var req FetchAttachmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required"))
		return
	}
	a, err := h.svc.FetchAttachment(r.Context(), chi.URLParam(r, "year"), chi.URLParam(r, "month"), req.URL, req.Filename)
	if err != nil {
		writeError(w, "fetch attachment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DeleteAttachment handles DELETE /api/attachments/*.
func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	rel := wildcardPath(r)
	if err := h.svc.DeleteAttachment(r.Context(), rel); err != nil {
		writeError(w, "delete attachment", err, "path", rel)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
