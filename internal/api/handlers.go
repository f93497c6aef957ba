package api

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/vcs"
)

// Handler holds API route handlers.
type Handler struct {
	svc *notebook.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *notebook.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the path after a "/*" route.
// Supports encoded slashes from OpenAPI clients (e.g. 2024%2F01%2F05.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func dateParam(w http.ResponseWriter, r *http.Request) (notes.Date, bool) {
	d, err := notes.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, "parse date", err)
		return notes.Date{}, false
	}
	return d, true
}

func ifMatch(r *http.Request) string {
	// Strip surrounding quotes if present (standard ETag format).
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

func intQuery(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// Repository handles GET /api/repository.
//
//	@Summary		Describe the bound repository
//	@Tags			repository
//	@Produce		json
//	@Success		200	{object}	RepositoryResponse
//	@Security		BearerAuth
//	@Router			/repository [get]
func (h *Handler) Repository(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Store()
	st, err := store.State(r.Context())
	if err != nil {
		writeError(w, "repository state", err)
		return
	}
	cfg := store.Config()
	writeJSON(w, http.StatusOK, RepositoryResponse{
		Root:      store.Root(),
		Branch:    store.Branch(),
		RemoteURL: cfg.RemoteURL,
		Provider:  cfg.Provider,
		Transport: cfg.Transport,
		State:     st,
	})
}

// InitRepository handles POST /api/repository/init.
func (h *Handler) InitRepository(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Initialize(r.Context()); err != nil {
		writeError(w, "initialize repository", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetectRepository handles GET /api/repository/detect?path=.
// Without a path the bound repository is inspected.
func (h *Handler) DetectRepository(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = h.svc.Store().Root()
	}
	repo, err := vcs.Detect(r.Context(), path)
	if err != nil {
		writeError(w, "detect repository", err, "path", path)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

// CloneRepository handles POST /api/repository/clone.
// The clone lands next to the bound repository unless parentDir is given.
//
//	@Summary		Clone a remote repository
//	@Tags			repository
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CloneRequest	true	"Clone source"
//	@Success		201		{object}	CloneResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repository/clone [post]
func (h *Handler) CloneRepository(w http.ResponseWriter, r *http.Request) {
	var req CloneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required"))
		return
	}
	if req.ParentDir == "" {
		req.ParentDir = filepath.Dir(h.svc.Store().Root())
	}
	dir, err := vcs.Clone(r.Context(), vcs.CloneOptions{
		URL:       req.URL,
		ParentDir: req.ParentDir,
		Token:     req.Token,
		Provider:  req.Provider,
		Transport: req.Transport,
	})
	if err != nil {
		writeError(w, "clone repository", err, "url", req.URL)
		return
	}
	writeJSON(w, http.StatusCreated, CloneResponse{Path: dir})
}

// GetNote handles GET /api/notes/{date}.
//
//	@Summary		Get the note of one day
//	@Tags			notes
//	@Produce		json
//	@Param			date	path		string	true	"Day (YYYY-MM-DD)"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{date} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	d, ok := dateParam(w, r)
	if !ok {
		return
	}
	note, err := h.svc.ReadNote(r.Context(), d)
	if err != nil {
		writeError(w, "get note", err, "date", d.String())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PutNote handles PUT /api/notes/{date}.
//
//	@Summary		Save a day's note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			date		path	string			true	"Day (YYYY-MM-DD)"
//	@Param			If-Match	header	string			false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	PutNoteRequest	true	"Note content"
//	@Success		200		{object}	NoteDetail
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{date} [put]
func (h *Handler) PutNote(w http.ResponseWriter, r *http.Request) {
	d, ok := dateParam(w, r)
	if !ok {
		return
	}
	var req PutNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.WriteNote(r.Context(), d, []byte(req.Content), ifMatch(r))
	if err != nil {
		writeError(w, "write note", err, "date", d.String())
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetFile handles GET /api/files/*. A missing file reads as empty.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.ReadFile(r.Context(), path)
	if err != nil {
		writeError(w, "read file", err, "path", path)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PutFile handles PUT /api/files/*.
func (h *Handler) PutFile(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req PutNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.WriteFile(r.Context(), path, []byte(req.Content), ifMatch(r))
	if err != nil {
		writeError(w, "write file", err, "path", path)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ListDir handles GET /api/tree?dir=.
func (h *Handler) ListDir(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	entries, err := h.svc.ListDir(r.Context(), dir)
	if err != nil {
		writeError(w, "list dir", err, "dir", dir)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Years handles GET /api/calendar.
func (h *Handler) Years(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"years": h.svc.Years()})
}

// Months handles GET /api/calendar/{year}.
func (h *Handler) Months(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"months": h.svc.Months(chi.URLParam(r, "year"))})
}

// Days handles GET /api/calendar/{year}/{month}.
func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	days := h.svc.Days(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// MonthSummary handles GET /api/calendar/{year}/{month}/summary.
func (h *Handler) MonthSummary(w http.ResponseWriter, r *http.Request) {
	days, err := h.svc.Month(r.Context(), chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, "month summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	results, err := h.svc.Search(r.Context(), q, intQuery(r, "limit"))
	if err != nil {
		writeError(w, "search", err, "query", q)
		return
	}
	if results == nil {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// History handles GET /api/history?path=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	commits, err := h.svc.History(r.Context(), path, intQuery(r, "limit"))
	if err != nil {
		writeError(w, "history", err, "path", path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}
