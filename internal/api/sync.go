package api

import (
	"net/http"

	"github.com/starford/daylog/internal/vcs"
)

// Sync handles POST /api/sync: pull, then push.
//
//	@Summary		Pull from and push to origin
//	@Tags			sync
//	@Produce		json
//	@Success		200	{object}	notebook.SyncResult
//	@Failure		409	{object}	errResponse	"Merge required"
//	@Failure		502	{object}	errResponse	"Remote unreachable or rejected credentials"
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context())
	if err != nil {
		status, code := statusOf(err)
		if status == http.StatusInternalServerError {
			writeError(w, "sync", err)
			return
		}
		res.Error = err.Error()
		writeJSON(w, status, map[string]any{"error": err.Error(), "code": code, "result": res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Push handles POST /api/sync/push.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Push(r.Context()); err != nil {
		writeError(w, "push", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pushed": true})
}

// Pull handles POST /api/sync/pull.
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Pull(r.Context())
	if err != nil {
		writeError(w, "pull", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

// ConflictStatus handles GET /api/conflicts.
func (h *Handler) ConflictStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ConflictStatus(r.Context())
	if err != nil {
		writeError(w, "conflict status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ConflictVersions handles GET /api/conflicts/files/*.
//
//	@Summary		Local, remote and working versions of a conflicted file
//	@Tags			conflicts
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	notebook.ConflictDetail
//	@Security		BearerAuth
//	@Router			/conflicts/files/{path} [get]
func (h *Handler) ConflictVersions(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Conflict(r.Context(), path))
}

// ResolveConflict handles POST /api/conflicts/resolve.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.ResolveConflict(r.Context(), req.Path, []byte(req.Content)); err != nil {
		writeError(w, "resolve conflict", err, "path", req.Path)
		return
	}
	st, err := h.svc.ConflictStatus(r.Context())
	if err != nil {
		writeError(w, "conflict status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CompleteMerge handles POST /api/conflicts/complete.
// The merge commit is created even when the follow-up push fails; the push
// failure is reported in the body.
func (h *Handler) CompleteMerge(w http.ResponseWriter, r *http.Request) {
	var req CompleteMergeRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CompleteMerge(r.Context(), req.Message)
	if err != nil {
		writeError(w, "complete merge", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     vcs.StateClean,
		"pushed":    res.Pushed,
		"pushError": res.PushError,
	})
}
