package api

import (
	"net/http"

	"github.com/starford/daylog/internal/pasttasks"
	"github.com/starford/daylog/internal/stats"
)

// GetStats handles GET /api/stats.
//
//	@Summary		Completion statistics with the summary for today
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	stats.Statistics
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "load stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutStats handles PUT /api/stats. The summary is rederived from daily.
func (h *Handler) PutStats(w http.ResponseWriter, r *http.Request) {
	var req stats.Statistics
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Daily == nil {
		req.Daily = map[string]stats.DailyStats{}
	}
	st, err := h.svc.SaveStats(r.Context(), req)
	if err != nil {
		writeError(w, "save stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RecomputeStats handles POST /api/stats/recompute.
func (h *Handler) RecomputeStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.RecomputeStats(r.Context())
	if err != nil {
		writeError(w, "recompute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutDayStats handles PUT /api/stats/days/{date}.
//
//	@Summary		Record one day's task counts
//	@Tags			stats
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string			true	"Day (YYYY-MM-DD)"
//	@Param			body	body		DayStatsRequest	true	"Counts"
//	@Success		200		{object}	stats.Statistics
//	@Failure		400		{object}	errResponse	"Future date or malformed counts"
//	@Security		BearerAuth
//	@Router			/stats/days/{date} [put]
func (h *Handler) PutDayStats(w http.ResponseWriter, r *http.Request) {
	d, ok := dateParam(w, r)
	if !ok {
		return
	}
	var req DayStatsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.UpdateDayStats(r.Context(), d, req.Total, req.Completed, req.Uncompleted)
	if err != nil {
		writeError(w, "update day stats", err, "date", d.String())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ScanPastTasks handles GET /api/past-tasks.
func (h *Handler) ScanPastTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ScanPastTasks(r.Context())
	if err != nil {
		writeError(w, "scan past tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// GetPastState handles GET /api/past-tasks/state.
func (h *Handler) GetPastState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.PastState(r.Context())
	if err != nil {
		writeError(w, "load past state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PutPastState handles PUT /api/past-tasks/state.
func (h *Handler) PutPastState(w http.ResponseWriter, r *http.Request) {
	var req pasttasks.State
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Dismissed == nil {
		req.Dismissed = []string{}
	}
	if err := h.svc.SavePastState(r.Context(), req); err != nil {
		writeError(w, "save past state", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeletePastTask handles POST /api/past-tasks/delete.
func (h *Handler) DeletePastTask(w http.ResponseWriter, r *http.Request) {
	var req DeletePastTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SourceDate == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("sourceDate and text are required"))
		return
	}
	path, err := h.svc.DeletePastTask(r.Context(), req.SourceDate, req.Text)
	if err != nil {
		writeError(w, "delete past task", err, "date", req.SourceDate)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

// DismissPastTask handles POST /api/past-tasks/dismiss.
func (h *Handler) DismissPastTask(w http.ResponseWriter, r *http.Request) {
	var req DismissPastTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	st, err := h.svc.DismissPastTask(r.Context(), req.ID)
	if err != nil {
		writeError(w, "dismiss past task", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
