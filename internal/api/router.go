package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daylog/internal/notebook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notebook.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Repository.
	r.Get("/repository", h.Repository)
	r.Post("/repository/init", h.InitRepository)
	r.Get("/repository/detect", h.DetectRepository)
	r.Post("/repository/clone", h.CloneRepository)

	// Daily notes and raw files.
	r.Get("/notes/{date}", h.GetNote)
	r.Put("/notes/{date}", h.PutNote)
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.PutFile)
	r.Get("/tree", h.ListDir)
	r.Get("/calendar", h.Years)
	r.Get("/calendar/{year}", h.Months)
	r.Get("/calendar/{year}/{month}", h.Days)
	r.Get("/calendar/{year}/{month}/summary", h.MonthSummary)

	// Search and history.
	r.Get("/search", h.Search)
	r.Get("/history", h.History)

	// Sync.
	r.Post("/sync", h.Sync)
	r.Post("/sync/push", h.Push)
	r.Post("/sync/pull", h.Pull)

	// Conflicts.
	r.Get("/conflicts", h.ConflictStatus)
	r.Get("/conflicts/files/*", h.ConflictVersions)
	r.Post("/conflicts/resolve", h.ResolveConflict)
	r.Post("/conflicts/complete", h.CompleteMerge)

	// Attachments.
	r.Post("/attachments/{year}/{month}", h.UploadAttachment)
	r.Post("/attachments/{year}/{month}/fetch", h.FetchAttachment)
	r.Get("/attachments/*", h.ServeAttachment)
	r.Delete("/attachments/*", h.DeleteAttachment)

	// Statistics.
	r.Get("/stats", h.GetStats)
	r.Put("/stats", h.PutStats)
	r.Post("/stats/recompute", h.RecomputeStats)
	r.Put("/stats/days/{date}", h.PutDayStats)

	// Past uncompleted tasks.
	r.Get("/past-tasks", h.ScanPastTasks)
	r.Get("/past-tasks/state", h.GetPastState)
	r.Put("/past-tasks/state", h.PutPastState)
	r.Post("/past-tasks/delete", h.DeletePastTask)
	r.Post("/past-tasks/dismiss", h.DismissPastTask)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
