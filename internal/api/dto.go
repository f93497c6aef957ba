package api

import (
	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/vcs"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = notebook.NoteDetail

// PutNoteRequest is the request body for saving a note or file.
type PutNoteRequest struct {
	Content string `json:"content" example:"# 2024-01-05\n- [ ] task"`
}

// RepositoryResponse describes the bound repository.
type RepositoryResponse struct {
	Root      string    `json:"root"`
	Branch    string    `json:"branch"`
	RemoteURL string    `json:"remoteUrl,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Transport string    `json:"transport"`
	State     vcs.State `json:"state"`
}

// CloneRequest is the request body for cloning a repository.
type CloneRequest struct {
	URL       string `json:"url" validate:"required"`
	ParentDir string `json:"parentDir"`
	Token     string `json:"token"`
	Provider  string `json:"provider"`
	Transport string `json:"transport"`
}

// CloneResponse is returned after a successful clone.
type CloneResponse struct {
	Path string `json:"path"`
}

// ResolveRequest is the request body for resolving one conflicted file.
type ResolveRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// CompleteMergeRequest is the optional request body for completing a merge.
type CompleteMergeRequest struct {
	Message string `json:"message"`
}

// FetchAttachmentRequest is the request body for storing a remote or data-URI attachment.
type FetchAttachmentRequest struct {
	URL      string `json:"url" validate:"required"`
	Filename string `json:"filename"`
}

// DayStatsRequest is the request body for recording one day's counts.
type DayStatsRequest struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	Uncompleted int `json:"uncompleted"`
}

// DeletePastTaskRequest identifies a task by its day and text.
type DeletePastTaskRequest struct {
	SourceDate string `json:"sourceDate" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

// DismissPastTaskRequest identifies a task by id.
type DismissPastTaskRequest struct {
	ID string `json:"id" validate:"required"`
}
