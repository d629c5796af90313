package models

import (
	"time"
)

// TaskRequest is the inbound build request from the evaluation server.
// Identity fields are validated at the HTTP boundary before any processing
// starts; the struct is treated as immutable once accepted.
type TaskRequest struct {
	Email         string       `json:"email" binding:"required"`
	Secret        string       `json:"secret" binding:"required"`
	Task          string       `json:"task" binding:"required"`
	Round         int          `json:"round" binding:"required,min=1"`
	Nonce         string       `json:"nonce" binding:"required"`
	Brief         string       `json:"brief" binding:"required"`
	Checks        []string     `json:"checks"`
	EvaluationURL string       `json:"evaluation_url" binding:"required"`
	Attachments   []Attachment `json:"attachments"`
}

// Attachment is a named file carried inline as a data URI
// (data:<media-type>[;base64],<payload>).
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TaskResponse is the immediate acknowledgment returned to the sender
// before background processing begins.
type TaskResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// FileSet maps relative file paths to content. Values may be binary
// (decoded attachments) or UTF-8 text (generated sources).
type FileSet map[string][]byte

// DeploymentResult carries the durable outcome of one deployment:
// where the code lives, the head commit, and where it is served.
// Never mutated after return.
type DeploymentResult struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// EvaluationNotification is the completion record POSTed to the callback
// URL. Exactly one is sent (successfully or after exhausting retries) per
// accepted task.
type EvaluationNotification struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// TaskRunStatus tracks a run through the pipeline stages.
type TaskRunStatus string

const (
	RunStatusQueued     TaskRunStatus = "queued"
	RunStatusGenerating TaskRunStatus = "generating"
	RunStatusDeploying  TaskRunStatus = "deploying"
	RunStatusNotifying  TaskRunStatus = "notifying"
	RunStatusCompleted  TaskRunStatus = "completed"
	RunStatusFailed     TaskRunStatus = "failed"
)

// TaskRun is the persisted record of one orchestrator invocation. The
// remote repository is the durable artifact; this row exists for
// observability and the task status API, so persistence failures are
// logged but never fail the pipeline.
type TaskRun struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RunID string `json:"run_id" gorm:"uniqueIndex;not null"`
	Task  string `json:"task" gorm:"index;not null"`
	Round int    `json:"round" gorm:"not null"`
	Nonce string `json:"nonce" gorm:"not null"`

	Status      TaskRunStatus `json:"status" gorm:"default:'queued'"`
	ParseSource string        `json:"parse_source,omitempty"`
	FileCount   int           `json:"file_count"`

	RepoURL   string `json:"repo_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	PagesURL  string `json:"pages_url,omitempty"`

	Notified bool   `json:"notified"`
	Error    string `json:"error,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
