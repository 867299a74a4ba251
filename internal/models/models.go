package models

import (
	"time"
)

// JobStatus tracks a job through its lifecycle. Transitions are monotonic:
// pending -> processing -> done|error. Terminal states never change again.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Page holds the markdown content extracted from a single document page.
// Page numbers are 1-based and pages are always kept in document order.
type Page struct {
	Page      int    `json:"page"`
	ContentMD string `json:"content_md"`
}

// Job is the authoritative record for one processing job. It lives in the
// job store keyed by ID; the queue entry only ever references it.
type Job struct {
	ID             string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	Parser         string    `json:"parser"`
	Filename       string    `json:"filename"`
	SourceLocation string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	PageCount      int       `json:"page_count,omitempty"`
	SummaryMD      string    `json:"summary_md,omitempty"`
	Pages          []Page    `json:"per_page_markdown,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at,omitempty"`
}

// JobResult is the payload of the single terminal write for a successful job.
type JobResult struct {
	Parser    string
	Pages     []Page
	SummaryMD string
	PageCount int
}
