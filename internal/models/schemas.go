package models

import "time"

// Response schemas for the HTTP API.

// UploadResponse is returned after a successful single-file upload.
type UploadResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// StatusResponse is the job status snapshot.
type StatusResponse struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Parser       string    `json:"parser,omitempty"`
	PageCount    int       `json:"page_count,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at,omitempty"`
	UpdatedAt    string    `json:"updated_at,omitempty"`
}

// ResultResponse is the full result of a completed job.
type ResultResponse struct {
	JobID           string `json:"job_id"`
	Parser          string `json:"parser"`
	PerPageMarkdown []Page `json:"per_page_markdown"`
	SummaryMD       string `json:"summary_md"`
	PageCount       int    `json:"page_count"`
}

// NewStatusResponse builds the status snapshot for a job record.
func NewStatusResponse(job *Job) StatusResponse {
	resp := StatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Parser:       job.Parser,
		PageCount:    job.PageCount,
		ErrorMessage: job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		resp.CreatedAt = job.CreatedAt.Format(time.RFC3339Nano)
	}
	if !job.UpdatedAt.IsZero() {
		resp.UpdatedAt = job.UpdatedAt.Format(time.RFC3339Nano)
	}
	return resp
}

// NewResultResponse builds the full result payload for a done job.
func NewResultResponse(job *Job) ResultResponse {
	pages := job.Pages
	if pages == nil {
		pages = []Page{}
	}
	return ResultResponse{
		JobID:           job.ID,
		Parser:          job.Parser,
		PerPageMarkdown: pages,
		SummaryMD:       job.SummaryMD,
		PageCount:       job.PageCount,
	}
}

// BatchItem is the per-file outcome of a batch upload. Exactly one of
// JobID and Error is set.
type BatchItem struct {
	Filename string `json:"filename"`
	JobID    string `json:"job_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchUploadResponse summarises a batch upload.
type BatchUploadResponse struct {
	TotalFiles int         `json:"total_files"`
	Results    []BatchItem `json:"results"`
}

// CompareResponse maps each requested parser tag to the last observed
// status snapshot of its job.
type CompareResponse struct {
	Filename string                    `json:"filename"`
	Results  map[string]StatusResponse `json:"results"`
}

// HealthResponse reports subsystem availability. The flags are independent:
// a summarizer outage never masks queue health.
type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	RedisConnected  bool   `json:"redis_connected"`
	GeminiAvailable bool   `json:"gemini_available"`
}

// StatsResponse is the debug/stats payload.
type StatsResponse struct {
	TotalJobs    int            `json:"total_jobs"`
	JobsByStatus map[string]int `json:"jobs_by_status"`
	QueueMetrics map[string]any `json:"queue_metrics"`
	Config       map[string]any `json:"config"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}
