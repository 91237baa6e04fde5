package model

import "time"

// JobType identifies which enrichment a job performs. The set is closed:
// the processor dispatches with an exhaustive switch and treats anything
// else as a failure.
type JobType string

const (
	JobTypeWebsiteValidation JobType = "website_validation"
	JobTypeEmailScraping     JobType = "email_scraping"
	JobTypeSocialScraping    JobType = "social_scraping"
)

// JobTypes lists every valid job type, in the order jobs are normally
// enqueued for a fresh lead.
var JobTypes = []JobType{
	JobTypeWebsiteValidation,
	JobTypeEmailScraping,
	JobTypeSocialScraping,
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeWebsiteValidation, JobTypeEmailScraping, JobTypeSocialScraping:
		return true
	default:
		return false
	}
}

// JobStatus represents the current state of an enrichment job.
// queued -> running -> {success | queued (retry) | failure}; failure can
// re-enter queued only via an explicit manual retry.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailure
}

// EnrichmentJob is one durable unit of asynchronous enrichment work tied to
// a single lead and job type. Jobs are never deleted; terminal rows remain
// for audit and status reporting, and retries reuse the same row.
type EnrichmentJob struct {
	ID          string     `json:"id"`
	LeadID      string     `json:"lead_id"`
	Type        JobType    `json:"job_type"`
	Status      JobStatus  `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
