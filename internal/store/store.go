package store

import (
	"context"

	"github.com/sells-group/leadscout/internal/model"
)

// JobFilter specifies criteria for listing enrichment jobs.
type JobFilter struct {
	Statuses []model.JobStatus `json:"statuses,omitempty"`
	LeadID   string            `json:"lead_id,omitempty"`
	Type     model.JobType     `json:"job_type,omitempty"`
	Limit    int               `json:"limit,omitempty"`
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
// Get* methods return (nil, nil) when no row matches; mutations on missing
// rows return an error.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// Contacts
	CreateContact(ctx context.Context, contact model.ContactInfo) (*model.ContactInfo, error)
	UpdateContact(ctx context.Context, contact *model.ContactInfo) error
	ListContacts(ctx context.Context, leadID string) ([]model.ContactInfo, error)

	// Jobs
	CreateJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error)
	GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error)
	UpdateJob(ctx context.Context, job *model.EnrichmentJob) error
	FindActiveJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error)
	// ClaimNextJob atomically selects the oldest queued job with
	// retry_count < maxRetries, marks it running, and stamps started_at.
	// Two concurrent callers never receive the same job.
	ClaimNextJob(ctx context.Context, maxRetries int) (*model.EnrichmentJob, error)
	CountJobs(ctx context.Context, statuses ...model.JobStatus) (int, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
