package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/db"
	"github.com/sells-group/leadscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	website_status TEXT NOT NULL DEFAULT 'unknown',
	status         TEXT NOT NULL DEFAULT 'pending',
	converted      BOOLEAN NOT NULL DEFAULT false,
	converted_by   TEXT NOT NULL DEFAULT '',
	converted_at   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contact_info (
	id               TEXT PRIMARY KEY,
	lead_id          TEXT NOT NULL REFERENCES leads(id),
	email            TEXT NOT NULL DEFAULT '',
	email_source     TEXT NOT NULL DEFAULT '',
	email_confidence INTEGER NOT NULL DEFAULT 0,
	facebook_url     TEXT NOT NULL DEFAULT '',
	instagram_url    TEXT NOT NULL DEFAULT '',
	linkedin_url     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL,
	job_type     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	retry_count  INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_contact_info_lead_id ON contact_info(lead_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON enrichment_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_lead_type ON enrichment_jobs(lead_id, job_type);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Leads ---

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = model.LeadStatusPending
	}
	if lead.WebsiteStatus == "" {
		lead.WebsiteStatus = model.WebsiteStatusUnknown
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		lead.ID, lead.Name, lead.Website, string(lead.WebsiteStatus), string(lead.Status),
		lead.Converted, lead.ConvertedBy, lead.ConvertedAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var l model.Lead
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at
		 FROM leads WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.Name, &l.Website, &l.WebsiteStatus, &l.Status,
		&l.Converted, &l.ConvertedBy, &l.ConvertedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return &l, nil
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET name = $1, website = $2, website_status = $3, status = $4,
		 converted = $5, converted_by = $6, converted_at = $7, updated_at = $8
		 WHERE id = $9`,
		lead.Name, lead.Website, string(lead.WebsiteStatus), string(lead.Status),
		lead.Converted, lead.ConvertedBy, lead.ConvertedAt, lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at
	          FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Website, &l.WebsiteStatus, &l.Status,
			&l.Converted, &l.ConvertedBy, &l.ConvertedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// --- Contacts ---

func (s *PostgresStore) CreateContact(ctx context.Context, contact model.ContactInfo) (*model.ContactInfo, error) {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_info (id, lead_id, email, email_source, email_confidence, facebook_url, instagram_url, linkedin_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		contact.ID, contact.LeadID, contact.Email, contact.EmailSource, contact.EmailConfidence,
		contact.FacebookURL, contact.InstagramURL, contact.LinkedInURL, contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact")
	}
	return &contact, nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, contact *model.ContactInfo) error {
	contact.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE contact_info SET email = $1, email_source = $2, email_confidence = $3,
		 facebook_url = $4, instagram_url = $5, linkedin_url = $6, updated_at = $7
		 WHERE id = $8`,
		contact.Email, contact.EmailSource, contact.EmailConfidence,
		contact.FacebookURL, contact.InstagramURL, contact.LinkedInURL, contact.UpdatedAt, contact.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %s", contact.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", contact.ID)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, leadID string) ([]model.ContactInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, email, email_source, email_confidence, facebook_url, instagram_url, linkedin_url, created_at, updated_at
		 FROM contact_info WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactInfo
	for rows.Next() {
		var c model.ContactInfo
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Email, &c.EmailSource, &c.EmailConfidence,
			&c.FacebookURL, &c.InstagramURL, &c.LinkedInURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error) {
	job := model.EnrichmentJob{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Type:      jobType,
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_jobs (id, lead_id, job_type, status, retry_count, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.LeadID, string(job.Type), string(job.Status), job.RetryCount, job.LastError, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return &job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
		 FROM enrichment_jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.LeadID, &j.Type, &j.Status, &j.RetryCount, &j.LastError,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return &j, nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_jobs SET status = $1, retry_count = $2, last_error = $3, started_at = $4, completed_at = $5
		 WHERE id = $6`,
		string(job.Status), job.RetryCount, job.LastError, job.StartedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) FindActiveJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	err := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
		 FROM enrichment_jobs
		 WHERE lead_id = $1 AND job_type = $2 AND status IN ('queued', 'running')
		 ORDER BY created_at ASC LIMIT 1`,
		leadID, string(jobType),
	).Scan(&j.ID, &j.LeadID, &j.Type, &j.Status, &j.RetryCount, &j.LastError,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find active job")
	}
	return &j, nil
}

// ClaimNextJob uses FOR UPDATE SKIP LOCKED so concurrent pollers each claim
// a distinct job in one round trip.
func (s *PostgresStore) ClaimNextJob(ctx context.Context, maxRetries int) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	err := s.pool.QueryRow(ctx,
		`UPDATE enrichment_jobs SET status = 'running', started_at = now()
		 WHERE id = (
			SELECT id FROM enrichment_jobs
			WHERE status = 'queued' AND retry_count < $1
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at`,
		maxRetries,
	).Scan(&j.ID, &j.LeadID, &j.Type, &j.Status, &j.RetryCount, &j.LastError,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: claim next job")
	}
	return &j, nil
}

func (s *PostgresStore) CountJobs(ctx context.Context, statuses ...model.JobStatus) (int, error) {
	vals := make([]string, len(statuses))
	for i, st := range statuses {
		vals[i] = string(st)
	}
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrichment_jobs WHERE status = ANY($1)`,
		vals,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count jobs")
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
	          FROM enrichment_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if len(filter.Statuses) > 0 {
		vals := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			vals[i] = string(st)
		}
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, vals)
		argIdx++
	}
	if filter.LeadID != "" {
		query += fmt.Sprintf(` AND lead_id = $%d`, argIdx)
		args = append(args, filter.LeadID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND job_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.EnrichmentJob
	for rows.Next() {
		var j model.EnrichmentJob
		if err := rows.Scan(&j.ID, &j.LeadID, &j.Type, &j.Status, &j.RetryCount, &j.LastError,
			&j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}
