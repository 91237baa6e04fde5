package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// Applied through the DSN so every connection database/sql pools gets them,
// not just the one that happens to run a setup statement.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// NewSQLite opens a SQLite database at the given path with WAL mode and a
// busy timeout configured on every pooled connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+sqlitePragmas)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	website_status TEXT NOT NULL DEFAULT 'unknown',
	status         TEXT NOT NULL DEFAULT 'pending',
	converted      INTEGER NOT NULL DEFAULT 0,
	converted_by   TEXT NOT NULL DEFAULT '',
	converted_at   DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL,
	job_type     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	retry_count  INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at   DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_contact_info_lead_id ON contact_info(lead_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON enrichment_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_lead_type ON enrichment_jobs(lead_id, job_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.Website, string(lead.WebsiteStatus), string(lead.Status),
		lead.Converted, lead.ConvertedBy, toNullTime(lead.ConvertedAt), lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at
		 FROM leads WHERE id = ?`,
		id,
	)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET name = ?, website = ?, website_status = ?, status = ?,
		 converted = ?, converted_by = ?, converted_at = ?, updated_at = ?
		 WHERE id = ?`,
		lead.Name, lead.Website, string(lead.WebsiteStatus), string(lead.Status),
		lead.Converted, lead.ConvertedBy, toNullTime(lead.ConvertedAt), lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, name, website, website_status, status, converted, converted_by, converted_at, created_at, updated_at
	          FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

// --- Contacts ---

func (s *SQLiteStore) CreateContact(ctx context.Context, contact model.ContactInfo) (*model.ContactInfo, error) {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_info (id, lead_id, email, email_source, email_confidence, facebook_url, instagram_url, linkedin_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID, contact.LeadID, contact.Email, contact.EmailSource, contact.EmailConfidence,
		contact.FacebookURL, contact.InstagramURL, contact.LinkedInURL, contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact")
	}
	return &contact, nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, contact *model.ContactInfo) error {
	contact.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE contact_info SET email = ?, email_source = ?, email_confidence = ?,
		 facebook_url = ?, instagram_url = ?, linkedin_url = ?, updated_at = ?
		 WHERE id = ?`,
		contact.Email, contact.EmailSource, contact.EmailConfidence,
		contact.FacebookURL, contact.InstagramURL, contact.LinkedInURL, contact.UpdatedAt, contact.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %s", contact.ID)
	}
	return checkRowsAffected(res, "contact", contact.ID)
}

func (s *SQLiteStore) ListContacts(ctx context.Context, leadID string) ([]model.ContactInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, email, email_source, email_confidence, facebook_url, instagram_url, linkedin_url, created_at, updated_at
		 FROM contact_info WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactInfo
	for rows.Next() {
		var c model.ContactInfo
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Email, &c.EmailSource, &c.EmailConfidence,
			&c.FacebookURL, &c.InstagramURL, &c.LinkedInURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error) {
	job := model.EnrichmentJob{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Type:      jobType,
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_jobs (id, lead_id, job_type, status, retry_count, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.LeadID, string(job.Type), string(job.Status), job.RetryCount, job.LastError, job.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return &job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
		 FROM enrichment_jobs WHERE id = ?`,
		id,
	)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_jobs SET status = ?, retry_count = ?, last_error = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(job.Status), job.RetryCount, job.LastError,
		toNullTime(job.StartedAt), toNullTime(job.CompletedAt), job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) FindActiveJob(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
		 FROM enrichment_jobs
		 WHERE lead_id = ? AND job_type = ? AND status IN ('queued', 'running')
		 ORDER BY created_at ASC LIMIT 1`,
		leadID, string(jobType),
	)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find active job")
	}
	return job, nil
}

// ClaimNextJob has no SKIP LOCKED equivalent here, so it selects the oldest
// queued job and claims it with a conditional update, retrying on a lost race.
func (s *SQLiteStore) ClaimNextJob(ctx context.Context, maxRetries int) (*model.EnrichmentJob, error) {
	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
			 FROM enrichment_jobs
			 WHERE status = 'queued' AND retry_count < ?
			 ORDER BY created_at ASC LIMIT 1`,
			maxRetries,
		)
		job, err := scanJob(row)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: select next job")
		}

		startedAt := time.Now().UTC()
		res, err := s.db.ExecContext(ctx,
			`UPDATE enrichment_jobs SET status = 'running', started_at = ? WHERE id = ? AND status = 'queued'`,
			startedAt, job.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: claim job %s", job.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 1 {
			job.Status = model.JobStatusRunning
			job.StartedAt = &startedAt
			return job, nil
		}
		// Another worker claimed it first. Try again.
	}
}

func (s *SQLiteStore) CountJobs(ctx context.Context, statuses ...model.JobStatus) (int, error) {
	query := `SELECT COUNT(*) FROM enrichment_jobs WHERE status IN (`
	var args []any
	for i, st := range statuses {
		if i > 0 {
			query += `, `
		}
		query += `?`
		args = append(args, string(st))
	}
	query += `)`

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count jobs")
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT id, lead_id, job_type, status, retry_count, last_error, created_at, started_at, completed_at
	          FROM enrichment_jobs WHERE 1=1`
	var args []any

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (`
		for i, st := range filter.Statuses {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(st))
		}
		query += `)`
	}
	if filter.LeadID != "" {
		query += ` AND lead_id = ?`
		args = append(args, filter.LeadID)
	}
	if filter.Type != "" {
		query += ` AND job_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.EnrichmentJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var convertedAt sql.NullTime

	err := row.Scan(&l.ID, &l.Name, &l.Website, &l.WebsiteStatus, &l.Status,
		&l.Converted, &l.ConvertedBy, &convertedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ConvertedAt = fromNullTime(convertedAt)
	return &l, nil
}

func scanJob(row scannable) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&j.ID, &j.LeadID, &j.Type, &j.Status, &j.RetryCount, &j.LastError,
		&j.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	j.StartedAt = fromNullTime(startedAt)
	j.CompletedAt = fromNullTime(completedAt)
	return &j, nil
}
