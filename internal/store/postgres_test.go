package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresPing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectExec(`SELECT 1`).WillReturnError(assert.AnError)
	assert.Error(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateLead(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "Acme Plumbing", "https://acme.example", "unknown", "pending",
			false, "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead, err := s.CreateLead(context.Background(), model.Lead{
		Name:    "Acme Plumbing",
		Website: "https://acme.example",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, model.LeadStatusPending, lead.Status)
	assert.Equal(t, model.WebsiteStatusUnknown, lead.WebsiteStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLeadNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	lead, err := s.GetLead(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLead(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "name", "website", "website_status", "status",
		"converted", "converted_by", "converted_at", "created_at", "updated_at",
	}).AddRow("lead-1", "Acme", "https://acme.example", model.WebsiteStatusAcceptable, model.LeadStatusApproved,
		false, "", (*time.Time)(nil), now, now)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id`).
		WithArgs("lead-1").
		WillReturnRows(rows)

	lead, err := s.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Acme", lead.Name)
	assert.Equal(t, model.LeadStatusApproved, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimNextJobEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE enrichment_jobs SET status = 'running'`).
		WithArgs(3).
		WillReturnError(pgx.ErrNoRows)

	job, err := s.ClaimNextJob(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimNextJob(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "lead_id", "job_type", "status", "retry_count", "last_error",
		"created_at", "started_at", "completed_at",
	}).AddRow("job-1", "lead-1", model.JobTypeWebsiteValidation, model.JobStatusRunning, 0, "",
		now, &now, (*time.Time)(nil))

	mock.ExpectQuery(`UPDATE enrichment_jobs SET status = 'running'`).
		WithArgs(3).
		WillReturnRows(rows)

	job, err := s.ClaimNextJob(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateJobNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE enrichment_jobs SET`).
		WithArgs("queued", 1, "boom", pgxmock.AnyArg(), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJob(context.Background(), &model.EnrichmentJob{
		ID:         "ghost",
		Status:     model.JobStatusQueued,
		RetryCount: 1,
		LastError:  "boom",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountJobs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrichment_jobs`).
		WithArgs([]string{"queued", "running"}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountJobs(context.Background(), model.JobStatusQueued, model.JobStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
