package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/broadinstitute/dig-job-server/internal/apperrors"
	"github.com/broadinstitute/dig-job-server/pkg/backoff"
)

// Schema mirrors the original dataset_jobs / datasets migrations: the job
// key is a char(64) sha256 digest, the log a binary blob.
const schema = `
CREATE TABLE IF NOT EXISTS dataset_jobs (
	id         char(64) PRIMARY KEY,
	owner      varchar(50) NOT NULL,
	status     varchar(255) NOT NULL,
	job_log    bytea,
	updated_at timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS datasets (
	id          char(64) PRIMARY KEY,
	name        varchar(255) NOT NULL,
	uploaded_by varchar(50) NOT NULL,
	metadata    jsonb NOT NULL,
	uploaded_at timestamptz NOT NULL
);
`

const connectAttempts = 5

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to Postgres and ensures the schema exists. Connection
// establishment is retried with exponential backoff so the service tolerates
// a database that comes up slightly later than it does.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	logger := slog.With("component", "store")

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if pingErr = pool.Ping(ctx); pingErr == nil {
			break
		}
		wait := backoff.Exponential(attempt, &backoff.Config{Initial: 500 * time.Millisecond, Max: 10 * time.Second})
		logger.Warn("Database not reachable, retrying", "attempt", attempt, "wait", wait, "error", pingErr)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if pingErr != nil {
		pool.Close()
		return nil, apperrors.Unavailable("store.connect", pingErr)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	logger.Info("Connected to Postgres")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// UpsertRunning creates or resets the job record in a single statement.
func (s *PostgresStore) UpsertRunning(ctx context.Context, key, owner, status string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dataset_jobs (id, owner, status, job_log, updated_at)
		VALUES ($1, $2, $3, NULL, now())
		ON CONFLICT (id) DO UPDATE
		SET owner = EXCLUDED.owner, status = EXCLUDED.status, job_log = NULL, updated_at = now()`,
		key, owner, status)
	if err != nil {
		return apperrors.Internal("store.upsertRunning", err)
	}
	return nil
}

// Complete writes the terminal status and log blob atomically.
func (s *PostgresStore) Complete(ctx context.Context, key, status string, compressedLog []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dataset_jobs SET status = $2, job_log = $3, updated_at = now() WHERE id = $1`,
		key, status, compressedLog)
	if err != nil {
		return apperrors.Internal("store.complete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job", key)
	}
	return nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, key string) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM dataset_jobs WHERE id = $1`, key).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperrors.NotFound("job", key)
	}
	if err != nil {
		return "", apperrors.Internal("store.getStatus", err)
	}
	return status, nil
}

func (s *PostgresStore) GetLog(ctx context.Context, key string) (string, []byte, error) {
	var status string
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT status, job_log FROM dataset_jobs WHERE id = $1`, key).Scan(&status, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, apperrors.NotFound("job", key)
	}
	if err != nil {
		return "", nil, apperrors.Internal("store.getLog", err)
	}
	return status, blob, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dataset_jobs WHERE id = $1`, key); err != nil {
		return apperrors.Internal("store.delete", err)
	}
	return nil
}

func (s *PostgresStore) CreateDataset(ctx context.Context, d Dataset) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return apperrors.Internal("store.createDataset", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO datasets (id, name, uploaded_by, metadata, uploaded_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO NOTHING`,
		d.Key, d.Name, d.Owner, meta)
	if err != nil {
		return apperrors.Internal("store.createDataset", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Conflict("dataset", d.Key, fmt.Sprintf("dataset %q already exists", d.Name))
	}
	return nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, key string) (Dataset, error) {
	var d Dataset
	var meta []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, uploaded_by, metadata, uploaded_at FROM datasets WHERE id = $1`, key).
		Scan(&d.Key, &d.Name, &d.Owner, &meta, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Dataset{}, apperrors.NotFound("dataset", key)
	}
	if err != nil {
		return Dataset{}, apperrors.Internal("store.getDataset", err)
	}
	if err := json.Unmarshal(meta, &d.Metadata); err != nil {
		return Dataset{}, apperrors.Internal("store.getDataset", err)
	}
	return d, nil
}

// ListDatasets returns datasets uploaded by owner; an empty owner lists all.
func (s *PostgresStore) ListDatasets(ctx context.Context, owner string) ([]Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, uploaded_by, metadata, uploaded_at
		FROM datasets WHERE $1 = '' OR uploaded_by = $1 ORDER BY uploaded_at`, owner)
	if err != nil {
		return nil, apperrors.Internal("store.listDatasets", err)
	}
	defer rows.Close()

	var datasets []Dataset
	for rows.Next() {
		var d Dataset
		var meta []byte
		if err := rows.Scan(&d.Key, &d.Name, &d.Owner, &meta, &d.UploadedAt); err != nil {
			return nil, apperrors.Internal("store.listDatasets", err)
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, apperrors.Internal("store.listDatasets", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("store.listDatasets", err)
	}
	return datasets, nil
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, key)
	if err != nil {
		return apperrors.Internal("store.deleteDataset", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("dataset", key)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.Unavailable("store.ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Verify PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)
