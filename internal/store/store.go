// Package store defines the persistence interfaces for job records and
// dataset metadata, with Postgres and in-memory implementations.
package store

import (
	"context"
	"time"
)

// JobRecord is the persisted state of one analysis job. The job key is the
// primary key; the log blob is nil until the job reaches a terminal state.
type JobRecord struct {
	Key       string
	Owner     string
	Status    string
	Log       []byte
	UpdatedAt time.Time
}

// JobStore is the durable record of job status and compressed logs.
//
// The poller is the only writer of terminal state. Each write maps to a
// single statement so it is atomic at the storage layer; the poller's
// persist-before-publish ordering is enforced above this interface.
type JobStore interface {
	// UpsertRunning creates or overwrites the record for key with a fresh
	// RUNNING status and a null log. Resubmission of the same dataset
	// restarts tracking.
	UpsertRunning(ctx context.Context, key, owner, status string) error

	// Complete sets the terminal status and compressed log in one write.
	Complete(ctx context.Context, key, status string, compressedLog []byte) error

	// GetStatus returns the persisted status, or apperrors.NotFound.
	GetStatus(ctx context.Context, key string) (string, error)

	// GetLog returns the persisted status and raw log blob, or
	// apperrors.NotFound. The blob is nil while the job is running.
	GetLog(ctx context.Context, key string) (string, []byte, error)

	// Delete removes the record for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// Dataset is user-supplied dataset metadata.
type Dataset struct {
	Key        string
	Name       string
	Owner      string
	Metadata   map[string]any
	UploadedAt time.Time
}

// DatasetStore persists dataset metadata. Datasets share the key derivation
// with jobs, so deleting a dataset can also clear its job record.
type DatasetStore interface {
	// CreateDataset inserts a dataset, or apperrors.Conflict when the
	// (name, owner) pair already exists.
	CreateDataset(ctx context.Context, d Dataset) error

	// GetDataset returns one dataset by key, or apperrors.NotFound.
	GetDataset(ctx context.Context, key string) (Dataset, error)

	// ListDatasets returns datasets owned by owner; empty owner lists all.
	ListDatasets(ctx context.Context, owner string) ([]Dataset, error)

	// DeleteDataset removes a dataset by key, or apperrors.NotFound.
	DeleteDataset(ctx context.Context, key string) error
}

// Store combines both stores plus lifecycle hooks.
type Store interface {
	JobStore
	DatasetStore

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}
