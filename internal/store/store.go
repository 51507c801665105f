package store

import (
	"context"
	"errors"

	"keygate/internal/license"
)

// Store errors. ErrNotFound marks a miss on a required lookup;
// ErrAlreadyBound is returned by BindHWID when the record is bound to a
// different hardware ID, including the case where a concurrent bind won
// the race.
var (
	ErrNotFound     = errors.New("store: record not found")
	ErrAlreadyBound = errors.New("store: license already bound to another hwid")
)

// Store is the record repository the service layer runs against.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*license.License, error)

	// Put writes the record at its key, replacing any existing record.
	Put(ctx context.Context, lic *license.License) error

	// Delete removes the record. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every record in the store.
	List(ctx context.Context) ([]*license.License, error)

	// BindHWID sets the record's hardware ID only if it currently has
	// none. Binding an already-bound record to the same hwid is a no-op;
	// a different hwid returns ErrAlreadyBound. Missing key returns
	// ErrNotFound.
	BindHWID(ctx context.Context, key, hwid string) error

	// ClearHWID removes the record's hardware binding. Clearing a
	// missing key is a no-op: no partial record is created.
	ClearHWID(ctx context.Context, key string) error

	// SetStatus replaces the record's status. Missing key returns
	// ErrNotFound.
	SetStatus(ctx context.Context, key, status string) error

	// Ping verifies the backing store is reachable. Called once at
	// startup; failure is fatal for the process.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close() error
}
