// Package store defines the persistence interface for the opportunity
// table and purchase ledger. Implementations include in-memory (the
// default, authoritative for a single-process engine), PostgreSQL
// (durable), and a Redis read-through cache wrapper.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ActivateLLC/arbi-sub000/internal/model"
)

// ErrNotFound is returned when an opportunity id is unknown.
var ErrNotFound = errors.New("store: opportunity not found")

// Store is the persistence interface the engine mutates through.
type Store interface {
	// --- Opportunity table ---

	// UpsertOpportunity inserts or replaces by id (last-write-wins).
	UpsertOpportunity(ctx context.Context, t *model.TrackedOpportunity) error

	// GetOpportunity retrieves one tracked opportunity by id.
	GetOpportunity(ctx context.Context, id string) (*model.TrackedOpportunity, error)

	// ListOpportunities returns every tracked opportunity, unordered.
	ListOpportunities(ctx context.Context) ([]model.TrackedOpportunity, error)

	// UpdateStatus transitions one opportunity's lifecycle state.
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	// DeleteExpired removes entries whose expiry precedes now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// --- Purchase ledger (immutable) ---

	// InsertPurchase appends an executed-purchase record.
	InsertPurchase(ctx context.Context, p *model.Purchase) error

	// ListPurchasesByUser returns all purchases for a user.
	ListPurchasesByUser(ctx context.Context, userID string) ([]model.Purchase, error)
}
