package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jobdeck/billing/internal/domain/model"
)

// SubscriptionRepository persists subscription records. Concurrency control
// lives at the storage layer: creation relies on the unique account index,
// updates on the last_synced_version compare-and-swap.
type SubscriptionRepository interface {
	// GetOrCreate returns the account's record, creating a fresh free-tier
	// record when none exists. Under a creation race the loser re-reads and
	// returns the winner's row.
	GetOrCreate(ctx context.Context, accountID uuid.UUID, fresh func() *model.Subscription) (*model.Subscription, error)

	// GetByAccountID returns the record or nil when absent.
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*model.Subscription, error)

	// GetByProviderCustomerID resolves a provider customer id to a record,
	// nil when unknown.
	GetByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)

	// UpdateVersioned writes the record only if the stored
	// last_synced_version still equals expectedVersion. Returns
	// errors.ErrConcurrentModification on a lost race.
	UpdateVersioned(ctx context.Context, sub *model.Subscription, expectedVersion int64) error
}
