package entitlement

import (
	"context"

	"github.com/google/uuid"
)

// Store defines entitlement persistence. Each user has exactly one record,
// so UserID serves as the primary key; Upsert must never create a second row
// for the same user.
type Store interface {
	// Get retrieves the entitlement for a user.
	// Returns ErrNotFound if none exists.
	Get(ctx context.Context, userID uuid.UUID) (*Entitlement, error)

	// GetBySubscriptionRef retrieves the entitlement whose external
	// subscription reference matches ref. Used to correlate inbound
	// billing events that carry no user metadata.
	// Returns ErrNotFound if none exists.
	GetBySubscriptionRef(ctx context.Context, ref string) (*Entitlement, error)

	// Upsert creates or replaces the user's record in a single atomic
	// statement. Used by the reconciler, whose recompute-from-event
	// semantics make unconditional replacement safe.
	Upsert(ctx context.Context, ent *Entitlement) error

	// UpdateIf writes the record only if the stored Version still equals
	// ent.Version, bumping the version on success. Returns
	// ErrVersionConflict when the record changed underneath the caller.
	// Used by the download authorizer to serialize balance decrements.
	UpdateIf(ctx context.Context, ent *Entitlement) error
}
