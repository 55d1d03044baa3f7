// Package identity consumes the external authentication provider. The
// provider owns signup, sessions and credentials; this service only needs to
// resolve users, primarily by ID and — as a degraded fallback for billing
// events without correlation metadata — by email.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// User is the minimal identity projection billing needs.
type User struct {
	ID    uuid.UUID
	Email string
}

// ErrUserNotFound is returned when the provider knows no matching user.
var ErrUserNotFound = errors.New("identity: user not found")

// ErrUnavailable is returned when the provider cannot be reached; callers
// treat it as transient.
var ErrUnavailable = errors.New("identity: provider unavailable")

// Directory resolves users against the identity provider.
type Directory interface {
	// UserByID resolves a user by their provider-issued identifier.
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// UserByEmail resolves a user by email address. This is the degraded
	// correlation path for billing events lacking user metadata.
	UserByEmail(ctx context.Context, email string) (*User, error)
}
