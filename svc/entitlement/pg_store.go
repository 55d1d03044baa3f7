package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reelvault/reelvault/pkg/pg"
	"github.com/reelvault/reelvault/svc/catalog"
)

// querier is the subset of pgxpool.Pool the store needs; narrowed for tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore persists entitlements in the entitlements table. The user_id
// unique constraint plus ON CONFLICT upserts guarantee a single row per
// user; the version column serializes conditional updates.
type PGStore struct {
	db querier
}

// NewPGStore returns a Store backed by the given pgx pool.
func NewPGStore(db querier) *PGStore {
	return &PGStore{db: db}
}

const entitlementColumns = `user_id, plan_id, downloads_remaining, downloads_used, status,
	period_start, period_end, external_customer_ref, external_subscription_ref,
	created_at, updated_at, version`

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Entitlement, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE user_id = $1`, userID)

	var ent Entitlement
	var planID, status string
	err := row.Scan(
		&ent.UserID, &planID, &ent.DownloadsRemaining, &ent.DownloadsUsedThisPeriod, &status,
		&ent.PeriodStart, &ent.PeriodEnd, &ent.ExternalCustomerRef, &ent.ExternalSubscriptionRef,
		&ent.CreatedAt, &ent.UpdatedAt, &ent.Version,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	ent.PlanID = catalog.PlanID(planID)
	ent.Status = Status(status)
	return &ent, nil
}

func (s *PGStore) GetBySubscriptionRef(ctx context.Context, ref string) (*Entitlement, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+entitlementColumns+` FROM entitlements WHERE external_subscription_ref = $1`, ref)

	var ent Entitlement
	var planID, status string
	err := row.Scan(
		&ent.UserID, &planID, &ent.DownloadsRemaining, &ent.DownloadsUsedThisPeriod, &status,
		&ent.PeriodStart, &ent.PeriodEnd, &ent.ExternalCustomerRef, &ent.ExternalSubscriptionRef,
		&ent.CreatedAt, &ent.UpdatedAt, &ent.Version,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entitlement by subscription ref: %w", err)
	}
	ent.PlanID = catalog.PlanID(planID)
	ent.Status = Status(status)
	return &ent, nil
}

func (s *PGStore) Upsert(ctx context.Context, ent *Entitlement) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO entitlements (
			user_id, plan_id, downloads_remaining, downloads_used, status,
			period_start, period_end, external_customer_ref, external_subscription_ref,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), 1)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			downloads_remaining = EXCLUDED.downloads_remaining,
			downloads_used = EXCLUDED.downloads_used,
			status = EXCLUDED.status,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			external_customer_ref = EXCLUDED.external_customer_ref,
			external_subscription_ref = EXCLUDED.external_subscription_ref,
			updated_at = now(),
			version = entitlements.version + 1
		RETURNING version`,
		ent.UserID, string(ent.PlanID), ent.DownloadsRemaining, ent.DownloadsUsedThisPeriod,
		string(ent.Status), ent.PeriodStart, ent.PeriodEnd,
		ent.ExternalCustomerRef, ent.ExternalSubscriptionRef,
	)

	if err := row.Scan(&ent.Version); err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateIf(ctx context.Context, ent *Entitlement) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE entitlements SET
			plan_id = $2,
			downloads_remaining = $3,
			downloads_used = $4,
			status = $5,
			period_start = $6,
			period_end = $7,
			external_customer_ref = $8,
			external_subscription_ref = $9,
			updated_at = now(),
			version = version + 1
		WHERE user_id = $1 AND version = $10`,
		ent.UserID, string(ent.PlanID), ent.DownloadsRemaining, ent.DownloadsUsedThisPeriod,
		string(ent.Status), ent.PeriodStart, ent.PeriodEnd,
		ent.ExternalCustomerRef, ent.ExternalSubscriptionRef, ent.Version,
	)
	if err != nil {
		return fmt.Errorf("conditional update entitlement: %w", err)
	}

	// Zero rows means either the row vanished or the version is stale;
	// distinguish so callers can re-read and retry only on conflicts.
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, ent.UserID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	ent.Version++
	return nil
}
