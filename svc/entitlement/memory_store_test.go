package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	store := entitlement.NewMemoryStore()

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestMemoryStore_UpsertNeverDuplicates(t *testing.T) {
	store := entitlement.NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	ent := entitlement.NewDefault(userID, time.Now().UTC())
	require.NoError(t, store.Upsert(ctx, ent))
	assert.Equal(t, int64(1), ent.Version)

	ent.PlanID = catalog.PlanPro
	ent.DownloadsRemaining = 15
	require.NoError(t, store.Upsert(ctx, ent))
	assert.Equal(t, int64(2), ent.Version)

	got, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, catalog.PlanPro, got.PlanID)
	assert.Equal(t, 15, got.DownloadsRemaining)
}

func TestMemoryStore_GetBySubscriptionRef(t *testing.T) {
	store := entitlement.NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	ent := entitlement.NewDefault(userID, time.Now().UTC())
	ent.ExternalSubscriptionRef = "sub_42"
	require.NoError(t, store.Upsert(ctx, ent))

	got, err := store.GetBySubscriptionRef(ctx, "sub_42")
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)

	_, err = store.GetBySubscriptionRef(ctx, "sub_missing")
	assert.ErrorIs(t, err, entitlement.ErrNotFound)

	// Records without a ref never match the empty string.
	bare := entitlement.NewDefault(uuid.New(), time.Now().UTC())
	require.NoError(t, store.Upsert(ctx, bare))
	_, err = store.GetBySubscriptionRef(ctx, "")
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestMemoryStore_UpdateIf(t *testing.T) {
	store := entitlement.NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	ent := entitlement.NewDefault(userID, time.Now().UTC())
	require.NoError(t, store.Upsert(ctx, ent))

	t.Run("missing record", func(t *testing.T) {
		ghost := entitlement.NewDefault(uuid.New(), time.Now().UTC())
		assert.ErrorIs(t, store.UpdateIf(ctx, ghost), entitlement.ErrNotFound)
	})

	t.Run("stale version", func(t *testing.T) {
		fresh, err := store.Get(ctx, userID)
		require.NoError(t, err)

		// First writer wins.
		first := fresh.Clone()
		first.DownloadsRemaining = 5
		require.NoError(t, store.UpdateIf(ctx, first))

		// Second writer with the stale version is rejected.
		stale := fresh.Clone()
		stale.DownloadsRemaining = 9
		assert.ErrorIs(t, store.UpdateIf(ctx, stale), entitlement.ErrVersionConflict)
	})

	t.Run("returned records do not alias the store", func(t *testing.T) {
		got, err := store.Get(ctx, userID)
		require.NoError(t, err)
		got.DownloadsRemaining = 999

		again, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.NotEqual(t, 999, again.DownloadsRemaining)
	})
}
