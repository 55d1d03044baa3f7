package entitlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

var (
	proPlan = catalog.Plan{
		ID: catalog.PlanPro, MonthlyQuota: 15, RolloverCap: 30,
		BillingMode: catalog.BillingModeSubscription,
	}
	basicPlan = catalog.Plan{
		ID: catalog.PlanBasic, MonthlyQuota: 7,
		BillingMode: catalog.BillingModeSubscription,
	}
)

func TestRenewedBalance(t *testing.T) {
	tests := []struct {
		name    string
		plan    catalog.Plan
		current int
		want    int
	}{
		{"basic resets to quota", basicPlan, 5, 7},
		{"basic resets from zero", basicPlan, 0, 7},
		{"pro rolls over under cap", proPlan, 10, 25},
		{"pro saturates at cap", proPlan, 20, 30},
		{"pro caps exactly", proPlan, 15, 30},
		{"pro from zero", proPlan, 0, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entitlement.RenewedBalance(tt.plan, tt.current))
		})
	}
}

func TestRenewedBalance_IsIdempotent(t *testing.T) {
	// Applying a renewal twice must land on the same saturated balance.
	once := entitlement.RenewedBalance(proPlan, 20)
	twice := entitlement.RenewedBalance(proPlan, once)
	assert.Equal(t, 30, once)
	assert.Equal(t, 30, twice)
}

func TestActivationBalance(t *testing.T) {
	now := time.Now().UTC()

	t.Run("no existing entitlement grants full quota", func(t *testing.T) {
		assert.Equal(t, 15, entitlement.ActivationBalance(proPlan, nil))
	})

	t.Run("plan none existing grants full quota", func(t *testing.T) {
		ent := entitlement.NewDefault(uuid.New(), now)
		assert.Equal(t, 15, entitlement.ActivationBalance(proPlan, ent))
	})

	t.Run("upgrade while active adds capped", func(t *testing.T) {
		ent := &entitlement.Entitlement{
			UserID:             uuid.New(),
			PlanID:             catalog.PlanPro,
			Status:             entitlement.StatusActive,
			DownloadsRemaining: 20,
		}
		assert.Equal(t, 30, entitlement.ActivationBalance(proPlan, ent))
	})

	t.Run("inactive existing does not stack", func(t *testing.T) {
		ent := &entitlement.Entitlement{
			UserID:             uuid.New(),
			PlanID:             catalog.PlanPro,
			Status:             entitlement.StatusExpired,
			DownloadsRemaining: 12,
		}
		assert.Equal(t, 15, entitlement.ActivationBalance(proPlan, ent))
	})

	t.Run("non-rollover target resets", func(t *testing.T) {
		ent := &entitlement.Entitlement{
			UserID:             uuid.New(),
			PlanID:             catalog.PlanPro,
			Status:             entitlement.StatusActive,
			DownloadsRemaining: 10,
		}
		assert.Equal(t, 7, entitlement.ActivationBalance(basicPlan, ent))
	})
}
