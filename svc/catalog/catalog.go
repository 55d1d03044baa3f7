package catalog

import "sync"

// PlanID identifies a storefront plan tier.
type PlanID string

const (
	PlanNone         PlanID = "none"
	PlanBasic        PlanID = "basic"
	PlanPro          PlanID = "pro"
	PlanElite        PlanID = "elite"
	PlanLegendary    PlanID = "legendary"
	PlanPersonalized PlanID = "personalized"
)

// UnboundedQuota is the sentinel quota for plans without a download limit.
// It is stored as-is so an entitlement row survives a plan definition change.
const UnboundedQuota = 999999

// BillingMode distinguishes recurring subscriptions from one-time purchases.
type BillingMode string

const (
	BillingModeSubscription BillingMode = "subscription"
	BillingModeOneTime      BillingMode = "one_time"
)

// Money represents an amount in the smallest currency unit.
type Money struct {
	Amount   int64  // cents for USD
	Currency string // ISO 4217
}

// Plan describes a tier's entitlement parameters. Plans are static: the
// catalog is assembled once at startup and never mutated.
type Plan struct {
	ID           PlanID
	Name         string
	Description  string
	MonthlyQuota int    // downloads granted per 30-day period
	RolloverCap  int    // max balance carried across a period boundary; 0 disables rollover
	Price        Money
	BillingMode  BillingMode
	PriceRef     string // payment provider's price identifier
}

// Unbounded reports whether the plan grants unlimited downloads.
func (p Plan) Unbounded() bool {
	return p.MonthlyQuota >= UnboundedQuota
}

// HasRollover reports whether unused quota carries into the next period.
func (p Plan) HasRollover() bool {
	return p.RolloverCap > 0
}

// Paid reports whether the plan grants any download capacity.
func (p Plan) Paid() bool {
	return p.ID != PlanNone && p.MonthlyQuota > 0
}

// Catalog is a static lookup table of plans, indexed by plan ID and by the
// provider price reference used to correlate inbound billing data.
type Catalog struct {
	mu      sync.RWMutex
	plans   map[PlanID]Plan
	byPrice map[string]PlanID
}

// New assembles a catalog from the given plans. Duplicate plan IDs or price
// references are configuration errors and surface immediately.
func New(plans ...Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		plans:   make(map[PlanID]Plan, len(plans)),
		byPrice: make(map[string]PlanID, len(plans)),
	}
	for _, plan := range plans {
		if plan.ID == "" {
			return nil, ErrInvalidPlan
		}
		if _, exists := c.plans[plan.ID]; exists {
			return nil, ErrDuplicatePlan
		}
		if plan.PriceRef != "" {
			if _, exists := c.byPrice[plan.PriceRef]; exists {
				return nil, ErrDuplicatePriceRef
			}
			c.byPrice[plan.PriceRef] = plan.ID
		}
		c.plans[plan.ID] = plan
	}
	return c, nil
}

// MustNew is New for static plan sets known valid at compile time.
func MustNew(plans ...Plan) *Catalog {
	c, err := New(plans...)
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the plan for the given identifier.
func (c *Catalog) Resolve(id PlanID) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

// ResolveByPriceRef translates a provider price reference into a plan.
// An unmapped reference is a configuration error, never silently defaulted;
// leniency for degraded metadata is the reconciler's decision, not the
// catalog's.
func (c *Catalog) ResolveByPriceRef(ref string) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byPrice[ref]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return c.plans[id], nil
}

// Plans returns a copy of all plans for display surfaces.
func (c *Catalog) Plans() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		out = append(out, plan)
	}
	return out
}
