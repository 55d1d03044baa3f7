package catalog

// Config maps storefront tiers to the payment provider's price identifiers.
// The references are deployment-specific (sandbox vs production), so they
// come from the environment rather than source.
type Config struct {
	BasicPriceRef        string `env:"PRICE_REF_BASIC,required"`
	ProPriceRef          string `env:"PRICE_REF_PRO,required"`
	ElitePriceRef        string `env:"PRICE_REF_ELITE,required"`
	LegendaryPriceRef    string `env:"PRICE_REF_LEGENDARY,required"`
	PersonalizedPriceRef string `env:"PRICE_REF_PERSONALIZED,required"`
}

// Default builds the production plan set. Quotas and rollover caps are
// product constants: unused pro/elite downloads roll over up to twice the
// monthly quota, basic resets each period, legendary is unbounded.
func Default(cfg Config) *Catalog {
	return MustNew(
		Plan{
			ID:           PlanNone,
			Name:         "Free",
			Description:  "Browse and preview only",
			MonthlyQuota: 0,
			BillingMode:  BillingModeSubscription,
		},
		Plan{
			ID:           PlanBasic,
			Name:         "Basic Plan",
			Description:  "7 downloads per month with keyword search",
			MonthlyQuota: 7,
			Price:        Money{Amount: 1999, Currency: "USD"},
			BillingMode:  BillingModeSubscription,
			PriceRef:     cfg.BasicPriceRef,
		},
		Plan{
			ID:           PlanPro,
			Name:         "Pro Plan",
			Description:  "15 downloads per month with AI search and rollover credits",
			MonthlyQuota: 15,
			RolloverCap:  30,
			Price:        Money{Amount: 3999, Currency: "USD"},
			BillingMode:  BillingModeSubscription,
			PriceRef:     cfg.ProPriceRef,
		},
		Plan{
			ID:           PlanElite,
			Name:         "Elite Plan",
			Description:  "30 downloads per month with rollover credits",
			MonthlyQuota: 30,
			RolloverCap:  60,
			Price:        Money{Amount: 8999, Currency: "USD"},
			BillingMode:  BillingModeSubscription,
			PriceRef:     cfg.ElitePriceRef,
		},
		Plan{
			ID:           PlanLegendary,
			Name:         "Legendary Plan",
			Description:  "Unlimited downloads with early access",
			MonthlyQuota: UnboundedQuota,
			Price:        Money{Amount: 49999, Currency: "USD"},
			BillingMode:  BillingModeOneTime,
			PriceRef:     cfg.LegendaryPriceRef,
		},
		Plan{
			ID:           PlanPersonalized,
			Name:         "Personalized Stock",
			Description:  "1 idea, 3 custom video versions",
			MonthlyQuota: 3,
			Price:        Money{Amount: 999, Currency: "USD"},
			BillingMode:  BillingModeOneTime,
			PriceRef:     cfg.PersonalizedPriceRef,
		},
	)
}
