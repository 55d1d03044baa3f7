package entitlement

import "github.com/reelvault/reelvault/svc/catalog"

// RenewedBalance computes the downloads available after a period renewal.
// Plans without rollover reset to the monthly quota; rollover plans carry the
// unused balance forward, saturating at the rollover cap. Saturation makes
// the computation safe to apply redundantly on duplicate renewal events.
func RenewedBalance(plan catalog.Plan, current int) int {
	if !plan.HasRollover() {
		return plan.MonthlyQuota
	}
	return min(current+plan.MonthlyQuota, plan.RolloverCap)
}

// ActivationBalance computes the downloads granted when a checkout completes.
// First activation grants the full quota. An upgrade while a rollover plan is
// already active adds the new quota to the remaining balance, capped at the
// new plan's rollover cap; duplicate deliveries therefore cannot push the
// balance above the cap.
func ActivationBalance(plan catalog.Plan, existing *Entitlement) int {
	if existing == nil || !existing.IsActive() || !existing.HasPlan() {
		return plan.MonthlyQuota
	}
	if !plan.HasRollover() {
		return plan.MonthlyQuota
	}
	return min(existing.DownloadsRemaining+plan.MonthlyQuota, plan.RolloverCap)
}
