package catalog

import "errors"

var (
	ErrPlanNotFound      = errors.New("catalog: plan not found")
	ErrEmptyCatalog      = errors.New("catalog: at least one plan is required")
	ErrInvalidPlan       = errors.New("catalog: plan ID is required")
	ErrDuplicatePlan     = errors.New("catalog: duplicate plan ID")
	ErrDuplicatePriceRef = errors.New("catalog: duplicate price reference")
)
