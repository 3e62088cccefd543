package metrics

import (
	"fmt"

	"github.com/agencyops/agencyops/internal/platform/httpx"
)

// Validation errors surfaced to callers as 400s.
var (
	ErrInvalidRange       = fmt.Errorf("start date is after end date: %w", httpx.ErrValidation)
	ErrInvalidAggregation = fmt.Errorf("unknown aggregation: %w", httpx.ErrValidation)
	ErrInvalidMonth       = fmt.Errorf("invalid year or month: %w", httpx.ErrValidation)
)
