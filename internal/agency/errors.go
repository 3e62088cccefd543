package agency

import (
	"fmt"

	"github.com/agencyops/agencyops/internal/platform/httpx"
)

// ErrCompanyNotFound is returned when the requested company does not exist.
var ErrCompanyNotFound = fmt.Errorf("company not found: %w", httpx.ErrNotFound)
