package service

import (
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

// PageLimits bounds page sizes for one listing family.
type PageLimits struct {
	Default int
	Max     int
}

// DefaultPageLimits applies to report and admin request listings.
var DefaultPageLimits = PageLimits{Default: 20, Max: 100}

// AuditPageLimits applies to audit listings.
var AuditPageLimits = PageLimits{Default: 50, Max: 200}

func (l PageLimits) withDefaults(fallback PageLimits) PageLimits {
	if l.Default <= 0 {
		l.Default = fallback.Default
	}
	if l.Max <= 0 {
		l.Max = fallback.Max
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// normalizePage applies defaults for zero values and rejects anything outside page >= 1, 1 <= limit <= max.
func normalizePage(page, limit int, limits PageLimits) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = limits.Default
	}
	if page < 1 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "page must be at least 1")
	}
	if limit < 1 || limit > limits.Max {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "limit out of range")
	}
	return page, limit, nil
}

// validID reports whether id is a well-formed UUID. Malformed ids are treated as unknown resources.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func strPtr(v string) *string {
	return &v
}
