package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
)

// severityTable maps severities to the categories they cover, walked in
// fixed priority order: critical first, then high, medium, low. The first
// row containing the failure's category wins; anything unmatched defaults
// to medium.
var severityTable = []struct {
	severity   Severity
	categories []Category
}{
	{SeverityCritical, []Category{CategoryConnection, CategoryUnavailable, CategoryData}},
	{SeverityHigh, []Category{CategoryInternal, CategoryTimeout, CategoryExternal}},
	{SeverityMedium, []Category{CategoryConflict, CategoryRateLimit, CategoryUnknown}},
	{SeverityLow, []Category{CategoryValidation, CategoryNotFound, CategoryUnauthorized, CategoryForbidden}},
}

// Categorize resolves an arbitrary error to a Category. AppErrors anywhere
// in the unwrap chain carry their own category; well-known platform errors
// are adapted; everything else is CategoryUnknown.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, context.Canceled):
		return CategoryTimeout
	case errors.Is(err, io.ErrUnexpectedEOF):
		return CategoryConnection
	case errors.Is(err, os.ErrNotExist):
		return CategoryNotFound
	case errors.Is(err, os.ErrPermission):
		return CategoryForbidden
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryConnection
	}

	return CategoryUnknown
}

// Classify assigns a severity by walking the severity table in priority
// order against the error's category. Unknown failures are medium, never
// fatal to the caller.
func Classify(err error) Severity {
	category := Categorize(err)
	for _, row := range severityTable {
		for _, c := range row.categories {
			if c == category {
				return row.severity
			}
		}
	}
	return SeverityMedium
}
