package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutNetError struct{ timeout bool }

func (e timeoutNetError) Error() string   { return "net failure" }
func (e timeoutNetError) Timeout() bool   { return e.timeout }
func (e timeoutNetError) Temporary() bool { return false }

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"app error category wins", Validation("C", "m"), CategoryValidation},
		{"wrapped app error", fmt.Errorf("outer: %w", Connection("C", "m")), CategoryConnection},
		{"deadline exceeded", context.DeadlineExceeded, CategoryTimeout},
		{"canceled", context.Canceled, CategoryTimeout},
		{"unexpected eof", io.ErrUnexpectedEOF, CategoryConnection},
		{"not exist", os.ErrNotExist, CategoryNotFound},
		{"permission", os.ErrPermission, CategoryForbidden},
		{"net timeout", timeoutNetError{timeout: true}, CategoryTimeout},
		{"net failure", timeoutNetError{timeout: false}, CategoryConnection},
		{"anything else", errors.New("mystery"), CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"connection is critical", Connection("DB_DOWN", "m"), SeverityCritical},
		{"unavailable is critical", New(CategoryUnavailable, "DOWN", "m"), SeverityCritical},
		{"data is critical", New(CategoryData, "CORRUPT", "m"), SeverityCritical},
		{"internal is high", Internal("BUG", "m"), SeverityHigh},
		{"timeout is high", Timeout("SLOW", "m"), SeverityHigh},
		{"external is high", External("UPSTREAM", "m"), SeverityHigh},
		{"conflict is medium", Conflict("DUP", "m"), SeverityMedium},
		{"rate limit is medium", New(CategoryRateLimit, "LIMIT", "m"), SeverityMedium},
		{"unknown defaults to medium", errors.New("mystery"), SeverityMedium},
		{"validation is low", Validation("BAD", "m"), SeverityLow},
		{"not found is low", NotFound("MISSING", "m"), SeverityLow},
		{"unauthorized is low", Unauthorized("NO_AUTH", "m"), SeverityLow},
		{"forbidden is low", New(CategoryForbidden, "DENIED", "m"), SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
