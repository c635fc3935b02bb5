package errors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
)

// appFramePrefix identifies in-application stack frames when picking the
// fingerprint's location component.
const appFramePrefix = "obscore/"

var (
	hexLiteralPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	hexRunPattern     = regexp.MustCompile(`\b[0-9a-f]{8,}\b`)
	numberPattern     = regexp.MustCompile(`\d+`)
)

// Fingerprint computes a stable hash grouping recurrences of the same
// failure: two logically identical errors raised at different times or
// with different embedded data hash identically. The hash covers the
// error's class, its message with numbers and hex literals normalized to
// placeholders, and the first in-application stack frame when one is
// known.
func Fingerprint(err error) string {
	if err == nil {
		return ""
	}

	parts := []string{
		ClassName(err),
		NormalizeMessage(err.Error()),
		firstAppFrame(err),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeMessage strips the volatile parts of an error message so that
// recurrences group together: hex literals, long hex runs and decimal
// numbers all collapse to fixed placeholders.
func NormalizeMessage(msg string) string {
	msg = hexLiteralPattern.ReplaceAllString(msg, "HEX")
	msg = hexRunPattern.ReplaceAllString(msg, "HEX")
	msg = numberPattern.ReplaceAllString(msg, "N")
	return msg
}

// firstAppFrame returns the first stack frame inside the application for
// an AppError, or "" when the error carries no stack.
func firstAppFrame(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) || len(appErr.Stack) == 0 {
		return ""
	}
	for _, frame := range appErr.Stack {
		if strings.Contains(frame, appFramePrefix) {
			// Drop the line number: edits above the failing call must not
			// change the fingerprint's grouping.
			if i := strings.IndexByte(frame, ':'); i > 0 {
				if j := strings.IndexByte(frame[i:], ' '); j > 0 {
					return frame[:i] + frame[i+j:]
				}
			}
			return frame
		}
	}
	return ""
}
