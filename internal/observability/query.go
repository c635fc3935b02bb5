package observability

import (
	"regexp"
	"strings"
)

// maxQueryLength bounds sanitized statement text in log records.
const maxQueryLength = 500

var (
	numericLiteralPattern = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	quotedStringPattern   = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"\\]|\\.)*"`)
	whitespacePattern     = regexp.MustCompile(`\s+`)

	tablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfrom\s+["']?([a-zA-Z_][a-zA-Z0-9_.]*)`),
		regexp.MustCompile(`(?i)\binto\s+["']?([a-zA-Z_][a-zA-Z0-9_.]*)`),
		regexp.MustCompile(`(?i)\bupdate\s+["']?([a-zA-Z_][a-zA-Z0-9_.]*)`),
	}
)

// internalStatementPrefixes are transaction markers and session control
// statements skipped by query instrumentation.
var internalStatementPrefixes = []string{
	"begin", "commit", "rollback", "savepoint", "release",
	"set ", "show ", "deallocate", "prepare ", "explain ",
}

// internalStatementMarkers flag schema introspection queries.
var internalStatementMarkers = []string{
	"information_schema", "pg_catalog", "pg_attribute", "sqlite_master",
}

// InternalStatement reports whether a statement is database housekeeping
// (transaction control, session settings, schema introspection) rather
// than application work.
func InternalStatement(sql string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sql))
	if normalized == "" {
		return true
	}
	for _, prefix := range internalStatementPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	for _, marker := range internalStatementMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// SanitizeSQL replaces literal values with placeholders so statement text
// can be logged without leaking row data, collapses whitespace, and bounds
// the result's length.
func SanitizeSQL(sql string) string {
	s := quotedStringPattern.ReplaceAllString(sql, "?")
	s = numericLiteralPattern.ReplaceAllString(s, "?")
	s = strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
	if len(s) > maxQueryLength {
		s = s[:maxQueryLength] + "..."
	}
	return s
}

// ParseStatement derives the operation kind and target table from a
// statement by pattern matching.
func ParseStatement(sql string) (operation, table string) {
	normalized := strings.ToLower(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(normalized, "select"):
		operation = "select"
	case strings.HasPrefix(normalized, "insert"):
		operation = "insert"
	case strings.HasPrefix(normalized, "update"):
		operation = "update"
	case strings.HasPrefix(normalized, "delete"):
		operation = "delete"
	default:
		operation = "other"
	}

	table = "unknown"
	for _, p := range tablePatterns {
		if m := p.FindStringSubmatch(sql); len(m) > 1 {
			table = strings.ToLower(m[1])
			break
		}
	}
	return operation, table
}
