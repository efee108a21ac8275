package app

import "strings"

const maxTracedQueryLen = 512

// formatDBQueryForTrace flattens a SQL statement for span attributes:
// whitespace runs collapse to single spaces and anything past the cap is
// truncated.
func formatDBQueryForTrace(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	normalized := strings.Join(fields, " ")
	if len(normalized) > maxTracedQueryLen {
		return normalized[:maxTracedQueryLen] + "..."
	}
	return normalized
}
