// Package utils holds small helpers shared by the command line, config and
// HTTP layers.
package utils

import "strings"

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// ParseSymbols is ParseCSV for ticker lists: upper-cased, first occurrence wins
func ParseSymbols(s string) []string {
	var result []string
	seen := map[string]bool{}
	for _, v := range ParseCSV(s) {
		symbol := strings.ToUpper(v)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		result = append(result, symbol)
	}
	return result
}
