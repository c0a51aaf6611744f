package utils

import "strings"

// TrimSpaceSlice trims whitespace from all strings in a slice and filters out empty strings
func TrimSpaceSlice(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseCommaDelimited splits a flag value like "./cmd/...,./internal/..."
func ParseCommaDelimited(input string) []string {
	if input == "" {
		return nil
	}
	return TrimSpaceSlice(strings.Split(input, ","))
}
