package session

import (
	"fmt"
	"regexp"
	"strings"
)

// FallbackTableName substitutes for proposed names that sanitize to
// nothing.
const FallbackTableName = "unnamed"

var (
	invalidChars   = regexp.MustCompile(`[^A-Za-z0-9_]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SanitizeTableName converts an arbitrary proposed name (typically a
// file stem) into a safe table identifier: characters outside
// [A-Za-z0-9_] become underscores, runs collapse, leading and trailing
// underscores are stripped, and an empty result falls back to
// FallbackTableName. Pure and deterministic.
func SanitizeTableName(proposed string) string {
	name := invalidChars.ReplaceAllString(proposed, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return FallbackTableName
	}
	return name
}

// UniqueTableName sanitizes proposed and, on collision with existing
// names, appends _2, _3, … until unique.
func UniqueTableName(existing []string, proposed string) string {
	name := SanitizeTableName(proposed)

	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[e] = true
	}

	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
