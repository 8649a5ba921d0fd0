// Package matcher evaluates message content against trigger rules.
// It is a pure function over its inputs; candidates must already be
// filtered by isActive and scope.
package matcher

import (
	"log"
	"regexp"
	"strings"

	"sentinel-gateway/internal/models"
)

// Result is a successful match. Captured holds regex groups (1-indexed in
// the pattern, contiguous here) for later variable binding.
type Result struct {
	Trigger  models.Trigger
	Captured []string
}

// Match evaluates content against candidates in strict tier priority:
// EXACT, then CONTAINS, then REGEX. Within each tier the first matching
// candidate wins, in the order the caller supplied them.
func Match(content string, candidates []models.Trigger) *Result {
	normalized := strings.ToLower(strings.TrimSpace(content))

	for _, t := range candidates {
		if t.MatchType == models.MatchExact &&
			strings.ToLower(strings.TrimSpace(t.Keyword)) == normalized {
			return &Result{Trigger: t}
		}
	}

	for _, t := range candidates {
		if t.MatchType == models.MatchContains &&
			strings.Contains(normalized, strings.ToLower(t.Keyword)) {
			return &Result{Trigger: t}
		}
	}

	// Regex runs against the original content, case-insensitively. A bad
	// pattern is skipped, never surfaced to the caller.
	for _, t := range candidates {
		if t.MatchType != models.MatchRegex {
			continue
		}
		re, err := regexp.Compile("(?i)" + t.Keyword)
		if err != nil {
			log.Printf("[Matcher] Invalid regex in trigger %s: %q", t.ID, t.Keyword)
			continue
		}
		if groups := re.FindStringSubmatch(content); groups != nil {
			return &Result{Trigger: t, Captured: groups[1:]}
		}
	}

	return nil
}
