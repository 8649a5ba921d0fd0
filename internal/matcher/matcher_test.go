package matcher

import (
	"testing"

	"sentinel-gateway/internal/models"
)

func trigger(id, keyword, matchType string) models.Trigger {
	return models.Trigger{ID: id, Keyword: keyword, MatchType: matchType, IsActive: true}
}

func TestMatch_ExactBeatsContainsAndRegex(t *testing.T) {
	candidates := []models.Trigger{
		trigger("regex", "hel+o", models.MatchRegex),
		trigger("contains", "hell", models.MatchContains),
		trigger("exact", "hello", models.MatchExact),
	}

	res := Match("  Hello  ", candidates)
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Trigger.ID != "exact" {
		t.Fatalf("expected EXACT tier to win, got %s", res.Trigger.ID)
	}
}

func TestMatch_ContainsBeatsRegex(t *testing.T) {
	candidates := []models.Trigger{
		trigger("regex", "pric\\w+", models.MatchRegex),
		trigger("contains", "price", models.MatchContains),
	}

	res := Match("what is the PRICE today?", candidates)
	if res == nil || res.Trigger.ID != "contains" {
		t.Fatalf("expected CONTAINS tier to win, got %+v", res)
	}
}

func TestMatch_FirstMatchWinsWithinTier(t *testing.T) {
	candidates := []models.Trigger{
		trigger("first", "hi", models.MatchContains),
		trigger("second", "hi there", models.MatchContains),
	}

	res := Match("hi there", candidates)
	if res == nil || res.Trigger.ID != "first" {
		t.Fatalf("expected first candidate in scan order, got %+v", res)
	}
}

func TestMatch_RegexCapturedGroups(t *testing.T) {
	candidates := []models.Trigger{
		trigger("order", `order #(\d+)`, models.MatchRegex),
	}

	res := Match("order #42", candidates)
	if res == nil {
		t.Fatal("expected a match")
	}
	if len(res.Captured) != 1 || res.Captured[0] != "42" {
		t.Fatalf("expected captured groups [42], got %v", res.Captured)
	}
}

func TestMatch_RegexCaseInsensitiveOnOriginalContent(t *testing.T) {
	candidates := []models.Trigger{
		trigger("code", `CODE-([A-Z]+)`, models.MatchRegex),
	}

	res := Match("your code-abc is ready", candidates)
	if res == nil {
		t.Fatal("expected case-insensitive regex match")
	}
	// Groups come from the original, non-normalized content.
	if res.Captured[0] != "abc" {
		t.Fatalf("expected original-case capture, got %q", res.Captured[0])
	}
}

func TestMatch_MalformedRegexSkipped(t *testing.T) {
	candidates := []models.Trigger{
		trigger("broken", `order #(\d+`, models.MatchRegex),
		trigger("valid", `order #(\d+)`, models.MatchRegex),
	}

	res := Match("order #7", candidates)
	if res == nil || res.Trigger.ID != "valid" {
		t.Fatalf("expected broken pattern to be skipped, got %+v", res)
	}
}

func TestMatch_NoMatch(t *testing.T) {
	candidates := []models.Trigger{
		trigger("exact", "hello", models.MatchExact),
		trigger("contains", "price", models.MatchContains),
		trigger("regex", `order #(\d+)`, models.MatchRegex),
	}

	if res := Match("completely unrelated", candidates); res != nil {
		t.Fatalf("expected no match, got %+v", res)
	}
}

func TestMatch_EmptyCandidates(t *testing.T) {
	if res := Match("hello", nil); res != nil {
		t.Fatalf("expected no match with no candidates, got %+v", res)
	}
}
