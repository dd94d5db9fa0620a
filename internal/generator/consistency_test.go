package generator

import (
	"testing"

	"github.com/meridianfm/meridian/internal/domain"
)

func TestCheckConsistency_NumberOutOfRange(t *testing.T) {
	facts := []domain.CanonFact{
		{Category: "lore", Key: "population", Type: "number", Min: floatPtr(1000), Max: floatPtr(5000)},
	}
	issues := CheckConsistency("Population is 50 this year.", facts)
	if len(issues) != 1 || issues[0].Severity != domain.SeverityMajor {
		t.Fatalf("got %+v, want one major issue", issues)
	}
}

func TestCheckConsistency_EnumMismatch(t *testing.T) {
	facts := []domain.CanonFact{
		{Category: "lore", Key: "weather", Type: "enum", Allowed: []string{"sunny", "rainy"}},
	}
	issues := CheckConsistency("Weather is stormy today.", facts)
	if len(issues) != 1 || issues[0].Severity != domain.SeverityMajor {
		t.Fatalf("got %+v, want one major issue", issues)
	}
}

func TestCheckConsistency_StringExactMatchIsClean(t *testing.T) {
	facts := []domain.CanonFact{
		{Category: "lore", Key: "mayor", Type: "string", Value: "Harriet Dunmoore"},
	}
	issues := CheckConsistency("Mayor is Harriet Dunmoore.", facts)
	if len(issues) != 0 {
		t.Fatalf("got %+v, want no issues for an exact restatement", issues)
	}
}

func TestCheckConsistency_StringFuzzyVariantIsClean(t *testing.T) {
	facts := []domain.CanonFact{
		{Category: "lore", Key: "mayor", Type: "string", Value: "Harriet Dunmoore"},
	}
	// Misspelled re-transcription of the same name should not be flagged.
	issues := CheckConsistency("Mayor is Harriet Dunmore.", facts)
	if len(issues) != 0 {
		t.Fatalf("got %+v, want no issues for a near-identical restatement", issues)
	}
}

func TestCheckConsistency_StringGenuineContradiction(t *testing.T) {
	facts := []domain.CanonFact{
		{Category: "lore", Key: "mayor", Type: "string", Value: "Harriet Dunmoore"},
	}
	issues := CheckConsistency("Mayor is Wendell Park.", facts)
	if len(issues) != 1 || issues[0].Severity != domain.SeverityModerate {
		t.Fatalf("got %+v, want one moderate issue for a genuinely different name", issues)
	}
}

func TestSimilarStrings(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Harriet Dunmoore", "Harriet Dunmoore", true},
		{"Harriet Dunmoore", "Harriet Dunmore", true},
		{"Eldrinax", "Eldernax", true},
		{"Harriet Dunmoore", "Wendell Park", false},
	}
	for _, c := range cases {
		if got := similarStrings(c.a, c.b); got != c.want {
			t.Errorf("similarStrings(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func floatPtr(f float64) *float64 { return &f }
