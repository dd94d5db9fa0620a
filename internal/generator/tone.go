package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meridianfm/meridian/internal/domain"
)

// targetMix is the station's tone target: 60% optimism, 30% realism, 10%
// wonder (§4.4.3).
var targetMix = map[string]float64{"optimism": 60, "realism": 30, "wonder": 10}

var optimismWords = []string{
	"breakthrough", "thrive", "flourish", "hope", "hopeful", "progress", "opportunity",
	"recovery", "renewal", "bright", "promising", "uplift", "resilient", "triumph",
}

var realismWords = []string{
	"data", "report", "measured", "according to", "estimate", "analysis", "statistics",
	"confirmed", "officials", "survey", "forecast", "figures",
}

var wonderWords = []string{
	"marvel", "wonder", "astonishing", "awe", "mystery", "discovery", "extraordinary",
	"unprecedented", "dazzling", "remarkable",
}

// dystopianWords count against the tone score: the station's target mix is
// forward-looking, not bleak (§4.4.3: "deductions for dystopian lexicon").
var dystopianWords = []string{
	"collapse", "catastrophe", "doom", "wasteland", "apocalypse", "despair", "ruin", "decay",
}

// fantasyAnachronisms are genre markers inconsistent with a near-future
// setting (§4.4.3: "fantasy-anachronism").
var fantasyAnachronisms = []string{
	"wizard", "dragon", "spellbook", "sorcery", "kingdom of", "enchanted",
}

// presentDayBrands are real-world brand names that should never appear in
// broadcast copy set 500 years in the future (§4.4.3: "present-day brand
// names").
var presentDayBrands = []string{
	"google", "amazon", "meta", "netflix", "tiktok", "twitter", "facebook", "apple inc",
}

func countAny(lower string, words []string) int {
	total := 0
	for _, w := range words {
		total += strings.Count(lower, w)
	}
	return total
}

var wordSplitRe = regexp.MustCompile(`\s+`)

// AnalyzeTone is a pure function over script text, producing the §4.4.3
// tone report: an optimism/realism/wonder split summing to 100, a score
// measuring closeness to the station's target mix with lexicon deductions,
// issues, and remediation suggestions.
func AnalyzeTone(script string) domain.ToneReport {
	lower := strings.ToLower(script)

	optimism := countAny(lower, optimismWords)
	realism := countAny(lower, realismWords)
	wonder := countAny(lower, wonderWords)

	total := optimism + realism + wonder
	var optimismPct, realismPct, wonderPct float64
	if total == 0 {
		// No keyword-class hits: treat as neutral, evenly weighted toward
		// the target mix so a bland script isn't penalized twice.
		optimismPct, realismPct, wonderPct = targetMix["optimism"], targetMix["realism"], targetMix["wonder"]
	} else {
		optimismPct = float64(optimism) / float64(total) * 100
		realismPct = float64(realism) / float64(total) * 100
		wonderPct = float64(wonder) / float64(total) * 100
		// Normalization rounding can leave the three off of exactly 100;
		// fold any remainder into the optimism bucket.
		sum := optimismPct + realismPct + wonderPct
		if diff := 100 - sum; diff != 0 {
			optimismPct += diff
		}
	}

	mixDeviation := (absF(optimismPct-targetMix["optimism"]) +
		absF(realismPct-targetMix["realism"]) +
		absF(wonderPct-targetMix["wonder"])) / 2 // each pct-point off is double-counted across three buckets

	score := 100 - mixDeviation

	var issues []domain.ToneIssue
	var suggestions []string

	if n := countAny(lower, dystopianWords); n > 0 {
		score -= float64(n) * 8
		issues = append(issues, domain.ToneIssue{Category: "dystopian_lexicon", Detail: fmt.Sprintf("%d dystopian term(s) detected", n)})
		suggestions = append(suggestions, "replace bleak language with forward-looking framing")
	}
	if n := countAny(lower, fantasyAnachronisms); n > 0 {
		score -= float64(n) * 10
		issues = append(issues, domain.ToneIssue{Category: "fantasy_anachronism", Detail: fmt.Sprintf("%d fantasy-genre term(s) detected", n)})
		suggestions = append(suggestions, "remove fantasy-genre vocabulary inconsistent with the station's setting")
	}
	if n := countAny(lower, presentDayBrands); n > 0 {
		score -= float64(n) * 15
		issues = append(issues, domain.ToneIssue{Category: "present_day_brand", Detail: fmt.Sprintf("%d present-day brand name(s) detected", n)})
		suggestions = append(suggestions, "replace real-world brand names with in-world equivalents")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return domain.ToneReport{
		OptimismPct: optimismPct,
		RealismPct:  realismPct,
		WonderPct:   wonderPct,
		Score:       score,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
