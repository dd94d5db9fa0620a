package generator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/store"
)

// mentionPattern matches "<key> is/was/stands at/equals <value>" style
// assertions so the checker can compare a script's stated fact against the
// canon table without a full NLP pass (§4.4.4).
var mentionPattern = regexp.MustCompile(`(?i)([a-z][a-z0-9 _-]{1,40}?)\s+(?:is|was|stands at|equals|now at)\s+([\w.,%-]+)`)

// stringFactSimilarityThreshold is the minimum Jaro-Winkler score at which a
// "string"-typed canon fact is considered restated rather than contradicted.
// A host reading a generated script aloud (then re-transcribed) routinely
// produces minor misspellings or phonetic variants of a canon name; treating
// those as contradictions would flood review with false positives.
const stringFactSimilarityThreshold = 0.90

// CheckConsistency scans script for assertions that contradict the
// canonical-facts table: a "number" or "enum" contradiction is major, a
// "string" contradiction is moderate; no issue is classified minor (§4.4.4).
// facts is the full canon table, loaded once per segment
// by the caller via [store.Store.ListAllCanonFacts].
func CheckConsistency(script string, facts []domain.CanonFact) []domain.ConsistencyIssue {
	byKey := make(map[string]domain.CanonFact, len(facts))
	for _, f := range facts {
		byKey[strings.ToLower(f.Key)] = f
	}

	var issues []domain.ConsistencyIssue
	for _, m := range mentionPattern.FindAllStringSubmatch(script, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		fact, ok := byKey[key]
		if !ok {
			continue
		}
		value := strings.Trim(m[2], ".,")
		if iss, ok := checkFact(fact, value); ok {
			issues = append(issues, iss)
		}
	}
	return issues
}

func checkFact(fact domain.CanonFact, asserted string) (domain.ConsistencyIssue, bool) {
	switch fact.Type {
	case "number":
		n, err := strconv.ParseFloat(strings.TrimSuffix(asserted, "%"), 64)
		if err != nil {
			return domain.ConsistencyIssue{}, false
		}
		if fact.Min != nil && n < *fact.Min {
			return domain.ConsistencyIssue{
				Category: fact.Category, Key: fact.Key, Severity: domain.SeverityMajor,
				Detail: fmt.Sprintf("%s asserted as %v, below canon minimum %v", fact.Key, n, *fact.Min),
			}, true
		}
		if fact.Max != nil && n > *fact.Max {
			return domain.ConsistencyIssue{
				Category: fact.Category, Key: fact.Key, Severity: domain.SeverityMajor,
				Detail: fmt.Sprintf("%s asserted as %v, above canon maximum %v", fact.Key, n, *fact.Max),
			}, true
		}
		return domain.ConsistencyIssue{}, false

	case "enum":
		for _, allowed := range fact.Allowed {
			if strings.EqualFold(allowed, asserted) {
				return domain.ConsistencyIssue{}, false
			}
		}
		return domain.ConsistencyIssue{
			Category: fact.Category, Key: fact.Key, Severity: domain.SeverityMajor,
			Detail: fmt.Sprintf("%s asserted as %q, not one of the canon allowed values", fact.Key, asserted),
		}, true

	case "string":
		if strings.EqualFold(fact.Value, asserted) || similarStrings(fact.Value, asserted) {
			return domain.ConsistencyIssue{}, false
		}
		return domain.ConsistencyIssue{
			Category: fact.Category, Key: fact.Key, Severity: domain.SeverityModerate,
			Detail: fmt.Sprintf("%s asserted as %q, canon value is %q", fact.Key, asserted, fact.Value),
		}, true

	default:
		return domain.ConsistencyIssue{}, false
	}
}

// similarStrings reports whether canon and asserted are close enough to be
// the same restated fact rather than a contradiction: either some word in
// each shares a Double Metaphone code (catches misspellings like "Eldrinax"
// vs "Eldernax") or their whole-string Jaro-Winkler similarity clears
// [stringFactSimilarityThreshold]. Mirrors the two-stage phonetic-then-fuzzy
// strategy internal/transcript/phonetic uses for entity resolution.
func similarStrings(canon, asserted string) bool {
	canon, asserted = strings.ToLower(canon), strings.ToLower(asserted)
	if wordsSharePhoneticCode(canon, asserted) {
		return true
	}
	return matchr.JaroWinkler(canon, asserted, false) >= stringFactSimilarityThreshold
}

// wordsSharePhoneticCode reports whether any word of a and any word of b
// produce the same Double Metaphone primary or secondary code.
func wordsSharePhoneticCode(a, b string) bool {
	bCodes := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		if p, s := matchr.DoubleMetaphone(w); p != "" || s != "" {
			if p != "" {
				bCodes[p] = struct{}{}
			}
			if s != "" {
				bCodes[s] = struct{}{}
			}
		}
	}
	for _, w := range strings.Fields(a) {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			if _, ok := bCodes[p]; ok {
				return true
			}
		}
		if s != "" {
			if _, ok := bCodes[s]; ok {
				return true
			}
		}
	}
	return false
}

// loadCanonFacts fetches the full canon table, wrapping store errors as
// transient so the enclosing job retries (§4.4.1 step 6 depends on this
// succeeding before the checker can run).
func loadCanonFacts(ctx context.Context, st *store.Store) ([]domain.CanonFact, error) {
	facts, err := st.ListAllCanonFacts(ctx)
	if err != nil {
		return nil, transientErr("consistency_check", err)
	}
	return facts, nil
}
