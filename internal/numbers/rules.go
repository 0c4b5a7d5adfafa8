package numbers

import (
	"sort"
	"strings"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// ApplyPbxRules applies the first PBX special rule that matches number for
// the given direction. Rules are tried in Order; a rule matches when the
// number is at least MinLength long, starts with Search and starts with none
// of the Ignore prefixes.
func ApplyPbxRules(number string, rules []models.PbxRule, dir models.RuleDirection) (string, bool) {
	if number == "" || len(rules) == 0 {
		return number, false
	}

	ordered := make([]models.PbxRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, r := range ordered {
		if r.Direction != models.RuleAny && r.Direction != dir {
			continue
		}
		if r.Search == "" || len(number) < r.MinLength || !strings.HasPrefix(number, r.Search) {
			continue
		}
		if hasAnyPrefix(number, r.Ignore) {
			continue
		}
		rewritten := r.Replacement + number[len(r.Search):]
		return rewritten, rewritten != number
	}
	return number, false
}

// ApplyTransforms applies the first carrier-format transform matching number
// and returns the rewritten number together with the telephony type hint the
// transform carries (0 when none).
func ApplyTransforms(number string, transforms []models.NumberTransform, dir models.RuleDirection) (string, int64, bool) {
	for _, t := range transforms {
		if t.Direction != models.RuleAny && t.Direction != dir {
			continue
		}
		if t.Search == "" || !strings.HasPrefix(number, t.Search) {
			continue
		}
		if t.MinLength > 0 && len(number) < t.MinLength {
			continue
		}
		if t.MaxLength > 0 && len(number) > t.MaxLength {
			continue
		}
		rewritten := t.Replacement + number[len(t.Search):]
		return rewritten, t.TelephonyTypeID, rewritten != number
	}
	return number, 0, false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
