package extract

// Classify scores text against every category's rule set and returns the
// winning category with its confidence. For each category the score is the
// fraction of that category's rules that match; categories with zero matches
// are excluded. No match anywhere returns ("", 0). Ties go to the category
// declared first in the rule table, so results are reproducible across runs.
func Classify(text string) (Category, float64) {
	var best Category
	var bestScore float64

	for _, rs := range ruleTable {
		matched := 0
		for _, r := range rs.Rules {
			if r.Pattern.MatchString(text) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(rs.Rules))
		if score > bestScore {
			best = rs.Category
			bestScore = score
		}
	}

	return best, bestScore
}
