package extract

import "regexp"

// obligationRe matches modal obligation language as whole words, so that
// e.g. "shallow" or "mustard" never match.
var obligationRe = regexp.MustCompile(`(?i)\b(?:shall|must|will\s+be\s+required\s+to)\b`)

// IsObligation reports whether the text linguistically states a binding
// obligation. Chunks failing this filter never reach the classifier.
func IsObligation(text string) bool {
	return obligationRe.MatchString(text)
}
