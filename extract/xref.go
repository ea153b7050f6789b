package extract

import "regexp"

// CrossRef is a mention of another document location inside a requirement's
// text, resolved at assembly time for the compliance matrix view.
type CrossRef struct {
	Type   string // "section", "attachment", "exhibit"
	Text   string // the matched reference text
	Target string // normalized target, e.g. "Section M.2.1"
}

var xrefRes = []struct {
	typ string
	re  *regexp.Regexp
}{
	{"section", regexp.MustCompile(`(?i)\b(Section\s+[A-Z][\w.]*)\b`)},
	{"attachment", regexp.MustCompile(`(?i)\b(Attachment\s+\d+)\b`)},
	{"exhibit", regexp.MustCompile(`(?i)\b(Exhibit\s+[A-Z0-9][\w.]*)\b`)},
}

// DetectCrossRefs scans requirement text for references to other document
// locations. Duplicate targets within one text are reported once.
func DetectCrossRefs(text string) []CrossRef {
	var refs []CrossRef
	seen := make(map[string]bool)
	for _, xr := range xrefRes {
		for _, m := range xr.re.FindAllStringSubmatch(text, -1) {
			target := m[1]
			if seen[target] {
				continue
			}
			seen[target] = true
			refs = append(refs, CrossRef{Type: xr.typ, Text: m[0], Target: target})
		}
	}
	return refs
}
