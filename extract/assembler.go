package extract

import (
	"regexp"
	"strings"

	"github.com/tendertrace/rfpx/idgen"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText collapses runs of whitespace to single spaces and trims.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Assemble turns detector-surviving chunks into requirement drafts for one
// document. A chunk must both state an obligation and classify to a category
// to become a draft; obligation language matching no rule produces nothing.
// Draft order follows chunk order.
func Assemble(chunks []Chunk, documentID string, newID idgen.Generator) []Draft {
	if newID == nil {
		newID = idgen.Default
	}

	var drafts []Draft
	for _, c := range chunks {
		if !IsObligation(c.Text) {
			continue
		}
		category, confidence := Classify(c.Text)
		if category == "" {
			continue
		}
		drafts = append(drafts, Draft{
			ID:               newID(),
			DocumentID:       documentID,
			RawText:          c.Text,
			CleanText:        CleanText(c.Text),
			Classification:   category,
			Confidence:       confidence,
			SourceSection:    c.Section,
			SourceSubsection: c.Subsection,
			SourcePage:       c.Page,
			SourceParagraph:  c.Paragraph,
			Status:           StatusAIExtracted,
		})
	}
	return drafts
}
