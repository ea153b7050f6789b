// Package extract implements the requirement extraction core: section-aware
// chunking of normalized text, obligation-sentence detection, rule-based
// classification with confidence scoring, and assembly of requirement drafts
// with provenance.
//
// The stages compose as a per-document pipeline:
//
//	chunks := extract.ChunkText(text)
//	drafts := extract.Assemble(chunks, docID, idgen.Default)
//
// All stages are pure CPU-bound text processing over process-wide immutable
// rule tables; they are safe for concurrent use across documents.
package extract

// Category is a requirement classification.
type Category string

// Requirement categories, in rule-table order. Declaration order matters:
// classification ties are broken in favor of the earlier category.
const (
	CategoryPerformance Category = "PERFORMANCE_REQUIREMENT"
	CategoryCompliance  Category = "COMPLIANCE_REQUIREMENT"
	CategoryDeliverable Category = "DELIVERABLE_REQUIREMENT"
)

// StatusAIExtracted is the initial validation status of every draft.
const StatusAIExtracted = "ai_extracted"

// Chunk is one ordered unit of source text stamped with provenance.
// Chunks are immutable once produced; their order is the order of surviving
// lines in the source and is preserved end-to-end.
type Chunk struct {
	Index      int    // 0-based position within the document
	Text       string // verbatim line text
	Section    string // active section label, "Unknown" outside any header
	Subsection string // line number of the active header, "0" before the first
	Page       int
	Paragraph  int
}

// Draft is a requirement draft produced by the assembler, ready for bulk
// insertion scoped to its document.
type Draft struct {
	ID               string
	DocumentID       string
	RawText          string
	CleanText        string
	Classification   Category
	Confidence       float64 // fraction of the winning category's rules that matched, in [0,1]
	SourceSection    string
	SourceSubsection string
	SourcePage       int
	SourceParagraph  int
	Status           string
}
