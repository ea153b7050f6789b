package extract

import (
	"fmt"
	"strings"
	"testing"
)

// seqIDs returns a deterministic generator for assertions on draft IDs.
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  The   contractor\tshall \n submit reports.  ")
	want := "The contractor shall submit reports."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAssemble(t *testing.T) {
	text := "Section C: Statement of Work\n" +
		"The contractor shall submit status reports monthly.\n" +
		"This paragraph is informational only.\n" + // no obligation
		"The sky shall be blue.\n" + // obligation, no category
		"The system shall maintain uptime of 99.9%."
	chunks := ChunkText(text)

	drafts := Assemble(chunks, "doc-1", seqIDs("req-"))
	if len(drafts) != 2 {
		t.Fatalf("drafts: got %d, want 2", len(drafts))
	}

	d := drafts[0]
	if d.ID != "req-1" || d.DocumentID != "doc-1" {
		t.Fatalf("identity: got %q/%q", d.ID, d.DocumentID)
	}
	if d.Classification != CategoryDeliverable {
		t.Fatalf("classification: got %q, want %q", d.Classification, CategoryDeliverable)
	}
	if d.Status != StatusAIExtracted {
		t.Fatalf("status: got %q, want %q", d.Status, StatusAIExtracted)
	}
	if d.SourceSection != "Section C" {
		t.Fatalf("section: got %q", d.SourceSection)
	}
	if !strings.Contains(d.RawText, "shall submit") {
		t.Fatalf("raw text lost: %q", d.RawText)
	}

	if drafts[1].Classification != CategoryPerformance {
		t.Fatalf("second draft: got %q, want %q", drafts[1].Classification, CategoryPerformance)
	}
	// Draft order follows chunk order.
	if drafts[1].SourceParagraph <= drafts[0].SourceParagraph {
		t.Fatalf("draft order: paragraphs %d then %d", drafts[0].SourceParagraph, drafts[1].SourceParagraph)
	}
}

func TestAssemble_NoSurvivors(t *testing.T) {
	chunks := ChunkText("Background reading only.\nNothing binding here.")
	if drafts := Assemble(chunks, "doc-1", nil); len(drafts) != 0 {
		t.Fatalf("drafts: got %d, want 0", len(drafts))
	}
}

func TestDetectCrossRefs(t *testing.T) {
	text := "The contractor shall comply with Section M.2.1, Attachment 3 and Exhibit B. See Section M.2.1 again."
	refs := DetectCrossRefs(text)
	if len(refs) != 3 {
		t.Fatalf("refs: got %d, want 3 (duplicates collapsed): %+v", len(refs), refs)
	}
	byType := map[string]string{}
	for _, r := range refs {
		byType[r.Type] = r.Target
	}
	if byType["section"] != "Section M.2.1" {
		t.Fatalf("section target: got %q", byType["section"])
	}
	if byType["attachment"] != "Attachment 3" {
		t.Fatalf("attachment target: got %q", byType["attachment"])
	}
	if byType["exhibit"] != "Exhibit B" {
		t.Fatalf("exhibit target: got %q", byType["exhibit"])
	}
}

func TestDetectCrossRefs_None(t *testing.T) {
	if refs := DetectCrossRefs("no references here"); len(refs) != 0 {
		t.Fatalf("refs: got %d, want 0", len(refs))
	}
}
