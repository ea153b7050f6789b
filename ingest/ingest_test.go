package ingest

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/tendertrace/rfpx/dbopen"
	"github.com/tendertrace/rfpx/docpipe"
	"github.com/tendertrace/rfpx/extract"
	"github.com/tendertrace/rfpx/store"
)

func testSetup(t *testing.T) (*store.Store, *FileStore, *Processor) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return st, files, NewProcessor(st, files)
}

func uploadDocument(t *testing.T, st *store.Store, files *FileStore, id string, content []byte) {
	t.Helper()
	if err := files.Save(id, content); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateDocument(&store.Document{
		ID: id, OriginalFilename: id + ".txt", MimeType: docpipe.TypeText, SizeBytes: int64(len(content)),
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateJob(&store.Job{ID: "job-" + id, DocumentID: id}); err != nil {
		t.Fatal(err)
	}
}

const sampleRFP = `Section C: Statement of Work
The contractor shall submit status reports monthly.
Background information about the program.
The system shall maintain uptime of 99.9%.
Section L: Instructions
Offerors must adhere to NIST 800-171 security controls per Attachment 3.
`

func TestProcess_EndToEnd(t *testing.T) {
	st, files, proc := testSetup(t)
	uploadDocument(t, st, files, "doc-1", []byte(sampleRFP))
	ctx := context.Background()

	if err := proc.Process(ctx, "doc-1"); err != nil {
		t.Fatal(err)
	}

	doc, err := st.GetDocument("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != store.DocStatusCompleted {
		t.Fatalf("document status: got %q, want %q", doc.Status, store.DocStatusCompleted)
	}
	if doc.ProcessedAt == "" {
		t.Fatal("processed_at not stamped")
	}

	chunks, err := st.ListChunks("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	// Four body lines; the two section headers are not chunks.
	if len(chunks) != 4 {
		t.Fatalf("chunks: got %d, want 4", len(chunks))
	}
	if chunks[0].Section != "Section C" || chunks[3].Section != "Section L" {
		t.Fatalf("sections: %q ... %q", chunks[0].Section, chunks[3].Section)
	}

	reqs, err := st.ListRequirements(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	// Three obligation lines classify; the background line yields nothing.
	if len(reqs) != 3 {
		t.Fatalf("requirements: got %d, want 3", len(reqs))
	}
	for _, r := range reqs {
		if r.Status != store.StatusAIExtracted {
			t.Fatalf("requirement %s status: %q", r.ID, r.Status)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			t.Fatalf("requirement %s confidence: %v", r.ID, r.Confidence)
		}
	}
	if reqs[0].Classification != string(extract.CategoryDeliverable) {
		t.Fatalf("first requirement: %q", reqs[0].Classification)
	}

	// The NIST line mentions Attachment 3; the matrix carries it.
	matrix, err := st.ComplianceMatrix(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, row := range matrix {
		for _, ref := range row.CrossRefs {
			if ref.RefTarget == "Attachment 3" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("Attachment 3 cross-reference not recorded")
	}

	job, err := st.LatestJob("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != store.JobCompleted {
		t.Fatalf("job status: got %q", job.Status)
	}
	if job.TotalItems != len(chunks)+len(reqs) {
		t.Fatalf("job items: got %d, want %d", job.TotalItems, len(chunks)+len(reqs))
	}
}

func TestProcess_EmptyContent(t *testing.T) {
	st, files, proc := testSetup(t)
	uploadDocument(t, st, files, "doc-1", []byte("   \n\n  "))

	err := proc.Process(context.Background(), "doc-1")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("got %v, want ErrEmptyContent", err)
	}

	doc, _ := st.GetDocument("doc-1")
	if doc.Status != store.DocStatusFailed {
		t.Fatalf("document status: got %q, want %q", doc.Status, store.DocStatusFailed)
	}
	job, _ := st.LatestJob("doc-1")
	if job.Status != store.JobFailed || job.ErrorMessage == "" {
		t.Fatalf("job: %+v", job)
	}
}

func TestProcess_FailureIsolation(t *testing.T) {
	st, files, proc := testSetup(t)
	uploadDocument(t, st, files, "doc-bad", []byte{0xFF, 0xFE})
	uploadDocument(t, st, files, "doc-good", []byte(sampleRFP))
	ctx := context.Background()

	if err := proc.Process(ctx, "doc-bad"); err == nil {
		t.Fatal("expected failure for invalid UTF-8")
	}
	if err := proc.Process(ctx, "doc-good"); err != nil {
		t.Fatalf("good document failed after bad one: %v", err)
	}

	good, _ := st.GetDocument("doc-good")
	bad, _ := st.GetDocument("doc-bad")
	if good.Status != store.DocStatusCompleted || bad.Status != store.DocStatusFailed {
		t.Fatalf("statuses: good %q, bad %q", good.Status, bad.Status)
	}
}

func TestProcess_UnknownDocument(t *testing.T) {
	_, _, proc := testSetup(t)
	err := proc.Process(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want store.ErrNotFound", err)
	}
}

func TestPool_ProcessesSubmissions(t *testing.T) {
	st, files, proc := testSetup(t)
	uploadDocument(t, st, files, "doc-1", []byte(sampleRFP))

	pool := NewPool(proc, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	if err := pool.Submit("doc-1"); err != nil {
		t.Fatal(err)
	}
	pool.Stop()

	doc, _ := st.GetDocument("doc-1")
	if doc.Status != store.DocStatusCompleted {
		t.Fatalf("document status: got %q, want %q", doc.Status, store.DocStatusCompleted)
	}
}

func TestPool_QueueFull(t *testing.T) {
	_, _, proc := testSetup(t)
	pool := NewPool(proc, 1, 1)
	// Not started: the single queue slot fills and the next submit fails.
	if err := pool.Submit("a"); err != nil {
		t.Fatal(err)
	}
	if err := pool.Submit("b"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestFileStore(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := files.Save("doc-1", []byte("content")); err != nil {
		t.Fatal(err)
	}
	data, err := files.Read("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Fatalf("got %q", data)
	}

	if err := files.Remove("doc-1"); err != nil {
		t.Fatal(err)
	}
	if err := files.Remove("doc-1"); err != nil {
		t.Fatalf("double remove: %v", err)
	}
	if _, err := files.Read("doc-1"); err == nil {
		t.Fatal("read after remove succeeded")
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	files, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if err := files.Save(id, []byte("x")); err == nil {
			t.Fatalf("Save(%q) accepted", id)
		}
		if _, err := files.Read(id); err == nil {
			t.Fatalf("Read(%q) accepted", id)
		}
	}
}
