// Package ingest orchestrates the per-document extraction pipeline:
// normalize → chunk → detect → classify → assemble → persist. Each document
// runs single-threaded through the stages; independent documents run
// concurrently on the worker pool with no shared mutable state beyond the
// store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendertrace/rfpx/docpipe"
	"github.com/tendertrace/rfpx/extract"
	"github.com/tendertrace/rfpx/idgen"
	"github.com/tendertrace/rfpx/store"
)

// ErrEmptyContent is returned when normalization yields empty or
// whitespace-only text. A user-facing rejection, not a crash.
var ErrEmptyContent = errors.New("ingest: no text content found in document")

// Processor runs the extraction pipeline for one document at a time.
type Processor struct {
	Store  *store.Store
	Files  *FileStore
	Logger *slog.Logger

	NewReqID  idgen.Generator
	NewXrefID idgen.Generator
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.Logger = l }
}

// WithRequirementIDs sets the generator for requirement IDs.
func WithRequirementIDs(g idgen.Generator) ProcessorOption {
	return func(p *Processor) { p.NewReqID = g }
}

// NewProcessor creates a pipeline processor.
func NewProcessor(st *store.Store, files *FileStore, opts ...ProcessorOption) *Processor {
	p := &Processor{
		Store:     st,
		Files:     files,
		Logger:    slog.Default(),
		NewReqID:  idgen.Prefixed("req_", idgen.Default),
		NewXrefID: idgen.Prefixed("xref_", idgen.Default),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the full pipeline for one document. On any failure the
// document is marked failed and its job carries the error message; failures
// are isolated per document and never abort other documents.
func (p *Processor) Process(ctx context.Context, documentID string) error {
	doc, err := p.Store.GetDocument(documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document %s: %w", documentID, store.ErrNotFound)
	}

	job, err := p.Store.LatestJob(documentID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job != nil {
		if err := p.Store.StartJob(job.ID); err != nil {
			return fmt.Errorf("start job: %w", err)
		}
	}
	if err := p.Store.SetDocumentStatus(documentID, store.DocStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := p.run(ctx, doc, job); err != nil {
		p.Logger.Error("extraction failed", "document_id", documentID, "error", err)
		if markErr := p.Store.MarkDocumentProcessed(documentID, store.DocStatusFailed, nil); markErr != nil {
			p.Logger.Error("mark failed", "document_id", documentID, "error", markErr)
		}
		if job != nil {
			if jobErr := p.Store.FailJob(job.ID, err.Error()); jobErr != nil {
				p.Logger.Error("fail job", "job_id", job.ID, "error", jobErr)
			}
		}
		return err
	}
	return nil
}

func (p *Processor) run(ctx context.Context, doc *store.Document, job *store.Job) error {
	data, err := p.Files.Read(doc.ID)
	if err != nil {
		return err
	}

	res, err := docpipe.Normalize(data, doc.MimeType)
	if err != nil {
		return err
	}
	if strings.TrimSpace(res.Text) == "" {
		return ErrEmptyContent
	}

	chunks := extract.ChunkText(res.Text)
	if err := p.Store.InsertChunks(doc.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	drafts := extract.Assemble(chunks, doc.ID, p.NewReqID)
	if err := p.Store.InsertDrafts(drafts); err != nil {
		return fmt.Errorf("store requirements: %w", err)
	}

	for _, d := range drafts {
		refs := extract.DetectCrossRefs(d.CleanText)
		if err := p.Store.InsertCrossRefs(d.ID, refs, p.NewXrefID); err != nil {
			return fmt.Errorf("store cross-references: %w", err)
		}
	}

	if err := p.Store.MarkDocumentProcessed(doc.ID, store.DocStatusCompleted, res.Quality); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if job != nil {
		if err := p.Store.FinishJob(job.ID, len(chunks)+len(drafts)); err != nil {
			return fmt.Errorf("finish job: %w", err)
		}
	}

	p.Logger.Info("document extracted",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"requirements", len(drafts))
	return nil
}
