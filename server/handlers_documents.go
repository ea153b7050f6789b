package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tendertrace/rfpx/docpipe"
	"github.com/tendertrace/rfpx/ingest"
	"github.com/tendertrace/rfpx/store"
)

// handleUpload accepts a multipart upload, persists the document and its
// blob, and enqueues extraction. The declared type is checked before any
// bytes are parsed; unsupported types are rejected at ingestion.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxFileBytes()); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size")
			return
		}
		s.writeError(w, http.StatusBadRequest, "parse form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	declaredType := declaredType(header.Header.Get("Content-Type"), header.Filename)
	if !docpipe.Supported(declaredType) {
		s.writeError(w, http.StatusUnsupportedMediaType, "unsupported document type: "+declaredType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxFileBytes()+1))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read upload: "+err.Error())
		return
	}
	if int64(len(data)) > s.cfg.MaxFileBytes() {
		s.writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size")
		return
	}

	doc := &store.Document{
		ID:               s.newDocID(),
		OriginalFilename: header.Filename,
		MimeType:         declaredType,
		SizeBytes:        int64(len(data)),
	}
	if err := s.files.Save(doc.ID, data); err != nil {
		s.writeError(w, http.StatusInternalServerError, "store file: "+err.Error())
		return
	}
	if err := s.store.CreateDocument(doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, "create document: "+err.Error())
		return
	}

	job := &store.Job{ID: s.newJobID(), DocumentID: doc.ID}
	if err := s.store.CreateJob(job); err != nil {
		s.writeError(w, http.StatusInternalServerError, "create job: "+err.Error())
		return
	}

	if err := s.pool.Submit(doc.ID); err != nil {
		if errors.Is(err, ingest.ErrQueueFull) {
			s.writeError(w, http.StatusServiceUnavailable, "extraction queue full, retry later")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("document uploaded",
		"document_id", doc.ID, "filename", doc.OriginalFilename, "size_bytes", doc.SizeBytes)

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"document_id": doc.ID,
		"job_id":      job.ID,
		"status":      doc.Status,
	})
}

// declaredType resolves the document type from the part's Content-Type,
// falling back to the filename extension for clients that send
// application/octet-stream.
func declaredType(contentType, filename string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil &&
		mt != "" && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return docpipe.TypeText
	case ".pdf":
		return docpipe.TypePDF
	case ".docx":
		return docpipe.TypeDocx
	case ".doc":
		return docpipe.TypeDoc
	}
	return contentType
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	docs, err := s.store.ListDocuments(r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	reqs, err := s.store.ListRequirements(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"document":     doc,
		"requirements": tiered(reqs),
	})
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	resp := map[string]any{
		"document_id": doc.ID,
		"status":      doc.Status,
		"uploaded_at": doc.UploadedAt,
	}
	if doc.ProcessedAt != "" {
		resp["processed_at"] = doc.ProcessedAt
	}
	if job, err := s.store.LatestJob(id); err == nil && job != nil {
		resp["job"] = job
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	stats, err := s.store.DocumentStats(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleComplianceMatrix(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	matrix, err := s.store.ComplianceMatrix(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"matrix":      matrix,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
