package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/brunobiangulo/policyreason"
	"github.com/brunobiangulo/policyreason/eligibility"
)

type handler struct {
	engine  policyreason.Engine
	metrics *metrics

	// Uploads land at uploadDir/<filename> so a re-upload reaches the
	// engine under the same path and its unchanged-content check applies.
	uploadDir   string
	uploadLocks sync.Map // filename -> *sync.Mutex
}

func newHandler(e policyreason.Engine, m *metrics) *handler {
	return &handler{
		engine:    e,
		metrics:   m,
		uploadDir: filepath.Join(os.TempDir(), "policyreason-uploads"),
	}
}

// lockUpload serialises uploads sharing a filename.
func (h *handler) lockUpload(name string) func() {
	mu, _ := h.uploadLocks.LoadOrStore(name, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)
			if safeName == "." || safeName == string(filepath.Separator) {
				writeError(w, http.StatusBadRequest, "file name is required")
				return
			}

			if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating upload dir", "error", err)
				return
			}
			defer h.lockUpload(safeName)()

			tmpPath := filepath.Join(h.uploadDir, safeName)
			defer os.Remove(tmpPath)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()

			docID, err := h.engine.Ingest(ctx, tmpPath, policyreason.WithSource(safeName))
			if err != nil {
				h.ingestFailed(w, r, err)
				return
			}
			h.metrics.ingested.WithLabelValues("ok").Inc()

			writeJSON(w, http.StatusOK, map[string]any{
				"document_id": docID,
				"filename":    safeName,
			})
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path     string            `json:"path"`
		Source   string            `json:"source,omitempty"`
		Force    bool              `json:"force,omitempty"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []policyreason.IngestOption
	if req.Force {
		opts = append(opts, policyreason.WithForceReparse())
	}
	if req.Source != "" {
		opts = append(opts, policyreason.WithSource(req.Source))
	}
	if req.Metadata != nil {
		opts = append(opts, policyreason.WithMetadata(req.Metadata))
	}

	docID, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		h.ingestFailed(w, r, err)
		return
	}
	h.metrics.ingested.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"path":        absPath,
	})
}

func (h *handler) ingestFailed(w http.ResponseWriter, r *http.Request, err error) {
	h.metrics.ingested.WithLabelValues("error").Inc()
	slog.Error("ingest error", "request_id", requestID(r.Context()), "error", err)
	switch {
	case errors.Is(err, policyreason.ErrUnsupportedFormat), errors.Is(err, policyreason.ErrParsingFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ingestion failed")
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return "", false
	}
	return req.Query, true
}

// POST /evaluate
func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	d, err := h.engine.Evaluate(ctx, query)
	if err != nil {
		h.evaluateFailed(w, r, query, err)
		return
	}
	h.observe(d)
	writeJSON(w, http.StatusOK, d)
}

// POST /trace
func (h *handler) handleTrace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	t, err := h.engine.Trace(ctx, query)
	if err != nil {
		h.evaluateFailed(w, r, query, err)
		return
	}
	h.observe(&t.Decision)
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) observe(d *eligibility.Decision) {
	h.metrics.decisions.WithLabelValues(string(d.Decision)).Inc()
	h.metrics.confidence.Observe(float64(d.Confidence))
}

func (h *handler) evaluateFailed(w http.ResponseWriter, r *http.Request, query string, err error) {
	slog.Error("evaluate error", "request_id", requestID(r.Context()), "query", query, "error", err)
	switch {
	case errors.Is(err, policyreason.ErrEmptyQuery):
		h.metrics.evaluateErrors.WithLabelValues("empty_query").Inc()
		writeError(w, http.StatusBadRequest, "query is required")
	case errors.Is(err, policyreason.ErrRetrievalFailed):
		h.metrics.evaluateErrors.WithLabelValues("retrieval").Inc()
		writeError(w, http.StatusBadGateway, "retrieval failed")
	default:
		h.metrics.evaluateErrors.WithLabelValues("internal").Inc()
		writeError(w, http.StatusInternalServerError, "evaluation failed")
	}
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		if errors.Is(err, policyreason.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if stats, err := h.engine.Stats(r.Context()); err == nil {
		resp["documents"] = stats.Documents
		resp["chunks"] = stats.Chunks
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
