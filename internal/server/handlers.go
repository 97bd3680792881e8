package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kura/internal/assistant"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type createSourceRequest struct {
	ID       string            `json:"id,omitempty" validate:"omitempty,uuid"`
	Text     string            `json:"text" validate:"required"`
	Filename string            `json:"filename,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type askRequest struct {
	Question string `json:"question" validate:"required"`
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("create source request", zap.String("id", req.ID), zap.Int("text_len", len(req.Text)))
	src, err := s.deps.Indexer.Ingest(r.Context(), &models.SourceInput{
		ID:       req.ID,
		Text:     req.Text,
		Filename: req.Filename,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.fail(w, "ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, src)
}

func (s *Server) handleUploadSource(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.fail(w, "upload failed", &models.ValidationError{Field: "file", Reason: err.Error()})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, "upload failed", &models.ValidationError{Field: "file", Reason: err.Error()})
		return
	}
	meta := map[string]string{}
	for key, values := range r.MultipartForm.Value {
		if key != "file" && len(values) > 0 {
			meta[key] = values[0]
		}
	}
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	src, err := s.deps.Indexer.IngestBytes(r.Context(), header.Filename, content, meta)
	if err != nil {
		s.fail(w, "upload ingest failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, src)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.fail(w, "list sources failed", &models.ValidationError{Field: "offset", Reason: "must be a non-negative integer"})
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.fail(w, "list sources failed", &models.ValidationError{Field: "limit", Reason: "must be between 1 and 100"})
		return
	}
	ctx := r.Context()
	sources, err := s.deps.Storage.ListSources(ctx, offset, limit)
	if err != nil {
		s.fail(w, "list sources failed", err)
		return
	}
	total, err := s.deps.Storage.CountSources(ctx)
	if err != nil {
		s.fail(w, "count sources failed", err)
		return
	}
	if sources == nil {
		sources = []*models.Source{}
	}
	s.respondJSON(w, http.StatusOK, &models.SourcePage{
		Sources: sources,
		Offset:  offset,
		Limit:   limit,
		Total:   int(total),
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.deps.Storage.GetSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get source failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete source request", zap.String("id", id))
	if err := s.deps.Indexer.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := s.deps.Engine.NewQuery("")
	if !s.decodeBody(w, r, query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.deps.Engine.Search(r.Context(), query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := s.deps.Engine.NewQuery("")
	if !s.decodeBody(w, r, query) {
		return
	}
	result, err := s.deps.Engine.SearchSource(r.Context(), id, query)
	if err != nil {
		s.fail(w, "source search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	answer, err := s.deps.Assistant.Ask(r.Context(), chi.URLParam(r, "id"), req.Question)
	if err != nil {
		s.fail(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Assistant.Summarize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "summarize failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Assistant.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get summary failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sourceCount, err := s.deps.Storage.CountSources(ctx)
	if err != nil {
		s.fail(w, "status: count sources failed", err)
		return
	}
	chunkCount, err := s.deps.Storage.CountChunks(ctx)
	if err != nil {
		s.fail(w, "status: count chunks failed", err)
		return
	}
	resp := map[string]interface{}{
		"sources": sourceCount,
		"chunks":  chunkCount,
	}
	if n, err := s.deps.Vectors.Count(ctx); err == nil {
		resp["vectors"] = n
	} else {
		s.logger.Warn("status: count vectors failed", zap.Error(err))
	}
	if s.deps.Keywords != nil {
		if n, err := s.deps.Keywords.DocCount(); err == nil {
			resp["keyword_documents"] = n
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"vector_provider":      cfg.Vector.Provider,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"tokenizer":            cfg.Chunking.Tokenizer,
		"chunk_size":           cfg.Chunking.ChunkSize,
		"chunk_overlap":        cfg.Chunking.ChunkOverlap,
		"llm_provider":         cfg.LLM.Provider,
		"database_path":        cfg.Storage.DatabasePath,
		"keyword_index_path":   cfg.Storage.KeywordIndexPath,
	}
	if usage, err := storage.DiskUsage(
		cfg.Storage.DatabasePath,
		cfg.Storage.KeywordIndexPath,
		cfg.Storage.VectorSnapshot,
	); err == nil {
		resp["disk_usage"] = usage
	}
	if s.deps.Watch != nil {
		resp["watch_directories"] = s.deps.Watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v and checks its validate tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !s.decodeBody(w, r, v) {
		return false
	}
	if err := models.ValidateStruct(v); err != nil {
		s.fail(w, "invalid request", err)
		return false
	}
	return true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.fail(w, "invalid request", &models.ValidationError{Field: "body", Reason: "invalid JSON"})
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case models.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case models.IsCollaborator(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
