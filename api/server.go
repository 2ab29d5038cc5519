package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/ipushpie/rag-service/config"
	"github.com/ipushpie/rag-service/pipeline"
	"github.com/ipushpie/rag-service/ragflow"
	"github.com/ipushpie/rag-service/source"
)

// Pipeline is the orchestration surface the HTTP boundary drives.
type Pipeline interface {
	Process(ctx context.Context, ref source.DocumentRef) (string, error)
	ProcessWithMonitoring(ctx context.Context, ref source.DocumentRef) (pipeline.Result, error)
	Summarize(ctx context.Context, assistantID, documentName string) (sessionID, summary string, err error)
}

// IngestionAPI covers the remote-service operations exposed directly at the
// boundary, bypassing the pipelines.
type IngestionAPI interface {
	GetProgress(ctx context.Context, docID string) (ragflow.ProgressSnapshot, error)
	CreateChatAssistant(ctx context.Context, req ragflow.AssistantRequest) (ragflow.AssistantResponse, error)
}

// Server exposes HTTP handlers for the document ingestion workflows.
type Server struct {
	cfg     config.Config
	pipe    Pipeline
	rag     IngestionAPI
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type processRequest struct {
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
}

type processResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
}

type progressSnapshot struct {
	Progress float64 `json:"progress"`
	Status   string  `json:"status"`
	Message  string  `json:"message"`
}

type monitoringResult struct {
	Outcome        string            `json:"outcome"`
	Snapshot       *progressSnapshot `json:"snapshot,omitempty"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
}

type monitoredResponse struct {
	Status      string           `json:"status"`
	DocumentID  string           `json:"document_id"`
	Monitoring  monitoringResult `json:"monitoring"`
	AssistantID string           `json:"assistant_id,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
	Summary     string           `json:"summary,omitempty"`
}

type assistantRequest struct {
	Name       string         `json:"name"`
	DatasetIDs []string       `json:"dataset_ids"`
	Avatar     string         `json:"avatar"`
	LLM        map[string]any `json:"llm"`
	Prompt     map[string]any `json:"prompt"`
}

type summarizeRequest struct {
	DocumentName string `json:"document_name"`
}

type summarizeResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

// New constructs a Server that serves the HTTP API using the provided
// orchestration collaborators.
func New(cfg config.Config, pipe Pipeline, rag IngestionAPI, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{cfg: cfg, pipe: pipe, rag: rag, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)
	mux.HandleFunc("/v1/process", s.handleProcess)
	mux.HandleFunc("/v1/process/monitor", s.handleProcessMonitor)
	mux.HandleFunc("/v1/progress/", s.handleProgress)
	mux.HandleFunc("/v1/assistants", s.handleCreateAssistant)
	mux.HandleFunc("/v1/assistants/", s.handleSummarize)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=\"openapi.yaml\"")
	_, _ = w.Write(openAPISpecYAML)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	ref, ok := s.decodeDocumentRef(w, r)
	if !ok {
		return
	}

	docID, err := s.pipe.Process(r.Context(), ref)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, processResponse{Status: "success", DocumentID: docID})
}

func (s *Server) handleProcessMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	ref, ok := s.decodeDocumentRef(w, r)
	if !ok {
		return
	}

	result, err := s.pipe.ProcessWithMonitoring(r.Context(), ref)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, transformResult(result))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	docID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/progress/"), "/")
	if docID == "" || strings.Contains(docID, "/") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("remote document id is required"))
		return
	}

	snapshot, err := s.rag.GetProgress(r.Context(), docID)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, transformSnapshot(&snapshot))
}

func (s *Server) handleCreateAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req assistantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	if len(req.DatasetIDs) == 0 {
		req.DatasetIDs = []string{s.cfg.DatasetID}
	}

	resp, err := s.rag.CreateChatAssistant(r.Context(), ragflow.AssistantRequest{
		Name:       req.Name,
		DatasetIDs: req.DatasetIDs,
		Avatar:     req.Avatar,
		LLM:        req.LLM,
		Prompt:     req.Prompt,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/assistants/")
	assistantID, action, found := strings.Cut(rest, "/")
	if !found || action != "summarize" || assistantID == "" {
		http.NotFound(w, r)
		return
	}

	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req.DocumentName = strings.TrimSpace(req.DocumentName)
	if req.DocumentName == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("document_name is required"))
		return
	}

	sessionID, summary, err := s.pipe.Summarize(r.Context(), assistantID, req.DocumentName)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summarizeResponse{SessionID: sessionID, Summary: summary})
}

// decodeDocumentRef reads and validates the document_id/source pair shared by
// both process endpoints. Validation failures are written to w.
func (s *Server) decodeDocumentRef(w http.ResponseWriter, r *http.Request) (source.DocumentRef, bool) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return source.DocumentRef{}, false
	}

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("document_id is required"))
		return source.DocumentRef{}, false
	}
	if req.Source != source.SourcePostgres && req.Source != source.SourceMinio {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("source %q: %w", req.Source, source.ErrInvalidSource))
		return source.DocumentRef{}, false
	}

	return source.DocumentRef{ID: req.DocumentID, Source: req.Source}, true
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, source.ErrInvalidSource):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, source.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ragflow.ErrUpstream):
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func transformResult(result pipeline.Result) monitoredResponse {
	return monitoredResponse{
		Status:     result.Status,
		DocumentID: result.DocumentID,
		Monitoring: monitoringResult{
			Outcome:        string(result.Monitoring.Outcome),
			Snapshot:       transformSnapshot(result.Monitoring.Snapshot),
			ElapsedSeconds: result.Monitoring.Elapsed.Seconds(),
		},
		AssistantID: result.AssistantID,
		SessionID:   result.SessionID,
		Summary:     result.Summary,
	}
}

func transformSnapshot(snapshot *ragflow.ProgressSnapshot) *progressSnapshot {
	if snapshot == nil {
		return nil
	}

	return &progressSnapshot{
		Progress: snapshot.Progress,
		Status:   snapshot.Status,
		Message:  snapshot.Message,
	}
}
