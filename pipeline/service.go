package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ipushpie/rag-service/monitor"
	"github.com/ipushpie/rag-service/ragflow"
	"github.com/ipushpie/rag-service/source"
)

var defaultParserConfig = map[string]any{"chunk_token_count": 128}

// Fetcher resolves a document reference against its storage backend.
type Fetcher interface {
	Fetch(ctx context.Context, ref source.DocumentRef) (source.FetchedDocument, error)
}

// IngestionClient is the remote service surface the orchestrator drives.
type IngestionClient interface {
	UploadDocument(ctx context.Context, name, content string) (string, error)
	ConfigureChunking(ctx context.Context, docID, method string, parserConfig map[string]any) error
	TriggerIngest(ctx context.Context, docID string) error
	CreateChatAssistant(ctx context.Context, req ragflow.AssistantRequest) (ragflow.AssistantResponse, error)
	CreateChatSession(ctx context.Context, assistantID, name string) (ragflow.SessionResponse, error)
	RequestSummary(ctx context.Context, assistantID, sessionID, documentName string) (ragflow.CompletionResponse, error)
}

// CompletionWaiter blocks until chunking reaches a terminal state.
type CompletionWaiter interface {
	Wait(ctx context.Context, docID string) monitor.Result
}

// Result aggregates everything one monitored run produced. Assistant, session
// and summary fields stay empty when the corresponding step failed or was
// skipped; that never fails the run once ingestion was triggered.
type Result struct {
	Status      string
	DocumentID  string
	Monitoring  monitor.Result
	AssistantID string
	SessionID   string
	Summary     string
}

// Service composes fetch, upload, trigger, monitoring and summarization into
// the two pipelines exposed at the boundary.
type Service struct {
	fetcher     Fetcher
	client      IngestionClient
	waiter      CompletionWaiter
	datasetID   string
	chunkMethod string
	logger      *log.Logger
}

func NewService(fetcher Fetcher, client IngestionClient, waiter CompletionWaiter, datasetID, chunkMethod string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		fetcher:     fetcher,
		client:      client,
		waiter:      waiter,
		datasetID:   datasetID,
		chunkMethod: chunkMethod,
		logger:      logger,
	}
}

// Process runs the fire-and-forget pipeline: fetch, upload, trigger. The
// caller tracks completion out of band using the returned remote id.
func (s *Service) Process(ctx context.Context, ref source.DocumentRef) (string, error) {
	docID, _, err := s.ingest(ctx, ref)
	if err != nil {
		return "", err
	}
	return docID, nil
}

// ProcessWithMonitoring runs the full pipeline and, when chunking completes,
// provisions a chat assistant and session to request a document summary.
func (s *Service) ProcessWithMonitoring(ctx context.Context, ref source.DocumentRef) (Result, error) {
	docID, docName, err := s.ingestConfigured(ctx, ref)
	if err != nil {
		return Result{}, err
	}

	result := Result{Status: "success", DocumentID: docID}
	result.Monitoring = s.waiter.Wait(ctx, docID)

	if result.Monitoring.Outcome != monitor.OutcomeCompleted {
		s.logger.Printf("document %s: monitoring ended with %s, skipping summarization", docID, result.Monitoring.Outcome)
		return result, nil
	}

	s.summarize(ctx, docName, &result)
	return result, nil
}

// Summarize provisions a session on an existing assistant and requests a
// summary for the named document.
func (s *Service) Summarize(ctx context.Context, assistantID, documentName string) (sessionID, summary string, err error) {
	sessionName := "summary-" + uuid.New().String()

	session, err := s.client.CreateChatSession(ctx, assistantID, sessionName)
	if err != nil {
		return "", "", fmt.Errorf("create session: %w", err)
	}
	if session.Data.ID == "" {
		return "", "", fmt.Errorf("session create returned code %d: %s", session.Code, session.Message)
	}

	completion, err := s.client.RequestSummary(ctx, assistantID, session.Data.ID, documentName)
	if err != nil {
		return session.Data.ID, "", fmt.Errorf("request summary: %w", err)
	}
	if completion.Code != ragflow.CodeOK {
		return session.Data.ID, "", fmt.Errorf("summary returned code %d: %s", completion.Code, completion.Message)
	}

	return session.Data.ID, completion.Data.Answer, nil
}

func (s *Service) ingest(ctx context.Context, ref source.DocumentRef) (docID, docName string, err error) {
	doc, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", "", fmt.Errorf("fetch document %s: %w", ref.ID, err)
	}
	s.logger.Printf("fetched document %s for id %s", doc.Name, ref.ID)

	docID, err = s.client.UploadDocument(ctx, doc.Name, doc.Content)
	if err != nil {
		return "", "", fmt.Errorf("upload document %s: %w", ref.ID, err)
	}
	s.logger.Printf("document %s uploaded as %s", ref.ID, docID)

	if err := s.client.TriggerIngest(ctx, docID); err != nil {
		return "", "", fmt.Errorf("trigger ingest for %s: %w", docID, err)
	}
	s.logger.Printf("chunking triggered for %s", docID)

	return docID, doc.Name, nil
}

// ingestConfigured is ingest plus a best-effort chunking-parameter update
// between upload and trigger.
func (s *Service) ingestConfigured(ctx context.Context, ref source.DocumentRef) (docID, docName string, err error) {
	doc, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", "", fmt.Errorf("fetch document %s: %w", ref.ID, err)
	}
	s.logger.Printf("fetched document %s for id %s", doc.Name, ref.ID)

	docID, err = s.client.UploadDocument(ctx, doc.Name, doc.Content)
	if err != nil {
		return "", "", fmt.Errorf("upload document %s: %w", ref.ID, err)
	}
	s.logger.Printf("document %s uploaded as %s", ref.ID, docID)

	if err := s.client.ConfigureChunking(ctx, docID, s.chunkMethod, defaultParserConfig); err != nil {
		s.logger.Printf("chunk method update for %s failed, continuing with dataset defaults: %v", docID, err)
	}

	if err := s.client.TriggerIngest(ctx, docID); err != nil {
		return "", "", fmt.Errorf("trigger ingest for %s: %w", docID, err)
	}
	s.logger.Printf("chunking triggered for %s", docID)

	return docID, doc.Name, nil
}

// summarize fills the assistant/session/summary fields of result best-effort.
// An application-level assistant failure that still carries a usable id is
// treated as partial success and the session is created against that id.
func (s *Service) summarize(ctx context.Context, docName string, result *Result) {
	assistant, err := s.client.CreateChatAssistant(ctx, ragflow.AssistantRequest{
		Name:       fmt.Sprintf("assistant-%s", docName),
		DatasetIDs: []string{s.datasetID},
	})
	if err != nil {
		s.logger.Printf("document %s: assistant creation failed: %v", result.DocumentID, err)
		return
	}
	if assistant.Data.ID == "" {
		s.logger.Printf("document %s: assistant creation returned code %d without an id: %s", result.DocumentID, assistant.Code, assistant.Message)
		return
	}
	if assistant.Code != ragflow.CodeOK {
		s.logger.Printf("document %s: assistant creation returned code %d but carries id %s, continuing", result.DocumentID, assistant.Code, assistant.Data.ID)
	}
	result.AssistantID = assistant.Data.ID

	sessionID, summary, err := s.Summarize(ctx, assistant.Data.ID, docName)
	if err != nil {
		s.logger.Printf("document %s: summarization incomplete: %v", result.DocumentID, err)
	}
	result.SessionID = sessionID
	result.Summary = summary
}
