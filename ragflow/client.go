package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUpstream is returned for a non-success HTTP status or a malformed
// response from the ingestion service.
var ErrUpstream = errors.New("ingestion service error")

// Client is a stateless wrapper around the ingestion service REST API. One
// HTTP request per operation; retry and backoff live in the monitor, not here.
type Client struct {
	baseURL   string
	datasetID string
	apiKey    string
	client    *http.Client
	logger    *log.Logger
}

func NewClient(baseURL, datasetID, apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		datasetID: datasetID,
		apiKey:    apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// UploadDocument sends the document as a multipart file and returns the
// remote document id assigned by the service.
func (c *Client) UploadDocument(ctx context.Context, name, content string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return "", fmt.Errorf("write multipart file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/datasets/%s/documents", c.baseURL, c.datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call upload API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed (%d): %s: %w", resp.StatusCode, strings.TrimSpace(string(data)), ErrUpstream)
	}

	var payload uploadResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", ErrUpstream)
	}
	if len(payload.Data) == 0 || payload.Data[0].ID == "" {
		return "", fmt.Errorf("upload response contains no document id: %w", ErrUpstream)
	}

	return payload.Data[0].ID, nil
}

// ConfigureChunking updates the chunking strategy for an uploaded document.
// Callers may treat failures as non-fatal; some deployments reject updates for
// chunk methods they do not support.
func (c *Client) ConfigureChunking(ctx context.Context, docID, method string, parserConfig map[string]any) error {
	payload := map[string]any{
		"chunk_method":  method,
		"parser_config": parserConfig,
	}

	endpoint := fmt.Sprintf("%s/api/v1/datasets/%s/documents/%s", c.baseURL, c.datasetID, docID)
	resp, err := c.doJSON(ctx, http.MethodPut, endpoint, payload)
	if err != nil {
		return fmt.Errorf("call configure API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("configure chunking failed (%d): %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrUpstream)
	}
	return nil
}

// TriggerIngest starts the chunking pipeline for an uploaded document.
func (c *Client) TriggerIngest(ctx context.Context, docID string) error {
	payload := map[string]any{
		"document_ids": []string{docID},
	}

	endpoint := fmt.Sprintf("%s/api/v1/datasets/%s/chunks", c.baseURL, c.datasetID)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return fmt.Errorf("call chunk API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chunking failed (%d): %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrUpstream)
	}
	return nil
}

// GetProgress queries current chunking progress for a document.
func (c *Client) GetProgress(ctx context.Context, docID string) (ProgressSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/v1/datasets/%s/documents?%s", c.baseURL, c.datasetID, url.Values{
		"id":        {docID},
		"page":      {"1"},
		"page_size": {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProgressSnapshot{}, fmt.Errorf("create progress request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return ProgressSnapshot{}, fmt.Errorf("call progress API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return ProgressSnapshot{}, fmt.Errorf("progress query failed (%d): %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrUpstream)
	}

	var payload progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ProgressSnapshot{}, fmt.Errorf("decode progress response: %w", ErrUpstream)
	}
	if payload.Code != CodeOK {
		return ProgressSnapshot{}, fmt.Errorf("progress query returned code %d: %s: %w", payload.Code, payload.Message, ErrUpstream)
	}
	if len(payload.Data.Docs) == 0 {
		return ProgressSnapshot{}, fmt.Errorf("progress response contains no documents: %w", ErrUpstream)
	}

	doc := payload.Data.Docs[0]
	return ProgressSnapshot{
		Progress: doc.Progress,
		Status:   doc.Run,
		Message:  doc.ProgressMsg,
	}, nil
}

// CreateChatAssistant creates a chat assistant over the configured dataset.
// Well-formed responses are returned as-is, including application-level
// failures; the caller inspects the code. A non-JSON body yields a response
// with CodeMalformed carrying the raw text, still without an error.
func (c *Client) CreateChatAssistant(ctx context.Context, req AssistantRequest) (AssistantResponse, error) {
	payload := map[string]any{
		"name":        req.Name,
		"dataset_ids": req.DatasetIDs,
	}
	if req.Avatar != "" {
		payload["avatar"] = req.Avatar
	}
	if len(req.LLM) > 0 {
		payload["llm"] = req.LLM
	}
	if len(req.Prompt) > 0 {
		payload["prompt"] = req.Prompt
	}

	endpoint := fmt.Sprintf("%s/api/v1/chats", c.baseURL)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return AssistantResponse{}, fmt.Errorf("call chat create API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AssistantResponse{}, fmt.Errorf("read chat create response: %w", err)
	}

	var decoded AssistantResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Printf("chat create returned non-JSON body (%d bytes)", len(body))
		return AssistantResponse{Code: CodeMalformed, Raw: string(body)}, nil
	}
	return decoded, nil
}

// CreateChatSession opens a conversation session on an existing assistant.
// Same non-raising policy for malformed bodies as CreateChatAssistant.
func (c *Client) CreateChatSession(ctx context.Context, assistantID, name string) (SessionResponse, error) {
	payload := map[string]any{
		"name": name,
	}

	endpoint := fmt.Sprintf("%s/api/v1/chats/%s/sessions", c.baseURL, assistantID)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("call session create API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("read session create response: %w", err)
	}

	var decoded SessionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Printf("session create returned non-JSON body (%d bytes)", len(body))
		return SessionResponse{Code: CodeMalformed, Raw: string(body)}, nil
	}
	return decoded, nil
}

// RequestSummary submits a single-shot, non-streaming summary question
// against the ingested document.
func (c *Client) RequestSummary(ctx context.Context, assistantID, sessionID, documentName string) (CompletionResponse, error) {
	question := fmt.Sprintf(
		"Please provide a comprehensive summary of the document '%s'. Include the main topics, key points, and important details.",
		documentName,
	)
	payload := map[string]any{
		"question":   question,
		"stream":     false,
		"session_id": sessionID,
	}

	endpoint := fmt.Sprintf("%s/api/v1/chats/%s/completions", c.baseURL, assistantID)
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("call completions API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read completions response: %w", err)
	}

	var decoded CompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Printf("completions returned non-JSON body (%d bytes)", len(body))
		return CompletionResponse{Code: CodeMalformed, Raw: string(body)}, nil
	}
	return decoded, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.client.Do(req)
}
