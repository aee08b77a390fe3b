// Package llm provides the optional language-model capabilities: text
// generation for highlight explanations and embeddings for semantic
// similarity. The engine is fully functional with neither configured.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider generates text from a prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// Embedder produces embedding vectors for texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// OllamaClient talks to a local Ollama instance for both generation and
// embeddings.
type OllamaClient struct {
	Model      string
	EmbedModel string
	BaseURL    string
	client     *http.Client
}

// NewOllamaClient creates a client; empty arguments get sensible defaults.
func NewOllamaClient(model, embedModel, baseURL string) *OllamaClient {
	if model == "" {
		model = "qwen2.5:7b"
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		Model:      model,
		EmbedModel: embedModel,
		BaseURL:    baseURL,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured reports whether the Ollama endpoint answers.
func (o *OllamaClient) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate sends a chat prompt and returns the model's reply text.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":  o.Model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.3,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := o.post(ctx, "/api/chat", payload, &result); err != nil {
		return "", err
	}
	return result.Message.Content, nil
}

// Embed returns one embedding vector per input text.
func (o *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	payload := map[string]any{
		"model": o.EmbedModel,
		"input": texts,
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := o.post(ctx, "/api/embed", payload, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

func (o *OllamaClient) post(ctx context.Context, path string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
