// Package recap turns a speaker-labeled transcript into a narrative session
// recap via an OpenAI-compatible chat-completions endpoint.
package recap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is the input to a completion call.
type CompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// CompletionResponse is the output of a completion call.
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Provider is the interface recap LLM backends implement.
type Provider interface {
	// Name returns the backend name.
	Name() string
	// IsAvailable checks if the backend is reachable.
	IsAvailable(ctx context.Context) bool
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

const (
	// ChatProviderName is the registered name for the chat-completions backend.
	ChatProviderName = "chat"

	defaultChatTimeout = 5 * time.Minute
)

// ChatConfig holds configuration for the chat-completions backend.
type ChatConfig struct {
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	APIKey  string        `json:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// ChatProvider implements Provider against any OpenAI-compatible
// /v1/chat/completions endpoint.
type ChatProvider struct {
	cfg    ChatConfig
	client *http.Client
}

// NewChatProvider creates a new chat-completions backend.
func NewChatProvider(cfg ChatConfig) *ChatProvider {
	if cfg.Model == "" {
		cfg.Model = "default"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChatTimeout
	}
	return &ChatProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the backend name.
func (p *ChatProvider) Name() string { return ChatProviderName }

// IsAvailable checks if the endpoint is reachable.
func (p *ChatProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", http.NoBody)
	if err != nil {
		return false
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Complete sends a chat-completions request and returns the response text.
func (p *ChatProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: req.Messages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("completion error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	return &CompletionResponse{
		Content: result.Choices[0].Message.Content,
		Model:   result.Model,
	}, nil
}

// --- internal chat-completions API types ---

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}
