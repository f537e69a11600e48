package llmrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meetinglens/transcriptd/internal/platform/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPProvider talks to any OpenAI-chat-completion-compatible REST
// endpoint: a local llama.cpp/Ollama server or a hosted API, §4.9/§6.
// It is grounded on the corpus's OpenAI REST client shape (request
// struct, bearer auth, JSON response with choices[0].message.content).
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// HTTPProviderConfig configures one registered backend, §6
// (llm.providers[*]).
type HTTPProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultChatTimeout is §5's per-provider LLM request budget.
const DefaultChatTimeout = 60 * time.Second

// NewHTTPProvider constructs an HTTPProvider from cfg.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}
	client := httpx.NewClient(timeout)
	client.Transport = otelhttp.NewTransport(client.Transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "llmrouter.chat_completion " + cfg.Name
		}),
	)

	return &HTTPProvider{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: client,
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *HTTPProvider) Chat(ctx context.Context, messages []Message, params ChatParams) (ChatResult, error) {
	body := chatRequest{
		Model:       p.model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("llmrouter: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return ChatResult{}, fmt.Errorf("llmrouter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ChatResult{}, p.classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ChatResult{}, &ProviderError{Kind: ErrResponseSchema, Err: fmt.Errorf("read response: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decode below
	case http.StatusTooManyRequests:
		return ChatResult{}, &ProviderError{Kind: ErrRateLimited, Err: fmt.Errorf("rate limited: %s", respBody)}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ChatResult{}, &ProviderError{Kind: ErrInvalidRequest, Err: fmt.Errorf("invalid request: %s", respBody)}
	case http.StatusServiceUnavailable:
		return ChatResult{}, &ProviderError{Kind: ErrServiceUnavailable, Err: fmt.Errorf("service unavailable: %s", respBody)}
	default:
		return ChatResult{}, &ProviderError{Kind: ErrServiceUnavailable, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return ChatResult{}, &ProviderError{Kind: ErrResponseSchema, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return ChatResult{}, &ProviderError{Kind: ErrInvalidRequest, Err: fmt.Errorf("provider error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return ChatResult{}, &ProviderError{Kind: ErrResponseSchema, Err: fmt.Errorf("empty choices in response")}
	}
	return ChatResult{Content: parsed.Choices[0].Message.Content, Model: parsed.Model}, nil
}

func (p *HTTPProvider) ChatSimple(ctx context.Context, prompt string) (string, error) {
	res, err := p.Chat(ctx, []Message{{Role: "user", Content: prompt}}, ChatParams{})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func (p *HTTPProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("llmrouter: build models request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.classify(err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ProviderError{Kind: ErrResponseSchema, Err: err}
	}
	models := make([]string, len(parsed.Data))
	for i, d := range parsed.Data {
		models[i] = d.ID
	}
	return models, nil
}

func (p *HTTPProvider) Health(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := p.ListModels(ctx); err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error()}, err
	}
	return HealthStatus{Healthy: true}, nil
}

func (p *HTTPProvider) classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return &ProviderError{Kind: ErrConnectionRefused, Err: err}
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return &ProviderError{Kind: ErrTimeout, Err: err}
	default:
		return &ProviderError{Kind: ErrServiceUnavailable, Err: err}
	}
}

var _ Provider = (*HTTPProvider)(nil)
