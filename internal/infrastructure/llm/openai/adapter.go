package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	oai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/config"
)

var _ output.LLMPort = (*Adapter)(nil)

// Adapter talks to any OpenAI-compatible chat completions endpoint.
type Adapter struct {
	client  *oai.Client
	limiter *rate.Limiter
	logger  output.LoggerPort
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	var requestData map[string]any
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &requestData)
	}

	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"body", requestData,
	)

	resp, err := t.base.RoundTrip(req)
	if resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
		)
	}
	return resp, err
}

func NewAdapter(cfg config.LLMConfig, logger output.LoggerPort) *Adapter {
	clientCfg := oai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.LogRequests {
		clientCfg.HTTPClient = &http.Client{
			Transport: &loggingTransport{base: http.DefaultTransport, logger: logger},
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Adapter{
		client:  oai.NewClientWithConfig(clientCfg),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	a.logger.Debug("Creating chat completion",
		"model", req.Model,
		"messagesCount", len(req.Messages),
		"maxTokens", req.MaxTokens,
		"temperature", req.Temperature,
	)

	resp, err := a.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    convertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	a.logger.Debug("Chat completion received",
		"finishReason", resp.Choices[0].FinishReason,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
	)

	return &output.ChatResponse{
		Message: entity.AssistantMessage(resp.Choices[0].Message.Content),
	}, nil
}

func convertMessages(messages []entity.Message) []oai.ChatCompletionMessage {
	result := make([]oai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, oai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}
