package output

import (
	"context"

	"github.com/rpw1134/web-automation-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	Messages    []entity.Message
	Model       string
	MaxTokens   int
	Temperature float32
}

type ChatResponse struct {
	Message entity.Message
}
