package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"voice-rag/internal/config"
)

// Generator produces a completion for a prompt. The RAG pipeline and the
// summarizer both consume this; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps a langchaingo chat model with fixed generation settings.
// Temperature, top-p and max tokens come from config so tests and
// reproducible runs can pin them (temperature 0 for determinism).
type Client struct {
	llm         llms.Model
	temperature float64
	topP        float64
	maxTokens   int
}

func NewClient(cfg *config.LLMConfig, gen *config.RAGConfig) (*Client, error) {
	var llm llms.Model
	var err error
	switch cfg.Provider {
	case "", "openai":
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("error initializing LLM: %v", err)
	}
	return &Client{
		llm:         llm,
		temperature: gen.Temperature,
		topP:        gen.TopP,
		maxTokens:   gen.MaxTokens,
	}, nil
}

func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	}
	if c.topP > 0 {
		opts = append(opts, llms.WithTopP(c.topP))
	}

	res, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		log.Warn().Msg("LLM returned no choices")
		return "", fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
