package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
)

// LangChainService talks to OpenAI-compatible or Ollama models via langchaingo.
type LangChainService struct {
	llm      llms.Model
	provider string
	cfg      config.AIConfig
	logger   zerolog.Logger
}

// NewLangChainService builds the model selected by cfg.Provider.
func NewLangChainService(cfg config.AIConfig) (*LangChainService, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return newLangChainWithModel(model, cfg), nil
}

func newLangChainWithModel(model llms.Model, cfg config.AIConfig) *LangChainService {
	return &LangChainService{
		llm:      model,
		provider: cfg.Provider,
		cfg:      cfg,
		logger:   logging.Component("ai"),
	}
}

// Name identifies the provider in logs and metrics.
func (s *LangChainService) Name() string {
	return s.provider
}

// Converse sends text with the running conversation and returns the reply text.
func (s *LangChainService) Converse(ctx context.Context, conv chat.Conversation, text string) (string, error) {
	started := time.Now()
	defer metrics.ObserveDialogue(s.Name(), started)

	response, err := s.llm.GenerateContent(ctx, buildMessageContent(conv, text), s.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	reply := response.Choices[0].Content
	s.logger.Debug().
		Str("provider", s.provider).
		Int("length", len(reply)).
		Dur("elapsed", time.Since(started)).
		Msg("generated reply")
	return reply, nil
}

func (s *LangChainService) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if s.cfg.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*s.cfg.Temperature))
	}
	if s.cfg.TopP != nil {
		opts = append(opts, llms.WithTopP(*s.cfg.TopP))
	}
	if s.cfg.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*s.cfg.MaxTokens))
	}
	return opts
}

func buildMessageContent(conv chat.Conversation, text string) []llms.MessageContent {
	history := conv.History
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]llms.MessageContent, 0, len(history)+2)
	if conv.Preamble != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, conv.Preamble))
	}
	for _, msg := range history {
		switch msg.Sender {
		case chat.SenderUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.PromptText()))
		case chat.SenderAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.PromptText()))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))
	return messages
}
