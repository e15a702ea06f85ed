package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
)

// historyLimit bounds how many transcript turns are replayed to the model.
const historyLimit = 20

// Service drives the Ark chat model through an eino chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    zerolog.Logger
}

// NewService creates the Ark-backed dialogue capability.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newServiceWithModel(ctx, chatModel, cfg)
}

func newServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
		logger:    logging.Component("ai"),
	}, nil
}

// Name identifies the provider in logs and metrics.
func (s *Service) Name() string {
	return config.ProviderArk
}

// Converse sends text with the running conversation and returns the reply text.
func (s *Service) Converse(ctx context.Context, conv chat.Conversation, text string) (string, error) {
	started := time.Now()
	defer metrics.ObserveDialogue(s.Name(), started)

	response, err := s.chain.Invoke(ctx, buildChainInput(conv, text))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("empty response from chat model")
	}

	s.logger.Debug().
		Int("history", len(conv.History)).
		Int("length", len(response.Content)).
		Dur("elapsed", time.Since(started)).
		Msg("generated reply")
	return response.Content, nil
}

func buildChainInput(conv chat.Conversation, text string) map[string]any {
	return map[string]any{
		"system":  conv.Preamble,
		"history": buildHistoryMessages(conv.History),
		"query":   text,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.PromptText()))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.PromptText(), nil))
		}
	}

	return history
}
