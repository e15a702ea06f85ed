package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
)

func TestSystemPromptListsVocabulary(t *testing.T) {
	prompt := NewPromptBuilder(nil).SystemPrompt()

	for _, m := range filter.Moods() {
		assert.Contains(t, prompt, string(m))
	}
	for _, c := range filter.Contexts() {
		assert.Contains(t, prompt, string(c))
	}
	assert.Contains(t, prompt, "Sci-Fi")
	assert.Contains(t, prompt, "```json")
	assert.Contains(t, prompt, `"ready": true`)
}

func TestBuildHistoryMessagesKeepsRecentTurns(t *testing.T) {
	var transcript []chat.Message
	for i := 0; i < historyLimit+6; i++ {
		sender := chat.SenderUser
		if i%2 == 1 {
			sender = chat.SenderAssistant
		}
		transcript = append(transcript, chat.Message{Sender: sender, Content: strings.Repeat("x", i+1)})
	}

	history := buildHistoryMessages(transcript)

	require.Len(t, history, historyLimit)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, transcript[len(transcript)-1].Content, history[len(history)-1].Content)
	assert.Nil(t, buildHistoryMessages(nil))
}

func TestBuildMessageContentOrder(t *testing.T) {
	conv := chat.Conversation{
		Preamble: "be nice",
		History: []chat.Message{
			{Sender: chat.SenderAssistant, Content: Greeting},
			{Sender: chat.SenderUser, Content: "tired"},
		},
	}

	msgs := buildMessageContent(conv, "with friends")

	require.Len(t, msgs, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[3].Role)
	assert.Equal(t, llms.TextContent{Text: "with friends"}, msgs[3].Parts[0])
}

type stubLLM struct {
	reply string
	err   error
	got   []llms.MessageContent
}

func (s *stubLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	s.got = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.reply}}}, nil
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestLangChainServiceConverse(t *testing.T) {
	stub := &stubLLM{reply: "How was your day?"}
	svc := newLangChainWithModel(stub, config.AIConfig{Provider: config.ProviderOpenAI, Temperature: filter.Float64(0.3)})

	reply, err := svc.Converse(context.Background(), chat.Conversation{Preamble: "p"}, "hi")

	require.NoError(t, err)
	assert.Equal(t, "How was your day?", reply)
	assert.Len(t, stub.got, 2)
	assert.Equal(t, config.ProviderOpenAI, svc.Name())
}

func TestLangChainServiceNoChoices(t *testing.T) {
	svc := newLangChainWithModel(emptyLLM{}, config.AIConfig{Provider: config.ProviderOllama})

	_, err := svc.Converse(context.Background(), chat.Conversation{}, "hi")
	assert.Error(t, err)
}

type emptyLLM struct{}

func (emptyLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyLLM) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}

type flakyConverser struct {
	calls int
	err   error
}

func (f *flakyConverser) Converse(context.Context, chat.Conversation, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyConverser) Name() string { return "fake" }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyConverser{err: errors.New("quota exceeded")}
	b := NewBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.Converse(ctx, chat.Conversation{}, "hi")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Converse(ctx, chat.Conversation{}, "hi")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, inner.calls)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &flakyConverser{err: context.Canceled}
	b := NewBreaker(inner)

	for i := 0; i < 10; i++ {
		_, _ = b.Converse(context.Background(), chat.Conversation{}, "hi")
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesReplies(t *testing.T) {
	b := NewBreaker(&flakyConverser{})

	reply, err := b.Converse(context.Background(), chat.Conversation{}, "hi")

	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, "fake", b.Name())
}
