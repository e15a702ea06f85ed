package chat

import "time"

// Sender values used in transcripts.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message persists individual turns for audit/debug. Content is what the
// user sees; Raw keeps the unmodified model reply when it differs.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Raw       string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// PromptText is the text replayed to the dialogue model.
func (m Message) PromptText() string {
	if m.Raw != "" {
		return m.Raw
	}
	return m.Content
}

// Conversation is everything the dialogue model needs to continue a session:
// the fixed instruction preamble plus the transcript so far.
type Conversation struct {
	Preamble string
	History  []Message
}
