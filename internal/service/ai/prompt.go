package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
)

// Greeting opens every session. It is returned to the client without a model call.
const Greeting = "Hey there! How are you feeling tonight? I'd love to find you the perfect movie to match your mood."

// PromptBuilder renders the instruction preamble from the rule catalog so the
// vocabularies offered to the model always match what the overlay understands.
type PromptBuilder struct {
	catalog *rules.Catalog
}

// NewPromptBuilder returns a builder over cat, or the default catalog when nil.
func NewPromptBuilder(cat *rules.Catalog) *PromptBuilder {
	if cat == nil {
		cat = rules.Default()
	}
	return &PromptBuilder{catalog: cat}
}

// SystemPrompt builds the fixed preamble: persona, conversation style,
// output schema and the valid mood, context and genre labels.
func (b *PromptBuilder) SystemPrompt() string {
	var sb strings.Builder

	sb.WriteString(`You are a warm, perceptive movie mood expert. Your job is to figure out how the user feels and who they are watching with, then hand off a structured filter so the right movies can be found.

MOODS YOU CAN DETECT:
`)
	for _, m := range filter.Moods() {
		if rule, ok := b.catalog.Mood(m); ok {
			fmt.Fprintf(&sb, "- %s: %s\n", m, rule.Description)
		}
	}

	sb.WriteString(`
CONVERSATION STYLE:
- Sound like a friend, not a form. Use contractions and casual language.
- Keep every reply to one or two short sentences.
- Reflect back what you hear about their mood.
- Never ask about genres directly; infer them from the mood.

RULES:
- Mood comes first, genre second.
- Ask at most two or three questions, then commit.
- The mood field is REQUIRED in your output.

When you are ready (usually after two or three exchanges), reply with a short line followed by exactly this block:

` + "```json" + `
{
  "ready": true,
  "filters": {
    "mood": "stressed",
    "context": "alone",
    "genres": ["Comedy", "Animation"],
    "excludeGenres": ["Horror", "War"],
    "minRating": 7.0,
    "maxRuntime": 120,
    "timePreference": "short"
  },
  "summary": "Sounds like you need something light to unwind, let me find some feel-good comedies for you!"
}
` + "```" + `

REQUIRED: mood, summary
OPTIONAL: context, genres, excludeGenres, minRating, maxRuntime, minRuntime, timePreference, yearRange ([from, to])

`)
	fmt.Fprintf(&sb, "Valid moods: %s\n\n", joinLabels(filter.Moods()))
	fmt.Fprintf(&sb, "Valid contexts: %s\n\n", joinLabels(filter.Contexts()))
	fmt.Fprintf(&sb, "Valid time preferences: %s\n\n", joinLabels(filter.TimePreferences()))
	fmt.Fprintf(&sb, "Valid genres: %s", strings.Join(filter.Genres(), ", "))

	return sb.String()
}

func joinLabels[T ~string](labels []T) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}
