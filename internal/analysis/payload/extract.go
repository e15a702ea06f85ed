// Package payload finds and decodes the structured readiness block a
// dialogue reply may embed between ```json fences.
package payload

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
)

// Kind tags the outcome of Extract.
type Kind int

const (
	// NotReady means the reply is plain conversation.
	NotReady Kind = iota
	// ReadyValid means the reply carries a usable filter and summary.
	ReadyValid
	// ReadyMalformed means a block was found but could not be used.
	ReadyMalformed
)

func (k Kind) String() string {
	switch k {
	case ReadyValid:
		return "ready"
	case ReadyMalformed:
		return "malformed"
	default:
		return "not_ready"
	}
}

// ErrMalformed is carried by ReadyMalformed results.
var ErrMalformed = errors.New("malformed readiness payload")

// Result is the tagged extraction outcome. Text is always safe to show.
type Result struct {
	Kind    Kind
	Text    string
	Summary string
	Filters filter.Raw
	Err     error
}

type envelope struct {
	Ready   bool        `json:"ready"`
	Filters *filter.Raw `json:"filters"`
	Summary string      `json:"summary"`
}

var (
	fencedBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fenceMarker = regexp.MustCompile("```(?:json)?")
)

// Extract inspects a model reply. It never panics; a broken block degrades
// to a textual turn with the fences stripped.
func Extract(reply string) Result {
	text := Clean(reply)

	match := fencedBlock.FindStringSubmatch(reply)
	if match == nil {
		return Result{Kind: NotReady, Text: text}
	}

	var env envelope
	if err := json.Unmarshal([]byte(match[1]), &env); err != nil {
		return Result{Kind: ReadyMalformed, Text: text, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	if !env.Ready {
		return Result{Kind: NotReady, Text: text}
	}
	if env.Filters == nil {
		return Result{Kind: ReadyMalformed, Text: text, Err: fmt.Errorf("%w: filters missing", ErrMalformed)}
	}

	raw := env.Filters.Normalize()
	if err := ValidateFilters(raw); err != nil {
		return Result{Kind: ReadyMalformed, Text: text, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	summary := strings.TrimSpace(env.Summary)
	if summary == "" {
		return Result{Kind: ReadyMalformed, Text: text, Err: fmt.Errorf("%w: summary missing", ErrMalformed)}
	}

	return Result{Kind: ReadyValid, Text: summary, Summary: summary, Filters: raw}
}

// Clean removes fenced payload blocks and any stray fence markers.
func Clean(reply string) string {
	out := fencedBlock.ReplaceAllString(reply, "")
	out = fenceMarker.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the filter vocabularies
// registered as custom tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(validate, "mood", func(fl validator.FieldLevel) bool {
			return filter.Mood(fl.Field().String()).Valid()
		})
		mustRegister(validate, "viewing_context", func(fl validator.FieldLevel) bool {
			return filter.Context(fl.Field().String()).Valid()
		})
		mustRegister(validate, "time_preference", func(fl validator.FieldLevel) bool {
			return filter.TimePreference(fl.Field().String()).Valid()
		})
		mustRegister(validate, "year_range", func(fl validator.FieldLevel) bool {
			years, ok := fl.Field().Interface().([]int)
			return ok && len(years) == 2 && years[0] <= years[1]
		})
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// ValidateFilters checks raw against the enumerated vocabularies and numeric
// bounds. Callers should Normalize first.
func ValidateFilters(raw filter.Raw) error {
	err := Validator().Struct(raw)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
