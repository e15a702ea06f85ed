package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
	chatservice "github.com/zhouzirui/moodreel/backend/internal/service/chat"
)

type replyFunc func(text string) (string, error)

func (f replyFunc) Converse(_ context.Context, _ chat.Conversation, text string) (string, error) {
	return f(text)
}

type oneMovie struct{}

func (oneMovie) Recommend(context.Context, filter.Enhanced) []movie.Scored {
	return []movie.Scored{{Movie: movie.Movie{ID: "coco", Title: "Coco"}}}
}

var eventLine = regexp.MustCompile(`(?m)^event: (\w+)$`)

func streamEvents(t *testing.T, reply replyFunc, query string) ([]string, string) {
	t.Helper()
	chatSvc := chatservice.NewService(reply, chatservice.Options{})
	r := chi.NewRouter()
	New(chatSvc, oneMovie{}).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/stream/s-1"+query, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var events []string
	for _, m := range eventLine.FindAllStringSubmatch(resp.Body.String(), -1) {
		events = append(events, m[1])
	}
	return events, resp.Body.String()
}

func TestStreamPlainTurn(t *testing.T) {
	events, body := streamEvents(t, func(string) (string, error) { return "What are you in the mood for?", nil }, "?message=hi")

	want := []string{EventStart, EventMessage, EventEnd}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	if !strings.Contains(body, "What are you in the mood for?") {
		t.Fatalf("reply missing from stream: %s", body)
	}
}

func TestStreamReadyTurn(t *testing.T) {
	reply := "```json\n{\"ready\": true, \"summary\": \"Feel-good night\", \"filters\": {\"mood\": \"happy\"}}\n```"
	events, body := streamEvents(t, func(string) (string, error) { return reply, nil }, "?message=great+day")

	want := []string{EventStart, EventMessage, EventFilters, EventMovies, EventEnd}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	if strings.Contains(body, "```") {
		t.Fatalf("fence leaked into the stream: %s", body)
	}
	if !strings.Contains(body, `"coco"`) {
		t.Fatalf("movies missing from stream: %s", body)
	}
}

func TestStreamDialogueFailure(t *testing.T) {
	events, _ := streamEvents(t, func(string) (string, error) { return "", errors.New("boom") }, "?message=hi")

	want := []string{EventStart, EventError}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, events)
	}
}

func TestStreamRequiresMessage(t *testing.T) {
	chatSvc := chatservice.NewService(nil, chatservice.Options{})
	r := chi.NewRouter()
	New(chatSvc, oneMovie{}).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/s-1", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
