package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatservice "github.com/zhouzirui/kiddybot/internal/service/chat"
)

type deltaCompleter struct{}

func (deltaCompleter) Complete(_ context.Context, _ []*schema.Message, onDelta func(string)) string {
	for _, d := range []string{"Once ", "upon ", "a time"} {
		if onDelta != nil {
			onDelta(d)
		}
	}
	return "Once upon a time"
}

func setup(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, chatservice.NewFactory(chatservice.FactoryDeps{Completer: deltaCompleter{}}))

	r := chi.NewRouter()
	New(chatSvc, store).RegisterRoutes(r)
	return r, chatSvc
}

func readEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamResponse
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStreamEmitsEventsInOrder(t *testing.T) {
	r, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+session.ID+"?message=tell+me+a+story", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/event-stream", resp.Header().Get("Content-Type"))

	events := readEvents(t, resp.Body.String())
	kinds := make([]string, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Event)
	}
	assert.Equal(t, []string{"start", "delta", "delta", "delta", "message", "end"}, kinds)
	assert.Equal(t, "Gab", events[0].Content)
	assert.Equal(t, "Once upon a time", events[4].Content)
	assert.True(t, events[5].Finished)

	history, err := chatSvc.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tell me a story", history[0].Content)
}

func TestStreamRequiresMessage(t *testing.T) {
	r, chatSvc := setup(t)
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/"+session.ID, nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStreamUnknownSession(t *testing.T) {
	r, _ := setup(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stream/missing?message=hi", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
