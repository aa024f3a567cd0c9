package speech

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatservice "github.com/zhouzirui/kiddybot/internal/service/chat"
)

func boolPtr(v bool) *bool { return &v }

type wsCompleter struct{}

func (wsCompleter) Complete(_ context.Context, _ []*schema.Message, onDelta func(string)) string {
	onDelta("Hi ")
	onDelta("there!")
	return "Hi there!"
}

func TestApplyConfigUpdatesState(t *testing.T) {
	seeds := persona.Seed()
	state := newConnectionState("session", &seeds[0], nil)
	handler := &WebSocketHandler{personaStore: persona.NewMemoryStore(seeds)}

	handler.applyConfig(state, ConfigMessage{TTSEnabled: boolPtr(false)})
	assert.False(t, state.ttsEnabled)
	assert.True(t, state.inlineAudio)

	handler.applyConfig(state, ConfigMessage{InlineAudio: boolPtr(false)})
	assert.False(t, state.ttsEnabled)
	assert.False(t, state.inlineAudio)
}

func TestWebSocketTextExchange(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, chatservice.NewFactory(chatservice.FactoryDeps{Completer: wsCompleter{}}))
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, store).RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	read := func() outgoingMessage {
		var msg outgoingMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	kind := func(msg outgoingMessage) string {
		data, ok := msg.Data.(map[string]any)
		require.True(t, ok)
		return data["type"].(string)
	}

	assert.Equal(t, "connected", kind(read()))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "text",
		"data": map[string]any{"text": "hello Gab", "isFinal": true},
	}))

	var kinds []string
	for len(kinds) < 5 {
		msg := read()
		require.Equal(t, "result", msg.Type)
		kinds = append(kinds, kind(msg))
	}
	assert.Equal(t, []string{"user", "ai_delta", "ai_delta", "ai", "tts"}, kinds)

	history, err := chatSvc.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	msg := read()
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketUnknownSession(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, chatservice.NewFactory(chatservice.FactoryDeps{Completer: wsCompleter{}}))

	r := chi.NewRouter()
	NewWebSocketHandler(chatSvc, store).RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

type slowCompleter struct{ delay time.Duration }

func (c slowCompleter) Complete(_ context.Context, _ []*schema.Message, _ func(string)) string {
	time.Sleep(c.delay)
	return "Sorry for the wait!"
}

func TestWebSocketSurvivesExchangeLongerThanReadWait(t *testing.T) {
	store := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatservice.NewService(store, chatservice.NewFactory(chatservice.FactoryDeps{
		Completer: slowCompleter{delay: 300 * time.Millisecond},
	}))
	session, err := chatSvc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	handler := NewWebSocketHandler(chatSvc, store)
	handler.readWait = 100 * time.Millisecond
	handler.pingPeriod = time.Hour

	r := chi.NewRouter()
	handler.RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + session.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	waitFor := func(want string) {
		for {
			var msg outgoingMessage
			require.NoError(t, conn.ReadJSON(&msg))
			require.Equal(t, "result", msg.Type)
			data := msg.Data.(map[string]any)
			if data["type"] == want {
				return
			}
		}
	}

	waitFor("connected")
	for _, text := range []string{"first question", "second question"} {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"type": "text",
			"data": map[string]any{"text": text},
		}))
		waitFor("tts")
	}

	history, err := chatSvc.LoadTranscript(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}
