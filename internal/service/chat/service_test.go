package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	speechmodel "github.com/zhouzirui/kiddybot/internal/model/speech"
	chat "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/internal/service/speech"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ []*schema.Message, _ func(string)) string {
	return "Great question!"
}

func newService(t *testing.T, deps chat.FactoryDeps) *chat.Service {
	t.Helper()
	if deps.Completer == nil {
		deps.Completer = echoCompleter{}
	}
	store := persona.NewMemoryStore(persona.Seed())
	return chat.NewService(store, chat.NewFactory(deps))
}

func TestServiceGetSession(t *testing.T) {
	svc := newService(t, chat.FactoryDeps{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, persona.DefaultID, got.PersonaID)
}

func TestServiceUnknownPersona(t *testing.T) {
	svc := newService(t, chat.FactoryDeps{})

	_, err := svc.CreateSession(context.Background(), "iron-man")
	assert.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(t, chat.FactoryDeps{})
	ctx := context.Background()

	_, err := svc.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.Controller(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, "missing"), chat.ErrSessionNotFound)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newService(t, chat.FactoryDeps{})
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	ctrl, err := svc.Controller(ctx, first.ID)
	require.NoError(t, err)
	_, err = ctrl.HandleUtterance(ctx, "hi", nil)
	require.NoError(t, err)

	history, err := svc.LoadTranscript(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = svc.LoadTranscript(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	sessions := svc.ListSessions(ctx)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)

	require.NoError(t, svc.DeleteSession(ctx, first.ID))
	assert.Len(t, svc.ListSessions(ctx), 1)
}

func TestServiceTranscriptStartsWithWelcome(t *testing.T) {
	svc := newService(t, chat.FactoryDeps{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	conv, err := svc.Conversation(ctx, session.ID)
	require.NoError(t, err)

	assert.Contains(t, string(conv.Transcript.Bytes()), "Welcome to GabbyGarden!")

	_, err = conv.Controller.HandleUtterance(ctx, "hello", nil)
	require.NoError(t, err)
	out := string(conv.Transcript.Bytes())
	assert.Contains(t, out, "Welcome to GabbyGarden!")
	assert.Contains(t, out, "Great question!")
}

func TestServicePerSessionAudioFile(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	audioDir := t.TempDir()
	synth := speech.NewSynthesizer(&speechmodel.SpeechConfig{
		APIKey:   "key",
		BaseURL:  server.URL,
		VoiceID:  "default-voice",
		ModelID:  "eleven_multilingual_v2",
		Settings: speechmodel.DefaultVoiceSettings(),
	}, server.Client())

	svc := newService(t, chat.FactoryDeps{Synthesizer: synth, AudioDir: audioDir})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	ctrl, err := svc.Controller(ctx, session.ID)
	require.NoError(t, err)

	exchange, err := ctrl.HandleUtterance(ctx, "sing a song", nil)
	require.NoError(t, err)
	require.True(t, exchange.HasAudio)

	want := filepath.Join(audioDir, session.ID+".mp3")
	assert.Equal(t, want, exchange.AudioPath)
	assert.Equal(t, "/v1/text-to-speech/lbw0VLXRBdYeEtY086mt/stream", gotPath)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "ID3-audio", string(data))
}

func TestServiceDeleteSessionRemovesAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	audioDir := t.TempDir()
	synth := speech.NewSynthesizer(&speechmodel.SpeechConfig{
		APIKey:   "key",
		BaseURL:  server.URL,
		VoiceID:  "default-voice",
		ModelID:  "eleven_multilingual_v2",
		Settings: speechmodel.DefaultVoiceSettings(),
	}, server.Client())

	svc := newService(t, chat.FactoryDeps{Synthesizer: synth, AudioDir: audioDir})
	ctx := context.Background()

	spoken, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	silent, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	ctrl, err := svc.Controller(ctx, spoken.ID)
	require.NoError(t, err)
	exchange, err := ctrl.HandleUtterance(ctx, "tell me a joke", nil)
	require.NoError(t, err)
	require.True(t, exchange.HasAudio)

	require.NoError(t, svc.DeleteSession(ctx, spoken.ID))
	_, err = os.Stat(exchange.AudioPath)
	assert.True(t, os.IsNotExist(err))

	// 从未合成过音频的会话也能正常删除
	require.NoError(t, svc.DeleteSession(ctx, silent.ID))
	assert.ErrorIs(t, svc.DeleteSession(ctx, silent.ID), chat.ErrSessionNotFound)
}
