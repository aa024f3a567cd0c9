package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeechService struct {
	enabled bool
	audio   []byte
	err     error
	texts   []string
}

func (f *fakeSpeechService) Enabled() bool { return f.enabled }

func (f *fakeSpeechService) Stream(_ context.Context, text string, w io.Writer) (int64, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write(f.audio)
	return int64(n), err
}

func newRouter(svc SpeechService) *chi.Mux {
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r, nil, nil)
	return r
}

func postSynthesize(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	svc := &fakeSpeechService{enabled: true, audio: []byte("mpeg")}
	resp := postSynthesize(newRouter(svc), `{"text":"Hello friend"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "audio/mpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, "mpeg", resp.Body.String())
	assert.Equal(t, []string{"Hello friend"}, svc.texts)
}

func TestSynthesizeValidation(t *testing.T) {
	svc := &fakeSpeechService{enabled: true}
	r := newRouter(svc)

	assert.Equal(t, http.StatusBadRequest, postSynthesize(r, `{"text":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, postSynthesize(r, `{"text":`).Code)
	assert.Empty(t, svc.texts)
}

func TestSynthesizeUpstreamFailure(t *testing.T) {
	svc := &fakeSpeechService{enabled: true, err: errors.New("tts endpoint returned 404")}
	resp := postSynthesize(newRouter(svc), `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestSynthesizeDisabled(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, postSynthesize(newRouter(nil), `{"text":"hi"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, postSynthesize(newRouter(&fakeSpeechService{}), `{"text":"hi"}`).Code)
}

func TestHealth(t *testing.T) {
	r := newRouter(&fakeSpeechService{enabled: true})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/health", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["tts"])
}

func TestWebSocketUnavailableWithoutChat(t *testing.T) {
	r := newRouter(nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/ws/abc", nil))
	assert.Equal(t, http.StatusNotImplemented, resp.Code)
}
