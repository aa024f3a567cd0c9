package utils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"busy"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Text string `json:"text"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"text":"hi"}`))
	require.NoError(t, DecodeJSON(req, &payload))
	assert.Equal(t, "hi", payload.Text)

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, DecodeJSON(req, &payload))

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"text":`))
	assert.Error(t, DecodeJSON(req, &payload))
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	SendSSEEvent(rec, rec, "delta", map[string]string{"content": "hi"})

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: delta\ndata: {\"content\":\"hi\"}\n\n", rec.Body.String())
}
