package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClientDirect(t *testing.T) {
	client, err := NewHTTPClient("", 0)
	require.NoError(t, err)
	assert.Zero(t, client.Timeout)
	assert.Nil(t, client.Transport)
}

func TestNewHTTPClientSocks(t *testing.T) {
	client, err := NewHTTPClient("127.0.0.1:1080", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, client.Timeout)

	_, ok := client.Transport.(*http.Transport)
	assert.True(t, ok)
}
