package speaker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, New().Play(context.Background(), ""))
}

func TestMissingFile(t *testing.T) {
	err := New().Play(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open audio")
}
