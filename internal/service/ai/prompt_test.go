package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
)

func TestComposeEmbedsTranscriptThenUtterance(t *testing.T) {
	composer := NewComposer(persona.Seed()[0])
	history := []chat.Turn{chat.NewTurn(chat.RoleUser, "hi")}

	p, err := composer.Compose(context.Background(), history, "how are you?")
	require.NoError(t, err)

	assert.Equal(t, "user: hi", p.Transcript)

	historyAt := strings.Index(p.Instruction, "user: hi")
	utteranceAt := strings.Index(p.Instruction, "how are you?")
	require.GreaterOrEqual(t, historyAt, 0)
	require.Greater(t, utteranceAt, historyAt)
	assert.True(t, strings.HasSuffix(p.Instruction, "how are you?Response:"))
}

func TestComposeMessageShape(t *testing.T) {
	seed := persona.Seed()[0]
	composer := NewComposer(seed)

	p, err := composer.Compose(context.Background(), nil, "tell me a story")
	require.NoError(t, err)

	require.Len(t, p.Messages, 2)
	assert.Equal(t, schema.System, p.Messages[0].Role)
	assert.Equal(t, seed.SystemPrompt, p.Messages[0].Content)
	assert.Equal(t, schema.User, p.Messages[1].Role)
	assert.Equal(t, p.Instruction, p.Messages[1].Content)
	assert.Contains(t, p.Instruction, "Chat History:\n\n\nUser Message:\ntell me a story")
}

func TestFormatTranscriptKeepsOrder(t *testing.T) {
	history := []chat.Turn{
		chat.NewTurn(chat.RoleSystem, "welcome"),
		chat.NewTurn(chat.RoleUser, "why is the sky blue?"),
		chat.NewTurn(chat.RoleAssistant, "Because of tiny bits of air!"),
	}

	got := FormatTranscript(history)
	assert.Equal(t, "system: welcome\nuser: why is the sky blue?\nassistant: Because of tiny bits of air!", got)
	assert.Equal(t, "", FormatTranscript(nil))
}
