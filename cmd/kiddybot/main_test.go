package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/render"
	"github.com/zhouzirui/kiddybot/internal/service/ai"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
)

type parrot struct{}

func (parrot) Complete(_ context.Context, messages []*schema.Message, _ func(string)) string {
	return "You said something lovely!"
}

func TestChatLoopHandlesEachLine(t *testing.T) {
	p := persona.Seed()[0]
	var out bytes.Buffer
	surface := render.NewStream(render.NewTerminal(p.Name, p.Welcome, 0, false), &out, chat.NewTurn(chat.RoleSystem, ""))

	ctrl, err := conversation.NewController(conversation.Options{
		Composer:  ai.NewComposer(p),
		Completer: parrot{},
		Surface:   surface,
	})
	require.NoError(t, err)

	in := strings.NewReader("hello\n\n   \nbye\n")
	require.NoError(t, chatLoop(context.Background(), ctrl, surface, in, &out))

	assert.Equal(t, []string{"hello", "bye"}, ctrl.Utterances())
	assert.Len(t, ctrl.History(), 4)
	assert.Contains(t, out.String(), "GabbyGarden")
	assert.Contains(t, out.String(), "You said something lovely!")
}
