package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
)

const instructionTemplate = "Based on the following chat history, generate a response that naturally follows the conversation " +
	"and remember the context and previous interactions to make your response relevant. " +
	"Ensure that the response includes only the text message, with no additional information or context before or after it.\n\n" +
	"Chat History:\n" +
	"{history}\n\n" +
	"User Message:\n" +
	"{utterance}" +
	"Response:"

// Prompt is the composed input for one completion request.
type Prompt struct {
	Transcript  string
	Instruction string
	Messages    []*schema.Message
	Tokens      int
}

// Composer turns a conversation history and a new utterance into the
// two-message prompt sent to the chat model.
type Composer struct {
	system   string
	template prompt.ChatTemplate

	codecOnce sync.Once
	codec     tokenizer.Codec
}

// NewComposer creates a composer speaking as the given persona.
func NewComposer(p persona.Persona) *Composer {
	return &Composer{
		system: p.SystemPrompt,
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.UserMessage(instructionTemplate),
		),
	}
}

// Compose renders the transcript and wraps the utterance in the instruction template.
func (c *Composer) Compose(ctx context.Context, history []chat.Turn, utterance string) (Prompt, error) {
	transcript := FormatTranscript(history)

	messages, err := c.template.Format(ctx, map[string]any{
		"system":    c.system,
		"history":   transcript,
		"utterance": utterance,
	})
	if err != nil {
		return Prompt{}, errors.Wrap(err, "format prompt template")
	}
	if len(messages) != 2 {
		return Prompt{}, errors.Errorf("prompt template produced %d messages, want 2", len(messages))
	}

	return Prompt{
		Transcript:  transcript,
		Instruction: messages[1].Content,
		Messages:    messages,
		Tokens:      c.countTokens(messages),
	}, nil
}

// FormatTranscript renders one "role: content" line per turn in insertion order.
func FormatTranscript(history []chat.Turn) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, string(turn.Role)+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func (c *Composer) countTokens(messages []*schema.Message) int {
	c.codecOnce.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Debug().Str("component", "ai").Err(err).Msg("token estimator unavailable")
			return
		}
		c.codec = codec
	})
	if c.codec == nil {
		return 0
	}

	total := 0
	for _, msg := range messages {
		ids, _, err := c.codec.Encode(msg.Content)
		if err != nil {
			return 0
		}
		total += len(ids)
	}
	return total
}
