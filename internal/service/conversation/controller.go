// Package conversation drives one chat session: compose, complete, record,
// render, synthesize and play, in that order.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/playback"
	"github.com/zhouzirui/kiddybot/internal/service/ai"
)

var (
	ErrEmptyUtterance = errors.New("utterance is empty")
	ErrBusy           = errors.New("conversation is processing another utterance")
)

// State is the controller's processing state.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
)

// Composer builds the prompt for the next reply.
type Composer interface {
	Compose(ctx context.Context, history []chat.Turn, utterance string) (ai.Prompt, error)
}

// Completer returns the reply text for a prompt. It never fails: errors come back as text.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message, onDelta func(string)) string
}

// Synthesizer turns a reply into an audio file and reports its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, bool)
}

// Surface displays the full history after every exchange.
type Surface interface {
	Update(history []chat.Turn) error
}

// Options wires a Controller. Composer and Completer are required.
type Options struct {
	SessionID   string
	Composer    Composer
	Completer   Completer
	Synthesizer Synthesizer
	Surface     Surface
	Player      playback.Player
}

// Controller owns the history of a single conversation.
type Controller struct {
	sessionID   string
	composer    Composer
	completer   Completer
	synthesizer Synthesizer
	surface     Surface
	player      playback.Player

	mu         sync.RWMutex
	state      State
	history    []chat.Turn
	utterances []string
	lastAudio  string
}

// NewController validates opts and returns an idle controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Composer == nil {
		return nil, errors.New("conversation composer is required")
	}
	if opts.Completer == nil {
		return nil, errors.New("conversation completer is required")
	}
	if opts.Player == nil {
		opts.Player = playback.Noop{}
	}

	return &Controller{
		sessionID:   opts.SessionID,
		composer:    opts.Composer,
		completer:   opts.Completer,
		synthesizer: opts.Synthesizer,
		surface:     opts.Surface,
		player:      opts.Player,
		state:       StateIdle,
		history:     make([]chat.Turn, 0, 16),
	}, nil
}

// HandleUtterance runs one full exchange for a captured utterance.
// The exchange runs to completion even if ctx is cancelled midway.
func (c *Controller) HandleUtterance(ctx context.Context, utterance string, onDelta func(string)) (chat.Exchange, error) {
	if strings.TrimSpace(utterance) == "" {
		return chat.Exchange{}, ErrEmptyUtterance
	}

	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return chat.Exchange{}, ErrBusy
	}
	c.state = StateProcessing
	c.utterances = append(c.utterances, utterance)
	history := append([]chat.Turn(nil), c.history...)
	c.mu.Unlock()

	defer c.setState(StateIdle)

	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	logger := log.With().Str("component", "conversation").Str("session", c.sessionID).Logger()

	var reply string
	p, err := c.composer.Compose(ctx, history, utterance)
	if err != nil {
		reply = "An error occurred: " + err.Error()
		logger.Warn().Err(err).Msg("compose prompt failed")
	} else {
		logger.Debug().Int("tokens", p.Tokens).Int("turns", len(history)).Msg("prompt composed")
		reply = c.completer.Complete(ctx, p.Messages, onDelta)
	}

	c.mu.Lock()
	c.history = append(c.history,
		chat.NewTurn(chat.RoleUser, utterance),
		chat.NewTurn(chat.RoleAssistant, reply),
	)
	history = append([]chat.Turn(nil), c.history...)
	c.mu.Unlock()

	if c.surface != nil {
		if err := c.surface.Update(history); err != nil {
			logger.Warn().Err(err).Msg("render transcript failed")
		}
	}

	exchange := chat.Exchange{
		SessionID: c.sessionID,
		Utterance: utterance,
		Reply:     reply,
		History:   history,
	}

	if c.synthesizer != nil {
		if path, ok := c.synthesizer.Synthesize(ctx, reply); ok {
			exchange.AudioPath = path
			exchange.HasAudio = true
			c.mu.Lock()
			c.lastAudio = path
			c.mu.Unlock()
		}
	}

	if exchange.HasAudio {
		if err := c.player.Play(ctx, exchange.AudioPath); err != nil {
			logger.Warn().Err(err).Str("path", exchange.AudioPath).Msg("playback failed")
		}
	}

	logger.Info().
		Dur("elapsed", time.Since(started)).
		Bool("audio", exchange.HasAudio).
		Int("turns", len(history)).
		Msg("exchange completed")
	return exchange, nil
}

// Append records a turn directly. Role order is not enforced.
func (c *Controller) Append(turn chat.Turn) error {
	if !turn.Role.Valid() {
		return errors.Errorf("unknown role %q", turn.Role)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	c.history = append(c.history, turn)
	c.mu.Unlock()
	return nil
}

// History returns a copy of the recorded turns.
func (c *Controller) History() []chat.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]chat.Turn(nil), c.history...)
}

// Utterances returns a copy of the captured utterance log.
func (c *Controller) Utterances() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.utterances...)
}

// State reports whether an exchange is in flight.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastAudio returns the path of the most recent successful synthesis.
func (c *Controller) LastAudio() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAudio, c.lastAudio != ""
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
