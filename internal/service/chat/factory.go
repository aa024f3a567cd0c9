package chat

import (
	"path/filepath"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/playback"
	"github.com/zhouzirui/kiddybot/internal/render"
	"github.com/zhouzirui/kiddybot/internal/service/ai"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
	"github.com/zhouzirui/kiddybot/internal/service/speech"
)

// FactoryDeps are the shared collaborators every session conversation uses.
type FactoryDeps struct {
	Completer conversation.Completer
	// Synthesizer may be nil when speech is not configured.
	Synthesizer *speech.Synthesizer
	// AudioDir holds one fixed {sessionID}.mp3 file per session.
	AudioDir string
	Player   playback.Player
}

// NewFactory returns a Factory that gives each session its own composer,
// transcript and audio file.
func NewFactory(deps FactoryDeps) Factory {
	return func(session chat.Session, p persona.Persona) (*Conversation, error) {
		htmlRenderer, err := render.NewHTML(p.Welcome)
		if err != nil {
			return nil, err
		}
		transcript := render.NewSnapshot(htmlRenderer, chat.NewTurn(chat.RoleSystem, ""))
		if err := transcript.Update(nil); err != nil {
			return nil, err
		}

		opts := conversation.Options{
			SessionID: session.ID,
			Composer:  ai.NewComposer(p),
			Completer: deps.Completer,
			Surface:   transcript,
			Player:    deps.Player,
		}
		var audioPath string
		if deps.Synthesizer != nil && deps.Synthesizer.Enabled() {
			audioPath = filepath.Join(deps.AudioDir, session.ID+".mp3")
			opts.Synthesizer = deps.Synthesizer.WithOutputPath(audioPath).WithVoice(p.VoiceID)
		}

		ctrl, err := conversation.NewController(opts)
		if err != nil {
			return nil, err
		}
		return &Conversation{Controller: ctrl, Transcript: transcript, AudioPath: audioPath}, nil
	}
}
