package chat

import "time"

// Session captures a transient anonymous conversation.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Exchange is the outcome of one utterance handled by a conversation.
type Exchange struct {
	SessionID string `json:"sessionId,omitempty"`
	Utterance string `json:"utterance"`
	Reply     string `json:"reply"`
	AudioPath string `json:"-"`
	HasAudio  bool   `json:"hasAudio"`
	History   []Turn `json:"history"`
}
