package chat

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/render"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
)

var (
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Conversation bundles the controller of one session with its rendered transcript.
type Conversation struct {
	Controller *conversation.Controller
	Transcript *render.Snapshot
	// AudioPath is the session's speech file, empty when speech is disabled.
	AudioPath string
}

// Factory builds the conversation for a freshly created session.
type Factory func(session chat.Session, p persona.Persona) (*Conversation, error)

type entry struct {
	session      chat.Session
	conversation *Conversation
}

// Service keeps every live session and its conversation in memory.
type Service struct {
	personas persona.Store
	factory  Factory

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewService bootstraps the in-memory session registry.
func NewService(personas persona.Store, factory Factory) *Service {
	return &Service{
		personas: personas,
		factory:  factory,
		sessions: make(map[string]*entry),
	}
}

// CreateSession provisions an anonymous session bound to a persona.
// An empty personaID selects the default persona.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	var (
		p  persona.Persona
		ok bool
	)
	if personaID == "" {
		p, ok = s.personas.Default()
	} else {
		p, ok = s.personas.FindByID(personaID)
	}
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		CreatedAt: time.Now().UTC(),
	}

	conv, err := s.factory(session, p)
	if err != nil {
		return chat.Session{}, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session, conversation: conv}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Conversation returns the conversation driving a session.
func (s *Service) Conversation(_ context.Context, sessionID string) (*Conversation, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return e.conversation, nil
}

// Controller returns the controller of a session.
func (s *Service) Controller(ctx context.Context, sessionID string) (*conversation.Controller, error) {
	conv, err := s.Conversation(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return conv.Controller, nil
}

// LoadTranscript returns the recorded turns of a session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	ctrl, err := s.Controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.History(), nil
}

// DeleteSession drops a session, its history and its audio file.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if path := e.conversation.AudioPath; path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("component", "chat").Str("session", sessionID).Err(err).Msg("remove session audio failed")
		}
	}
	return nil
}

// ListSessions returns all live sessions, oldest first.
func (s *Service) ListSessions(_ context.Context) []chat.Session {
	s.mu.RLock()
	sessions := make([]chat.Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		sessions = append(sessions, e.session)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
