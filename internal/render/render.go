// Package render draws a conversation history onto a display surface.
package render

import (
	"bytes"
	"io"
	"sync"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
)

// Renderer writes the full history to w.
type Renderer interface {
	Render(w io.Writer, history []chat.Turn) error
}

// Snapshot keeps the most recent rendering of a history in memory.
type Snapshot struct {
	renderer Renderer
	prefix   []chat.Turn

	mu   sync.RWMutex
	last []byte
}

// NewSnapshot wraps renderer. prefix turns are drawn ahead of every history.
func NewSnapshot(renderer Renderer, prefix ...chat.Turn) *Snapshot {
	return &Snapshot{renderer: renderer, prefix: prefix}
}

// Update re-renders the whole history and replaces the stored output.
func (s *Snapshot) Update(history []chat.Turn) error {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, withPrefix(s.prefix, history)); err != nil {
		return err
	}

	s.mu.Lock()
	s.last = buf.Bytes()
	s.mu.Unlock()
	return nil
}

// Bytes returns a copy of the last rendering.
func (s *Snapshot) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.last...)
}

// Stream renders every update straight to a writer.
type Stream struct {
	renderer Renderer
	w        io.Writer
	prefix   []chat.Turn
}

// NewStream wraps renderer and w. prefix turns are drawn ahead of every history.
func NewStream(renderer Renderer, w io.Writer, prefix ...chat.Turn) *Stream {
	return &Stream{renderer: renderer, w: w, prefix: prefix}
}

// Update writes the whole history to the underlying writer.
func (s *Stream) Update(history []chat.Turn) error {
	return s.renderer.Render(s.w, withPrefix(s.prefix, history))
}

func withPrefix(prefix, history []chat.Turn) []chat.Turn {
	turns := make([]chat.Turn, 0, len(prefix)+len(history))
	turns = append(turns, prefix...)
	return append(turns, history...)
}
