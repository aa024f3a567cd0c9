package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatService "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
	"github.com/zhouzirui/kiddybot/pkg/utils"
)

// Handler streams a conversation exchange via Server-Sent Events.
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	AudioURL  string `json:"audioUrl,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes mounts the SSE endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	ctrl, p, err := h.getSessionPersona(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, p, ctrl, userMessage); err != nil {
		log.Warn().Str("component", "stream").Str("session", sessionID).Err(err).Msg("stream request failed")
	}
}

// HandleStreamRequest runs one exchange and forwards its progress as SSE frames.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, p *persona.Persona, ctrl *conversation.Controller, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   p.Name,
	})

	exchange, err := ctrl.HandleUtterance(ctx, userMessage, func(delta string) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   delta,
		})
	})
	if err != nil {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   exchange.Reply,
	})

	if exchange.HasAudio {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "audio",
			SessionID: sessionID,
			AudioURL:  "/api/session/" + sessionID + "/audio",
		})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Info().Str("component", "stream").Str("session", sessionID).Str("persona", p.ID).Msg("completed response")
	return nil
}

// getSessionPersona retrieves the controller and persona bound to a session.
func (h *Handler) getSessionPersona(ctx context.Context, sessionID string) (*conversation.Controller, *persona.Persona, error) {
	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	p, ok := h.personas.FindByID(session.PersonaID)
	if !ok {
		return nil, nil, chatService.ErrPersonaNotFound
	}

	ctrl, err := h.chatSvc.Controller(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, &p, nil
}
