package page

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/render"
	chatservice "github.com/zhouzirui/kiddybot/internal/service/chat"
)

// Handler serves the single-page chat widget.
type Handler struct {
	chatSvc  *chatservice.Service
	personas persona.Store
	html     *render.HTML
}

// New creates the page handler.
func New(chatSvc *chatservice.Service, personas persona.Store, html *render.HTML) *Handler {
	return &Handler{chatSvc: chatSvc, personas: personas, html: html}
}

// RegisterRoutes mounts GET /.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
}

// handleIndex renders the transcript of ?session= or starts a new session.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID := r.URL.Query().Get("session")
	conv, err := h.chatSvc.Conversation(ctx, sessionID)
	if err != nil {
		session, createErr := h.chatSvc.CreateSession(ctx, r.URL.Query().Get("persona"))
		if createErr != nil {
			http.Error(w, createErr.Error(), http.StatusBadRequest)
			return
		}
		sessionID = session.ID
		if conv, err = h.chatSvc.Conversation(ctx, sessionID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	title := "KiddyBot"
	if session, err := h.chatSvc.GetSession(ctx, sessionID); err == nil {
		if p, ok := h.personas.FindByID(session.PersonaID); ok {
			title = p.Name + " · " + p.Title
		}
	}

	data := render.PageData{
		Title:      title,
		SessionID:  sessionID,
		Transcript: template.HTML(conv.Transcript.Bytes()),
	}
	if _, ok := conv.Controller.LastAudio(); ok {
		data.AudioURL = "/api/session/" + sessionID + "/audio"
	}

	var buf bytes.Buffer
	if err := h.html.Page(&buf, data); err != nil {
		log.Error().Str("component", "page").Err(err).Msg("render page failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
