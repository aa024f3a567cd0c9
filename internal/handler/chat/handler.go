package chat

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/chat"
	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatService "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
	"github.com/zhouzirui/kiddybot/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, personaStore persona.Store) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Route("/session/{sessionID}", func(s chi.Router) {
		s.Get("/", h.handleGetSession)
		s.Delete("/", h.handleDeleteSession)
		s.Post("/utterances", h.handleUtterance)
		s.Get("/history", h.handleHistory)
		s.Get("/transcript", h.handleTranscript)
		s.Get("/audio", h.handleAudio)
	})
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID)
	if errors.Is(err, chatService.ErrPersonaNotFound) {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListSessions(r.Context()))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUtterance 处理一条已转写的用户语音
func (h *Handler) handleUtterance(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := h.chatSvc.Controller(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	exchange, err := ctrl.HandleUtterance(r.Context(), payload.Text, nil)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, exchange)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.chatSvc.Controller(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, struct {
		History    []chat.Turn `json:"history"`
		Utterances []string    `json:"utterances"`
		State      string      `json:"state"`
	}{
		History:    ctrl.History(),
		Utterances: ctrl.Utterances(),
		State:      string(ctrl.State()),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Conversation(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(conv.Transcript.Bytes()); err != nil {
		log.Debug().Err(err).Msg("write transcript failed")
	}
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.chatSvc.Controller(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	path, ok := ctrl.LastAudio()
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no audio synthesized yet")
		return
	}
	if _, err := os.Stat(path); err != nil {
		utils.RespondError(w, http.StatusNotFound, "audio file missing")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

// respondServiceError maps service sentinels onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrEmptyUtterance):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, conversation.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Str("component", "chat").Err(err).Msg("request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
