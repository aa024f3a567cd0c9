package speech

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatservice "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/pkg/utils"
)

// SpeechService 抽象语音合成，便于测试与替换实现
type SpeechService interface {
	Enabled() bool
	Stream(ctx context.Context, text string, w io.Writer) (int64, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
}

// New 创建语音处理器。speechSvc 可以为 nil。
func New(speechSvc SpeechService) *Handler {
	return &Handler{speechSvc: speechSvc}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router, chatSvc *chatservice.Service, personaStore persona.Store) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)

		if chatSvc != nil && personaStore != nil {
			NewWebSocketHandler(chatSvc, personaStore).RegisterWebSocketRoutes(speechRouter)
		} else {
			speechRouter.Get("/ws/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "speech websocket not available")
			})
		}
	})
}

func (h *Handler) available() bool {
	return h.speechSvc != nil && h.speechSvc.Enabled()
}

// handleSynthesize 处理文本转语音请求，直接返回 MPEG 音频
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if !h.available() {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis not configured")
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	var audio bytes.Buffer
	n, err := h.speechSvc.Stream(r.Context(), payload.Text, &audio)
	if err != nil {
		log.Warn().Str("component", "speech").Err(err).Msg("synthesis failed")
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	log.Debug().Str("component", "speech").Int64("bytes", n).Msg("synthesized audio")
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := audio.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("write audio failed")
	}
}

// handleHealth 健康检查
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if !h.available() {
		status = "disabled"
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"provider": "elevenlabs",
		"tts":      h.available(),
		"asr":      false,
	})
}
