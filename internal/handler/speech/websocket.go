package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/kiddybot/internal/model/persona"
	chatservice "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/internal/service/conversation"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler 基于 WebSocket 的对话处理器，客户端发送已转写的文本
type WebSocketHandler struct {
	chatSvc      *chatservice.Service
	personaStore persona.Store
	upgrader     websocket.Upgrader

	readWait   time.Duration
	pingPeriod time.Duration
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service, personaStore persona.Store) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// ConfigMessage 配置消息
type ConfigMessage struct {
	TTSEnabled  *bool `json:"ttsEnabled,omitempty"`
	InlineAudio *bool `json:"inlineAudio,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	sessionID   string
	persona     *persona.Persona
	controller  *conversation.Controller
	ttsEnabled  bool
	inlineAudio bool
}

func newConnectionState(sessionID string, p *persona.Persona, ctrl *conversation.Controller) *connectionState {
	return &connectionState{
		sessionID:   sessionID,
		persona:     p,
		controller:  ctrl,
		ttsEnabled:  true,
		inlineAudio: true,
	}
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	p, ok := h.personaStore.FindByID(session.PersonaID)
	if !ok {
		http.Error(w, "persona not found", http.StatusBadRequest)
		return
	}

	ctrl, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "websocket").Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("component", "websocket").Str("session", sessionID).Logger()
	logger.Info().Msg("new connection")

	state := newConnectionState(sessionID, &p, ctrl)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readWait))
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, sessionID, map[string]any{
		"type":    "connected",
		"persona": p.ID,
		"welcome": p.Welcome,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(h.readWait))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, state, &msg, logger)
		// 回复可能耗时超过 readWait，处理完成后重新计时
		_ = conn.SetReadDeadline(time.Now().Add(h.readWait))
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage, logger zerolog.Logger) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, state, msg.Data, logger)
	case "config":
		h.handleConfigMessage(conn, state, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage, logger zerolog.Logger) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}

	h.sendInfo(conn, state.sessionID, map[string]any{
		"type": "user",
		"text": text.Text,
	})

	exchange, err := state.controller.HandleUtterance(ctx, text.Text, func(delta string) {
		h.sendInfo(conn, state.sessionID, map[string]any{
			"type": "ai_delta",
			"text": delta,
		})
	})
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.sendInfo(conn, state.sessionID, map[string]any{
		"type":    "ai",
		"text":    exchange.Reply,
		"isFinal": true,
	})

	if state.ttsEnabled {
		h.sendTTS(conn, state, exchange.AudioPath, exchange.HasAudio, logger)
	}
}

func (h *WebSocketHandler) sendTTS(conn *websocket.Conn, state *connectionState, path string, ok bool, logger zerolog.Logger) {
	if !ok {
		h.sendInfo(conn, state.sessionID, map[string]any{
			"type":  "tts",
			"error": "synthesis failed",
		})
		return
	}

	data := map[string]any{
		"type":     "tts",
		"audioUrl": "/api/session/" + state.sessionID + "/audio",
		"format":   "mp3",
		"isFinal":  true,
	}
	if state.inlineAudio {
		audio, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("read synthesized audio failed")
		} else {
			data["audioData"] = base64.StdEncoding.EncodeToString(audio)
		}
	}
	h.sendInfo(conn, state.sessionID, data)
}

func (h *WebSocketHandler) handleConfigMessage(conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload")
		return
	}

	h.applyConfig(state, cfg)

	h.sendInfo(conn, state.sessionID, map[string]any{
		"type":        "config",
		"persona":     state.persona.ID,
		"tts":         state.ttsEnabled,
		"inlineAudio": state.inlineAudio,
	})
}

func (h *WebSocketHandler) applyConfig(state *connectionState, cfg ConfigMessage) {
	if cfg.TTSEnabled != nil {
		state.ttsEnabled = *cfg.TTSEnabled
	}
	if cfg.InlineAudio != nil {
		state.inlineAudio = *cfg.InlineAudio
	}
}

func (h *WebSocketHandler) sendInfo(conn *websocket.Conn, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Str("component", "websocket").Err(err).Msg("write info failed")
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Str("component", "websocket").Err(err).Msg("write error failed")
	}
}

// pingLoop 定期发送ping消息。WriteControl 可与其他写操作并发调用。
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
