package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/kiddybot/internal/handler/chat"
	"github.com/zhouzirui/kiddybot/internal/handler/page"
	"github.com/zhouzirui/kiddybot/internal/handler/persona"
	"github.com/zhouzirui/kiddybot/internal/handler/speech"
	"github.com/zhouzirui/kiddybot/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/kiddybot/internal/middleware"
	personaModel "github.com/zhouzirui/kiddybot/internal/model/persona"
	"github.com/zhouzirui/kiddybot/internal/render"
	chatService "github.com/zhouzirui/kiddybot/internal/service/chat"
	"github.com/zhouzirui/kiddybot/pkg/utils"
)

// NewRouter wires HTTP routes to core services. speechSvc may be nil.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, speechSvc speech.SpeechService, html *render.HTML) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	page.New(chatSvc, personas, html).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		persona.New(personas).RegisterRoutes(api)
		chat.New(chatSvc, personas).RegisterRoutes(api)
		stream.New(chatSvc, personas).RegisterRoutes(api)
		speech.New(speechSvc).RegisterRoutes(api, chatSvc, personas)
	})

	return r
}
