package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/geofs-atc/internal/websocket"
	"github.com/yegors/geofs-atc/pkg/logger"
)

// Router builds the HTTP routes of the add-on server
type Router struct {
	handler        *Handler
	wsHandler      http.HandlerFunc
	staticDir      string
	allowedOrigins []string
	logger         *logger.Logger
}

// NewRouter creates a new router. wsHandler serves /ws; staticDir may be empty.
func NewRouter(handler *Handler, wsHandler http.HandlerFunc, staticDir string, allowedOrigins []string, log *logger.Logger) *Router {
	return &Router{
		handler:        handler,
		wsHandler:      wsHandler,
		staticDir:      staticDir,
		allowedOrigins: allowedOrigins,
		logger:         log.Named("router"),
	}
}

// Routes returns the configured chi router
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/status", h.GetStatus)

		r.Get("/airports/nearest", h.GetNearestAirport)
		r.Get("/airports/{code}", h.GetAirport)
		r.Get("/airports/{code}/context", h.GetAirportContext)
		r.Get("/airports/{code}/controller", h.GetAirportController)

		r.Get("/frequency", h.GetFrequency)
		r.Post("/frequency", h.SetFrequency)

		r.Post("/talk", h.Talk)
		r.Post("/telemetry", h.PostTelemetry)
		r.Post("/speech-error", h.PostSpeechError)
		r.Post("/session/reset", h.ResetSession)

		r.Get("/radio-log", h.GetRadioLog)
	})

	if rt.wsHandler != nil {
		r.Get("/ws", rt.wsHandler)
	}

	if rt.staticDir != "" {
		r.Handle("/*", NewStaticFileHandler(rt.staticDir, rt.logger))
	}

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// cors lets the overlay, running on the game's origin, call the local API.
// Pages on any other origin cannot change state: their non-GET requests are
// refused outright, since simple requests skip the preflight.
func (rt *Router) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin == "" || websocket.OriginAllowed(rt.allowedOrigins, origin)
		if !allowed && r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			rt.logger.Warn("Rejected cross-origin request",
				logger.String("origin", origin),
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path))
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		if origin != "" && allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

