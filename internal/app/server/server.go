package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/internal/app/server/handlers"
	"chatrelay/pkg/middleware"
)

type Server struct {
	log        *slog.Logger
	mux        *http.ServeMux
	name       string
	addr       string
	wsHandler  *handlers.WSHandler
	whHandler  *handlers.WebhookHandler
	msgHandler *handlers.MessageHandler
	tagHandler *handlers.TagHandler
	tokenSvc   middleware.TokenValidator
	srv        *http.Server
}

func NewServer(
	log *slog.Logger,
	name, addr string,
	tokenSvc middleware.TokenValidator,
	wsHandler *handlers.WSHandler,
	whHandler *handlers.WebhookHandler,
	msgHandler *handlers.MessageHandler,
	tagHandler *handlers.TagHandler,
) *Server {
	s := &Server{
		log:        log,
		mux:        http.NewServeMux(),
		name:       name,
		addr:       addr,
		wsHandler:  wsHandler,
		whHandler:  whHandler,
		msgHandler: msgHandler,
		tagHandler: tagHandler,
		tokenSvc:   tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Webhook ingress is authenticated by the provider's own signature
	// scheme upstream, not by our JWTs.
	s.mux.Handle("POST /webhook", http.HandlerFunc(s.whHandler.Handler))

	s.mux.Handle("GET /ws", auth(http.HandlerFunc(s.wsHandler.Handler)))
	s.mux.Handle("POST /messages/{id}/delivered", auth(http.HandlerFunc(s.msgHandler.MarkDelivered)))
	s.mux.Handle("POST /messages/{id}/read", auth(http.HandlerFunc(s.msgHandler.MarkRead)))

	s.mux.Handle("GET /apps/{app_id}/tags", auth(http.HandlerFunc(s.tagHandler.List)))
	s.mux.Handle("POST /apps/{app_id}/tags", auth(http.HandlerFunc(s.tagHandler.Create)))
	s.mux.Handle("PATCH /tags/{id}", auth(http.HandlerFunc(s.tagHandler.SetEnabled)))
	s.mux.Handle("DELETE /tags/{id}", auth(http.HandlerFunc(s.tagHandler.Delete)))
	s.mux.Handle("POST /apps/{app_id}/contacts/{wa_id}/tags/{tag_id}", auth(http.HandlerFunc(s.tagHandler.Assign)))
	s.mux.Handle("DELETE /apps/{app_id}/contacts/{wa_id}/tags/{tag_id}", auth(http.HandlerFunc(s.tagHandler.Remove)))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Handler returns the full middleware chain, exported for in-process tests.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = middleware.RequestLogger(s.log)(h)
	h = middleware.TracerMiddleware(s.name)(h)
	return h
}

func (s *Server) Start() error {
	// No global read/write timeouts: sockets on /ws are long-lived.
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("server starting", "addr", s.addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
