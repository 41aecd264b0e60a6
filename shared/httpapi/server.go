// Package httpapi is the thin operator HTTP control surface: status
// and lifecycle routes over the supervisor, config-enable/disable
// routes over the config store, and a liveness endpoint. It holds no
// ingestion logic of its own.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"chainindexer/services/supervisor"
	"chainindexer/shared/logger"
	"chainindexer/shared/store"

	"github.com/gorilla/mux"
)

// Server wraps an http.Server plus the router it serves.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	supervisor *supervisor.Supervisor
	configs    store.ConfigAdmin
	log        logger.Logger
	startedAt  time.Time
}

// New builds a Server bound to addr. It does not start listening
// until Start is called.
func New(addr string, sup *supervisor.Supervisor, configs store.ConfigAdmin, log logger.Logger) *Server {
	router := mux.NewRouter()
	s := &Server{
		router:     router,
		supervisor: sup,
		configs:    configs,
		log:        log,
		startedAt:  time.Now(),
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.log != nil {
				s.log.Error("httpapi: server error: %v", err)
			}
		}
	}()

	<-ctx.Done()
	return s.Stop(context.Background())
}

// Stop shuts down the HTTP server, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}
