package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Post("/session/bootstrap", s.bootstrapSession)

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Route("/threads", func(r chi.Router) {
			r.Get("/", s.listThreads)
			r.Post("/", s.createThread)

			r.Route("/{threadID}", func(r chi.Router) {
				r.Delete("/", s.deleteThread)
				r.Post("/clear", s.clearThread)
				r.Get("/state", s.getThreadState)
				r.Patch("/state", s.updateThreadState)
				r.Post("/chat", s.chat) // Streaming response
				r.Post("/abort", s.abortRun)
			})
		})
	})

	// Registry views
	r.Get("/agents", s.listAgents)
	r.Get("/models", s.listModels)

	// Event streaming (SSE)
	r.Get("/event", s.allEvents)
}
