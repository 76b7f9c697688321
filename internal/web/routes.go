package web

import (
	"github.com/go-chi/chi/v5"

	"picta/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.corpus.Engine, s.logger)
	photosHandler := handlers.NewPhotosHandler(s.corpus.Store, s.corpus.Recommender, s.logger)
	albumsHandler := handlers.NewAlbumsHandler(s.corpus.Recommender, s.logger)
	statsHandler := handlers.NewStatsHandler(s.corpus.Store, s.corpus.Index, s.logger)

	s.router.Get("/health", handlers.HealthCheck)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/search", searchHandler.Search)
		r.Get("/photos/{id}", photosHandler.Get)
		r.Get("/photos/{id}/recommendations", photosHandler.Recommendations)
		r.Get("/albums", albumsHandler.List)
		r.Get("/stats", statsHandler.Get)
	})
}
