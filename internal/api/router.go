package api

import (
	"encoding/json"
	"net/http"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api/handlers"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/api/middleware"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "agent-orchestrator"

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.Auth.APIKeys).Middleware)

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		// Whole-agent operations
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Route("/{agentName}", func(r chi.Router) {
				r.Get("/", h.GetAgent)
				r.Delete("/", h.DeleteAgent)
				r.Post("/deploy", h.DeployAgent)
			})
		})

		// Configuration records
		r.Route("/configs", func(r chi.Router) {
			r.Get("/", h.ListConfigs)
			r.Route("/{agentName}", func(r chi.Router) {
				r.Get("/", h.GetConfig)
				r.Put("/", h.SaveConfig)
				r.Delete("/", h.DeleteConfig)
				r.Get("/prompts", h.ListPrompts)
			})
		})

		// Infrastructure stacks
		r.Route("/stacks", func(r chi.Router) {
			r.Get("/", h.ListStacks)
			r.Route("/{agentName}", func(r chi.Router) {
				r.Get("/", h.GetStack)
				r.Post("/", h.CreateStack)
				r.Put("/", h.UpdateStack)
				r.Delete("/", h.DeleteStack)
				r.Post("/deploy", h.DeployStack)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"project": cfg.ProjectName,
			"service": serviceName,
		})
	}
}
