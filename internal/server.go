package internal

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"synapse-project-api/internal/config"
	"synapse-project-api/internal/handlers"
	"synapse-project-api/internal/service"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Router   *chi.Mux
	Projects *service.ProjectService
	Metrics  *Metrics
	Logger   *zap.Logger

	cfg    *config.Config
	checks []HealthCheck
}

// NewServer wires the HTTP routes. checks are consulted by the readiness
// endpoint.
func NewServer(cfg *config.Config, projects *service.ProjectService, metrics *Metrics, logger *zap.Logger, checks ...HealthCheck) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{
		Router:   chi.NewRouter(),
		Projects: projects,
		Metrics:  metrics,
		Logger:   logger.Named("http"),
		cfg:      cfg,
		checks:   checks,
	}

	s.Router.Use(chimw.RequestID)
	s.Router.Use(chimw.RealIP)
	s.Router.Use(s.requestLogger)
	s.Router.Use(s.recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.API.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}
	if cfg.API.EnableSwagger {
		s.mountDocs(s.Router)
	}

	s.Router.NotFound(s.notFound)
	s.Router.MethodNotAllowed(s.methodNotAllowed)

	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/health/live", s.live)
		r.Get("/health/ready", s.ready)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Post("/", s.createProject)
			r.Get("/types", s.getProjectTypes)
			r.Get("/{id}", s.getProject)

			importsHandler := handlers.NewImportsHandler(s.Projects, cfg.API.ImportMappingPath, cfg.API.ImportMaxBytes, s.Logger)
			r.Post("/imports/excel", importsHandler.UploadExcel)
		})
	})

	return s
}

// mountDocs serves the OpenAPI document and a Swagger UI page.
func (s *Server) mountDocs(mux *chi.Mux) {
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			s.Logger.Warn("Failed to write OpenAPI document", zap.Error(err))
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Synapse Project API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
    <style>
        body { margin: 0; background: #f7f7f7; }
        .swagger-ui .topbar { background: #1f2937; border-bottom: 3px solid #3b82f6; }
        .swagger-ui .topbar .download-url-wrapper { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}
