package internal

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"synapse-project-api/internal/api"
	"synapse-project-api/internal/logging"
)

const readinessTimeout = 2 * time.Second

// HealthCheck is a named dependency probe used by the readiness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	_ = api.WriteSuccess(w, http.StatusOK, healthStatus{Status: "ok"}, "")
}

func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	_ = api.WriteSuccess(w, http.StatusOK, healthStatus{Status: "ok"}, "")
}

// ready runs every registered check and reports 503 if any fails.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(s.checks))
	failures := make(map[string][]string)

	for _, hc := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := hc.Check(ctx)
		cancel()
		if err != nil {
			s.Logger.Warn("readiness check failed",
				zap.String("check", hc.Name),
				zap.String("error", logging.SanitizeError(err)))
			results[hc.Name] = "down"
			failures[hc.Name] = []string{"unavailable"}
			continue
		}
		results[hc.Name] = "ok"
	}

	if len(failures) > 0 {
		_ = api.WriteError(w, http.StatusServiceUnavailable, api.CodeUnavailable, "Service is not ready.", failures)
		return
	}
	_ = api.WriteSuccess(w, http.StatusOK, healthStatus{Status: "ready", Checks: results}, "")
}
