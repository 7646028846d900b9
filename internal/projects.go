package internal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"synapse-project-api/internal/api"
	"synapse-project-api/internal/service"
)

// createProjectRequest accepts the type under either "type" or the older
// "projectType" key.
type createProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	Type        *string `json:"type"`
	ProjectType *string `json:"projectType"`
}

func (req createProjectRequest) input() service.CreateProjectInput {
	in := service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	switch {
	case req.Type != nil:
		in.Type = *req.Type
	case req.ProjectType != nil:
		in.Type = *req.ProjectType
	}
	return in
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Projects.ListProjects(r.Context())
	if err != nil {
		api.WriteAppError(w, s.Logger, err)
		return
	}

	params := parseListParams(r, s.cfg.API.DefaultPageSize, s.cfg.API.MaxPageSize)
	if !params.paged {
		_ = api.WriteSuccess(w, http.StatusOK, projects, "")
		return
	}
	_ = api.WriteSuccess(w, http.StatusOK, paginate(projects, params), "")
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// a malformed id cannot name an existing project
		_ = api.WriteError(w, http.StatusNotFound, service.CodeProjectNotFound, "Project not found.", nil)
		return
	}

	p, err := s.Projects.GetProject(r.Context(), id)
	if err != nil {
		api.WriteAppError(w, s.Logger, err)
		return
	}
	_ = api.WriteSuccess(w, http.StatusOK, p, "")
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = api.WriteError(w, http.StatusRequestEntityTooLarge, api.CodeValidationFailed, "Request body is too large.", nil)
			return
		}
		_ = api.WriteError(w, http.StatusBadRequest, api.CodeValidationFailed, "One or more validation errors occurred.",
			map[string][]string{"body": {"Request body must be a valid JSON object."}})
		return
	}

	p, err := s.Projects.CreateProject(r.Context(), req.input())
	if err != nil {
		api.WriteAppError(w, s.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/projects/"+p.ID.String())
	_ = api.WriteSuccess(w, http.StatusCreated, p, "Project created.")
}

func (s *Server) getProjectTypes(w http.ResponseWriter, r *http.Request) {
	_ = api.WriteSuccess(w, http.StatusOK, s.Projects.ProjectTypes(), "")
}
