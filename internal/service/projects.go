// Package service implements the project workflows: creating a project with
// its uniqueness check and creation event, and the read queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"synapse-project-api/internal/apperrors"
	"synapse-project-api/internal/events"
	"synapse-project-api/internal/models"
)

const tracerName = "synapse-project-api/service"

const (
	CodeProjectNotFound = "ProjectNotFound"
	CodeConflict        = "Conflict"

	msgProjectNotFound = "Project not found."
	msgNameTaken       = "Project with this name already exists."
)

// ProjectRepository is the storage the workflows depend on.
type ProjectRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	Add(ctx context.Context, p *models.Project) error
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// EventEmitter accepts events for asynchronous delivery.
type EventEmitter interface {
	Emit(ev events.Event) bool
}

// Recorder counts workflow outcomes.
type Recorder interface {
	ProjectCreated()
	CreateConflict()
}

type noopRecorder struct{}

func (noopRecorder) ProjectCreated() {}
func (noopRecorder) CreateConflict() {}

// CreateProjectInput is the untrusted shape of a create request.
type CreateProjectInput struct {
	Name        string
	Description *string
	Type        string
	ImageURL    *string
}

// Validate reports every shape violation at once.
func (in CreateProjectInput) Validate() error {
	verr := &apperrors.ValidationError{}

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.Add("name", "Name is required.")
	case utf8.RuneCountInString(name) > models.MaxNameLength:
		verr.Add("name", fmt.Sprintf("Name must be at most %d characters.", models.MaxNameLength))
	}
	if in.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*in.Description)) > models.MaxDescriptionLength {
		verr.Add("description", fmt.Sprintf("Description must be at most %d characters.", models.MaxDescriptionLength))
	}
	if in.ImageURL != nil && utf8.RuneCountInString(*in.ImageURL) > models.MaxImageURLLength {
		verr.Add("imageUrl", fmt.Sprintf("Image URL must be at most %d characters.", models.MaxImageURLLength))
	}
	if _, err := models.ParseProjectType(in.Type); err != nil {
		verr.Add("type", fmt.Sprintf("Type must be one of %s.", typeNames()))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func typeNames() string {
	types := models.ProjectTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

type Option func(*ProjectService)

func WithRecorder(r Recorder) Option {
	return func(s *ProjectService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *ProjectService) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// ProjectService runs the project workflows.
type ProjectService struct {
	repo     ProjectRepository
	emitter  EventEmitter
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer
}

func NewProjectService(repo ProjectRepository, emitter EventEmitter, logger *zap.Logger, opts ...Option) *ProjectService {
	s := &ProjectService{
		repo:     repo,
		emitter:  emitter,
		logger:   logger.Named("projects"),
		recorder: noopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject validates in, persists a new project and emits
// ProjectCreated. The repository's unique name constraint decides races;
// the ExistsByName pre-check only answers the common case early.
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (dto models.ProjectDTO, err error) {
	ctx, span := s.tracer.Start(ctx, "project.create")
	defer func() { endSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return models.ProjectDTO{}, err
	}
	name := strings.TrimSpace(in.Name)
	span.SetAttributes(attribute.String("project.name", name))

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return models.ProjectDTO{}, fmt.Errorf("check project name: %w", err)
	}
	if exists {
		s.recorder.CreateConflict()
		return models.ProjectDTO{}, apperrors.Conflict(CodeConflict, msgNameTaken)
	}

	if err := ctx.Err(); err != nil {
		return models.ProjectDTO{}, err
	}

	typ, _ := models.ParseProjectType(in.Type)
	p, err := models.NewProject(uuid.Nil, name, deref(in.Description), typ, deref(in.ImageURL))
	if err != nil {
		return models.ProjectDTO{}, apperrors.AsValidation(err)
	}

	if err := s.repo.Add(ctx, p); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			s.recorder.CreateConflict()
			return models.ProjectDTO{}, apperrors.Conflict(CodeConflict, msgNameTaken)
		}
		return models.ProjectDTO{}, fmt.Errorf("add project: %w", err)
	}
	s.recorder.ProjectCreated()
	span.SetAttributes(attribute.String("project.id", p.ID().String()))

	ev := events.NewEvent(models.ProjectCreatedTopic, models.NewProjectCreated(p))
	if !s.emitter.Emit(ev) {
		s.logger.Warn("ProjectCreated event was not queued",
			zap.String("project_id", p.ID().String()),
			zap.String("event_id", ev.ID.String()))
	}

	s.logger.Info("Project created",
		zap.String("project_id", p.ID().String()),
		zap.String("name", p.Name()),
		zap.String("type", p.Type().String()))
	return models.NewProjectDTO(p), nil
}

// ListProjects returns every project in repository order.
func (s *ProjectService) ListProjects(ctx context.Context) (dtos []models.ProjectDTO, err error) {
	ctx, span := s.tracer.Start(ctx, "project.list")
	defer func() { endSpan(span, err) }()

	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	dtos = make([]models.ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, models.NewProjectDTO(p))
	}
	span.SetAttributes(attribute.Int("project.count", len(dtos)))
	return dtos, nil
}

// GetProject returns the project with id, or a ProjectNotFound error.
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (dto models.ProjectDTO, err error) {
	ctx, span := s.tracer.Start(ctx, "project.get",
		trace.WithAttributes(attribute.String("project.id", id.String())))
	defer func() { endSpan(span, err) }()

	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.ProjectDTO{}, apperrors.NotFound(CodeProjectNotFound, msgProjectNotFound)
	}
	if err != nil {
		return models.ProjectDTO{}, fmt.Errorf("get project: %w", err)
	}
	return models.NewProjectDTO(p), nil
}

// ProjectTypes lists the valid type names.
func (s *ProjectService) ProjectTypes() []string {
	types := models.ProjectTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.String())
	}
	return out
}

// CheckProject runs the create validation and uniqueness pre-check without
// persisting anything. Bulk imports use it for dry runs.
func (s *ProjectService) CheckProject(ctx context.Context, in CreateProjectInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	exists, err := s.repo.ExistsByName(ctx, strings.TrimSpace(in.Name))
	if err != nil {
		return fmt.Errorf("check project name: %w", err)
	}
	if exists {
		return apperrors.Conflict(CodeConflict, msgNameTaken)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// endSpan marks unexpected failures as span errors. Client errors such as
// validation or conflicts are recorded without an error status.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, apperrors.ErrValidation) &&
			!errors.Is(err, apperrors.ErrConflict) &&
			!errors.Is(err, apperrors.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
