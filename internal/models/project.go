package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"synapse-project-api/internal/apperrors"
)

const (
	MaxNameLength        = 200
	MaxDescriptionLength = 2000
	MaxImageURLLength    = 1024
)

// ProjectType classifies a project.
type ProjectType string

const (
	ProjectTypeDefault ProjectType = "DEFAULT"
	ProjectTypeSpecial ProjectType = "SPECIAL"
)

// ProjectTypes returns every known project type in declaration order.
func ProjectTypes() []ProjectType {
	return []ProjectType{ProjectTypeDefault, ProjectTypeSpecial}
}

// Valid reports whether t is one of the known project types.
func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeDefault, ProjectTypeSpecial:
		return true
	}
	return false
}

func (t ProjectType) String() string { return string(t) }

// ParseProjectType resolves a type name case-insensitively. An empty name
// yields ProjectTypeDefault.
func ParseProjectType(s string) (ProjectType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ProjectTypeDefault, nil
	}
	for _, t := range ProjectTypes() {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", apperrors.InvalidArgument("type", fmt.Sprintf("unknown project type %q", s))
}

// clock is replaced in tests.
var clock = func() time.Time { return time.Now().UTC() }

// TimestampPrecision is the finest resolution every storage backend keeps.
// Timestamps are truncated to it so a stored project reads back unchanged.
const TimestampPrecision = time.Millisecond

func stamp() time.Time { return clock().Truncate(TimestampPrecision) }

// Project is the aggregate root for a game project. Its fields can only be
// changed through the setters, each of which validates its input and stamps
// the update time.
type Project struct {
	id          uuid.UUID
	name        string
	description string
	typ         ProjectType
	imageURL    *string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewProject builds a validated project. A nil id is replaced with a fresh
// one.
func NewProject(id uuid.UUID, name, description string, typ ProjectType, imageURL string) (*Project, error) {
	n, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	d, err := normalizeDescription(description)
	if err != nil {
		return nil, err
	}
	if typ == "" {
		typ = ProjectTypeDefault
	}
	if !typ.Valid() {
		return nil, apperrors.InvalidArgument("type", fmt.Sprintf("unknown project type %q", typ))
	}
	u, err := normalizeImageURL(imageURL)
	if err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := stamp()
	return &Project{
		id:          id,
		name:        n,
		description: d,
		typ:         typ,
		imageURL:    u,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// RehydrateProject rebuilds a project from persisted state. Storage
// backends use it after reading a row; it performs no validation.
func RehydrateProject(id uuid.UUID, name, description string, typ ProjectType, imageURL *string, createdAt, updatedAt time.Time) *Project {
	return &Project{
		id:          id,
		name:        name,
		description: description,
		typ:         typ,
		imageURL:    copyString(imageURL),
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (p *Project) ID() uuid.UUID { return p.id }

func (p *Project) Name() string { return p.name }

func (p *Project) Description() string { return p.description }

func (p *Project) Type() ProjectType { return p.typ }

func (p *Project) CreatedAt() time.Time { return p.createdAt }

func (p *Project) UpdatedAt() time.Time { return p.updatedAt }

// ImageURL returns a copy of the image URL, or nil when none is set.
func (p *Project) ImageURL() *string { return copyString(p.imageURL) }

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	c := *p
	c.imageURL = copyString(p.imageURL)
	return &c
}

func (p *Project) SetName(name string) error {
	n, err := normalizeName(name)
	if err != nil {
		return err
	}
	p.name = n
	p.touch()
	return nil
}

func (p *Project) SetDescription(description string) error {
	d, err := normalizeDescription(description)
	if err != nil {
		return err
	}
	p.description = d
	p.touch()
	return nil
}

func (p *Project) SetType(typ ProjectType) error {
	if !typ.Valid() {
		return apperrors.InvalidArgument("type", fmt.Sprintf("unknown project type %q", typ))
	}
	p.typ = typ
	p.touch()
	return nil
}

// SetImageURL replaces the image URL. A blank value clears it.
func (p *Project) SetImageURL(imageURL string) error {
	u, err := normalizeImageURL(imageURL)
	if err != nil {
		return err
	}
	p.imageURL = u
	p.touch()
	return nil
}

// touch never moves updatedAt backwards, so updatedAt >= createdAt holds
// even if the wall clock steps back.
func (p *Project) touch() {
	now := stamp()
	if now.Before(p.updatedAt) {
		now = p.updatedAt
	}
	p.updatedAt = now
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apperrors.InvalidArgument("name", "project name is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", apperrors.InvalidArgument("name", fmt.Sprintf("project name is too long (max %d)", MaxNameLength))
	}
	return trimmed, nil
}

func normalizeDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if utf8.RuneCountInString(trimmed) > MaxDescriptionLength {
		return "", apperrors.InvalidArgument("description", fmt.Sprintf("description is too long (max %d)", MaxDescriptionLength))
	}
	return trimmed, nil
}

func normalizeImageURL(imageURL string) (*string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(imageURL) > MaxImageURLLength {
		return nil, apperrors.InvalidArgument("imageUrl", fmt.Sprintf("image URL is too long (max %d)", MaxImageURLLength))
	}
	return &imageURL, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ProjectDTO is the read projection of a Project exposed over the API.
type ProjectDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Type        string    `json:"type"`
	ImageURL    *string   `json:"imageUrl"`
}

// NewProjectDTO projects p.
func NewProjectDTO(p *Project) ProjectDTO {
	return ProjectDTO{
		ID:          p.id,
		Name:        p.name,
		Description: p.description,
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
		Type:        p.typ.String(),
		ImageURL:    copyString(p.imageURL),
	}
}

// ProjectCreatedTopic is the bus topic for ProjectCreated events.
const ProjectCreatedTopic = "project.created.v1"

// ProjectCreated is published once for every successfully persisted project.
type ProjectCreated struct {
	ProjectID   uuid.UUID `json:"projectId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"imageUrl"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewProjectCreated(p *Project) ProjectCreated {
	return ProjectCreated{
		ProjectID:   p.id,
		Name:        p.name,
		Description: p.description,
		ImageURL:    copyString(p.imageURL),
		Type:        p.typ.String(),
		CreatedAt:   p.createdAt,
	}
}
