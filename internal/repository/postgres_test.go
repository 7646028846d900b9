package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse-project-api/internal/apperrors"
	"synapse-project-api/internal/models"
)

var projectRowColumns = []string{"id", "name", "description", "type", "image_url", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(projectRowColumns).
			AddRow(id.String(), "Space RPG", "desc", "SPECIAL", "https://img", created, created.Add(time.Minute)))

	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID())
	assert.Equal(t, "Space RPG", p.Name())
	assert.Equal(t, models.ProjectTypeSpecial, p.Type())
	require.NotNil(t, p.ImageURL())
	assert.Equal(t, "https://img", *p.ImageURL())
	assert.Equal(t, created, p.CreatedAt())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC")).
		WillReturnRows(sqlmock.NewRows(projectRowColumns).
			AddRow(uuid.NewString(), "b", "", "DEFAULT", nil, now, now.Add(time.Hour)).
			AddRow(uuid.NewString(), "a", "", "DEFAULT", nil, now, now))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name())
	assert.Nil(t, list[1].ImageURL())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Add(t *testing.T) {
	repo, mock := newMockRepo(t)
	p, err := models.NewProject(uuid.Nil, "Space RPG", "", models.ProjectTypeDefault, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WithArgs(p.ID(), "Space RPG", "", "DEFAULT", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Add(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AddUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	p, err := models.NewProject(uuid.Nil, "Dup", "", models.ProjectTypeDefault, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "ux_projects_name"})

	err = repo.Add(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AddOtherError(t *testing.T) {
	repo, mock := newMockRepo(t)
	p, err := models.NewProject(uuid.Nil, "Broken", "", models.ProjectTypeDefault, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnError(errors.New("connection reset by peer"))

	err = repo.Add(context.Background(), p)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrConflict))
}

func TestPostgresRepository_ExistsByName(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("Space RPG").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsByName(context.Background(), "Space RPG")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsPgUniqueViolation(t *testing.T) {
	assert.True(t, isPgUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isPgUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isPgUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "ux_projects_name"`)))
	assert.False(t, isPgUniqueViolation(errors.New("timeout")))
}
