package importer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/zap"

	"synapse-project-api/internal/events"
	"synapse-project-api/internal/models"
	"synapse-project-api/internal/repository"
	"synapse-project-api/internal/service"
)

type nopEmitter struct{ count int }

func (e *nopEmitter) Emit(events.Event) bool { e.count++; return true }

func workbook(t *testing.T, sheets map[string][][]string) *bytes.Buffer {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, values := range rows {
			row := sheet.AddRow()
			for _, v := range values {
				row.AddCell().SetString(v)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func newCreator() (*service.ProjectService, *repository.MemoryRepository, *nopEmitter) {
	repo := repository.NewMemoryRepository()
	emitter := &nopEmitter{}
	return service.NewProjectService(repo, emitter, zap.NewNop()), repo, emitter
}

func TestImportExcel(t *testing.T) {
	ctx := context.Background()
	svc, repo, emitter := newCreator()

	file := workbook(t, map[string][][]string{
		"Projects": {
			{"Project Name", "Summary", "Kind", "Image"},
			{"Space RPG", "A space game", "special", "https://img/1.png"},
			{"Farm Sim", "", "", ""},
			{"", "", "", ""},
			{"Space RPG", "again", "", ""},
			{"Bad", "", "legendary", ""},
		},
	})

	sum, err := ImportExcel(ctx, svc, file, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.Sheets, 1)
	require.Len(t, sum.Sheets[0].Samples, 1)
	assert.Equal(t, 6, sum.Sheets[0].Samples[0].Row)
	assert.Contains(t, sum.Sheets[0].Samples[0].Message, "type")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, emitter.count)
}

func TestImportExcelDryRun(t *testing.T) {
	ctx := context.Background()
	svc, repo, emitter := newCreator()
	_, err := svc.CreateProject(ctx, service.CreateProjectInput{Name: "Existing"})
	require.NoError(t, err)

	file := workbook(t, map[string][][]string{
		"Sheet1": {
			{"Name"},
			{"Existing"},
			{"Fresh"},
			{"Fresh"},
		},
	})

	sum, err := ImportExcel(ctx, svc, file, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 2, sum.Duplicates)

	list, _ := repo.List(ctx)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, emitter.count)
}

func TestImportExcelMissingNameColumn(t *testing.T) {
	svc, _, _ := newCreator()
	file := workbook(t, map[string][][]string{
		"Sheet1": {{"Whatever"}, {"x"}},
	})

	sum, err := ImportExcel(context.Background(), svc, file, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Zero(t, sum.Inserted)
}

func TestImportExcelStopsAfterMaxErrors(t *testing.T) {
	svc, _, _ := newCreator()
	file := workbook(t, map[string][][]string{
		"Sheet1": {
			{"Name", "Type"},
			{"a", "nope"},
			{"b", "nope"},
			{"c", "nope"},
		},
	})

	_, err := ImportExcel(context.Background(), svc, file, ImportOptions{MaxErrors: 2})
	assert.Error(t, err)
}

// cancelAfterCreate cancels the import context once the first project exists.
type cancelAfterCreate struct {
	*service.ProjectService
	cancel context.CancelFunc
}

func (c *cancelAfterCreate) CreateProject(ctx context.Context, in service.CreateProjectInput) (models.ProjectDTO, error) {
	dto, err := c.ProjectService.CreateProject(ctx, in)
	c.cancel()
	return dto, err
}

func TestImportExcelCancelledMidSheet(t *testing.T) {
	svc, repo, _ := newCreator()
	file := workbook(t, map[string][][]string{
		"Sheet1": {
			{"Name"},
			{"One"},
			{"Two"},
			{"Three"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sum, err := ImportExcel(ctx, &cancelAfterCreate{ProjectService: svc, cancel: cancel}, file, ImportOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Inserted)
	require.Len(t, sum.Sheets, 1)
	assert.Equal(t, 1, sum.Sheets[0].Inserted)

	list, _ := repo.List(context.Background())
	assert.Len(t, list, 1)
}

func TestImportExcelAliasColumnsResolveLeftToRight(t *testing.T) {
	for i := 0; i < 10; i++ {
		svc, repo, _ := newCreator()
		file := workbook(t, map[string][][]string{
			"Sheet1": {
				{"Title", "Name", "Project"},
				{"Left", "Middle", "Right"},
				{"", "Fallback", "Ignored"},
			},
		})

		sum, err := ImportExcel(context.Background(), svc, file, ImportOptions{})
		require.NoError(t, err)
		require.Equal(t, 2, sum.Inserted)

		list, _ := repo.List(context.Background())
		names := make([]string, 0, len(list))
		for _, p := range list {
			names = append(names, p.Name())
		}
		assert.ElementsMatch(t, []string{"Left", "Fallback"}, names)
	}
}

func TestImportExcelRejectsGarbage(t *testing.T) {
	svc, _, _ := newCreator()
	_, err := ImportExcel(context.Background(), svc, bytes.NewBufferString("not a workbook"), ImportOptions{})
	assert.Error(t, err)
}

func TestLoadMapping(t *testing.T) {
	m, err := LoadMapping("")
	require.NoError(t, err)
	_, ok := m.SheetFor("anything")
	assert.True(t, ok)

	dir := t.TempDir()
	path := filepath.Join(dir, "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
default_type: SPECIAL
sheets:
  Backlog:
    columns:
      Title: { field: name }
      Blurb: { field: description }
`), 0o600))

	m, err = LoadMapping(path)
	require.NoError(t, err)
	assert.Equal(t, "SPECIAL", m.DefaultType)
	sc, ok := m.SheetFor("Backlog")
	require.True(t, ok)
	field, ok := sc.FieldFor(" title ")
	assert.True(t, ok)
	assert.Equal(t, FieldName, field)
	_, ok = m.SheetFor("Other")
	assert.False(t, ok)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
sheets:
  S:
    columns:
      Owner: { field: owner }
`), 0o600))
	_, err = LoadMapping(bad)
	assert.Error(t, err)

	_, err = LoadMapping(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestImportExcelWithMappingFile(t *testing.T) {
	svc, repo, _ := newCreator()
	path := filepath.Join("..", "..", "configs", "mapping", "projects.yaml")

	file := workbook(t, map[string][][]string{
		"Projects": {{"Name", "Description"}, {"Mapped", "from config"}},
	})
	sum, err := ImportExcel(context.Background(), svc, file, ImportOptions{MappingPath: path})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)

	list, _ := repo.List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "from config", list[0].Description())
}
