package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx/v3"

	"synapse-project-api/internal/apperrors"
	"synapse-project-api/internal/models"
	"synapse-project-api/internal/service"
)

// ProjectCreator runs the create workflow for each imported row.
type ProjectCreator interface {
	CreateProject(ctx context.Context, in service.CreateProjectInput) (models.ProjectDTO, error)
	CheckProject(ctx context.Context, in service.CreateProjectInput) error
}

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	MappingPath string // empty uses DefaultMapping
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name       string     `json:"name"`
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	Samples    []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted   int            `json:"inserted"`
	Duplicates int            `json:"duplicates"`
	Skipped    int            `json:"skipped"`
	Errors     int            `json:"errors"`
	Sheets     []SheetSummary `json:"sheets"`
	DryRun     bool           `json:"dry_run"`
}

const maxSamplesPerSheet = 20

// ImportExcel reads projects from an .xlsx workbook and creates them through
// creator. Rows that collide with an existing name are counted as
// duplicates; rows that fail validation are counted as errors.
func ImportExcel(ctx context.Context, creator ProjectCreator, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 50
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs random access, so buffer the upload.
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	// names seen in this workbook, so dry runs report in-file duplicates too
	seen := make(map[string]struct{})

	for _, sheet := range xlFile.Sheets {
		sheetConfig, ok := mapping.SheetFor(sheet.Name)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		sheetSummary, err := processSheet(ctx, creator, sheet, sheetConfig, mapping.DefaultType, opts, seen)
		summary.Sheets = append(summary.Sheets, sheetSummary)

		summary.Inserted += sheetSummary.Inserted
		summary.Duplicates += sheetSummary.Duplicates
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if err != nil {
			return summary, err
		}
		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}

	return summary, nil
}

// column maps a spreadsheet column to a project field.
type column struct {
	idx   int
	field string
}

// processSheet imports the rows of one sheet. The returned error is non-nil
// only when ctx ends; the summary then covers the rows handled so far.
func processSheet(ctx context.Context, creator ProjectCreator, sheet *xlsx.Sheet, config SheetConfig, defaultType string, opts ImportOptions, seen map[string]struct{}) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name}

	fail := func(row int, msg string) {
		summary.Errors++
		if len(summary.Samples) < maxSamplesPerSheet {
			summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: row, Message: msg})
		}
	}

	headerRow, err := sheet.Row(0)
	if err != nil {
		fail(1, "Failed to read header row: "+err.Error())
		return summary, nil
	}

	// in column order
	var columns []column
	for colIdx := 0; colIdx < sheet.MaxCol; colIdx++ {
		cell := headerRow.GetCell(colIdx)
		if field, ok := config.FieldFor(cell.String()); ok {
			columns = append(columns, column{idx: colIdx, field: field})
		}
	}
	if !containsField(columns, FieldName) {
		fail(1, "no column maps to the project name")
		return summary, nil
	}

	typ := config.DefaultType
	if typ == "" {
		typ = defaultType
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		// the leftmost non-empty column wins when aliases share a field
		values := make(map[string]string)
		for _, c := range columns {
			if _, set := values[c.field]; set {
				continue
			}
			if v := strings.TrimSpace(row.GetCell(c.idx).String()); v != "" {
				values[c.field] = v
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		in := buildInput(values, typ)
		name := strings.TrimSpace(in.Name)
		if _, dup := seen[name]; dup && name != "" {
			summary.Duplicates++
			continue
		}

		if opts.DryRun {
			err = creator.CheckProject(ctx, in)
		} else {
			_, err = creator.CreateProject(ctx, in)
		}
		switch {
		case err == nil:
			seen[name] = struct{}{}
			summary.Inserted++
		case errors.Is(err, apperrors.ErrConflict):
			summary.Duplicates++
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return summary, err
		default:
			fail(rowIdx+1, describe(err))
		}
	}

	return summary, nil
}

func buildInput(values map[string]string, defaultType string) service.CreateProjectInput {
	in := service.CreateProjectInput{
		Name: values[FieldName],
		Type: defaultType,
	}
	if v, ok := values[FieldType]; ok {
		in.Type = v
	}
	if v, ok := values[FieldDescription]; ok {
		in.Description = &v
	}
	if v, ok := values[FieldImageURL]; ok {
		in.ImageURL = &v
	}
	return in
}

func describe(err error) string {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

func containsField(columns []column, field string) bool {
	for _, c := range columns {
		if c.field == field {
			return true
		}
	}
	return false
}
