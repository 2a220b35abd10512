package inventory

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/clinic/pharmacy/internal/domain/inventory"
	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/csvimport"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxImportErrors = 100

// ConflictMode decides what an import does with a code already in the catalog
type ConflictMode string

const (
	ConflictSkip   ConflictMode = "skip"
	ConflictUpdate ConflictMode = "update"
	ConflictFail   ConflictMode = "fail"
)

// ParseConflictMode defaults to skip
func ParseConflictMode(s string) (ConflictMode, error) {
	switch m := ConflictMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ConflictSkip, nil
	case ConflictSkip, ConflictUpdate, ConflictFail:
		return m, nil
	}
	return "", shared.NewValidationError("conflict_mode must be skip, update or fail")
}

// MedicationImportColumns are the recognised CSV headers; only name is required
var MedicationImportColumns = []string{
	"code", "name", "dosage_form", "strength", "category", "reorder_threshold", "stockout_threshold",
}

// MedicationImportResult summarises a catalog import
type MedicationImportResult struct {
	TotalRows    int                  `json:"total_rows"`
	ImportedRows int                  `json:"imported_rows"`
	UpdatedRows  int                  `json:"updated_rows"`
	SkippedRows  int                  `json:"skipped_rows"`
	ErrorRows    int                  `json:"error_rows"`
	Errors       []csvimport.RowError `json:"errors,omitempty"`
	IsTruncated  bool                 `json:"is_truncated,omitempty"`
	TotalErrors  int                  `json:"total_errors,omitempty"`
}

// ImportMedications adds or updates catalog entries from a CSV file. Rows
// are independent: a bad row is reported and the others still go through.
// Storage failures stop the import.
func (s *MedicationService) ImportMedications(ctx context.Context, r io.Reader, mode ConflictMode) (*MedicationImportResult, error) {
	parser, err := csvimport.NewParser(r)
	if err != nil {
		return nil, importFileError(err)
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, importFileError(err)
	}
	if missing := parser.Missing("name"); len(missing) > 0 {
		return nil, shared.NewValidationError("CSV file is missing required column: %s", strings.Join(missing, ", "))
	}
	if extra := unknownColumns(parser.Headers()); len(extra) > 0 {
		s.logger.Debug("ignoring unknown import columns", zap.Strings("columns", extra))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, importFileError(err)
	}

	result := &MedicationImportResult{TotalRows: len(rows)}
	rowErrors := csvimport.NewErrorCollection(maxImportErrors)
	seen := make(map[string]int)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.importRow(ctx, row, mode, seen, result, rowErrors); err != nil {
			s.logger.Warn("medication import stopped",
				zap.Int("line", row.Line),
				zap.Int("imported", result.ImportedRows),
				zap.Error(err))
			return nil, err
		}
	}
	result.Errors = rowErrors.Errors()
	result.IsTruncated = rowErrors.IsTruncated()
	result.TotalErrors = rowErrors.TotalCount()

	s.logger.Info("medications imported",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("updated", result.UpdatedRows),
		zap.Int("skipped", result.SkippedRows),
		zap.Int("errors", result.ErrorRows),
		zap.String("conflict_mode", string(mode)))
	return result, nil
}

func (s *MedicationService) importRow(
	ctx context.Context,
	row *csvimport.Row,
	mode ConflictMode,
	seen map[string]int,
	result *MedicationImportResult,
	rowErrors *csvimport.ErrorCollection,
) error {
	req, errs := medicationFromRow(row)
	if req.Code != "" {
		if first, dup := seen[req.Code]; dup {
			errs = append(errs, csvimport.RowError{
				Row: row.Line, Column: "code", Code: csvimport.CodeDuplicateFile, Value: req.Code,
				Message: "code already used on line " + strconv.Itoa(first),
			})
		} else {
			seen[req.Code] = row.Line
		}
	}
	if len(errs) > 0 {
		rowErrors.Add(errs...)
		result.ErrorRows++
		return nil
	}

	if req.Code != "" {
		existing, err := s.medications.FindByCode(ctx, req.Code)
		switch {
		case err == nil:
			return s.resolveConflict(ctx, existing, req, row, mode, result, rowErrors)
		case !shared.IsCode(err, shared.CodeNotFound):
			return err
		}
	}

	if _, err := s.CreateMedication(ctx, req); err != nil {
		if rowErr, ok := asRowError(row, err); ok {
			rowErrors.Add(rowErr)
			result.ErrorRows++
			return nil
		}
		return err
	}
	result.ImportedRows++
	return nil
}

func (s *MedicationService) resolveConflict(
	ctx context.Context,
	existing *inventory.Medication,
	req CreateMedicationRequest,
	row *csvimport.Row,
	mode ConflictMode,
	result *MedicationImportResult,
	rowErrors *csvimport.ErrorCollection,
) error {
	switch mode {
	case ConflictUpdate:
		err := existing.Update(inventory.MedicationDetails{
			Name:              req.Name,
			DosageForm:        req.DosageForm,
			Strength:          req.Strength,
			Category:          req.Category,
			ReorderThreshold:  req.ReorderThreshold,
			StockoutThreshold: req.StockoutThreshold,
		})
		if err == nil {
			err = s.medications.SaveWithLock(ctx, existing)
		}
		if err != nil {
			if rowErr, ok := asRowError(row, err); ok {
				rowErrors.Add(rowErr)
				result.ErrorRows++
				return nil
			}
			return err
		}
		result.UpdatedRows++
	case ConflictFail:
		rowErrors.Add(csvimport.RowError{
			Row: row.Line, Column: "code", Code: csvimport.CodeDuplicateDB, Value: req.Code,
			Message: "medication code already exists",
		})
		result.ErrorRows++
	default:
		result.SkippedRows++
	}
	return nil
}

// medicationFromRow reads one line. Thresholds accept a decimal comma.
func medicationFromRow(row *csvimport.Row) (CreateMedicationRequest, []csvimport.RowError) {
	req := CreateMedicationRequest{
		Code:       inventory.NormalizeMedicationCode(row.Get("code")),
		Name:       row.Get("name"),
		DosageForm: row.Get("dosage_form"),
		Strength:   row.Get("strength"),
		Category:   row.Get("category"),
	}
	var errs []csvimport.RowError
	if req.Name == "" {
		errs = append(errs, csvimport.RowError{
			Row: row.Line, Column: "name", Code: csvimport.CodeRequired, Message: "name is required",
		})
	}
	for _, col := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"reorder_threshold", &req.ReorderThreshold},
		{"stockout_threshold", &req.StockoutThreshold},
	} {
		raw := row.Get(col.name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(strings.Replace(raw, ",", ".", 1))
		if err != nil {
			errs = append(errs, csvimport.RowError{
				Row: row.Line, Column: col.name, Code: csvimport.CodeInvalidFormat, Value: raw,
				Message: col.name + " must be a number",
			})
			continue
		}
		*col.dst = v
	}
	return req, errs
}

// asRowError turns a per-row business failure into a report line
func asRowError(row *csvimport.Row, err error) (csvimport.RowError, bool) {
	switch shared.CodeOf(err) {
	case shared.CodeValidation, shared.CodeInvalidState:
		return csvimport.RowError{Row: row.Line, Code: csvimport.CodeInvalidValue, Message: domainMessage(err)}, true
	case shared.CodeDuplicateKey:
		return csvimport.RowError{Row: row.Line, Column: "code", Code: csvimport.CodeDuplicateDB, Message: domainMessage(err)}, true
	case shared.CodeConcurrentModification:
		return csvimport.RowError{Row: row.Line, Code: csvimport.CodeInvalidValue, Message: "medication changed during import, retry the row"}, true
	}
	return csvimport.RowError{}, false
}

func domainMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func unknownColumns(headers []string) []string {
	var extra []string
	for _, h := range headers {
		if h != "" && !slices.Contains(MedicationImportColumns, h) {
			extra = append(extra, h)
		}
	}
	return extra
}

func importFileError(err error) error {
	switch {
	case errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrInvalidEncoding),
		errors.Is(err, csvimport.ErrMissingHeader),
		errors.Is(err, csvimport.ErrNoDataRows):
		return shared.NewValidationError("%s", err.Error())
	}
	return shared.WrapDomainError(shared.CodeValidation, "CSV file could not be read", err)
}
