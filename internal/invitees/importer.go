package invitees

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aura-events/backend/internal/lifecycle"
)

// MaxImportRows caps a single upload.
const MaxImportRows = 5000

var (
	ErrUnsupportedFile = errors.New("file must be .xlsx or .csv")
	ErrEmptySheet      = errors.New("worksheet is empty")
	ErrTooManyRows     = fmt.Errorf("file has more than %d rows", MaxImportRows)
)

// requiredColumns must be present in the header row.
var requiredColumns = []string{"name", "phone"}

// headerAliases maps accepted header spellings to canonical column names.
var headerAliases = map[string]string{
	"full_name":      "name",
	"mobile":         "phone",
	"phone_number":   "phone",
	"secondary":      "secondary_phone",
	"inviter_name":   "inviter",
	"allowed_guests": "plus_one",
	"guests":         "plus_one",
	"organization":   "company",
}

// ContactRow is one parsed import row.
type ContactRow struct {
	Line           int
	Name           string
	Email          string
	Phone          string
	SecondaryPhone string
	Title          string
	Company        string
	Position       string
	PlusOne        *int
	Category       string
	Inviter        string
}

// RowOutcome is what happened to one row.
type RowOutcome string

const (
	RowCreated RowOutcome = "created"
	RowUpdated RowOutcome = "updated"
	RowSkipped RowOutcome = "skipped"
	RowFailed  RowOutcome = "failed"
)

// RowResult reports one row of an import.
type RowResult struct {
	Line      int        `json:"line"`
	Name      string     `json:"name,omitempty"`
	Outcome   RowOutcome `json:"outcome"`
	InviteeID string     `json:"invitee_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// ImportSummary aggregates row results.
type ImportSummary struct {
	Total   int         `json:"total"`
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Rows    []RowResult `json:"rows"`
}

// Add records r and updates the counters.
func (s *ImportSummary) Add(r RowResult) {
	s.Total++
	switch r.Outcome {
	case RowCreated:
		s.Created++
	case RowUpdated:
		s.Updated++
	case RowSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Rows = append(s.Rows, r)
}

// ReadRows reads the first worksheet of an .xlsx file, or a .csv file.
func ReadRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		cr := csv.NewReader(bytes.NewReader(data))
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer func() { _ = f.Close() }()
		sheet := f.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("no worksheet found")
		}
		rows, err = f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read worksheet: %w", err)
		}
	default:
		return nil, ErrUnsupportedFile
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}
	if len(rows)-1 > MaxImportRows {
		return nil, ErrTooManyRows
	}
	return rows, nil
}

// NormalizeHeader lowercases, trims and snake-cases a header cell, then resolves aliases.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	h = strings.Join(strings.Fields(h), "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// HeaderIndex maps canonical column names to their position. It fails when a required column is missing.
func HeaderIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if _, dup := idx[name]; !dup && name != "" {
			idx[name] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s; the first row must hold headers such as Name, Phone, Email, Inviter",
			strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseRow extracts a contact from row. line is the 1-based sheet line used in messages.
func ParseRow(row []string, idx map[string]int, line int) (ContactRow, error) {
	cr := ContactRow{
		Line:           line,
		Name:           cell(row, idx, "name"),
		Email:          strings.ToLower(cell(row, idx, "email")),
		Phone:          cell(row, idx, "phone"),
		SecondaryPhone: cell(row, idx, "secondary_phone"),
		Title:          cell(row, idx, "title"),
		Company:        cell(row, idx, "company"),
		Position:       cell(row, idx, "position"),
		Category:       cell(row, idx, "category"),
		Inviter:        cell(row, idx, "inviter"),
	}
	if cr.Name == "" || cr.Phone == "" {
		return cr, errors.New("missing required field (name or phone)")
	}
	if len(lifecycle.PhoneDigits(cr.Phone)) < 7 {
		return cr, fmt.Errorf("invalid phone %q", cr.Phone)
	}
	if raw := cell(row, idx, "plus_one"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
		if err != nil || n < 0 {
			return cr, fmt.Errorf("invalid plus_one %q", raw)
		}
		cr.PlusOne = &n
	}
	return cr, nil
}

// IsBlank reports whether every cell of row is empty.
func IsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
