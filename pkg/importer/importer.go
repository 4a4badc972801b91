// Package importer loads Spectrum job cost exports (.xlsx) into project
// actuals. Rows are mapped through a YAML column mapping, summed per cost
// code and month, and upserted in a single transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrTooManyErrors   = errors.New("too many row errors")
	ErrMissingColumns  = errors.New("missing columns")
	ErrUnreadable      = errors.New("unreadable workbook")
)

const defaultMaxErrors = 50

// Options controls a single import run.
type Options struct {
	ProjectID   string
	MappingPath string // built-in Spectrum mapping when empty
	Mapping     *Mapping
	Month       string // used when the sheet has neither a month nor a date column
	DryRun      bool
	MaxErrors   int
}

type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Summary reports what an import did. Inserted and Updated count actuals,
// not sheet rows.
type Summary struct {
	Sheet    string     `json:"sheet"`
	Rows     int        `json:"rows"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"errorSamples,omitempty"`
	DryRun   bool       `json:"dryRun"`
}

func (s *Summary) addError(e RowError) {
	s.Errors++
	if len(s.Samples) < defaultMaxErrors {
		s.Samples = append(s.Samples, e)
	}
}

// Record is one mapped sheet row.
type Record struct {
	Row      int
	CostCode string
	Month    string
	Amount   decimal.Decimal
	Quantity *decimal.Decimal
	Notes    string
}

// Actual is the summed value for one cost code and month.
type Actual struct {
	CostCode string
	Month    string
	Amount   decimal.Decimal
	Quantity *decimal.Decimal
	UnitCost *decimal.Decimal
	Notes    *string
	FirstRow int
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ImportActuals reads an .xlsx export from r and upserts its actuals for
// opts.ProjectID. Dry runs do all the work and then roll back.
func ImportActuals(ctx context.Context, db DB, r io.Reader, opts Options) (Summary, error) {
	summary := Summary{DryRun: opts.DryRun}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	mapping := opts.Mapping
	if mapping == nil {
		var err error
		if mapping, err = LoadMapping(opts.MappingPath); err != nil {
			return summary, err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("read workbook: %w", err)
	}
	sheetName, rows, err := ReadSheet(data, mapping.Sheet)
	if err != nil {
		return summary, err
	}
	summary.Sheet = sheetName

	records, rowErrs, skipped, err := MapRows(rows, mapping, opts.Month)
	if err != nil {
		return summary, err
	}
	summary.Rows = len(records) + len(rowErrs)
	summary.Skipped = skipped
	for _, e := range rowErrs {
		e.Sheet = sheetName
		summary.addError(e)
	}

	actuals, aggErrs := Aggregate(records)
	for _, e := range aggErrs {
		e.Sheet = sheetName
		summary.addError(e)
	}
	if summary.Errors > opts.MaxErrors {
		return summary, fmt.Errorf("%w: %d", ErrTooManyErrors, summary.Errors)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, opts.ProjectID).Scan(&exists); err != nil {
		return summary, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return summary, ErrProjectNotFound
	}

	codes, err := loadCostCodes(ctx, tx)
	if err != nil {
		return summary, err
	}

	for _, a := range actuals {
		costCodeID, ok := codes[strings.ToUpper(a.CostCode)]
		if !ok {
			summary.addError(RowError{Sheet: sheetName, Row: a.FirstRow, Message: fmt.Sprintf("unknown cost code %q", a.CostCode)})
			continue
		}
		inserted, err := upsertActual(ctx, tx, opts.ProjectID, costCodeID, mapping.Source, a)
		if err != nil {
			summary.addError(RowError{Sheet: sheetName, Row: a.FirstRow, Message: err.Error()})
			continue
		}
		if inserted {
			summary.Inserted++
		} else {
			summary.Updated++
		}
	}
	if summary.Errors > opts.MaxErrors {
		return summary, fmt.Errorf("%w: %d", ErrTooManyErrors, summary.Errors)
	}

	if opts.DryRun {
		return summary, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit import: %w", err)
	}
	return summary, nil
}

// ReadSheet returns the named sheet (or the first one) as a grid of
// trimmed raw cell values.
func ReadSheet(data []byte, name string) (string, [][]string, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var sheet *xlsx.Sheet
	if name == "" {
		if len(wb.Sheets) == 0 {
			return "", nil, fmt.Errorf("%w: no sheets", ErrUnreadable)
		}
		sheet = wb.Sheets[0]
	} else {
		var ok bool
		if sheet, ok = wb.Sheet[name]; !ok {
			return "", nil, fmt.Errorf("%w: sheet %q not found", ErrUnreadable, name)
		}
	}

	rows := make([][]string, 0, sheet.MaxRow)
	for r := 0; r < sheet.MaxRow; r++ {
		row, err := sheet.Row(r)
		if err != nil {
			return "", nil, fmt.Errorf("%w: row %d: %v", ErrUnreadable, r+1, err)
		}
		cells := make([]string, sheet.MaxCol)
		for c := 0; c < sheet.MaxCol; c++ {
			cells[c] = strings.TrimSpace(row.GetCell(c).Value)
		}
		rows = append(rows, cells)
	}
	return sheet.Name, rows, nil
}

// MapRows converts the rows below the header into records. Blank rows are
// counted as skipped. Row numbers in errors are 1-based sheet rows. An
// error is returned only when the header itself is unusable.
func MapRows(rows [][]string, m *Mapping, defaultMonth string) ([]Record, []RowError, int, error) {
	if len(rows) < m.HeaderRow {
		return nil, nil, 0, fmt.Errorf("%w: header row %d not found", ErrUnreadable, m.HeaderRow)
	}
	cols := m.resolve(rows[m.HeaderRow-1])

	var missing []string
	for _, f := range []string{FieldCostCode, FieldAmount} {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	_, hasMonth := cols[FieldMonth]
	_, hasDate := cols[FieldDate]
	if !hasMonth && !hasDate && defaultMonth == "" {
		missing = append(missing, FieldMonth)
	}
	if len(missing) > 0 {
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	get := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		records []Record
		errs    []RowError
		skipped int
	)
	for i := m.HeaderRow; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1
		if blank(row) {
			skipped++
			continue
		}

		rec, err := mapRow(row, get, defaultMonth)
		if err != nil {
			errs = append(errs, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		rec.Row = rowNum
		records = append(records, rec)
	}
	return records, errs, skipped, nil
}

func mapRow(row []string, get func([]string, string) string, defaultMonth string) (Record, error) {
	var rec Record

	rec.CostCode = get(row, FieldCostCode)
	if rec.CostCode == "" {
		return rec, errors.New("cost code is required")
	}

	amount, err := parseAmount(get(row, FieldAmount))
	if err != nil {
		return rec, fmt.Errorf("amount: %w", err)
	}
	rec.Amount = amount

	switch {
	case get(row, FieldMonth) != "":
		if rec.Month, err = parseMonth(get(row, FieldMonth)); err != nil {
			return rec, err
		}
	case get(row, FieldDate) != "":
		t, err := parseDate(get(row, FieldDate))
		if err != nil {
			return rec, err
		}
		rec.Month = t.Format("2006-01")
	case defaultMonth != "":
		rec.Month = defaultMonth
	default:
		return rec, errors.New("month is required")
	}

	if raw := get(row, FieldQuantity); raw != "" {
		q, err := parseAmount(raw)
		if err != nil {
			return rec, fmt.Errorf("quantity: %w", err)
		}
		rec.Quantity = &q
	}
	rec.Notes = get(row, FieldNotes)
	return rec, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// Aggregate sums records per cost code and month. Unit cost is derived
// when a positive quantity is known. Totals below zero are rejected.
func Aggregate(records []Record) ([]Actual, []RowError) {
	type key struct{ code, month string }
	byKey := map[key]*Actual{}
	var order []key

	for _, r := range records {
		k := key{strings.ToUpper(r.CostCode), r.Month}
		a, ok := byKey[k]
		if !ok {
			a = &Actual{CostCode: r.CostCode, Month: r.Month, FirstRow: r.Row}
			byKey[k] = a
			order = append(order, k)
		}
		a.Amount = a.Amount.Add(r.Amount)
		if r.Quantity != nil {
			q := *r.Quantity
			if a.Quantity != nil {
				q = q.Add(*a.Quantity)
			}
			a.Quantity = &q
		}
		if a.Notes == nil && r.Notes != "" {
			n := r.Notes
			a.Notes = &n
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].month != order[j].month {
			return order[i].month < order[j].month
		}
		return order[i].code < order[j].code
	})

	var (
		out  []Actual
		errs []RowError
	)
	for _, k := range order {
		a := byKey[k]
		if a.Amount.IsNegative() {
			errs = append(errs, RowError{Row: a.FirstRow, Message: fmt.Sprintf("net amount for %s %s is negative", a.CostCode, a.Month)})
			continue
		}
		if a.Quantity != nil && a.Quantity.IsPositive() {
			u := a.Amount.DivRound(*a.Quantity, 4)
			a.UnitCost = &u
		}
		out = append(out, *a)
	}
	return out, errs
}

func loadCostCodes(ctx context.Context, tx pgx.Tx) (map[string]string, error) {
	rows, err := tx.Query(ctx, `SELECT id::text, code FROM cost_codes`)
	if err != nil {
		return nil, fmt.Errorf("load cost codes: %w", err)
	}
	defer rows.Close()

	codes := map[string]string{}
	for rows.Next() {
		var id, code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		codes[strings.ToUpper(code)] = id
	}
	return codes, rows.Err()
}

// upsertActual writes one actual inside a savepoint so a failing row does
// not abort the whole import.
func upsertActual(ctx context.Context, tx pgx.Tx, projectID, costCodeID, source string, a Actual) (bool, error) {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = sp.QueryRow(ctx, `
		INSERT INTO actuals (project_id, cost_code_id, month, actual_amount, actual_quantity, actual_unit_cost, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, cost_code_id, month) DO UPDATE SET
			actual_amount = EXCLUDED.actual_amount,
			actual_quantity = EXCLUDED.actual_quantity,
			actual_unit_cost = EXCLUDED.actual_unit_cost,
			source = EXCLUDED.source,
			notes = EXCLUDED.notes,
			updated_at = now()
		RETURNING (xmax = 0)`,
		projectID, costCodeID, a.Month, a.Amount, a.Quantity, a.UnitCost, source, a.Notes,
	).Scan(&inserted)
	if err != nil {
		_ = sp.Rollback(ctx)
		return false, err
	}
	return inserted, sp.Commit(ctx)
}
