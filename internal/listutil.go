package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cost-control-api/internal/db"
	"cost-control-api/internal/validate"
)

// listQuery accumulates the WHERE clauses and positional arguments of a
// list statement.
type listQuery struct {
	clauses []string
	args    []any
}

// add appends a clause. format receives the argument's position, so the
// same argument may be referenced twice with %[1]d.
func (q *listQuery) add(format string, arg any) {
	q.args = append(q.args, arg)
	q.clauses = append(q.clauses, fmt.Sprintf(format, len(q.args)))
}

func (q *listQuery) where() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

// count returns the number of rows of from matching the clauses so far.
func (q *listQuery) count(ctx context.Context, store db.Querier, from string) (int, error) {
	var total int
	err := db.QueryOne(ctx, store, "SELECT COUNT(*) FROM "+from+q.where(), q.args, &total)
	return total, err
}

// limit appends LIMIT/OFFSET arguments for p. Call it after count.
func (q *listQuery) limit(p validate.Page) string {
	q.args = append(q.args, p.PageSize, p.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(q.args)-1, len(q.args))
}

// likePattern wraps s for a case-insensitive partial match, escaping the
// LIKE metacharacters it contains.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// buildOrderBy builds a safe ORDER BY clause using a whitelist of allowed keys.
// allowed maps API field names (e.g., "jobNumber") to column expressions.
// Sort is comma-separated; a '-' prefix forces DESC, otherwise p.Desc decides.
// Unknown keys are ignored and fallback is used when nothing remains.
func buildOrderBy(p validate.Page, allowed map[string]string, fallback string) string {
	parts := strings.Split(p.Sort, ",")
	clauses := make([]string, 0, len(parts))
	for _, raw := range parts {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := p.Desc
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		col, ok := allowed[s]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// queryList runs query and scans every row with scan. It never returns a
// nil slice so empty lists render as [].
func queryList[T any](ctx context.Context, q db.Querier, query string, args []any, scan func(rowScanner, *T) error) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryItem returns the first row of query, or sql.ErrNoRows.
func queryItem[T any](ctx context.Context, q db.Querier, query string, args []any, scan func(rowScanner, *T) error) (T, error) {
	var zero T
	items, err := queryList(ctx, q, query, args, scan)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, sql.ErrNoRows
	}
	return items[0], nil
}
