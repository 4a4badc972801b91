package db

import (
	"fmt"
	"strings"

	"cost-control-api/internal/apierr"
)

// Assignment is one column = value pair of an UPDATE. Absent assignments
// are skipped.
type Assignment struct {
	Column  string
	Value   any
	present bool
}

// Field assigns *v to column when v is non-nil.
func Field[T any](column string, v *T) Assignment {
	if v == nil {
		return Assignment{Column: column}
	}
	return Assignment{Column: column, Value: *v, present: true}
}

// Value always assigns v to column.
func Value(column string, v any) Assignment {
	return Assignment{Column: column, Value: v, present: true}
}

func (a Assignment) Present() bool { return a.present }

type Condition struct {
	Column string
	Value  any
}

// Update builds a partial UPDATE statement. Sets come from the request
// body; Also and Touch are appended only when at least one Set is present.
type Update struct {
	Table     string
	Sets      []Assignment
	Also      []Assignment
	Touch     []string // columns set to now()
	Where     []Condition
	Returning string
}

func (u Update) Build() (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(a Assignment) {
		args = append(args, a.Value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}

	for _, a := range u.Sets {
		if a.present {
			add(a)
		}
	}
	if len(clauses) == 0 {
		return "", nil, apierr.Validation("No fields to update", nil)
	}
	for _, a := range u.Also {
		if a.present {
			add(a)
		}
	}
	for _, col := range u.Touch {
		clauses = append(clauses, col+" = now()")
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(u.Table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(clauses, ", "))

	for i, c := range u.Where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, c.Value)
		fmt.Fprintf(&sb, "%s = $%d", c.Column, len(args))
	}
	if u.Returning != "" {
		sb.WriteString(" RETURNING ")
		sb.WriteString(u.Returning)
	}
	return sb.String(), args, nil
}
