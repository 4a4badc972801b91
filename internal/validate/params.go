package validate

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"cost-control-api/internal/apierr"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// PathUUID reads a route parameter that must be a UUID.
func PathUUID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", apierr.Validation("Missing path parameter: "+name, nil)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apierr.Validation("Invalid path parameter: "+name, map[string]string{name: "Invalid UUID format"})
	}
	return id.String(), nil
}

// PathMonth reads a route parameter that must be YYYY-MM.
func PathMonth(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", apierr.Validation("Missing path parameter: "+name, nil)
	}
	if !IsMonth(raw) {
		return "", apierr.Validation("Invalid path parameter: "+name, map[string]string{name: "Month must be in YYYY-MM format"})
	}
	return raw, nil
}

// Page holds the pagination and ordering options of a list request.
type Page struct {
	Page     int
	PageSize int
	Sort     string
	Desc     bool
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Query collects query-string failures so one response reports all of them.
type Query struct {
	values  url.Values
	details map[string]string
}

func NewQuery(values url.Values) *Query {
	return &Query{values: values, details: map[string]string{}}
}

func (q *Query) fail(name, msg string) {
	if _, ok := q.details[name]; !ok {
		q.details[name] = msg
	}
}

// Get returns the trimmed value of name, or "".
func (q *Query) Get(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

// UUID returns the value of name if present and well formed.
func (q *Query) UUID(name string) string {
	raw := q.Get(name)
	if raw == "" {
		return ""
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.fail(name, "Invalid UUID format")
		return ""
	}
	return id.String()
}

// Enum returns the value of name if it is one of allowed.
func (q *Query) Enum(name string, allowed ...string) string {
	raw := q.Get(name)
	if raw == "" {
		return ""
	}
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	q.fail(name, "Must be one of: "+strings.Join(allowed, ", "))
	return ""
}

// EnumList splits a comma separated value and checks every element
// against allowed. Repeated parameters are accepted too.
func (q *Query) EnumList(name string, allowed ...string) []string {
	var out []string
	for _, raw := range q.values[name] {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if !slices.Contains(allowed, v) {
				q.fail(name, "Must be one of: "+strings.Join(allowed, ", "))
				return nil
			}
			out = append(out, v)
		}
	}
	return out
}

// Bool parses an optional boolean.
func (q *Query) Bool(name string) *bool {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "Expected boolean")
		return nil
	}
	return &b
}

// Date returns the value of name if it is a date or timestamp.
func (q *Query) Date(name string) string {
	raw := q.Get(name)
	if raw == "" {
		return ""
	}
	if _, err := ParseDate(raw); err != nil {
		q.fail(name, "Invalid date")
		return ""
	}
	return raw
}

// Month returns the value of name if it is YYYY-MM.
func (q *Query) Month(name string) string {
	raw := q.Get(name)
	if raw == "" {
		return ""
	}
	if !IsMonth(raw) {
		q.fail(name, "Month must be in YYYY-MM format")
		return ""
	}
	return raw
}

// Page parses page (>=1, default 1), pageSize (1-100, default 20), sort
// and order (asc|desc, default asc).
func (q *Query) Page() Page {
	p := Page{Page: defaultPage, PageSize: defaultPageSize, Sort: q.Get("sort")}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			q.fail("page", "Expected integer")
		case n < 1:
			q.fail("page", "Must be greater than or equal to 1")
		default:
			p.Page = n
		}
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			q.fail("pageSize", "Expected integer")
		case n < 1:
			q.fail("pageSize", "Must be greater than or equal to 1")
		case n > maxPageSize:
			q.fail("pageSize", "Must be less than or equal to 100")
		default:
			p.PageSize = n
		}
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		p.Desc = true
	default:
		q.fail("order", "Must be one of: asc, desc")
	}
	return p
}

// Err returns the collected failures, if any.
func (q *Query) Err() error {
	if len(q.details) == 0 {
		return nil
	}
	return apierr.Validation("Invalid query parameters", q.details)
}
