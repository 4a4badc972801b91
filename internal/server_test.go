package internal

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"cost-control-api/internal/auth"
	"cost-control-api/internal/config"
	"cost-control-api/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret-key-that-is-long-enough-for-testing"
	testProject = "3f1c2b7e-8d4a-4e3b-9a51-0c6f2d8e7b10"
	testLine    = "9b2e4c61-1f3d-4a7e-8c05-6d2a9e3b4f21"
	testCode    = "5a7d9e21-3c4b-4f6a-8e19-2b0c7d6e5f32"
	testSnap    = "c4e8a1f2-6b3d-4d9e-a057-1f2e3d4c5b63"
)

type testEnv struct {
	server *Server
	mock   sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := db.NewClient(func(context.Context) (*sql.DB, error) { return mockDB, nil }, log)

	cfg := &config.Config{
		JWTSecret:   testSecret,
		JWTIssuer:   "cost-control-api",
		JWTAudience: "cost-control-api",
		JWTExpiry:   time.Hour,
	}
	s, err := NewServer(cfg, Deps{Store: client, Ping: client.Ping, Log: log})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = mockDB.Close()
	})
	return &testEnv{server: s, mock: mock}
}

// do sends a request as a caller in the given groups. No groups means no
// Authorization header at all.
func (e *testEnv) do(t *testing.T, method, path, body string, groups ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if len(groups) > 0 {
		token, err := e.server.JWTManager.GenerateToken(auth.Identity{Subject: "user-1", Groups: groups})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Page        int  `json:"page"`
		PageSize    int  `json:"pageSize"`
		TotalPages  int  `json:"totalPages"`
		TotalItems  int  `json:"totalItems"`
		HasNext     bool `json:"hasNext"`
		HasPrevious bool `json:"hasPrevious"`
	} `json:"pagination"`
	Error *struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Details   map[string]string `json:"details"`
		RequestID string            `json:"requestId"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

var projectCols = []string{"id", "name", "job_number", "contract_amount", "budgeted_gp_pct", "burden_pct",
	"start_date", "end_date", "status", "created_by", "updated_by", "created_at", "updated_at"}

func projectRow(id, name string) []driver.Value {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return []driver.Value{id, name, "23CON0002", "1000000", "25", nil,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		"ACTIVE", "user-1", "user-1", now, now}
}

func TestLifecycleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.do(t, http.MethodGet, "/drain", "")
	assert.False(t, env.server.Ready())
	w = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.do(t, http.MethodGet, "/undrain", "")
	w = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDBPing(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectPing()

	w := env.do(t, http.MethodGet, "/dbping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "0b8f5a4e-2f6c-4d1a-9e3b-7c5d2a1f0e94")
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	assert.Equal(t, "0b8f5a4e-2f6c-4d1a-9e3b-7c5d2a1f0e94", w.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	w = httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get("X-Request-Id"))
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/projects/"+testProject, nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	w := httptest.NewRecorder()
	env.server.Router.ServeHTTP(w, req)

	// no token and no SQL: preflights stop before auth
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodDelete, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestRouteFallbacks(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/nowhere", "", "Viewer")
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "Route not found", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)

	w = env.do(t, http.MethodPatch, "/projects", "{}", "Admin")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body = decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "Method not allowed", body.Error.Message)
}

func TestUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/projects", "/cost-codes", "/time-entries", "/labor-rates"} {
		w := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "UNAUTHORIZED", decode(t, w).Error.Code)
	}
}

func TestRoleEnforcementBeforeSQL(t *testing.T) {
	project := "/projects/" + testProject
	tests := []struct {
		name   string
		method string
		path   string
		groups []string
	}{
		{"viewer creates project", http.MethodPost, "/projects", []string{"Viewer"}},
		{"viewer updates project", http.MethodPut, project, []string{"Viewer"}},
		{"viewer deletes project", http.MethodDelete, project, []string{"Viewer"}},
		{"pm deletes project", http.MethodDelete, project, []string{"ProjectManager"}},
		{"viewer creates budget line", http.MethodPost, project + "/budget", []string{"Viewer"}},
		{"viewer updates budget line", http.MethodPut, project + "/budget/" + testLine, []string{"Viewer"}},
		{"viewer deletes budget line", http.MethodDelete, project + "/budget/" + testLine, []string{"Viewer"}},
		{"viewer adds employee", http.MethodPost, project + "/employees", []string{"Viewer"}},
		{"viewer logs time", http.MethodPost, "/time-entries", []string{"Viewer"}},
		{"viewer logs project time", http.MethodPost, project + "/time-entries", []string{"Viewer"}},
		{"viewer deletes time entry", http.MethodDelete, "/time-entries/" + testLine, []string{"Viewer"}},
		{"viewer posts actual", http.MethodPost, project + "/actuals", []string{"Viewer"}},
		{"viewer creates projection", http.MethodPost, project + "/projections", []string{"Viewer"}},
		{"unknown group is viewer", http.MethodDelete, project + "/projections/" + testSnap, []string{"Accounting"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, tt.method, tt.path, `{"name":"x"}`, tt.groups...)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)
		})
	}
}

func TestMissingIDGuards(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPut, "/projects", "Project ID required"},
		{http.MethodDelete, "/projects", "Project ID required"},
		{http.MethodPut, "/projects/" + testProject + "/budget", "Budget line ID required"},
		{http.MethodDelete, "/projects/" + testProject + "/employees", "Employee ID required"},
		{http.MethodPut, "/time-entries", "Time entry ID required"},
		{http.MethodDelete, "/projects/" + testProject + "/projections", "Projection ID required"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, tt.method, tt.path, "{}", "Admin")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w).Error.Message)
		})
	}
}

func TestValidationFailuresIssueNoSQL(t *testing.T) {
	project := "/projects/" + testProject
	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantMsg   string
		wantField string
	}{
		{"empty budget update", http.MethodPut, project + "/budget/" + testLine, `{}`, "No fields to update", ""},
		{"empty project update", http.MethodPut, project, `{}`, "No fields to update", ""},
		{"empty projection update", http.MethodPut, project + "/projections/" + testSnap, `{}`, "No fields to update", ""},
		{"bad path id", http.MethodGet, "/projects/not-a-uuid", "", "Invalid path parameter: projectId", "projectId"},
		{"bad month", http.MethodGet, project + "/actuals/2025-13", "", "Invalid path parameter: month", "month"},
		{"end before start", http.MethodPost, "/projects",
			`{"name":"T","jobNumber":"23CON0002","contractAmount":1,"budgetedGpPct":25,"startDate":"2025-06-01T00:00:00Z","endDate":"2025-01-01T00:00:00Z"}`,
			"Invalid request data", "endDate"},
		{"hours over a day", http.MethodPost, "/time-entries",
			`{"projectId":"` + testProject + `","employeeId":"` + testLine + `","costCodeId":"` + testCode + `","entryDate":"2025-01-06","hoursSt":10,"hoursOt":10,"hoursDt":5}`,
			"Invalid request data", "hoursSt"},
		{"actual month format", http.MethodPost, project + "/actuals",
			`{"costCodeId":"` + testCode + `","month":"2025-1","actualAmount":10}`, "Invalid request data", "month"},
		{"projection without details", http.MethodPost, project + "/projections",
			`{"snapshotName":"Q1","details":[]}`, "Invalid request data", "details"},
		{"bad page size", http.MethodGet, "/projects?pageSize=500", "", "Invalid query parameters", "pageSize"},
		{"bad status filter", http.MethodGet, "/projects?status=DONE", "", "Invalid query parameters", "status"},
		{"bad cost code type", http.MethodGet, "/cost-codes?type=FOOD", "", "Invalid query parameters", "type"},
		{"malformed json", http.MethodPost, "/projects", `{"name":`, "Invalid JSON body", "body"},
		{"sub-cent contract amount", http.MethodPost, "/projects",
			`{"name":"T","jobNumber":"23CON0002","contractAmount":0.001,"budgetedGpPct":25,"startDate":"2025-01-01T00:00:00Z","endDate":"2025-12-31T00:00:00Z"}`,
			"Invalid request data", "contractAmount"},
		{"sub-cent contract update", http.MethodPut, project, `{"contractAmount":0.005}`, "Invalid request data", "contractAmount"},
		{"burden over column range", http.MethodPut, project, `{"burdenPct":1000}`, "Invalid request data", "burdenPct"},
		{"body month contradicts path", http.MethodPost, project + "/actuals/2025-07",
			`{"costCodeId":"` + testCode + `","month":"2025-08","actualAmount":10}`, "Month in body does not match path", "month"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, tt.method, tt.path, tt.body, "ProjectManager")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			if tt.wantField != "" {
				assert.Contains(t, body.Error.Details, tt.wantField)
			}
		})
	}
}

func TestListProjectsPagination(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects WHERE status = \$1 AND \(name ILIKE \$2 OR job_number ILIKE \$2\)`).
		WithArgs("ACTIVE", "%Medical%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	env.mock.ExpectQuery(`FROM projects WHERE .* ORDER BY name ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("ACTIVE", "%Medical%", 10, 10).
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(projectRow(testProject, "Medical Center")...).
			AddRow(projectRow(testSnap, "Medical Office")...))

	w := env.do(t, http.MethodGet, "/projects?status=ACTIVE&search=Medical&page=2&pageSize=10", "", "Viewer")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 10, body.Pagination.PageSize)
	assert.Equal(t, 3, body.Pagination.TotalPages)
	assert.Equal(t, 25, body.Pagination.TotalItems)
	assert.True(t, body.Pagination.HasNext)
	assert.True(t, body.Pagination.HasPrevious)

	var projects []map[string]any
	require.NoError(t, json.Unmarshal(body.Data, &projects))
	require.Len(t, projects, 2)
	assert.Equal(t, "Medical Center", projects[0]["name"])
	assert.Equal(t, float64(1000000), projects[0]["contractAmount"])
}

func TestListProjectsSortWhitelist(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	env.mock.ExpectQuery(`ORDER BY job_number DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows(projectCols))

	w := env.do(t, http.MethodGet, "/projects?sort=jobNumber,password&order=desc", "", "Viewer")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "[]", string(decode(t, w).Data))
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs("Test", "23CON0002", "1000000", "25", nil,
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			"ACTIVE", "user-1").
		WillReturnRows(sqlmock.NewRows(projectCols).AddRow(projectRow(testProject, "Test")...))

	w := env.do(t, http.MethodPost, "/projects",
		`{"name":"Test","jobNumber":"23CON0002","contractAmount":1000000,"budgetedGpPct":25,"startDate":"2025-01-01T00:00:00Z","endDate":"2025-12-31T00:00:00Z"}`,
		"ProjectManager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &p))
	assert.Equal(t, testProject, p["id"])
	assert.Equal(t, "23CON0002", p["jobNumber"])
	assert.Equal(t, float64(25), p["budgetedGpPct"])
	assert.NotEmpty(t, p["createdAt"])
}

func TestCreateProjectDuplicateJobNumber(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`INSERT INTO projects`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "projects_job_number_key"})

	w := env.do(t, http.MethodPost, "/projects",
		`{"name":"Test","jobNumber":"23CON0002","contractAmount":1000000,"budgetedGpPct":25,"startDate":"2025-01-01T00:00:00Z","endDate":"2025-12-31T00:00:00Z"}`,
		"Admin")
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "CONFLICT", body.Error.Code)
	assert.Equal(t, "Job number already exists", body.Error.Message)
}

func TestUpdateProjectScopesColumns(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`UPDATE projects SET status = \$1, updated_by = \$2, updated_at = now\(\) WHERE id = \$3 RETURNING`).
		WithArgs("ON_HOLD", "user-1", testProject).
		WillReturnRows(sqlmock.NewRows(projectCols))

	w := env.do(t, http.MethodPut, "/projects/"+testProject, `{"status":"ON_HOLD"}`, "ProjectManager")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode(t, w).Error.Message)
}

func TestDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
		WithArgs(testProject).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`DELETE FROM projects WHERE id = \$1`).
		WithArgs(testProject).
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := env.do(t, http.MethodDelete, "/projects/"+testProject, "", "Admin")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Project deleted", w.Header().Get("X-Result-Message"))
	assert.Empty(t, w.Body.String())

	w = env.do(t, http.MethodDelete, "/projects/"+testProject, "", "Admin")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteBudgetLineScopedToProject(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec(`DELETE FROM budget_lines WHERE id = \$1 AND project_id = \$2`).
		WithArgs(testLine, testProject).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := env.do(t, http.MethodDelete, "/projects/"+testProject+"/budget/"+testLine, "", "ProjectManager")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "Budget line deleted", w.Header().Get("X-Result-Message"))
}

func TestUpdateBudgetLine(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	update := regexp.QuoteMeta(`WITH b AS (UPDATE budget_lines SET budgeted_amount = $1, notes = $2, ` +
		`updated_at = now() WHERE id = $3 AND project_id = $4 RETURNING *) SELECT b.id`)
	env.mock.ExpectQuery(update).
		WithArgs("45000.5", "Revised takeoff", testLine, testProject).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "cost_code_id", "code", "description", "type",
			"description", "budgeted_amount", "budgeted_quantity", "budgeted_unit_cost", "notes", "created_at", "updated_at"}).
			AddRow(testLine, testProject, testCode, "03-100", "Concrete", "MATERIAL",
				nil, "45000.5", nil, nil, "Revised takeoff", now, now))
	env.mock.ExpectQuery(update).
		WithArgs("45000.5", "Revised takeoff", testLine, testProject).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body := `{"budgetedAmount":45000.50,"notes":"Revised takeoff"}`
	w := env.do(t, http.MethodPut, "/projects/"+testProject+"/budget/"+testLine, body, "ProjectManager")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var line map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &line))
	assert.Equal(t, 45000.5, line["budgetedAmount"])
	assert.Equal(t, "03-100", line["costCodeCode"])

	// a line under another project matches no row
	w = env.do(t, http.MethodPut, "/projects/"+testProject+"/budget/"+testLine, body, "ProjectManager")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Budget line not found", decode(t, w).Error.Message)
}

func TestUpdateEmployee(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta(`WITH e AS (UPDATE employees SET end_date = $1, is_active = $2 ` +
		`WHERE id = $3 AND project_id = $4 RETURNING *) SELECT e.id`)).
		WithArgs(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), false, testLine, testProject).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := env.do(t, http.MethodPut, "/projects/"+testProject+"/employees/"+testLine,
		`{"endDate":"2025-06-30","isActive":false}`, "ProjectManager")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Employee not found", decode(t, w).Error.Message)
}

func TestUpdateTimeEntry(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.mock.ExpectQuery(regexp.QuoteMeta(`WITH te AS (UPDATE daily_time_entries SET hours_ot = $1, ` +
		`updated_at = now() WHERE id = $2 RETURNING *) SELECT te.id`)).
		WithArgs("2.5", testLine).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "employee_id", "name", "cost_code_id", "code",
			"description", "entry_date", "hours_st", "hours_ot", "hours_dt", "source", "notes", "created_by", "created_at"}).
			AddRow(testLine, testProject, testSnap, "Dana Ortiz", testCode, "02-100", "Labor",
				time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), "8", "2.5", "0", "MANUAL", nil, "user-1", now))

	w := env.do(t, http.MethodPut, "/time-entries/"+testLine, `{"hoursOt":2.5}`, "ProjectManager")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var te map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &te))
	assert.Equal(t, 2.5, te["hoursOt"])
	assert.Equal(t, "Dana Ortiz", te["employeeName"])

	env.mock.ExpectQuery(`WITH te AS \(UPDATE daily_time_entries SET hours_ot = \$1`).
		WithArgs("20", testLine).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "daily_time_entries_hours_total_check"})
	w = env.do(t, http.MethodPut, "/time-entries/"+testLine, `{"hoursOt":20}`, "ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Total hours cannot exceed 24", decode(t, w).Error.Message)

	// submitted hours alone over the ceiling never reach the database
	w = env.do(t, http.MethodPut, "/time-entries/"+testLine, `{"hoursSt":20,"hoursOt":10}`, "ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Total hours cannot exceed 24", decode(t, w).Error.Details["hoursSt"])
}

func TestUpdateProjection(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.mock.ExpectQuery(regexp.QuoteMeta(`UPDATE projection_snapshots SET snapshot_name = $1 ` +
		`WHERE id = $2 AND project_id = $3 RETURNING id, project_id`)).
		WithArgs("Q2 revised", testSnap, testProject).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "snapshot_date", "snapshot_name",
			"projected_gp", "projected_gp_pct", "notes", "created_by", "created_at"}).
			AddRow(testSnap, testProject, now, "Q2 revised", "250000", "25", nil, "user-1", now))

	w := env.do(t, http.MethodPut, "/projects/"+testProject+"/projections/"+testSnap,
		`{"snapshotName":"Q2 revised"}`, "ProjectManager")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &snap))
	assert.Equal(t, "Q2 revised", snap["snapshotName"])
	assert.Equal(t, float64(25), snap["projectedGpPct"])
}

func TestUpsertActual(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.mock.ExpectQuery(`ON CONFLICT \(project_id, cost_code_id, month\) DO UPDATE`).
		WithArgs(testProject, testCode, "2025-03", "1250.5", nil, nil, "MANUAL", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "cost_code_id", "code", "description", "type",
			"month", "actual_amount", "actual_quantity", "actual_unit_cost", "source", "notes", "created_at", "updated_at"}).
			AddRow(testLine, testProject, testCode, "01-100", "Labor", "LABOR", "2025-03", "1250.5",
				nil, nil, "MANUAL", nil, now, now))

	w := env.do(t, http.MethodPost, "/projects/"+testProject+"/actuals",
		`{"costCodeId":"`+testCode+`","month":"2025-03","actualAmount":1250.50}`, "ProjectManager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var a map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &a))
	assert.Equal(t, "01-100", a["costCodeCode"])
	assert.Equal(t, 1250.5, a["actualAmount"])
	assert.Nil(t, a["actualQuantity"])
}

func TestUpsertActualForPathMonth(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.mock.ExpectQuery(`ON CONFLICT \(project_id, cost_code_id, month\) DO UPDATE`).
		WithArgs(testProject, testCode, "2025-07", "980", nil, nil, "MANUAL", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "cost_code_id", "code", "description", "type",
			"month", "actual_amount", "actual_quantity", "actual_unit_cost", "source", "notes", "created_at", "updated_at"}).
			AddRow(testLine, testProject, testCode, "01-100", "Labor", "LABOR", "2025-07", "980",
				nil, nil, "MANUAL", nil, now, now))

	path := "/projects/" + testProject + "/actuals/2025-07"
	w := env.do(t, http.MethodPost, path, `{"costCodeId":"`+testCode+`","actualAmount":980}`, "ProjectManager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &a))
	assert.Equal(t, "2025-07", a["month"])

	w = env.do(t, http.MethodPost, path, `{"costCodeId":"`+testCode+`","month":"2025-08","actualAmount":980}`, "ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Must equal 2025-07", decode(t, w).Error.Details["month"])

	w = env.do(t, http.MethodPost, "/projects/"+testProject+"/actuals/2025-13", `{"costCodeId":"`+testCode+`","actualAmount":1}`, "ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, path, `{"costCodeId":"`+testCode+`","actualAmount":1}`, "Viewer")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateProjectionComputesGrossProfit(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`SELECT contract_amount FROM projects WHERE id = \$1`).
		WithArgs(testProject).
		WillReturnRows(sqlmock.NewRows([]string{"contract_amount"}).AddRow("1000000"))
	env.mock.ExpectQuery(`INSERT INTO projection_snapshots`).
		WithArgs(testProject, "Q1", "250000", "25", nil, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "snapshot_date", "snapshot_name",
			"projected_gp", "projected_gp_pct", "notes", "created_by", "created_at"}).
			AddRow(testSnap, testProject, now, "Q1", "250000", "25", nil, "user-1", now))
	env.mock.ExpectExec(`INSERT INTO projection_details`).
		WithArgs(testSnap, testCode, "500000", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(`INSERT INTO projection_details`).
		WithArgs(testSnap, testLine, "250000", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(`FROM projection_details d`).
		WithArgs(testSnap).
		WillReturnRows(sqlmock.NewRows([]string{"id", "snapshot_id", "cost_code_id", "code", "description", "type",
			"projected_amount", "projected_quantity", "projected_unit_cost", "notes"}).
			AddRow("d1", testSnap, testCode, "01-100", "Labor", "LABOR", "500000", nil, nil, nil).
			AddRow("d2", testSnap, testLine, "02-200", "Concrete", "MATERIAL", "250000", nil, nil, nil))
	env.mock.ExpectCommit()

	w := env.do(t, http.MethodPost, "/projects/"+testProject+"/projections",
		`{"snapshotName":"Q1","details":[{"costCodeId":"`+testCode+`","projectedAmount":500000},{"costCodeId":"`+testLine+`","projectedAmount":250000}]}`,
		"ProjectManager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Snapshot struct {
			ProjectedGp    float64 `json:"projectedGp"`
			ProjectedGpPct float64 `json:"projectedGpPct"`
		} `json:"snapshot"`
		Details []map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &out))
	assert.Equal(t, float64(250000), out.Snapshot.ProjectedGp)
	assert.Equal(t, float64(25), out.Snapshot.ProjectedGpPct)
	assert.Len(t, out.Details, 2)
}

func TestCreateProjectionRollsBackOnDetailFailure(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`SELECT contract_amount FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"contract_amount"}).AddRow("100"))
	env.mock.ExpectQuery(`INSERT INTO projection_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "snapshot_date", "snapshot_name",
			"projected_gp", "projected_gp_pct", "notes", "created_by", "created_at"}).
			AddRow(testSnap, testProject, now, "Q1", "90", "90", nil, "user-1", now))
	env.mock.ExpectExec(`INSERT INTO projection_details`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "projection_details_cost_code_id_fkey"})
	env.mock.ExpectRollback()

	w := env.do(t, http.MethodPost, "/projects/"+testProject+"/projections",
		`{"snapshotName":"Q1","details":[{"costCodeId":"`+testCode+`","projectedAmount":10}]}`, "ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Referenced record does not exist", body.Error.Message)
	assert.Equal(t, "Cost code does not exist", body.Error.Details["costCodeId"])
}

func TestCreateProjectionUnknownProject(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`SELECT contract_amount FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"contract_amount"}))
	env.mock.ExpectRollback()

	w := env.do(t, http.MethodPost, "/projects/"+testProject+"/projections",
		`{"snapshotName":"Q1","details":[{"costCodeId":"`+testCode+`","projectedAmount":10}]}`, "ProjectManager")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode(t, w).Error.Message)
}

func TestCreateTimeEntryPathOverridesBody(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`INSERT INTO daily_time_entries`).
		WithArgs(testProject, testLine, testCode, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			"8", nil, nil, "MANUAL", nil, "user-1").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "daily_time_entries_employee_id_fkey"})

	w := env.do(t, http.MethodPost, "/projects/"+testProject+"/time-entries",
		`{"projectId":"`+testSnap+`","employeeId":"`+testLine+`","costCodeId":"`+testCode+`","entryDate":"2025-01-06","hoursSt":8}`,
		"ProjectManager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Employee does not exist", decode(t, w).Error.Details["employeeId"])
}

func TestListCostCodesTypeFilter(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cost_codes WHERE type = ANY\(\$1\) AND is_active = \$2`).
		WithArgs("{\"LABOR\",\"MATERIAL\"}", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	env.mock.ExpectQuery(`FROM cost_codes WHERE .* ORDER BY code ASC LIMIT \$3 OFFSET \$4`).
		WithArgs("{\"LABOR\",\"MATERIAL\"}", true, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "description", "type", "is_active", "created_at"}).
			AddRow(testCode, "01-100", "Labor", "LABOR", true, time.Now()))

	w := env.do(t, http.MethodGet, "/cost-codes?type=LABOR,MATERIAL&isActive=true", "", "Viewer")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, 1, body.Pagination.TotalItems)
	assert.Equal(t, 1, body.Pagination.TotalPages)
}

func TestUnclassifiedErrorIsInternal(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(`FROM labor_rates`).WillReturnError(io.ErrUnexpectedEOF)

	w := env.do(t, http.MethodGet, "/labor-rates", "", "Viewer")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "An unexpected error occurred", body.Error.Message)
}
