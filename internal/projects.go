package internal

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"cost-control-api/internal/auth"
	"cost-control-api/internal/db"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"
)

const projectColumns = `id, name, job_number, contract_amount, budgeted_gp_pct, burden_pct,
	start_date, end_date, status, created_by, updated_by, created_at, updated_at`

var projectSort = map[string]string{
	"name":           "name",
	"jobNumber":      "job_number",
	"contractAmount": "contract_amount",
	"startDate":      "start_date",
	"endDate":        "end_date",
	"status":         "status",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
}

func scanProject(row rowScanner, p *models.Project) error {
	return row.Scan(&p.ID, &p.Name, &p.JobNumber, &p.ContractAmount, &p.BudgetedGpPct, &p.BurdenPct,
		&p.StartDate, &p.EndDate, &p.Status, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) error {
	q := validate.NewQuery(r.URL.Query())
	status := q.Enum("status", models.ProjectStatuses...)
	search := q.Get("search")
	startDate := q.Date("startDate")
	endDate := q.Date("endDate")
	page := q.Page()
	if err := q.Err(); err != nil {
		return err
	}

	var lq listQuery
	if status != "" {
		lq.add("status = $%d", status)
	}
	if search != "" {
		lq.add("(name ILIKE $%[1]d OR job_number ILIKE $%[1]d)", likePattern(search))
	}
	if startDate != "" {
		lq.add("start_date >= $%d::date", startDate)
	}
	if endDate != "" {
		lq.add("end_date <= $%d::date", endDate)
	}

	ctx := r.Context()
	total, err := lq.count(ctx, s.Store, "projects")
	if err != nil {
		return err
	}

	query := "SELECT " + projectColumns + " FROM projects" + lq.where() +
		buildOrderBy(page, projectSort, "name ASC") + lq.limit(page)
	projects, err := queryList(ctx, s.Store, query, lq.args, scanProject)
	if err != nil {
		return err
	}

	response.List(w, projects, response.NewPagination(page.Page, page.PageSize, total))
	return nil
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	p, err := queryItem(r.Context(), s.Store, "SELECT "+projectColumns+" FROM projects WHERE id = $1", []any{id}, scanProject)
	if err != nil {
		return db.NotFound(err, "Project")
	}
	response.OK(w, p)
	return nil
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) error {
	var req models.CreateProjectRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}
	start, _ := validate.ParseDateTime(req.StartDate)
	end, _ := validate.ParseDateTime(req.EndDate)
	status := req.Status
	if status == "" {
		status = models.StatusActive
	}
	user := auth.UserFromContext(r.Context())

	p, err := queryItem(r.Context(), s.Store, `
		INSERT INTO projects (name, job_number, contract_amount, budgeted_gp_pct, burden_pct,
			start_date, end_date, status, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+projectColumns,
		[]any{req.Name, req.JobNumber, req.ContractAmount, req.BudgetedGpPct, req.BurdenPct,
			start, end, status, user.UserID},
		scanProject)
	if err != nil {
		return err
	}

	logging.FromContext(r.Context()).Info("project created", "projectId", p.ID, "jobNumber", p.JobNumber)
	response.Created(w, p)
	return nil
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	var req models.UpdateProjectRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}
	user := auth.UserFromContext(r.Context())

	query, args, err := db.Update{
		Table: "projects",
		Sets: []db.Assignment{
			db.Field("name", req.Name),
			db.Field("job_number", req.JobNumber),
			db.Field("contract_amount", req.ContractAmount),
			db.Field("budgeted_gp_pct", req.BudgetedGpPct),
			db.Field("burden_pct", req.BurdenPct),
			dateField("start_date", req.StartDate, validate.ParseDateTime),
			dateField("end_date", req.EndDate, validate.ParseDateTime),
			db.Field("status", req.Status),
		},
		Also:      []db.Assignment{db.Value("updated_by", user.UserID)},
		Touch:     []string{"updated_at"},
		Where:     []db.Condition{{Column: "id", Value: id}},
		Returning: projectColumns,
	}.Build()
	if err != nil {
		return err
	}

	p, err := queryItem(r.Context(), s.Store, query, args, scanProject)
	if err != nil {
		return db.NotFound(err, "Project")
	}
	response.OK(w, p)
	return nil
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	res, err := s.Store.ExecContext(r.Context(), `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "Project"); err != nil {
		return err
	}

	logging.FromContext(r.Context()).Info("project deleted", "projectId", id)
	response.Deleted(w, "Project deleted")
	return nil
}

// getProjectSummary aggregates budget and actuals by cost type together
// with the latest projection snapshot.
func (s *Server) getProjectSummary(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	ctx := r.Context()

	p, err := queryItem(ctx, s.Store, "SELECT "+projectColumns+" FROM projects WHERE id = $1", []any{id}, scanProject)
	if err != nil {
		return db.NotFound(err, "Project")
	}

	budget, err := queryList(ctx, s.Store, `
		SELECT cc.type, COALESCE(SUM(bl.budgeted_amount), 0)
		FROM budget_lines bl
		JOIN cost_codes cc ON cc.id = bl.cost_code_id
		WHERE bl.project_id = $1
		GROUP BY cc.type
		ORDER BY cc.type`, []any{id},
		func(row rowScanner, t *models.BudgetTotal) error { return row.Scan(&t.CostType, &t.TotalBudget) })
	if err != nil {
		return err
	}

	actuals, err := queryList(ctx, s.Store, `
		SELECT cc.type, COALESCE(SUM(a.actual_amount), 0)
		FROM actuals a
		JOIN cost_codes cc ON cc.id = a.cost_code_id
		WHERE a.project_id = $1
		GROUP BY cc.type
		ORDER BY cc.type`, []any{id},
		func(row rowScanner, t *models.ActualTotal) error { return row.Scan(&t.CostType, &t.TotalActual) })
	if err != nil {
		return err
	}

	summary := models.ProjectSummary{Project: p, BudgetSummary: budget, ActualsSummary: actuals}

	latest, err := queryItem(ctx, s.Store, `
		SELECT projected_gp, projected_gp_pct, snapshot_name, snapshot_date
		FROM projection_snapshots
		WHERE project_id = $1
		ORDER BY snapshot_date DESC, created_at DESC
		LIMIT 1`, []any{id},
		func(row rowScanner, ps *models.ProjectionSummary) error {
			return row.Scan(&ps.ProjectedGp, &ps.ProjectedGpPct, &ps.SnapshotName, &ps.SnapshotDate)
		})
	switch {
	case err == nil:
		summary.ProjectionSummary = &latest
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	response.OK(w, summary)
	return nil
}

// dateField assigns a parsed date when v is present. Values reaching here
// have already passed validation.
func dateField(column string, v *string, parse func(string) (time.Time, error)) db.Assignment {
	if v == nil {
		return db.Field[time.Time](column, nil)
	}
	t, err := parse(*v)
	if err != nil {
		return db.Value(column, *v)
	}
	return db.Value(column, t)
}

// expectAffected turns a zero-row write into NOT_FOUND for resource.
func expectAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return db.NotFound(sql.ErrNoRows, resource)
	}
	return nil
}
