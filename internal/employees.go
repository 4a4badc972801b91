package internal

import (
	"net/http"

	"cost-control-api/internal/db"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"
)

const employeeSelect = `SELECT e.id, e.project_id, e.name, e.labor_rate_id, lr.code, lr.description,
	lr.hourly_rate, e.home_branch, e.project_role, e.assigned_date, e.end_date, e.is_active, e.created_at`

const employeeFrom = " FROM employees e JOIN labor_rates lr ON lr.id = e.labor_rate_id"

var employeeSort = map[string]string{
	"name":         "e.name",
	"assignedDate": "e.assigned_date",
	"endDate":      "e.end_date",
	"projectRole":  "e.project_role",
	"homeBranch":   "e.home_branch",
	"hourlyRate":   "lr.hourly_rate",
	"createdAt":    "e.created_at",
}

func scanEmployee(row rowScanner, e *models.Employee) error {
	return row.Scan(&e.ID, &e.ProjectID, &e.Name, &e.LaborRateID, &e.LaborRateCode, &e.LaborRateDescription,
		&e.HourlyRate, &e.HomeBranch, &e.ProjectRole, &e.AssignedDate, &e.EndDate, &e.IsActive, &e.CreatedAt)
}

func joinedEmployee(stmt string) string {
	return "WITH e AS (" + stmt + ") " + employeeSelect +
		" FROM e JOIN labor_rates lr ON lr.id = e.labor_rate_id"
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	q := validate.NewQuery(r.URL.Query())
	active := q.Bool("isActive")
	search := q.Get("search")
	page := q.Page()
	if err := q.Err(); err != nil {
		return err
	}

	var lq listQuery
	lq.add("e.project_id = $%d", projectID)
	if active != nil {
		lq.add("e.is_active = $%d", *active)
	}
	if search != "" {
		lq.add("(e.name ILIKE $%[1]d OR e.project_role ILIKE $%[1]d)", likePattern(search))
	}

	ctx := r.Context()
	total, err := lq.count(ctx, s.Store, "employees e")
	if err != nil {
		return err
	}
	employees, err := queryList(ctx, s.Store,
		employeeSelect+employeeFrom+lq.where()+buildOrderBy(page, employeeSort, "e.name ASC")+lq.limit(page),
		lq.args, scanEmployee)
	if err != nil {
		return err
	}
	response.List(w, employees, response.NewPagination(page.Page, page.PageSize, total))
	return nil
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	e, err := queryItem(r.Context(), s.Store, employeeSelect+employeeFrom+" WHERE e.id = $1 AND e.project_id = $2",
		[]any{id, projectID}, scanEmployee)
	if err != nil {
		return db.NotFound(err, "Employee")
	}
	response.OK(w, e)
	return nil
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	var req models.CreateEmployeeRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}
	assigned, _ := validate.ParseDate(req.AssignedDate)
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	e, err := queryItem(r.Context(), s.Store, joinedEmployee(`
		INSERT INTO employees (project_id, name, labor_rate_id, home_branch, project_role,
			assigned_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8)
		RETURNING *`),
		[]any{projectID, req.Name, req.LaborRateID, req.HomeBranch, req.ProjectRole, assigned, req.EndDate, active},
		scanEmployee)
	if err != nil {
		return err
	}
	response.Created(w, e)
	return nil
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	var req models.UpdateEmployeeRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}

	stmt, args, err := db.Update{
		Table: "employees",
		Sets: []db.Assignment{
			db.Field("name", req.Name),
			db.Field("labor_rate_id", req.LaborRateID),
			db.Field("home_branch", req.HomeBranch),
			db.Field("project_role", req.ProjectRole),
			dateField("assigned_date", req.AssignedDate, validate.ParseDate),
			dateField("end_date", req.EndDate, validate.ParseDate),
			db.Field("is_active", req.IsActive),
		},
		Where:     []db.Condition{{Column: "id", Value: id}, {Column: "project_id", Value: projectID}},
		Returning: "*",
	}.Build()
	if err != nil {
		return err
	}

	e, err := queryItem(r.Context(), s.Store, joinedEmployee(stmt), args, scanEmployee)
	if err != nil {
		return db.NotFound(err, "Employee")
	}
	response.OK(w, e)
	return nil
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	res, err := s.Store.ExecContext(r.Context(),
		`DELETE FROM employees WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "Employee"); err != nil {
		return err
	}
	response.Deleted(w, "Employee removed")
	return nil
}
