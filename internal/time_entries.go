package internal

import (
	"net/http"

	"cost-control-api/internal/auth"
	"cost-control-api/internal/db"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"

	"github.com/go-chi/chi/v5"
)

const timeEntrySelect = `SELECT te.id, te.project_id, te.employee_id, e.name, te.cost_code_id, cc.code, cc.description,
	te.entry_date, te.hours_st, te.hours_ot, te.hours_dt, te.source, te.notes, te.created_by, te.created_at`

const timeEntryJoins = ` JOIN employees e ON e.id = te.employee_id
	JOIN cost_codes cc ON cc.id = te.cost_code_id`

var timeEntrySort = map[string]string{
	"entryDate":    "te.entry_date",
	"employeeName": "e.name",
	"costCodeCode": "cc.code",
	"hoursSt":      "te.hours_st",
	"hoursOt":      "te.hours_ot",
	"hoursDt":      "te.hours_dt",
	"createdAt":    "te.created_at",
}

func scanTimeEntry(row rowScanner, te *models.TimeEntry) error {
	return row.Scan(&te.ID, &te.ProjectID, &te.EmployeeID, &te.EmployeeName, &te.CostCodeID, &te.CostCodeCode,
		&te.CostCodeDescription, &te.EntryDate, &te.HoursSt, &te.HoursOt, &te.HoursDt, &te.Source, &te.Notes,
		&te.CreatedBy, &te.CreatedAt)
}

func joinedTimeEntry(stmt string) string {
	return "WITH te AS (" + stmt + ") " + timeEntrySelect + " FROM te" + timeEntryJoins
}

// listTimeEntries serves both /time-entries and the project-scoped route.
// A project in the path takes the place of the projectId filter.
func (s *Server) listTimeEntries(w http.ResponseWriter, r *http.Request) error {
	q := validate.NewQuery(r.URL.Query())
	projectID := q.UUID("projectId")
	employeeID := q.UUID("employeeId")
	costCodeID := q.UUID("costCodeId")
	date := q.Date("date")
	startDate := q.Date("startDate")
	endDate := q.Date("endDate")
	page := q.Page()
	if err := q.Err(); err != nil {
		return err
	}
	if chi.URLParam(r, "projectId") != "" {
		id, err := validate.PathUUID(r, "projectId")
		if err != nil {
			return err
		}
		projectID = id
	}

	var lq listQuery
	if projectID != "" {
		lq.add("te.project_id = $%d", projectID)
	}
	if employeeID != "" {
		lq.add("te.employee_id = $%d", employeeID)
	}
	if costCodeID != "" {
		lq.add("te.cost_code_id = $%d", costCodeID)
	}
	if date != "" {
		lq.add("te.entry_date = $%d::date", date)
	}
	if startDate != "" {
		lq.add("te.entry_date >= $%d::date", startDate)
	}
	if endDate != "" {
		lq.add("te.entry_date <= $%d::date", endDate)
	}

	ctx := r.Context()
	total, err := lq.count(ctx, s.Store, "daily_time_entries te")
	if err != nil {
		return err
	}
	entries, err := queryList(ctx, s.Store,
		timeEntrySelect+" FROM daily_time_entries te"+timeEntryJoins+lq.where()+
			buildOrderBy(page, timeEntrySort, "te.entry_date DESC, e.name ASC")+lq.limit(page),
		lq.args, scanTimeEntry)
	if err != nil {
		return err
	}
	response.List(w, entries, response.NewPagination(page.Page, page.PageSize, total))
	return nil
}

func (s *Server) getTimeEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	te, err := queryItem(r.Context(), s.Store,
		timeEntrySelect+" FROM daily_time_entries te"+timeEntryJoins+" WHERE te.id = $1", []any{id}, scanTimeEntry)
	if err != nil {
		return db.NotFound(err, "Time entry")
	}
	response.OK(w, te)
	return nil
}

func (s *Server) createTimeEntry(w http.ResponseWriter, r *http.Request) error {
	var req models.CreateTimeEntryRequest
	if chi.URLParam(r, "projectId") != "" {
		projectID, err := validate.PathUUID(r, "projectId")
		if err != nil {
			return err
		}
		if err := validate.Decode(r, &req); err != nil {
			return err
		}
		req.ProjectID = projectID
		if err := validate.Struct(&req); err != nil {
			return err
		}
	} else if err := validate.Body(r, &req); err != nil {
		return err
	}

	entryDate, _ := validate.ParseDate(req.EntryDate)
	user := auth.UserFromContext(r.Context())

	te, err := queryItem(r.Context(), s.Store, joinedTimeEntry(`
		INSERT INTO daily_time_entries (project_id, employee_id, cost_code_id, entry_date,
			hours_st, hours_ot, hours_dt, source, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::numeric, 0), COALESCE($7::numeric, 0), $8, $9, $10)
		RETURNING *`),
		[]any{req.ProjectID, req.EmployeeID, req.CostCodeID, entryDate,
			req.HoursSt, req.HoursOt, req.HoursDt, models.SourceManual, req.Notes, user.UserID},
		scanTimeEntry)
	if err != nil {
		return err
	}

	logging.FromContext(r.Context()).Info("time entry created",
		"timeEntryId", te.ID, "projectId", te.ProjectID, "employeeId", te.EmployeeID)
	response.Created(w, te)
	return nil
}

// updateTimeEntry changes hours and notes. The 24 hour daily ceiling over
// the merged row is enforced by daily_time_entries_hours_total_check.
func (s *Server) updateTimeEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	var req models.UpdateTimeEntryRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}

	stmt, args, err := db.Update{
		Table: "daily_time_entries",
		Sets: []db.Assignment{
			db.Field("hours_st", req.HoursSt),
			db.Field("hours_ot", req.HoursOt),
			db.Field("hours_dt", req.HoursDt),
			db.Field("notes", req.Notes),
		},
		Touch:     []string{"updated_at"},
		Where:     []db.Condition{{Column: "id", Value: id}},
		Returning: "*",
	}.Build()
	if err != nil {
		return err
	}

	te, err := queryItem(r.Context(), s.Store, joinedTimeEntry(stmt), args, scanTimeEntry)
	if err != nil {
		return db.NotFound(err, "Time entry")
	}
	response.OK(w, te)
	return nil
}

func (s *Server) deleteTimeEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	res, err := s.Store.ExecContext(r.Context(), `DELETE FROM daily_time_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "Time entry"); err != nil {
		return err
	}
	response.Deleted(w, "Time entry deleted")
	return nil
}
