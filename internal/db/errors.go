package db

import (
	"database/sql"
	"errors"

	"cost-control-api/internal/apierr"

	"github.com/jackc/pgx/v5/pgconn"
)

type constraintInfo struct {
	field   string
	message string
}

// Known constraint names from db/migrations. Unknown names fall back to a
// generic message.
var constraints = map[string]constraintInfo{
	"projects_job_number_key":              {"jobNumber", "Job number already exists"},
	"cost_codes_code_key":                  {"code", "Cost code already exists"},
	"labor_rates_code_key":                 {"code", "Labor rate code already exists"},
	"actuals_project_cost_code_month_key":  {"month", "Actual already exists for this month"},
	"budget_lines_project_id_fkey":         {"projectId", "Project does not exist"},
	"budget_lines_cost_code_id_fkey":       {"costCodeId", "Cost code does not exist"},
	"employees_project_id_fkey":            {"projectId", "Project does not exist"},
	"employees_labor_rate_id_fkey":         {"laborRateId", "Labor rate does not exist"},
	"daily_time_entries_project_id_fkey":   {"projectId", "Project does not exist"},
	"daily_time_entries_employee_id_fkey":  {"employeeId", "Employee does not exist"},
	"daily_time_entries_cost_code_id_fkey": {"costCodeId", "Cost code does not exist"},
	"daily_time_entries_hours_total_check": {"hoursSt", "Total hours cannot exceed 24"},
	"daily_time_entries_hours_st_check":    {"hoursSt", "Hours must be between 0 and 24"},
	"daily_time_entries_hours_ot_check":    {"hoursOt", "Hours must be between 0 and 24"},
	"daily_time_entries_hours_dt_check":    {"hoursDt", "Hours must be between 0 and 24"},
	"actuals_month_check":                  {"month", "Month must be in YYYY-MM format"},
	"actuals_project_id_fkey":              {"projectId", "Project does not exist"},
	"actuals_cost_code_id_fkey":            {"costCodeId", "Cost code does not exist"},
	"projection_snapshots_project_id_fkey": {"projectId", "Project does not exist"},
	"projection_details_cost_code_id_fkey": {"costCodeId", "Cost code does not exist"},
	"projects_end_date_check":              {"endDate", "End date must not be before start date"},
	"employees_end_date_check":             {"endDate", "End date must not be before assigned date"},
}

// Classify translates driver errors into API errors. Anything it does not
// recognise is returned unchanged and ends up as INTERNAL_ERROR.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	info, known := constraints[pgErr.ConstraintName]
	details := func() map[string]string {
		if !known {
			return nil
		}
		return map[string]string{info.field: info.message}
	}

	switch pgErr.Code {
	case "23505":
		if known {
			return apierr.Conflict(info.message)
		}
		return apierr.Conflict("Record already exists")
	case "23503":
		return apierr.Validation("Referenced record does not exist", details())
	case "23514":
		msg := "Value violates a data constraint"
		if known {
			msg = info.message
		}
		return apierr.Validation(msg, details())
	case "23502":
		return apierr.Validation("Missing required value", map[string]string{pgErr.ColumnName: "is required"})
	case "22P02", "22003":
		return apierr.Validation("Invalid input value", nil)
	case "22007", "22008":
		return apierr.Validation("Invalid date value", nil)
	}
	return err
}

// NotFound maps sql.ErrNoRows to a NOT_FOUND error for resource.
func NotFound(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apierr.NotFound(resource)
	}
	return err
}
