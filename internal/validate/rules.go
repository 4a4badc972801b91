package validate

import (
	"time"

	"cost-control-api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var maxDailyHours = decimal.NewFromInt(24)

// projectDates rejects an end date before the start date. A partial update
// is only checked when it carries both dates.
func projectDates(sl validator.StructLevel) {
	var start, end string
	switch req := sl.Current().Interface().(type) {
	case models.CreateProjectRequest:
		start, end = req.StartDate, req.EndDate
	case models.UpdateProjectRequest:
		if req.StartDate == nil || req.EndDate == nil {
			return
		}
		start, end = *req.StartDate, *req.EndDate
	default:
		return
	}
	checkOrder(sl, start, end, ParseDateTime)
}

func employeeDates(sl validator.StructLevel) {
	var start, end string
	switch req := sl.Current().Interface().(type) {
	case models.CreateEmployeeRequest:
		if req.EndDate == nil {
			return
		}
		start, end = req.AssignedDate, *req.EndDate
	case models.UpdateEmployeeRequest:
		if req.AssignedDate == nil || req.EndDate == nil {
			return
		}
		start, end = *req.AssignedDate, *req.EndDate
	default:
		return
	}
	checkOrder(sl, start, end, ParseDate)
}

// checkOrder leaves unparseable values to the field-level rules.
func checkOrder(sl validator.StructLevel, start, end string, parse func(string) (time.Time, error)) {
	s, err := parse(start)
	if err != nil {
		return
	}
	e, err := parse(end)
	if err != nil {
		return
	}
	if e.Before(s) {
		sl.ReportError(end, "endDate", "EndDate", "enddate", "")
	}
}

// timeEntryHours caps the hours of one entry at 24. On update only the
// submitted fields are summed; the table constraint covers the stored row.
func timeEntryHours(sl validator.StructLevel) {
	var total decimal.Decimal
	switch req := sl.Current().Interface().(type) {
	case models.CreateTimeEntryRequest:
		total = models.TotalHours(req.HoursSt, req.HoursOt, req.HoursDt)
	case models.UpdateTimeEntryRequest:
		total = models.TotalHours(req.HoursSt, req.HoursOt, req.HoursDt)
	default:
		return
	}
	if total.GreaterThan(maxDailyHours) {
		sl.ReportError(total.String(), "hoursSt", "HoursSt", "totalhours", "")
	}
}
