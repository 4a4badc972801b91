package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeEntry struct {
	ID                  string          `json:"id"`
	ProjectID           string          `json:"projectId"`
	EmployeeID          string          `json:"employeeId"`
	EmployeeName        string          `json:"employeeName"`
	CostCodeID          string          `json:"costCodeId"`
	CostCodeCode        string          `json:"costCodeCode"`
	CostCodeDescription string          `json:"costCodeDescription"`
	EntryDate           time.Time       `json:"entryDate"`
	HoursSt             decimal.Decimal `json:"hoursSt"`
	HoursOt             decimal.Decimal `json:"hoursOt"`
	HoursDt             decimal.Decimal `json:"hoursDt"`
	Source              string          `json:"source"`
	Notes               *string         `json:"notes"`
	CreatedBy           *string         `json:"createdBy"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// CreateTimeEntryRequest carries ProjectID in the body when the route has
// no project segment.
type CreateTimeEntryRequest struct {
	ProjectID  string           `json:"projectId" validate:"required,uuid"`
	EmployeeID string           `json:"employeeId" validate:"required,uuid"`
	CostCodeID string           `json:"costCodeId" validate:"required,uuid"`
	EntryDate  string           `json:"entryDate" validate:"required,isodate"`
	HoursSt    *decimal.Decimal `json:"hoursSt" validate:"required,gte=0,lte=24"`
	HoursOt    *decimal.Decimal `json:"hoursOt" validate:"omitempty,gte=0,lte=24"`
	HoursDt    *decimal.Decimal `json:"hoursDt" validate:"omitempty,gte=0,lte=24"`
	Notes      *string          `json:"notes"`
}

type UpdateTimeEntryRequest struct {
	HoursSt *decimal.Decimal `json:"hoursSt" validate:"omitempty,gte=0,lte=24"`
	HoursOt *decimal.Decimal `json:"hoursOt" validate:"omitempty,gte=0,lte=24"`
	HoursDt *decimal.Decimal `json:"hoursDt" validate:"omitempty,gte=0,lte=24"`
	Notes   *string          `json:"notes"`
}

// TotalHours sums the hour fields that are set.
func TotalHours(hours ...*decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, h := range hours {
		if h != nil {
			total = total.Add(*h)
		}
	}
	return total
}
