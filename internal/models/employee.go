package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID                   string          `json:"id"`
	ProjectID            string          `json:"projectId"`
	Name                 string          `json:"name"`
	LaborRateID          string          `json:"laborRateId"`
	LaborRateCode        string          `json:"laborRateCode"`
	LaborRateDescription string          `json:"laborRateDescription"`
	HourlyRate           decimal.Decimal `json:"hourlyRate"`
	HomeBranch           *string         `json:"homeBranch"`
	ProjectRole          *string         `json:"projectRole"`
	AssignedDate         time.Time       `json:"assignedDate"`
	EndDate              *time.Time      `json:"endDate"`
	IsActive             bool            `json:"isActive"`
	CreatedAt            time.Time       `json:"createdAt"`
}

type CreateEmployeeRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=255"`
	LaborRateID  string  `json:"laborRateId" validate:"required,uuid"`
	HomeBranch   *string `json:"homeBranch" validate:"omitempty,max=100"`
	ProjectRole  *string `json:"projectRole" validate:"omitempty,max=100"`
	AssignedDate string  `json:"assignedDate" validate:"required,isodate"`
	EndDate      *string `json:"endDate" validate:"omitempty,isodate"`
	IsActive     *bool   `json:"isActive"`
}

type UpdateEmployeeRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	LaborRateID  *string `json:"laborRateId" validate:"omitempty,uuid"`
	HomeBranch   *string `json:"homeBranch" validate:"omitempty,max=100"`
	ProjectRole  *string `json:"projectRole" validate:"omitempty,max=100"`
	AssignedDate *string `json:"assignedDate" validate:"omitempty,isodate"`
	EndDate      *string `json:"endDate" validate:"omitempty,isodate"`
	IsActive     *bool   `json:"isActive"`
}
