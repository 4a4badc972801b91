package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Project struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	JobNumber      string              `json:"jobNumber"`
	ContractAmount decimal.Decimal     `json:"contractAmount"`
	BudgetedGpPct  decimal.Decimal     `json:"budgetedGpPct"`
	BurdenPct      decimal.NullDecimal `json:"burdenPct"`
	StartDate      time.Time           `json:"startDate"`
	EndDate        time.Time           `json:"endDate"`
	Status         string              `json:"status"`
	CreatedBy      *string             `json:"createdBy"`
	UpdatedBy      *string             `json:"updatedBy"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type CreateProjectRequest struct {
	Name           string           `json:"name" validate:"required,min=1,max=255"`
	JobNumber      string           `json:"jobNumber" validate:"required,jobnumber"`
	ContractAmount *decimal.Decimal `json:"contractAmount" validate:"required,gt=0,cents"`
	BudgetedGpPct  *decimal.Decimal `json:"budgetedGpPct" validate:"required,gte=0,lte=100,cents"`
	BurdenPct      *decimal.Decimal `json:"burdenPct" validate:"omitempty,gte=0,lte=999.99,cents"`
	StartDate      string           `json:"startDate" validate:"required,isodatetime"`
	EndDate        string           `json:"endDate" validate:"required,isodatetime"`
	Status         string           `json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED ON_HOLD CANCELLED"`
}

// UpdateProjectRequest is the partial form of CreateProjectRequest.
type UpdateProjectRequest struct {
	Name           *string          `json:"name" validate:"omitempty,min=1,max=255"`
	JobNumber      *string          `json:"jobNumber" validate:"omitempty,jobnumber"`
	ContractAmount *decimal.Decimal `json:"contractAmount" validate:"omitempty,gt=0,cents"`
	BudgetedGpPct  *decimal.Decimal `json:"budgetedGpPct" validate:"omitempty,gte=0,lte=100,cents"`
	BurdenPct      *decimal.Decimal `json:"burdenPct" validate:"omitempty,gte=0,lte=999.99,cents"`
	StartDate      *string          `json:"startDate" validate:"omitempty,isodatetime"`
	EndDate        *string          `json:"endDate" validate:"omitempty,isodatetime"`
	Status         *string          `json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED ON_HOLD CANCELLED"`
}

type ProjectionSummary struct {
	ProjectedGp    decimal.Decimal `json:"projectedGp"`
	ProjectedGpPct decimal.Decimal `json:"projectedGpPct"`
	SnapshotName   string          `json:"snapshotName"`
	SnapshotDate   time.Time       `json:"snapshotDate"`
}

type ProjectSummary struct {
	Project           Project            `json:"project"`
	BudgetSummary     []BudgetTotal      `json:"budgetSummary"`
	ActualsSummary    []ActualTotal      `json:"actualsSummary"`
	ProjectionSummary *ProjectionSummary `json:"projectionSummary"`
}

type BudgetTotal struct {
	CostType    string          `json:"costType"`
	TotalBudget decimal.Decimal `json:"totalBudget"`
}

type ActualTotal struct {
	CostType    string          `json:"costType"`
	TotalActual decimal.Decimal `json:"totalActual"`
}
