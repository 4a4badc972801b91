package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Actual struct {
	ID                  string              `json:"id"`
	ProjectID           string              `json:"projectId"`
	CostCodeID          string              `json:"costCodeId"`
	CostCodeCode        string              `json:"costCodeCode"`
	CostCodeDescription string              `json:"costCodeDescription"`
	CostCodeType        string              `json:"costCodeType"`
	Month               string              `json:"month"`
	ActualAmount        decimal.Decimal     `json:"actualAmount"`
	ActualQuantity      decimal.NullDecimal `json:"actualQuantity"`
	ActualUnitCost      decimal.NullDecimal `json:"actualUnitCost"`
	Source              string              `json:"source"`
	Notes               *string             `json:"notes"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// UpsertActualRequest writes one (project, cost code, month) actual.
type UpsertActualRequest struct {
	CostCodeID     string           `json:"costCodeId" validate:"required,uuid"`
	Month          string           `json:"month" validate:"required,yearmonth"`
	ActualAmount   *decimal.Decimal `json:"actualAmount" validate:"required,gte=0,cents"`
	ActualQuantity *decimal.Decimal `json:"actualQuantity" validate:"omitempty,gte=0"`
	ActualUnitCost *decimal.Decimal `json:"actualUnitCost" validate:"omitempty,gte=0"`
	Source         string           `json:"source" validate:"omitempty,oneof=MANUAL SPECTRUM"`
	Notes          *string          `json:"notes"`
}
