package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BudgetLine struct {
	ID                  string              `json:"id"`
	ProjectID           string              `json:"projectId"`
	CostCodeID          string              `json:"costCodeId"`
	CostCodeCode        string              `json:"costCodeCode"`
	CostCodeDescription string              `json:"costCodeDescription"`
	CostCodeType        string              `json:"costCodeType"`
	Description         *string             `json:"description"`
	BudgetedAmount      decimal.Decimal     `json:"budgetedAmount"`
	BudgetedQuantity    decimal.NullDecimal `json:"budgetedQuantity"`
	BudgetedUnitCost    decimal.NullDecimal `json:"budgetedUnitCost"`
	Notes               *string             `json:"notes"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

type CreateBudgetLineRequest struct {
	CostCodeID       string           `json:"costCodeId" validate:"required,uuid"`
	Description      *string          `json:"description" validate:"omitempty,max=500"`
	BudgetedAmount   *decimal.Decimal `json:"budgetedAmount" validate:"required,gte=0,cents"`
	BudgetedQuantity *decimal.Decimal `json:"budgetedQuantity" validate:"omitempty,gte=0"`
	BudgetedUnitCost *decimal.Decimal `json:"budgetedUnitCost" validate:"omitempty,gte=0"`
	Notes            *string          `json:"notes"`
}

type UpdateBudgetLineRequest struct {
	CostCodeID       *string          `json:"costCodeId" validate:"omitempty,uuid"`
	Description      *string          `json:"description" validate:"omitempty,max=500"`
	BudgetedAmount   *decimal.Decimal `json:"budgetedAmount" validate:"omitempty,gte=0,cents"`
	BudgetedQuantity *decimal.Decimal `json:"budgetedQuantity" validate:"omitempty,gte=0"`
	BudgetedUnitCost *decimal.Decimal `json:"budgetedUnitCost" validate:"omitempty,gte=0"`
	Notes            *string          `json:"notes"`
}
