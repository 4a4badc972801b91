package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectionSnapshot struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	SnapshotDate   time.Time       `json:"snapshotDate"`
	SnapshotName   string          `json:"snapshotName"`
	ProjectedGp    decimal.Decimal `json:"projectedGp"`
	ProjectedGpPct decimal.Decimal `json:"projectedGpPct"`
	Notes          *string         `json:"notes"`
	CreatedBy      *string         `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type ProjectionDetail struct {
	ID                  string              `json:"id"`
	SnapshotID          string              `json:"snapshotId"`
	CostCodeID          string              `json:"costCodeId"`
	CostCodeCode        string              `json:"costCodeCode,omitempty"`
	CostCodeDescription string              `json:"costCodeDescription,omitempty"`
	CostCodeType        string              `json:"costCodeType,omitempty"`
	ProjectedAmount     decimal.Decimal     `json:"projectedAmount"`
	ProjectedQuantity   decimal.NullDecimal `json:"projectedQuantity"`
	ProjectedUnitCost   decimal.NullDecimal `json:"projectedUnitCost"`
	Notes               *string             `json:"notes"`
}

// SnapshotWithDetails is the single-snapshot response shape.
type SnapshotWithDetails struct {
	Snapshot ProjectionSnapshot `json:"snapshot"`
	Details  []ProjectionDetail `json:"details"`
}

type ProjectionDetailInput struct {
	CostCodeID        string           `json:"costCodeId" validate:"required,uuid"`
	ProjectedAmount   *decimal.Decimal `json:"projectedAmount" validate:"required,gte=0,cents"`
	ProjectedQuantity *decimal.Decimal `json:"projectedQuantity" validate:"omitempty,gte=0"`
	ProjectedUnitCost *decimal.Decimal `json:"projectedUnitCost" validate:"omitempty,gte=0"`
	Notes             *string          `json:"notes"`
}

type CreateSnapshotRequest struct {
	SnapshotName string                  `json:"snapshotName" validate:"required,min=1,max=255"`
	Notes        *string                 `json:"notes"`
	Details      []ProjectionDetailInput `json:"details" validate:"required,min=1,dive"`
}

type UpdateSnapshotRequest struct {
	SnapshotName *string `json:"snapshotName" validate:"omitempty,min=1,max=255"`
	Notes        *string `json:"notes"`
}

// Projection computes gross profit for a contract amount and the sum of
// projected costs. The percentage is zero when the contract amount is not
// positive.
func Projection(contractAmount decimal.Decimal, details []ProjectionDetailInput) (gp, gpPct decimal.Decimal) {
	projected := decimal.Zero
	for _, d := range details {
		if d.ProjectedAmount != nil {
			projected = projected.Add(*d.ProjectedAmount)
		}
	}
	gp = contractAmount.Sub(projected)
	if !contractAmount.IsPositive() {
		return gp, decimal.Zero
	}
	return gp, gp.Div(contractAmount).Mul(decimal.NewFromInt(100))
}
