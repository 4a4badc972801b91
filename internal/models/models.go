// Package models holds the typed records returned by the API and the
// request payloads accepted by it. JSON names match the external API.
package models

import "github.com/shopspring/decimal"

func init() {
	// Money and hours render as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Project statuses.
const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusOnHold    = "ON_HOLD"
	StatusCancelled = "CANCELLED"
)

var ProjectStatuses = []string{StatusActive, StatusCompleted, StatusOnHold, StatusCancelled}

// Sources for time entries and actuals.
const (
	SourceManual   = "MANUAL"
	SourceSpectrum = "SPECTRUM"
)

// Cost code types.
const (
	CostTypeLabor         = "LABOR"
	CostTypeMaterial      = "MATERIAL"
	CostTypeEquipment     = "EQUIPMENT"
	CostTypeSubcontractor = "SUBCONTRACTOR"
	CostTypeOther         = "OTHER"
)

// CostCodeTypes lists the valid cost code types in display order.
var CostCodeTypes = []string{CostTypeLabor, CostTypeMaterial, CostTypeEquipment, CostTypeSubcontractor, CostTypeOther}
