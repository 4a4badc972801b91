package internal

import (
	"net/http"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"

	"github.com/go-chi/chi/v5"
)

const actualSelect = `SELECT a.id, a.project_id, a.cost_code_id, cc.code, cc.description, cc.type, a.month,
	a.actual_amount, a.actual_quantity, a.actual_unit_cost, a.source, a.notes, a.created_at, a.updated_at`

func scanActual(row rowScanner, a *models.Actual) error {
	return row.Scan(&a.ID, &a.ProjectID, &a.CostCodeID, &a.CostCodeCode, &a.CostCodeDescription, &a.CostCodeType,
		&a.Month, &a.ActualAmount, &a.ActualQuantity, &a.ActualUnitCost, &a.Source, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Server) listActuals(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	q := validate.NewQuery(r.URL.Query())
	month := q.Month("month")
	if err := q.Err(); err != nil {
		return err
	}

	var lq listQuery
	lq.add("a.project_id = $%d", projectID)
	if month != "" {
		lq.add("a.month = $%d", month)
	}
	actuals, err := queryList(r.Context(), s.Store, actualSelect+`
		FROM actuals a
		JOIN cost_codes cc ON cc.id = a.cost_code_id`+lq.where()+`
		ORDER BY a.month DESC, cc.code`, lq.args, scanActual)
	if err != nil {
		return err
	}
	response.OK(w, actuals)
	return nil
}

func (s *Server) getMonthActuals(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	month, err := validate.PathMonth(r, "month")
	if err != nil {
		return err
	}
	actuals, err := queryList(r.Context(), s.Store, actualSelect+`
		FROM actuals a
		JOIN cost_codes cc ON cc.id = a.cost_code_id
		WHERE a.project_id = $1 AND a.month = $2
		ORDER BY cc.code`, []any{projectID, month}, scanActual)
	if err != nil {
		return err
	}
	response.OK(w, actuals)
	return nil
}

// upsertActual writes the actual for (project, cost code, month), replacing
// the stored figures when the row already exists. On the month route the
// body may omit month but must not contradict the path.
func (s *Server) upsertActual(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	var req models.UpsertActualRequest
	if chi.URLParam(r, "month") != "" {
		month, err := validate.PathMonth(r, "month")
		if err != nil {
			return err
		}
		if err := validate.Decode(r, &req); err != nil {
			return err
		}
		if req.Month != "" && req.Month != month {
			return apierr.Validation("Month in body does not match path",
				map[string]string{"month": "Must equal " + month})
		}
		req.Month = month
		if err := validate.Struct(&req); err != nil {
			return err
		}
	} else if err := validate.Body(r, &req); err != nil {
		return err
	}
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}

	a, err := queryItem(r.Context(), s.Store, `
		WITH a AS (
			INSERT INTO actuals (project_id, cost_code_id, month, actual_amount, actual_quantity,
				actual_unit_cost, source, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (project_id, cost_code_id, month) DO UPDATE SET
				actual_amount = EXCLUDED.actual_amount,
				actual_quantity = EXCLUDED.actual_quantity,
				actual_unit_cost = EXCLUDED.actual_unit_cost,
				source = EXCLUDED.source,
				notes = EXCLUDED.notes,
				updated_at = now()
			RETURNING *
		) `+actualSelect+` FROM a JOIN cost_codes cc ON cc.id = a.cost_code_id`,
		[]any{projectID, req.CostCodeID, req.Month, req.ActualAmount, req.ActualQuantity,
			req.ActualUnitCost, source, req.Notes},
		scanActual)
	if err != nil {
		return err
	}

	logging.FromContext(r.Context()).Info("actual saved",
		"projectId", projectID, "costCodeId", a.CostCodeID, "month", a.Month)
	response.Created(w, a)
	return nil
}
