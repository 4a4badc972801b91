package internal

import (
	"net/http"

	"cost-control-api/internal/db"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"
)

// budgetSelect reads budget lines aliased as b joined to their cost code.
const budgetSelect = `SELECT b.id, b.project_id, b.cost_code_id, cc.code, cc.description, cc.type,
	b.description, b.budgeted_amount, b.budgeted_quantity, b.budgeted_unit_cost, b.notes,
	b.created_at, b.updated_at`

func scanBudgetLine(row rowScanner, b *models.BudgetLine) error {
	return row.Scan(&b.ID, &b.ProjectID, &b.CostCodeID, &b.CostCodeCode, &b.CostCodeDescription, &b.CostCodeType,
		&b.Description, &b.BudgetedAmount, &b.BudgetedQuantity, &b.BudgetedUnitCost, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt)
}

// joinedBudgetLine wraps a statement returning budget_lines rows so the
// caller gets the cost code columns too.
func joinedBudgetLine(stmt string) string {
	return "WITH b AS (" + stmt + ") " + budgetSelect +
		" FROM b JOIN cost_codes cc ON cc.id = b.cost_code_id"
}

func (s *Server) listBudgetLines(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	lines, err := queryList(r.Context(), s.Store, budgetSelect+`
		FROM budget_lines b
		JOIN cost_codes cc ON cc.id = b.cost_code_id
		WHERE b.project_id = $1
		ORDER BY cc.code`, []any{projectID}, scanBudgetLine)
	if err != nil {
		return err
	}
	response.OK(w, lines)
	return nil
}

func (s *Server) getBudgetLine(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	lineID, err := validate.PathUUID(r, "lineId")
	if err != nil {
		return err
	}
	line, err := queryItem(r.Context(), s.Store, budgetSelect+`
		FROM budget_lines b
		JOIN cost_codes cc ON cc.id = b.cost_code_id
		WHERE b.id = $1 AND b.project_id = $2`, []any{lineID, projectID}, scanBudgetLine)
	if err != nil {
		return db.NotFound(err, "Budget line")
	}
	response.OK(w, line)
	return nil
}

func (s *Server) createBudgetLine(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	var req models.CreateBudgetLineRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}

	line, err := queryItem(r.Context(), s.Store, joinedBudgetLine(`
		INSERT INTO budget_lines (project_id, cost_code_id, description, budgeted_amount,
			budgeted_quantity, budgeted_unit_cost, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`),
		[]any{projectID, req.CostCodeID, req.Description, req.BudgetedAmount,
			req.BudgetedQuantity, req.BudgetedUnitCost, req.Notes},
		scanBudgetLine)
	if err != nil {
		return err
	}

	logging.FromContext(r.Context()).Info("budget line created", "projectId", projectID, "budgetLineId", line.ID)
	response.Created(w, line)
	return nil
}

func (s *Server) updateBudgetLine(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	lineID, err := validate.PathUUID(r, "lineId")
	if err != nil {
		return err
	}
	var req models.UpdateBudgetLineRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}

	stmt, args, err := db.Update{
		Table: "budget_lines",
		Sets: []db.Assignment{
			db.Field("cost_code_id", req.CostCodeID),
			db.Field("description", req.Description),
			db.Field("budgeted_amount", req.BudgetedAmount),
			db.Field("budgeted_quantity", req.BudgetedQuantity),
			db.Field("budgeted_unit_cost", req.BudgetedUnitCost),
			db.Field("notes", req.Notes),
		},
		Touch:     []string{"updated_at"},
		Where:     []db.Condition{{Column: "id", Value: lineID}, {Column: "project_id", Value: projectID}},
		Returning: "*",
	}.Build()
	if err != nil {
		return err
	}

	line, err := queryItem(r.Context(), s.Store, joinedBudgetLine(stmt), args, scanBudgetLine)
	if err != nil {
		return db.NotFound(err, "Budget line")
	}
	response.OK(w, line)
	return nil
}

func (s *Server) deleteBudgetLine(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	lineID, err := validate.PathUUID(r, "lineId")
	if err != nil {
		return err
	}
	res, err := s.Store.ExecContext(r.Context(),
		`DELETE FROM budget_lines WHERE id = $1 AND project_id = $2`, lineID, projectID)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "Budget line"); err != nil {
		return err
	}
	response.Deleted(w, "Budget line deleted")
	return nil
}
