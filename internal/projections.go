package internal

import (
	"context"
	"net/http"

	"cost-control-api/internal/auth"
	"cost-control-api/internal/db"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"

	"github.com/shopspring/decimal"
)

const snapshotColumns = `id, project_id, snapshot_date, snapshot_name, projected_gp, projected_gp_pct,
	notes, created_by, created_at`

func scanSnapshot(row rowScanner, ps *models.ProjectionSnapshot) error {
	return row.Scan(&ps.ID, &ps.ProjectID, &ps.SnapshotDate, &ps.SnapshotName, &ps.ProjectedGp, &ps.ProjectedGpPct,
		&ps.Notes, &ps.CreatedBy, &ps.CreatedAt)
}

func scanDetail(row rowScanner, d *models.ProjectionDetail) error {
	return row.Scan(&d.ID, &d.SnapshotID, &d.CostCodeID, &d.CostCodeCode, &d.CostCodeDescription, &d.CostCodeType,
		&d.ProjectedAmount, &d.ProjectedQuantity, &d.ProjectedUnitCost, &d.Notes)
}

func snapshotDetails(ctx context.Context, q db.Querier, snapshotID string) ([]models.ProjectionDetail, error) {
	return queryList(ctx, q, `
		SELECT d.id, d.snapshot_id, d.cost_code_id, cc.code, cc.description, cc.type,
			d.projected_amount, d.projected_quantity, d.projected_unit_cost, d.notes
		FROM projection_details d
		JOIN cost_codes cc ON cc.id = d.cost_code_id
		WHERE d.snapshot_id = $1
		ORDER BY cc.code`, []any{snapshotID}, scanDetail)
}

func (s *Server) listProjections(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	snapshots, err := queryList(r.Context(), s.Store, "SELECT "+snapshotColumns+`
		FROM projection_snapshots
		WHERE project_id = $1
		ORDER BY snapshot_date DESC, created_at DESC`, []any{projectID}, scanSnapshot)
	if err != nil {
		return err
	}
	response.OK(w, snapshots)
	return nil
}

func (s *Server) getProjection(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	snapshotID, err := validate.PathUUID(r, "snapshotId")
	if err != nil {
		return err
	}
	ctx := r.Context()

	snapshot, err := queryItem(ctx, s.Store, "SELECT "+snapshotColumns+`
		FROM projection_snapshots
		WHERE id = $1 AND project_id = $2`, []any{snapshotID, projectID}, scanSnapshot)
	if err != nil {
		return db.NotFound(err, "Projection")
	}
	details, err := snapshotDetails(ctx, s.Store, snapshotID)
	if err != nil {
		return err
	}
	response.OK(w, models.SnapshotWithDetails{Snapshot: snapshot, Details: details})
	return nil
}

// createProjection writes a snapshot and its details in one transaction.
// Gross profit is derived from the project's contract amount.
func (s *Server) createProjection(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	var req models.CreateSnapshotRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}
	user := auth.UserFromContext(r.Context())
	ctx := r.Context()

	var out models.SnapshotWithDetails
	err = s.Store.InTx(ctx, func(q db.Querier) error {
		var contract decimal.Decimal
		if err := db.QueryOne(ctx, q, `SELECT contract_amount FROM projects WHERE id = $1`,
			[]any{projectID}, &contract); err != nil {
			return db.NotFound(err, "Project")
		}
		gp, gpPct := models.Projection(contract, req.Details)

		snapshot, err := queryItem(ctx, q, `
			INSERT INTO projection_snapshots (project_id, snapshot_name, projected_gp, projected_gp_pct,
				notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+snapshotColumns,
			[]any{projectID, req.SnapshotName, gp, gpPct.Round(2), req.Notes, user.UserID},
			scanSnapshot)
		if err != nil {
			return err
		}

		for _, d := range req.Details {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO projection_details (snapshot_id, cost_code_id, projected_amount,
					projected_quantity, projected_unit_cost, notes)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				snapshot.ID, d.CostCodeID, d.ProjectedAmount, d.ProjectedQuantity, d.ProjectedUnitCost, d.Notes,
			); err != nil {
				return err
			}
		}

		details, err := snapshotDetails(ctx, q, snapshot.ID)
		if err != nil {
			return err
		}
		out = models.SnapshotWithDetails{Snapshot: snapshot, Details: details}
		return nil
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("projection created",
		"projectId", projectID, "snapshotId", out.Snapshot.ID, "details", len(out.Details))
	response.Created(w, out)
	return nil
}

func (s *Server) updateProjection(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	snapshotID, err := validate.PathUUID(r, "snapshotId")
	if err != nil {
		return err
	}
	var req models.UpdateSnapshotRequest
	if err := validate.Body(r, &req); err != nil {
		return err
	}

	stmt, args, err := db.Update{
		Table: "projection_snapshots",
		Sets: []db.Assignment{
			db.Field("snapshot_name", req.SnapshotName),
			db.Field("notes", req.Notes),
		},
		Where:     []db.Condition{{Column: "id", Value: snapshotID}, {Column: "project_id", Value: projectID}},
		Returning: snapshotColumns,
	}.Build()
	if err != nil {
		return err
	}

	snapshot, err := queryItem(r.Context(), s.Store, stmt, args, scanSnapshot)
	if err != nil {
		return db.NotFound(err, "Projection")
	}
	response.OK(w, snapshot)
	return nil
}

// deleteProjection removes a snapshot; its details go with it through the
// foreign key cascade.
func (s *Server) deleteProjection(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}
	snapshotID, err := validate.PathUUID(r, "snapshotId")
	if err != nil {
		return err
	}
	res, err := s.Store.ExecContext(r.Context(),
		`DELETE FROM projection_snapshots WHERE id = $1 AND project_id = $2`, snapshotID, projectID)
	if err != nil {
		return err
	}
	if err := expectAffected(res, "Projection"); err != nil {
		return err
	}
	response.Deleted(w, "Projection deleted")
	return nil
}
