package internal

import (
	"net/http"

	"cost-control-api/internal/db"
	"cost-control-api/internal/models"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"

	"github.com/lib/pq"
)

const costCodeColumns = "id, code, description, type, is_active, created_at"

var costCodeSort = map[string]string{
	"code":        "code",
	"description": "description",
	"type":        "type",
	"createdAt":   "created_at",
}

func scanCostCode(row rowScanner, c *models.CostCode) error {
	return row.Scan(&c.ID, &c.Code, &c.Description, &c.Type, &c.IsActive, &c.CreatedAt)
}

func (s *Server) listCostCodes(w http.ResponseWriter, r *http.Request) error {
	q := validate.NewQuery(r.URL.Query())
	types := q.EnumList("type", models.CostCodeTypes...)
	active := q.Bool("isActive")
	search := q.Get("search")
	page := q.Page()
	if err := q.Err(); err != nil {
		return err
	}

	var lq listQuery
	if len(types) > 0 {
		lq.add("type = ANY($%d)", pq.Array(types))
	}
	if active != nil {
		lq.add("is_active = $%d", *active)
	}
	if search != "" {
		lq.add("(code ILIKE $%[1]d OR description ILIKE $%[1]d)", likePattern(search))
	}

	ctx := r.Context()
	total, err := lq.count(ctx, s.Store, "cost_codes")
	if err != nil {
		return err
	}
	codes, err := queryList(ctx, s.Store,
		"SELECT "+costCodeColumns+" FROM cost_codes"+lq.where()+buildOrderBy(page, costCodeSort, "code ASC")+lq.limit(page),
		lq.args, scanCostCode)
	if err != nil {
		return err
	}
	response.List(w, codes, response.NewPagination(page.Page, page.PageSize, total))
	return nil
}

func (s *Server) getCostCode(w http.ResponseWriter, r *http.Request) error {
	id, err := validate.PathUUID(r, "id")
	if err != nil {
		return err
	}
	c, err := queryItem(r.Context(), s.Store, "SELECT "+costCodeColumns+" FROM cost_codes WHERE id = $1",
		[]any{id}, scanCostCode)
	if err != nil {
		return db.NotFound(err, "Cost code")
	}
	response.OK(w, c)
	return nil
}

// listLaborRates returns the active labor rates.
func (s *Server) listLaborRates(w http.ResponseWriter, r *http.Request) error {
	rates, err := queryList(r.Context(), s.Store, `
		SELECT id, code, description, hourly_rate, is_active, created_at
		FROM labor_rates
		WHERE is_active = true
		ORDER BY code`, nil,
		func(row rowScanner, lr *models.LaborRate) error {
			return row.Scan(&lr.ID, &lr.Code, &lr.Description, &lr.HourlyRate, &lr.IsActive, &lr.CreatedAt)
		})
	if err != nil {
		return err
	}
	response.OK(w, rates)
	return nil
}
