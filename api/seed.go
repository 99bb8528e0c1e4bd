/*
seed.go - Demo data for local development

POST /api/seed loads a small construction scenario: one object, a few
catalog works and employees, and a draft estimate covering them. The
estimate is left unposted so the full lifecycle can be exercised by
hand. Calling seed twice creates a second, independent scenario.
*/
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebook/posting-engine/document"
	"github.com/sitebook/posting-engine/store/sqlite"
)

type seedResponse struct {
	ObjectID    int64   `json:"object_id"`
	WorkIDs     []int64 `json:"work_ids"`
	EmployeeIDs []int64 `json:"employee_ids"`
	EstimateID  int64   `json:"estimate_id"`
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	object := &sqlite.Object{Name: "Riverside warehouse", Address: "14 Dock Road"}
	if err := s.store.CreateObject(ctx, object); err != nil {
		s.writeError(w, err)
		return
	}

	works := []*sqlite.Work{
		{Name: "Excavation", Unit: "m3"},
		{Name: "Foundation concrete", Unit: "m3"},
		{Name: "Brickwork", Unit: "m2"},
	}
	workIDs := make([]int64, 0, len(works))
	for _, work := range works {
		if err := s.store.CreateWork(ctx, work); err != nil {
			s.writeError(w, err)
			return
		}
		workIDs = append(workIDs, work.ID)
	}

	employees := []*sqlite.Employee{
		{Name: "P. Ortiz", Position: "foreman"},
		{Name: "K. Mendy", Position: "mason"},
		{Name: "A. Bauer", Position: "laborer"},
	}
	employeeIDs := make([]int64, 0, len(employees))
	for _, employee := range employees {
		if err := s.store.CreateEmployee(ctx, employee); err != nil {
			s.writeError(w, err)
			return
		}
		employeeIDs = append(employeeIDs, employee.ID)
	}

	estimate := &document.Estimate{
		Header: document.Header{
			Number:   fmt.Sprintf("EST-%d", time.Now().UnixMilli()),
			Date:     time.Now().UTC().Truncate(24 * time.Hour),
			ObjectID: object.ID,
		},
		Lines: []document.EstimateLine{
			{LineNo: 1, GroupTitle: "Groundwork"},
			{
				LineNo:    2,
				WorkID:    &workIDs[0],
				Quantity:  decimal.NewFromInt(120),
				Price:     decimal.NewFromInt(45),
				LaborRate: decimal.NewFromFloat(0.8),
			},
			{
				LineNo:           3,
				WorkID:           &workIDs[1],
				Quantity:         decimal.NewFromInt(60),
				Price:            decimal.NewFromInt(210),
				LaborRate:        decimal.NewFromFloat(1.5),
				MaterialQuantity: decimal.NewFromInt(62),
				MaterialPrice:    decimal.NewFromInt(95),
			},
			{LineNo: 4, GroupTitle: "Walls"},
			{
				LineNo:           5,
				WorkID:           &workIDs[2],
				Quantity:         decimal.NewFromInt(340),
				Price:            decimal.NewFromInt(38),
				LaborRate:        decimal.NewFromFloat(1.1),
				MaterialQuantity: decimal.NewFromInt(350),
				MaterialPrice:    decimal.NewFromInt(12),
			},
		},
	}
	estimate.Totals = document.ComputeEstimateTotals(estimate.Lines)

	if err := s.store.CreateEstimate(ctx, estimate); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, seedResponse{
		ObjectID:    object.ID,
		WorkIDs:     workIDs,
		EmployeeIDs: employeeIDs,
		EstimateID:  estimate.ID,
	})
}
