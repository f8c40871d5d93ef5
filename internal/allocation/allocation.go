// Package allocation solves the set-covering formulation of spec.md
// §4.5: choose at most one sequence per vehicle, covering as many
// routes as possible, maximizing W·coverage + Σ sequence cost.
package allocation

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/solver"
)

// RouteCoverageWeight is W in the objective: route coverage dominates
// any plausible cost spread.
const RouteCoverageWeight = 100.0

// DefaultQualityGate is the aggregate-score floor below which an
// allocation is persisted but marked Failed.
const DefaultQualityGate = -4.0

// ScoredSequence is one feasible (vehicle, sequence) candidate with
// its constraint-engine cost already computed. RemainingEnergyKWh, if
// non-nil, is the cascading battery energy left after each route in
// Routes (same index), used to report arrival state of charge.
type ScoredSequence struct {
	VehicleID          string
	Routes             []domain.Route
	Cost               float64
	BatteryCapacityKWh float64
	RemainingEnergyKWh []float64
}

// Params tunes a single allocation run.
type Params struct {
	TimeLimit   time.Duration // default 30s per spec.md §6.1
	QualityGate float64
}

func DefaultParams() Params {
	return Params{TimeLimit: 30 * time.Second, QualityGate: DefaultQualityGate}
}

// Solve runs the allocation optimizer: the external solver first (if
// s is non-nil and available), greedy fallback otherwise.
func Solve(ctx context.Context, runID string, routesInWindow []domain.Route, candidates []ScoredSequence, s solver.Solver, params Params) (domain.AllocationResult, bool) {
	if params.TimeLimit <= 0 {
		params = DefaultParams()
	}

	chosen, fallback := solveChosen(ctx, candidates, s, params.TimeLimit)

	return buildResult(runID, routesInWindow, chosen, fallback, params.QualityGate), fallback
}

func solveChosen(ctx context.Context, candidates []ScoredSequence, s solver.Solver, timeLimit time.Duration) ([]ScoredSequence, bool) {
	if s != nil {
		payload, err := json.Marshal(candidates)
		if err == nil {
			outcome, callErr := s.Solve(ctx, solver.ProblemAllocation, payload, timeLimit)
			if callErr == nil && outcome.Status == solver.StatusOK {
				var indices []int
				if json.Unmarshal(outcome.Payload, &indices) == nil {
					chosen := make([]ScoredSequence, 0, len(indices))
					for _, i := range indices {
						if i >= 0 && i < len(candidates) {
							chosen = append(chosen, candidates[i])
						}
					}
					return chosen, false
				}
			}
		}
	}

	return greedy(candidates), true
}

// greedy sorts candidates by cost descending and scans, selecting any
// candidate whose vehicle is unused and whose routes are all
// uncovered. Ties: prefer longer sequences, then lower vehicle id.
func greedy(candidates []ScoredSequence) []ScoredSequence {
	sorted := make([]ScoredSequence, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Cost != sorted[j].Cost {
			return sorted[i].Cost > sorted[j].Cost
		}
		if len(sorted[i].Routes) != len(sorted[j].Routes) {
			return len(sorted[i].Routes) > len(sorted[j].Routes)
		}
		return sorted[i].VehicleID < sorted[j].VehicleID
	})

	usedVehicles := make(map[string]bool)
	usedRoutes := make(map[string]bool)
	var chosen []ScoredSequence

	for _, c := range sorted {
		if usedVehicles[c.VehicleID] {
			continue
		}
		conflict := false
		for _, r := range c.Routes {
			if usedRoutes[r.ID] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		usedVehicles[c.VehicleID] = true
		for _, r := range c.Routes {
			usedRoutes[r.ID] = true
		}
		chosen = append(chosen, c)
	}

	return chosen
}

func buildResult(runID string, routesInWindow []domain.Route, chosen []ScoredSequence, fallback bool, qualityGate float64) domain.AllocationResult {
	var assignments []domain.RouteAssignment
	coveredRoutes := map[string]bool{}
	var coveredList []domain.Route

	for _, c := range chosen {
		for i, r := range c.Routes {
			coveredRoutes[r.ID] = true
			coveredList = append(coveredList, r)
			assignments = append(assignments, domain.RouteAssignment{
				RouteID:             r.ID,
				VehicleID:           c.VehicleID,
				EstimatedArrival:    r.PlanEnd,
				EstimatedArrivalSOC: arrivalSOC(c, i),
			})
		}
	}

	overlapping := overlappingExcluded(routesInWindow, coveredRoutes, coveredList)

	var totalCost float64
	for _, c := range chosen {
		totalCost += c.Cost
	}
	score := RouteCoverageWeight*float64(len(coveredRoutes)) + totalCost

	status := domain.AllocationStatusAllocated
	if score < qualityGate {
		status = domain.AllocationStatusFailed
	}
	if len(chosen) == 0 && len(routesInWindow) > 0 {
		status = domain.AllocationStatusFailed
	}

	var diagnostics []domain.RunDiagnostic
	if status == domain.AllocationStatusFailed {
		diagnostics = append(diagnostics, domain.RunDiagnostic{
			Kind:    domain.KindInfeasible,
			Message: "no sequence combination met the allocation quality gate",
		})
	}

	return domain.AllocationResult{
		RunID:                  runID,
		AllocationID:           runID,
		TotalScore:             score,
		Assignments:            assignments,
		RoutesInWindow:         len(routesInWindow),
		RoutesAllocated:        len(coveredRoutes),
		RoutesOverlappingCount: overlapping,
		Status:                 status,
		Fallback:               fallback,
		Diagnostics:            diagnostics,
	}
}

// arrivalSOC reports the vehicle's battery state of charge, as a
// percent of capacity, immediately after completing Routes[idx]. It
// returns 0 when the sequence carries no cascading energy data.
func arrivalSOC(c ScoredSequence, idx int) float64 {
	if c.BatteryCapacityKWh <= 0 || idx >= len(c.RemainingEnergyKWh) {
		return 0
	}
	pct := c.RemainingEnergyKWh[idx] / c.BatteryCapacityKWh * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// overlappingExcluded counts routes in the window that were left
// uncovered specifically because they overlap a route the chosen
// sequences already committed to a vehicle, as opposed to routes
// excluded for other reasons (energy, turnaround, no eligible vehicle).
func overlappingExcluded(routesInWindow []domain.Route, covered map[string]bool, coveredList []domain.Route) int {
	count := 0
	for _, r := range routesInWindow {
		if covered[r.ID] {
			continue
		}
		for _, c := range coveredList {
			if r.Overlaps(c) {
				count++
				break
			}
		}
	}
	return count
}
