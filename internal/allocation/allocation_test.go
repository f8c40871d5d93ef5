package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

func route(id, vehicle string, startMin, endMin int) domain.Route {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Route{
		ID:        id,
		PlanStart: base.Add(time.Duration(startMin) * time.Minute),
		PlanEnd:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestSolve_NoSolverUsesGreedyFallback(t *testing.T) {
	candidates := []ScoredSequence{
		{VehicleID: "v1", Routes: []domain.Route{route("r1", "v1", 0, 60)}, Cost: -1},
		{VehicleID: "v2", Routes: []domain.Route{route("r2", "v2", 0, 60)}, Cost: -2},
	}
	window := []domain.Route{route("r1", "v1", 0, 60), route("r2", "v2", 0, 60)}
	result, fallback := Solve(context.Background(), "run1", window, candidates, nil, DefaultParams())
	if !fallback {
		t.Fatal("expected fallback with nil solver")
	}
	if result.RoutesAllocated != 2 {
		t.Errorf("expected both routes allocated, got %d", result.RoutesAllocated)
	}
	if result.Status != domain.AllocationStatusAllocated {
		t.Errorf("expected Allocated status, got %v", result.Status)
	}
}

func TestGreedy_NoVehicleDoubleBooked(t *testing.T) {
	candidates := []ScoredSequence{
		{VehicleID: "v1", Routes: []domain.Route{route("r1", "v1", 0, 60)}, Cost: -1},
		{VehicleID: "v1", Routes: []domain.Route{route("r2", "v1", 120, 180)}, Cost: -1},
	}
	chosen := greedy(candidates)
	if len(chosen) != 1 {
		t.Fatalf("expected exactly one sequence chosen for a single vehicle, got %d", len(chosen))
	}
}

func TestGreedy_TieBreakPrefersLongerSequenceThenLowerVehicleID(t *testing.T) {
	candidates := []ScoredSequence{
		{VehicleID: "v2", Routes: []domain.Route{route("r1", "v2", 0, 60)}, Cost: -1},
		{VehicleID: "v1", Routes: []domain.Route{route("r2", "v1", 0, 60), route("r3", "v1", 120, 180)}, Cost: -1},
	}
	sorted := make([]ScoredSequence, len(candidates))
	copy(sorted, candidates)
	chosen := greedy(sorted)
	if len(chosen) == 0 || chosen[0].VehicleID != "v1" {
		t.Errorf("expected longer sequence (v1) to be preferred at equal cost, got %+v", chosen)
	}
}

func TestBuildResult_BelowQualityGateMarkedFailed(t *testing.T) {
	candidates := []ScoredSequence{
		{VehicleID: "v1", Routes: []domain.Route{route("r1", "v1", 0, 60)}, Cost: -1000},
	}
	window := []domain.Route{route("r1", "v1", 0, 60)}
	result, _ := Solve(context.Background(), "run1", window, candidates, nil, Params{TimeLimit: time.Second, QualityGate: 50})
	if result.Status != domain.AllocationStatusFailed {
		t.Errorf("expected Failed status below quality gate, got %v", result.Status)
	}
}

func TestBuildResult_EmptyChosenWithRoutesInWindowMarkedFailed(t *testing.T) {
	window := []domain.Route{route("r1", "v1", 0, 60), route("r2", "v1", 120, 180), route("r3", "v1", 240, 300)}
	result, _ := Solve(context.Background(), "run1", window, nil, nil, DefaultParams())
	if result.Status != domain.AllocationStatusFailed {
		t.Errorf("expected Failed status when no candidates cover any route, got %v", result.Status)
	}
	if len(result.Diagnostics) == 0 || result.Diagnostics[0].Kind != domain.KindInfeasible {
		t.Errorf("expected an Infeasible diagnostic, got %+v", result.Diagnostics)
	}
}

func TestBuildResult_ArrivalSOCFromCascadingEnergy(t *testing.T) {
	candidates := []ScoredSequence{{
		VehicleID:          "v1",
		Routes:             []domain.Route{route("r1", "v1", 0, 60), route("r2", "v1", 120, 180)},
		Cost:               -1,
		BatteryCapacityKWh: 100,
		RemainingEnergyKWh: []float64{80, 50},
	}}
	window := []domain.Route{candidates[0].Routes[0], candidates[0].Routes[1]}
	result, _ := Solve(context.Background(), "run1", window, candidates, nil, DefaultParams())
	if len(result.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(result.Assignments))
	}
	if result.Assignments[0].EstimatedArrivalSOC != 80 {
		t.Errorf("expected 80%% soc after first route, got %v", result.Assignments[0].EstimatedArrivalSOC)
	}
	if result.Assignments[1].EstimatedArrivalSOC != 50 {
		t.Errorf("expected 50%% soc after second route, got %v", result.Assignments[1].EstimatedArrivalSOC)
	}
}

func TestBuildResult_OverlappingExcludedCounted(t *testing.T) {
	candidates := []ScoredSequence{
		{VehicleID: "v1", Routes: []domain.Route{route("r1", "v1", 0, 60)}, Cost: -1},
	}
	window := []domain.Route{
		route("r1", "v1", 0, 60),
		route("r2", "v2", 30, 90),
		route("r3", "v3", 500, 560),
	}
	result, _ := Solve(context.Background(), "run1", window, candidates, nil, DefaultParams())
	if result.RoutesOverlappingCount != 1 {
		t.Errorf("expected 1 route excluded by overlap, got %d", result.RoutesOverlappingCount)
	}
}
