package constraint

import (
	"testing"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/paramdecoder"
)

func baseRoute(id string, startMin, endMin int) domain.Route {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Route{
		ID:        id,
		PlanStart: base.Add(time.Duration(startMin) * time.Minute),
		PlanEnd:   base.Add(time.Duration(endMin) * time.Minute),
		MileageMiles: 10,
	}
}

func TestEngine_RouteOverlapMandatory(t *testing.T) {
	cfg := BuildConfig(paramdecoder.Decode(nil))
	e := NewEngine(cfg)
	seq := []domain.Route{baseRoute("r1", 0, 60), baseRoute("r2", 30, 90)}
	vehicle := domain.Vehicle{ID: "v1", BatteryCapacityKWh: 1000, EfficiencyKWhPerMile: 1}
	ctx := Context{Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 1000}}
	result := e.Evaluate(vehicle, seq, ctx)
	if result.Feasible {
		t.Error("expected route_overlap to make sequence infeasible regardless of config")
	}
}

func TestEngine_DisablingSoftConstraintsYieldsHardPenaltiesOnly(t *testing.T) {
	raw := map[string]string{
		"constraint_turnaround_time_preferred_enabled": "false",
		"constraint_charger_preference_enabled":        "false",
		"constraint_swap_minimization_enabled":         "false",
		"constraint_energy_optimization_enabled":       "false",
	}
	cfg := BuildConfig(paramdecoder.Decode(raw))
	e := NewEngine(cfg)
	seq := []domain.Route{baseRoute("r1", 120, 180)}
	vehicle := domain.Vehicle{ID: "v1", BatteryCapacityKWh: 1000, EfficiencyKWhPerMile: 1}
	ctx := Context{Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 1000}}
	result := e.Evaluate(vehicle, seq, ctx)
	if !result.Feasible {
		t.Fatal("expected feasible sequence")
	}
	if result.Cost != 0 {
		t.Errorf("expected zero soft cost with all soft constraints disabled, got %v", result.Cost)
	}
}

func TestEngine_MonotoneAddingSoftBonusNeverDecreasesCost(t *testing.T) {
	raw1 := map[string]string{
		"constraint_swap_minimization_enabled": "false",
	}
	raw2 := map[string]string{
		"constraint_swap_minimization_enabled":      "true",
		"constraint_swap_minimization_bonus_weight": "1",
	}
	seq := []domain.Route{baseRoute("r1", 120, 180)}
	vehicle := domain.Vehicle{ID: "v1", BatteryCapacityKWh: 1000, EfficiencyKWhPerMile: 1}
	lookup := func(routeID string, lookback time.Duration) (string, bool) { return "v1", true }

	cfg1 := BuildConfig(paramdecoder.Decode(raw1))
	r1 := NewEngine(cfg1).Evaluate(vehicle, seq, Context{Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 1000}, PreviousAllocation: lookup})

	cfg2 := BuildConfig(paramdecoder.Decode(raw2))
	r2 := NewEngine(cfg2).Evaluate(vehicle, seq, Context{Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 1000}, PreviousAllocation: lookup})

	if r2.Cost < r1.Cost {
		t.Errorf("expected adding a soft bonus to not decrease cost: %v < %v", r2.Cost, r1.Cost)
	}
}

func TestEngine_EnergyFeasibilityHardViolation(t *testing.T) {
	cfg := BuildConfig(paramdecoder.Decode(nil))
	e := NewEngine(cfg)
	seq := []domain.Route{baseRoute("r1", 0, 60)}
	seq[0].MileageMiles = 60
	vehicle := domain.Vehicle{ID: "v1", BatteryCapacityKWh: 100, EfficiencyKWhPerMile: 2} // needs 120kWh
	ctx := Context{Now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 100}}
	result := e.Evaluate(vehicle, seq, ctx)
	if result.Feasible {
		t.Error("expected energy_feasibility hard violation")
	}
}

func TestEngine_TurnaroundStrictDisabled(t *testing.T) {
	raw := map[string]string{"constraint_turnaround_time_strict_enabled": "false"}
	cfg := BuildConfig(paramdecoder.Decode(raw))
	e := NewEngine(cfg)
	seq := []domain.Route{baseRoute("r1", 0, 60), baseRoute("r2", 90, 150)} // gap=30min < default 45min
	vehicle := domain.Vehicle{ID: "v1", BatteryCapacityKWh: 1000, EfficiencyKWhPerMile: 1}
	ctx := Context{Now: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), AvailableEnergyKWh: map[string]float64{"v1": 1000}}
	result := e.Evaluate(vehicle, seq, ctx)
	if !result.Feasible {
		t.Error("expected feasible sequence once turnaround_time_strict is disabled")
	}
}
