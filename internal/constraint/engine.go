// Package constraint implements the tagged-variant constraint
// framework: nine named, independently configurable rules evaluated
// over a (vehicle, sequence) pair, composed into a single
// feasible/cost verdict.
package constraint

import (
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

// PreviousAllocationLookup resolves the vehicle last allocated to a
// route within a lookback window, for swap_minimization.
type PreviousAllocationLookup func(routeID string, lookback time.Duration) (vehicleID string, ok bool)

// Context carries the run-scoped state constraints need beyond the
// (vehicle, sequence) pair itself.
type Context struct {
	Now                time.Time
	AvailableEnergyKWh map[string]float64 // by vehicle id, at window start
	PreviousAllocation PreviousAllocationLookup
}

// Outcome is one constraint's verdict for a (vehicle, sequence) pair.
type Outcome struct {
	HardViolation bool
	ScoreDelta    float64
	Tags          []string
}

// Result is the engine's composed verdict.
type Result struct {
	Feasible bool
	Cost     float64
	Tags     []string
}

// Engine evaluates the configured constraint set over a sequence.
// Hard constraints are evaluated first and short-circuit on the first
// violation; route_overlap is mandatory and always evaluated
// regardless of configuration.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs every enabled constraint (plus the mandatory
// route_overlap) over vehicle/sequence and composes the result.
func (e *Engine) Evaluate(vehicle domain.Vehicle, seq []domain.Route, ctx Context) Result {
	// Hard constraints first (route_overlap, energy_feasibility,
	// turnaround_time_strict, shift_hours_strict, minimum_soonness);
	// short-circuit on first violation.
	if o := evalRouteOverlap(seq, e.cfg.RouteOverlap); o.HardViolation {
		return Result{Feasible: false, Tags: o.Tags}
	}
	if e.cfg.EnergyFeasibility.Enabled {
		available := ctx.AvailableEnergyKWh[vehicle.ID]
		if o := evalEnergyFeasibility(vehicle, seq, available, e.cfg.EnergyFeasibility); o.HardViolation {
			return Result{Feasible: false, Tags: o.Tags}
		}
	}
	if e.cfg.TurnaroundStrict.Enabled {
		if o := evalTurnaroundStrict(seq, e.cfg.TurnaroundStrict); o.HardViolation {
			return Result{Feasible: false, Tags: o.Tags}
		}
	}
	if e.cfg.ShiftHoursStrict.Enabled {
		if o := evalShiftHoursStrict(seq, e.cfg.ShiftHoursStrict); o.HardViolation {
			return Result{Feasible: false, Tags: o.Tags}
		}
	}
	if e.cfg.MinimumSoonness.Enabled {
		if o := evalMinimumSoonness(seq, ctx.Now, e.cfg.MinimumSoonness); o.HardViolation {
			return Result{Feasible: false, Tags: o.Tags}
		}
	}

	// Soft constraints: sum, no saturation.
	var cost float64
	var tags []string

	if e.cfg.TurnaroundPreferred.Enabled {
		o := evalTurnaroundPreferred(seq, e.cfg.TurnaroundPreferred)
		cost += o.ScoreDelta
		tags = append(tags, o.Tags...)
	}
	if e.cfg.ChargerPreference.Enabled {
		o := evalChargerPreference(seq, e.cfg.ChargerPreference)
		cost += o.ScoreDelta
		tags = append(tags, o.Tags...)
	}
	if e.cfg.SwapMinimization.Enabled && ctx.PreviousAllocation != nil {
		o := evalSwapMinimization(vehicle, seq, ctx.PreviousAllocation, e.cfg.SwapMinimization)
		cost += o.ScoreDelta
		tags = append(tags, o.Tags...)
	}
	if e.cfg.EnergyOptimization.Enabled {
		o := evalEnergyOptimization(vehicle, seq, e.cfg.EnergyOptimization)
		cost += o.ScoreDelta
		tags = append(tags, o.Tags...)
	}

	return Result{Feasible: true, Cost: cost, Tags: tags}
}

func adjacentGaps(seq []domain.Route) []time.Duration {
	gaps := make([]time.Duration, 0, len(seq)-1)
	for i := 0; i+1 < len(seq); i++ {
		gaps = append(gaps, seq[i+1].PlanStart.Sub(seq[i].PlanEnd))
	}
	return gaps
}

func evalRouteOverlap(seq []domain.Route, cfg RouteOverlap) Outcome {
	for i := 0; i < len(seq); i++ {
		for j := i + 1; j < len(seq); j++ {
			if seq[i].Overlaps(seq[j]) {
				return Outcome{HardViolation: true, ScoreDelta: cfg.Penalty, Tags: []string{"route_overlap"}}
			}
		}
	}
	return Outcome{}
}

func evalEnergyFeasibility(vehicle domain.Vehicle, seq []domain.Route, availableEnergyKWh float64, cfg EnergyFeasibility) Outcome {
	_ = cfg.AllowDCCharging
	running := availableEnergyKWh
	for _, r := range seq {
		running -= r.EnergyRequiredKWh(vehicle.EfficiencyKWhPerMile)
		if running < cfg.SafetyMarginKWh {
			return Outcome{HardViolation: true, ScoreDelta: cfg.Penalty, Tags: []string{"energy_feasibility"}}
		}
	}
	return Outcome{}
}

func evalTurnaroundStrict(seq []domain.Route, cfg TurnaroundStrict) Outcome {
	minimum := time.Duration(cfg.MinimumMinutes) * time.Minute
	for _, gap := range adjacentGaps(seq) {
		if gap < minimum {
			return Outcome{HardViolation: true, ScoreDelta: cfg.Penalty, Tags: []string{"turnaround_time_strict"}}
		}
	}
	return Outcome{}
}

func evalTurnaroundPreferred(seq []domain.Route, cfg TurnaroundPreferred) Outcome {
	standard := time.Duration(cfg.StandardMinutes) * time.Minute
	optimal := time.Duration(cfg.OptimalMinutes) * time.Minute
	var delta float64
	var tags []string
	for _, gap := range adjacentGaps(seq) {
		switch {
		case gap < standard:
			delta += cfg.PenaltyStandard
			tags = append(tags, "turnaround_time_preferred:standard")
		case gap < optimal:
			delta += cfg.PenaltyOptimal
			tags = append(tags, "turnaround_time_preferred:optimal")
		}
	}
	return Outcome{ScoreDelta: delta, Tags: tags}
}

func evalShiftHoursStrict(seq []domain.Route, cfg ShiftHoursStrict) Outcome {
	if len(seq) == 0 {
		return Outcome{}
	}
	var totalHours float64
	switch cfg.CalculationMethod {
	case "cumulative":
		for _, r := range seq {
			totalHours += r.PlanEnd.Sub(r.PlanStart).Hours()
		}
	default: // first_to_last
		totalHours = seq[len(seq)-1].PlanEnd.Sub(seq[0].PlanStart).Hours()
	}
	totalHours += cfg.PreShiftBufferHours + cfg.PostShiftBufferHours
	if totalHours > cfg.MaxHours {
		return Outcome{HardViolation: true, ScoreDelta: cfg.Penalty, Tags: []string{"shift_hours_strict"}}
	}
	return Outcome{}
}

func evalMinimumSoonness(seq []domain.Route, now time.Time, cfg MinimumSoonness) Outcome {
	if len(seq) == 0 {
		return Outcome{}
	}
	min := time.Duration(cfg.Hours * float64(time.Hour))
	if seq[0].PlanStart.Sub(now) < min {
		return Outcome{HardViolation: true, ScoreDelta: cfg.Penalty, Tags: []string{"minimum_soonness"}}
	}
	return Outcome{}
}

func evalChargerPreference(seq []domain.Route, cfg ChargerPreference) Outcome {
	if len(cfg.Map) == 0 || len(seq) == 0 {
		return Outcome{}
	}

	apply := func(r domain.Route) (float64, bool) {
		hour := float64(r.PlanStart.Hour()) + float64(r.PlanStart.Minute())/60
		if hour < cfg.TimeWindowStart || hour >= cfg.TimeWindowEnd {
			return 0, false
		}
		v, ok := cfg.Map[r.ExternalRef]
		if !ok {
			return 0, false
		}
		return float64(v), true
	}

	var delta float64
	var tags []string
	switch cfg.ApplyToPosition {
	case "first":
		if d, ok := apply(seq[0]); ok {
			delta += d
			tags = append(tags, "charger_preference")
		}
	case "longest":
		longest := seq[0]
		for _, r := range seq[1:] {
			if r.PlanEnd.Sub(r.PlanStart) > longest.PlanEnd.Sub(longest.PlanStart) {
				longest = r
			}
		}
		if d, ok := apply(longest); ok {
			delta += d
			tags = append(tags, "charger_preference")
		}
	default: // all
		for _, r := range seq {
			if d, ok := apply(r); ok {
				delta += d
				tags = append(tags, "charger_preference")
			}
		}
	}
	return Outcome{ScoreDelta: delta, Tags: tags}
}

func evalSwapMinimization(vehicle domain.Vehicle, seq []domain.Route, lookup PreviousAllocationLookup, cfg SwapMinimization) Outcome {
	lookback := time.Duration(cfg.LookbackHours * float64(time.Hour))
	var delta float64
	var tags []string
	for _, r := range seq {
		if prevVehicle, ok := lookup(r.ID, lookback); ok && prevVehicle == vehicle.ID {
			delta += cfg.BonusWeight
			tags = append(tags, "swap_minimization")
		}
	}
	return Outcome{ScoreDelta: delta, Tags: tags}
}

func evalEnergyOptimization(vehicle domain.Vehicle, seq []domain.Route, cfg EnergyOptimization) Outcome {
	if len(cfg.MarginThresholds) == 0 || len(cfg.MarginThresholds) != len(cfg.Scores) || vehicle.BatteryCapacityKWh <= 0 {
		return Outcome{}
	}
	var required float64
	for _, r := range seq {
		required += r.EnergyRequiredKWh(vehicle.EfficiencyKWhPerMile)
	}
	margin := (vehicle.BatteryCapacityKWh - required) / vehicle.BatteryCapacityKWh

	best := -1
	for i, threshold := range cfg.MarginThresholds {
		if margin >= threshold {
			if best == -1 || threshold > cfg.MarginThresholds[best] {
				best = i
			}
		}
	}
	if best == -1 {
		return Outcome{}
	}
	return Outcome{ScoreDelta: cfg.Scores[best], Tags: []string{"energy_optimization"}}
}
