package constraint

import "github.com/evfleetops/alloc-core/internal/paramdecoder"

// EnergyFeasibility holds constraint_energy_feasibility_* parameters.
type EnergyFeasibility struct {
	Enabled         bool
	SafetyMarginKWh float64
	AllowDCCharging bool
	Penalty         float64
}

// TurnaroundStrict holds constraint_turnaround_time_strict_* parameters.
type TurnaroundStrict struct {
	Enabled        bool
	MinimumMinutes int64
	Penalty        float64
}

// TurnaroundPreferred holds constraint_turnaround_time_preferred_* parameters.
type TurnaroundPreferred struct {
	Enabled        bool
	StandardMinutes int64
	OptimalMinutes  int64
	PenaltyStandard float64
	PenaltyOptimal  float64
}

// ShiftHoursStrict holds constraint_shift_hours_strict_* parameters.
type ShiftHoursStrict struct {
	Enabled              bool
	MaxHours             float64
	CalculationMethod    string // first_to_last | cumulative
	PreShiftBufferHours  float64
	PostShiftBufferHours float64
	Penalty              float64
}

// MinimumSoonness holds constraint_minimum_soonness_* parameters.
type MinimumSoonness struct {
	Enabled bool
	Hours   float64
	Penalty float64
}

// RouteOverlap holds constraint_route_overlap_* parameters. Mandatory:
// it has no Enabled field and the engine always evaluates it,
// whatever the decoded configuration says.
type RouteOverlap struct {
	Penalty float64
}

// ChargerPreference holds constraint_charger_preference_* parameters.
type ChargerPreference struct {
	Enabled         bool
	Map             map[string]int64
	TimeWindowStart float64
	TimeWindowEnd   float64
	ApplyToPosition string // first | all | longest
}

// SwapMinimization holds constraint_swap_minimization_* parameters.
type SwapMinimization struct {
	Enabled      bool
	BonusWeight  float64
	LookbackHours float64
}

// EnergyOptimization holds constraint_energy_optimization_* parameters.
type EnergyOptimization struct {
	Enabled          bool
	MarginThresholds []float64
	Scores           []float64
}

// Config is the fully decoded, defaulted configuration for all nine
// standard constraints.
type Config struct {
	EnergyFeasibility   EnergyFeasibility
	TurnaroundStrict    TurnaroundStrict
	TurnaroundPreferred TurnaroundPreferred
	ShiftHoursStrict    ShiftHoursStrict
	MinimumSoonness     MinimumSoonness
	RouteOverlap        RouteOverlap
	ChargerPreference   ChargerPreference
	SwapMinimization    SwapMinimization
	EnergyOptimization  EnergyOptimization
}

// BuildConfig decodes all nine constraints' configuration out of a
// parameter set, applying the defaults from the constraint table.
func BuildConfig(set paramdecoder.Set) Config {
	var cfg Config

	ef := set.ConstraintConfig("energy_feasibility")
	cfg.EnergyFeasibility = EnergyFeasibility{
		Enabled:         defaultTrue(ef, set, "energy_feasibility"),
		SafetyMarginKWh: ef.Params["safety_margin_kwh"].FloatOr(5.0),
		AllowDCCharging: ef.Params["allow_dc_charging"].BoolOr(true),
		Penalty:         penaltyOr(ef, -20),
	}

	ts := set.ConstraintConfig("turnaround_time_strict")
	cfg.TurnaroundStrict = TurnaroundStrict{
		Enabled:        defaultTrue(ts, set, "turnaround_time_strict"),
		MinimumMinutes: ts.Params["minimum_minutes"].IntOr(45),
		Penalty:        penaltyOr(ts, -22),
	}

	tp := set.ConstraintConfig("turnaround_time_preferred")
	cfg.TurnaroundPreferred = TurnaroundPreferred{
		Enabled:        defaultTrue(tp, set, "turnaround_time_preferred"),
		StandardMinutes: tp.Params["standard_minutes"].IntOr(75),
		OptimalMinutes:  tp.Params["optimal_minutes"].IntOr(90),
		PenaltyStandard: tp.Params["penalty_standard"].FloatOr(-2),
		PenaltyOptimal:  tp.Params["penalty_optimal"].FloatOr(-1),
	}

	sh := set.ConstraintConfig("shift_hours_strict")
	method := sh.Params["calculation_method"].StringOr("first_to_last")
	cfg.ShiftHoursStrict = ShiftHoursStrict{
		Enabled:              sh.Enabled, // site-dependent, no universal default
		MaxHours:             sh.Params["max_hours"].FloatOr(7.5),
		CalculationMethod:    method,
		PreShiftBufferHours:  sh.Params["pre_shift_buffer_hours"].FloatOr(0),
		PostShiftBufferHours: sh.Params["post_shift_buffer_hours"].FloatOr(0),
		Penalty:              penaltyOr(sh, -20),
	}

	ms := set.ConstraintConfig("minimum_soonness")
	cfg.MinimumSoonness = MinimumSoonness{
		Enabled: defaultTrue(ms, set, "minimum_soonness"),
		Hours:   ms.Params["hours"].FloatOr(0.75),
		Penalty: penaltyOr(ms, -20),
	}

	ro := set.ConstraintConfig("route_overlap")
	cfg.RouteOverlap = RouteOverlap{Penalty: penaltyOr(ro, -20)}

	cp := set.ConstraintConfig("charger_preference")
	cfg.ChargerPreference = ChargerPreference{
		Enabled:         cp.Enabled, // off by default
		Map:             decodeChargerMap(cp.Params["map"]),
		TimeWindowStart: cp.Params["time_window_start"].FloatOr(0),
		TimeWindowEnd:   cp.Params["time_window_end"].FloatOr(24),
		ApplyToPosition: cp.Params["apply_to_position"].StringOr("all"),
	}

	sm := set.ConstraintConfig("swap_minimization")
	cfg.SwapMinimization = SwapMinimization{
		Enabled:       sm.Enabled, // off by default
		BonusWeight:   sm.Params["bonus_weight"].FloatOr(0.5),
		LookbackHours: sm.Params["lookback_hours"].FloatOr(24),
	}

	eo := set.ConstraintConfig("energy_optimization")
	cfg.EnergyOptimization = EnergyOptimization{
		Enabled:          eo.Enabled, // off by default
		MarginThresholds: decodeFloatArray(eo.Params["margin_thresholds"]),
		Scores:           decodeFloatArray(eo.Params["scores"]),
	}

	return cfg
}

// defaultTrue implements the "on by default unless explicitly
// disabled" rule: these constraints' decoded Enabled is only ever
// false when the site configuration actually supplied a
// constraint_<name>_enabled=false key.
func defaultTrue(cc paramdecoder.ConstraintConfig, set paramdecoder.Set, name string) bool {
	if v, ok := set["constraint_"+name+"_enabled"]; ok {
		return v.BoolOr(true)
	}
	return true
}

func penaltyOr(cc paramdecoder.ConstraintConfig, def float64) float64 {
	if cc.Penalty != 0 {
		return cc.Penalty
	}
	return def
}

func decodeChargerMap(v paramdecoder.Value) map[string]int64 {
	if v.Kind != paramdecoder.KindObject {
		return nil
	}
	out := make(map[string]int64, len(v.Object))
	for k, raw := range v.Object {
		switch n := raw.(type) {
		case float64:
			out[k] = int64(n)
		}
	}
	return out
}

func decodeFloatArray(v paramdecoder.Value) []float64 {
	if v.Kind != paramdecoder.KindArray {
		return nil
	}
	out := make([]float64, 0, len(v.Array))
	for _, raw := range v.Array {
		if n, ok := raw.(float64); ok {
			out = append(out, n)
		}
	}
	return out
}
