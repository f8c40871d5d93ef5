// Package coordinator drives the three run modes over the
// allocation and charge optimizers, composing their results into a
// single weighted-sum objective per spec.md §4.7.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/allocation"
	"github.com/evfleetops/alloc-core/internal/charging"
	"github.com/evfleetops/alloc-core/internal/constraint"
	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/observability/telemetry"
	"github.com/evfleetops/alloc-core/internal/paramdecoder"
	"github.com/evfleetops/alloc-core/internal/ports"
	"github.com/evfleetops/alloc-core/internal/sequence"
	"github.com/evfleetops/alloc-core/internal/solver"
	"github.com/evfleetops/alloc-core/internal/window"
)

// RunParams is one run's caller-supplied overrides, mirroring the CLI
// flag set of the driver surface.
type RunParams struct {
	SiteID           string
	StartTime        time.Time
	WindowHours      int
	Mode             domain.CoordinatorMode
	AllocationWeight float64 // α, default 1.0
	SchedulingWeight float64 // β, default 1.0
	TargetSOCPercent float64 // overrides site config when > 0
	SiteCapacityKW   float64 // overrides site config when > 0

	AllocationTimeLimit time.Duration
	SchedulingTimeLimit time.Duration
	IntegratedTimeLimit time.Duration
}

// Coordinator owns the repositories and the per-site run serialization
// the concurrency model requires: the core never runs two overlapping
// optimizations for the same site.
type Coordinator struct {
	fleet     ports.FleetRepository
	prices    ports.PriceForecastProvider
	siteCfg   ports.SiteParameterRepository
	publisher ports.ResultPublisher
	solver    solver.Solver
	log       *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(fleet ports.FleetRepository, prices ports.PriceForecastProvider, siteCfg ports.SiteParameterRepository, publisher ports.ResultPublisher, s solver.Solver, log *zap.Logger) *Coordinator {
	return &Coordinator{
		fleet:     fleet,
		prices:    prices,
		siteCfg:   siteCfg,
		publisher: publisher,
		solver:    s,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) siteLock(siteID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[siteID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[siteID] = l
	}
	return l
}

// Run executes one end-to-end optimization run for a site, serialized
// against any concurrent run for the same site.
func (c *Coordinator) Run(ctx context.Context, runID string, p RunParams) (domain.UnifiedResult, error) {
	lock := c.siteLock(p.SiteID)
	lock.Lock()
	defer lock.Unlock()

	ctx, runSpan := telemetry.StartRunSpan(ctx, runID, p.SiteID, string(p.Mode))
	defer runSpan.End()

	if p.AllocationWeight == 0 {
		p.AllocationWeight = 1.0
	}
	if p.SchedulingWeight == 0 {
		p.SchedulingWeight = 1.0
	}

	rawParams, err := c.siteCfg.LoadSiteParameters(ctx, p.SiteID)
	if err != nil {
		return domain.UnifiedResult{}, fmt.Errorf("load site parameters: %w", err)
	}
	set := paramdecoder.Decode(rawParams)

	windowHours := p.WindowHours
	if windowHours == 0 {
		windowHours = int(set["allocation_window_hours"].IntOr(window.DefaultHorizonHours))
	}
	maxRoutesPerVehicle := int(set["max_routes_per_vehicle_in_window"].IntOr(sequence.DefaultMaxRoutesPerVehicle))
	bufferMinutes := set["route_sequence_buffer_minutes"].IntOr(15)
	minStops := int(set["min_stops_count"].IntOr(0))

	vehicles, err := c.fleet.ListVehicles(ctx, p.SiteID)
	if err != nil {
		return domain.UnifiedResult{}, fmt.Errorf("list vehicles: %w", err)
	}
	states, err := c.fleet.LatestVehicleStates(ctx, p.SiteID)
	if err != nil {
		return domain.UnifiedResult{}, fmt.Errorf("list vehicle states: %w", err)
	}

	w := window.Build(p.StartTime, windowHours, p.SiteID, minStops, nil, states, vehicles, nil)
	windowEnd := w.End

	routes, err := c.fleet.ListRoutesInWindow(ctx, p.SiteID, p.StartTime, windowEnd)
	if err != nil {
		return domain.UnifiedResult{}, fmt.Errorf("list routes in window: %w", err)
	}
	committed, err := c.fleet.ListCommittedAllocations(ctx, p.SiteID, p.StartTime, windowEnd)
	if err != nil {
		return domain.UnifiedResult{}, fmt.Errorf("list committed allocations: %w", err)
	}
	w = window.Build(p.StartTime, windowHours, p.SiteID, minStops, routes, states, vehicles, committed)

	cfg := constraint.BuildConfig(set)
	engine := constraint.NewEngine(cfg)

	lookback := func(routeID string, lookback time.Duration) (string, bool) {
		vehicleID, ok, err := c.fleet.PreviousAllocation(ctx, routeID, p.StartTime.Add(-lookback))
		if err != nil || !ok {
			return "", false
		}
		return vehicleID, true
	}

	availEnergy := make(map[string]float64, len(vehicles))
	for id, a := range w.Availability {
		availEnergy[id] = a.AvailableEnergyKWh
	}
	cctx := constraint.Context{Now: p.StartTime, AvailableEnergyKWh: availEnergy, PreviousAllocation: lookback}

	var scored []allocation.ScoredSequence
	for _, v := range vehicles {
		if !v.Eligible() {
			continue
		}
		avail, ok := w.Availability[v.ID]
		if !ok {
			continue
		}
		seqParams := sequence.Params{
			MaxRoutesPerVehicle: maxRoutesPerVehicle,
			TurnaroundMinimum:   turnaround(cfg.TurnaroundStrict.Enabled, cfg.TurnaroundStrict.MinimumMinutes, bufferMinutes),
			SafetyMarginKWh:     cfg.EnergyFeasibility.SafetyMarginKWh,
			ChargingPowerKW:     v.ACChargeRateKW,
		}
		candidates := sequence.Enumerate(v.ID, avail, v.EfficiencyKWhPerMile, w.EligibleRoutes, seqParams)
		for _, cand := range candidates {
			result := engine.Evaluate(v, cand.Routes, cctx)
			if !result.Feasible {
				continue
			}
			scored = append(scored, allocation.ScoredSequence{
				VehicleID:          cand.VehicleID,
				Routes:             cand.Routes,
				Cost:               result.Cost,
				BatteryCapacityKWh: v.BatteryCapacityKWh,
				RemainingEnergyKWh: cand.RemainingEnergyKWh,
			})
		}
	}

	allocParams := allocation.DefaultParams()
	if p.AllocationTimeLimit > 0 {
		allocParams.TimeLimit = p.AllocationTimeLimit
	}

	result := domain.UnifiedResult{RunID: runID, Mode: p.Mode}
	start := time.Now()

	var allocResult domain.AllocationResult
	var allocFallback bool
	var chargePlan domain.ChargePlan
	var chargeFallback bool

	runAllocation := p.Mode != domain.ModeSchedulingOnly
	runScheduling := p.Mode != domain.ModeAllocationOnly

	if runAllocation {
		allocCtx, allocSpan := telemetry.StartSolverSpan(ctx, "allocation")
		allocStart := time.Now()
		allocResult, allocFallback = allocation.Solve(allocCtx, runID, w.EligibleRoutes, scored, c.solver, allocParams)
		telemetry.RecordSolverCall("allocation", solverCallStatus(allocFallback), time.Since(allocStart).Seconds())
		telemetry.RecordAllocationCoverage(len(allocResult.Assignments), len(w.EligibleRoutes))
		if allocResult.Status == domain.AllocationStatusFailed {
			telemetry.RecordInfeasible("allocation")
		}
		allocSpan.End()
		result.Allocation = &allocResult
	}

	if runScheduling {
		if p.TargetSOCPercent == 0 {
			p.TargetSOCPercent = set["target_soc_percent"].FloatOr(95)
		}
		demands, checkpoints, err := c.buildChargingInputs(vehicles, w, allocResult, p)
		if err != nil {
			return domain.UnifiedResult{}, err
		}
		prices, err := c.prices.PricesAndForecast(ctx, p.StartTime, windowEnd)
		if err != nil {
			return domain.UnifiedResult{}, fmt.Errorf("load prices and forecast: %w", err)
		}
		slots := domain.BuildSlots(p.StartTime, windowEnd.Sub(p.StartTime))

		chargeParams := charging.DefaultParams()
		if p.SchedulingTimeLimit > 0 {
			chargeParams.TimeLimit = p.SchedulingTimeLimit
		}
		chargeParams.SiteCapacityKW = p.SiteCapacityKW
		if chargeParams.SiteCapacityKW == 0 {
			chargeParams.SiteCapacityKW = set["site_capacity_kw"].FloatOr(200)
		}
		chargeParams.SyntheticTimeFactor = set["synthetic_time_price_factor"].FloatOr(chargeParams.SyntheticTimeFactor)
		chargeParams.TriadFactor = set["triad_penalty_factor"].FloatOr(chargeParams.TriadFactor)
		chargeParams.ShortfallPenalty = set["target_soc_shortfall_penalty"].FloatOr(chargeParams.ShortfallPenalty)

		chargeCtx, chargeSpan := telemetry.StartSolverSpan(ctx, "charging")
		chargeStart := time.Now()
		chargePlan, chargeFallback = charging.Solve(chargeCtx, runID, demands, slots, prices, checkpoints, c.solver, chargeParams)
		telemetry.RecordSolverCall("charging", solverCallStatus(chargeFallback), time.Since(chargeStart).Seconds())
		var shortfallTotal float64
		for _, s := range chargePlan.Shortfall {
			shortfallTotal += s
		}
		telemetry.RecordShortfall(shortfallTotal)
		chargeSpan.End()
		result.ChargePlan = &chargePlan
	}

	result.SolveTime = time.Since(start)
	result.SolverStatus = solveStatus(runAllocation, runScheduling, allocFallback, chargeFallback, allocResult, chargePlan)
	result.ObjectiveValue = objective(p, runAllocation, runScheduling, allocResult, chargePlan, set)
	result.Diagnostics = append(append(result.Diagnostics, allocResult.Diagnostics...), chargePlan.Diagnostics...)
	telemetry.RecordRun(string(p.Mode), string(result.SolverStatus), result.SolveTime.Seconds())

	if c.publisher != nil {
		if err := c.publisher.PublishUnifiedResult(ctx, result); err != nil {
			c.log.Warn("publish unified result failed", zap.Error(err))
		}
	}

	return result, nil
}

// solverCallStatus maps a stage's fallback outcome onto the status
// label RecordSolverCall expects. The stage APIs only expose whether
// the greedy fallback ran, not the underlying solver.Status, so every
// fallback is reported as "unavailable" regardless of cause.
func solverCallStatus(usedFallback bool) string {
	if usedFallback {
		return "unavailable"
	}
	return "ok"
}

// buildChargingInputs constructs each eligible vehicle's demand and
// route checkpoints, gated by which sequences the allocation stage
// actually chose (the resolved coupling for the integrated mode).
func (c *Coordinator) buildChargingInputs(vehicles []domain.Vehicle, w window.Window, allocResult domain.AllocationResult, p RunParams) ([]charging.VehicleDemand, []charging.Checkpoint, error) {
	targetSOCPercent := p.TargetSOCPercent
	if targetSOCPercent == 0 {
		targetSOCPercent = 95
	}

	routesByVehicle := make(map[string][]domain.RouteAssignment)
	for _, a := range allocResult.Assignments {
		routesByVehicle[a.VehicleID] = append(routesByVehicle[a.VehicleID], a)
	}

	routeByID := make(map[string]domain.Route, len(w.EligibleRoutes))
	for _, r := range w.EligibleRoutes {
		routeByID[r.ID] = r
	}

	windowDuration := w.End.Sub(w.Now)

	var demands []charging.VehicleDemand
	var checkpoints []charging.Checkpoint

	for _, v := range vehicles {
		if !v.Eligible() {
			continue
		}
		avail, ok := w.Availability[v.ID]
		if !ok {
			continue
		}

		var slots []int
		for i := 0; i < int(windowDuration/domain.SlotDuration); i++ {
			slotStart := w.Now.Add(time.Duration(i) * domain.SlotDuration)
			if !slotStart.Before(avail.AvailableFrom) {
				slots = append(slots, i)
			}
		}

		demands = append(demands, charging.VehicleDemand{
			VehicleID:           v.ID,
			ACChargeRateKW:      v.ACChargeRateKW,
			InitialSOCEnergyKWh: avail.AvailableEnergyKWh,
			BatteryCapacityKWh:  v.BatteryCapacityKWh,
			TargetSOCEnergyKWh:  targetSOCPercent / 100.0 * v.BatteryCapacityKWh,
			MaxShortfallKWh:     v.BatteryCapacityKWh,
			AvailableSlots:      slots,
		})

		assignments := routesByVehicle[v.ID]
		sort.Slice(assignments, func(i, j int) bool { return assignments[i].EstimatedArrival.Before(assignments[j].EstimatedArrival) })
		for _, a := range assignments {
			slotIdx := domain.SlotIndexForTime(w.Now, windowDuration, a.EstimatedArrival)
			if slotIdx < 0 {
				continue
			}
			route, ok := routeByID[a.RouteID]
			if !ok {
				continue
			}
			checkpoints = append(checkpoints, charging.Checkpoint{
				VehicleID:         v.ID,
				SlotIndex:         slotIdx,
				RequiredEnergyKWh: route.EnergyRequiredKWh(v.EfficiencyKWhPerMile),
			})
		}
	}

	return demands, checkpoints, nil
}

// turnaround returns the minimum gap the sequence enumerator must leave
// between consecutive routes on a vehicle. When the strict constraint is
// disabled, only the scheduling buffer applies; the strict minimum never
// enters the enumerator's pruning in that case.
func turnaround(strictEnabled bool, strictMinutes, bufferMinutes int64) time.Duration {
	if !strictEnabled {
		return time.Duration(bufferMinutes) * time.Minute
	}
	m := strictMinutes
	if bufferMinutes > m {
		m = bufferMinutes
	}
	return time.Duration(m) * time.Minute
}

func solveStatus(runAllocation, runScheduling, allocFallback, chargeFallback bool, allocResult domain.AllocationResult, chargePlan domain.ChargePlan) domain.SolverStatus {
	if runAllocation && allocResult.Status == domain.AllocationStatusFailed {
		return domain.SolverStatusInfeasible
	}
	if (runAllocation && allocFallback) || (runScheduling && chargeFallback) {
		return domain.SolverStatusFallback
	}
	return domain.SolverStatusOK
}

// objective computes α·(W·coverage + sequence_cost) − β·(charging_cost + λ·shortfall).
func objective(p RunParams, runAllocation, runScheduling bool, allocResult domain.AllocationResult, chargePlan domain.ChargePlan, set paramdecoder.Set) float64 {
	var value float64
	if runAllocation {
		value += p.AllocationWeight * allocResult.TotalScore
	}
	if runScheduling {
		lambda := set["target_soc_shortfall_penalty"].FloatOr(1000)
		var shortfallTotal float64
		for _, s := range chargePlan.Shortfall {
			shortfallTotal += s
		}
		value -= p.SchedulingWeight * (chargePlan.TotalCost + lambda*shortfallTotal)
	}
	return value
}
