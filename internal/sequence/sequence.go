// Package sequence enumerates feasible ordered route sequences per
// vehicle, depth-first, pruning a partial sequence as soon as it
// violates a hard invariant rather than generating every permutation
// and filtering afterward.
package sequence

import (
	"sort"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/window"
)

const DefaultMaxRoutesPerVehicle = 5

// Params are the enumerator's tunables, decoded from site
// configuration by the caller.
type Params struct {
	MaxRoutesPerVehicle int
	TurnaroundMinimum   time.Duration // max(strict_minimum_minutes, route_sequence_buffer_minutes); the buffer alone when the strict constraint is disabled
	SafetyMarginKWh     float64
	ChargingPowerKW     float64 // recovery rate allowed during idle gaps, 0 disables recovery
}

// Candidate is one (vehicle, sequence) pair emitted by the enumerator.
// It carries no score; the caller scores it with the constraint
// engine. RemainingEnergyKWh[i] is the battery energy left
// immediately after Routes[i], cascading recovery included.
type Candidate struct {
	VehicleID          string
	Routes             []domain.Route
	RemainingEnergyKWh []float64
}

// Enumerate produces, for one vehicle, every non-empty ordered
// sub-sequence of eligible (already sorted by plan_start) up to
// params.MaxRoutesPerVehicle routes, subject to turnaround and
// cascading-energy feasibility. The empty sequence is never emitted.
func Enumerate(vehicleID string, avail window.Availability, efficiencyKWhPerMile float64, eligible []domain.Route, params Params) []Candidate {
	k := params.MaxRoutesPerVehicle
	if k <= 0 {
		k = DefaultMaxRoutesPerVehicle
	}

	sorted := make([]domain.Route, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PlanStart.Before(sorted[j].PlanStart) })

	e := &enumerator{
		vehicleID:  vehicleID,
		efficiency: efficiencyKWhPerMile,
		routes:     sorted,
		params:     params,
		maxLen:     k,
	}
	e.dfs(nil, nil, avail.AvailableFrom, avail.AvailableEnergyKWh, 0)
	return e.out
}

type enumerator struct {
	vehicleID  string
	efficiency float64
	routes     []domain.Route
	params     Params
	maxLen     int
	out        []Candidate
}

// dfs extends the partial sequence with every route that starts
// strictly after the previous route's index, pruning any extension
// that would violate turnaround or energy feasibility immediately —
// no route further down the sorted list can rescue a pruned prefix
// since routes only get later in time.
func (e *enumerator) dfs(partial []domain.Route, energyPartial []float64, availableFrom time.Time, availableEnergy float64, fromIdx int) {
	if len(partial) > 0 {
		cp := make([]domain.Route, len(partial))
		copy(cp, partial)
		ep := make([]float64, len(energyPartial))
		copy(ep, energyPartial)
		e.out = append(e.out, Candidate{VehicleID: e.vehicleID, Routes: cp, RemainingEnergyKWh: ep})
	}
	if len(partial) >= e.maxLen {
		return
	}

	minNextStart := availableFrom
	if len(partial) > 0 {
		prevEnd := partial[len(partial)-1].PlanEnd
		if gated := prevEnd.Add(e.params.TurnaroundMinimum); gated.After(minNextStart) {
			minNextStart = gated
		}
	}

	for i := fromIdx; i < len(e.routes); i++ {
		r := e.routes[i]
		if r.PlanStart.Before(minNextStart) {
			continue
		}

		required := r.EnergyRequiredKWh(e.efficiency)
		recovered := 0.0
		if len(partial) > 0 && e.params.ChargingPowerKW > 0 {
			prevEnd := partial[len(partial)-1].PlanEnd
			idleGap := r.PlanStart.Sub(prevEnd)
			if idleGap > 0 {
				recovered = e.params.ChargingPowerKW * idleGap.Hours()
			}
		}
		remaining := availableEnergy + recovered - required
		if remaining < e.params.SafetyMarginKWh {
			continue
		}

		newPartial := append(partial, r)
		newEnergy := append(energyPartial, remaining)
		e.dfs(newPartial, newEnergy, r.PlanEnd, remaining, i+1)
	}
}
