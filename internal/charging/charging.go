// Package charging solves the continuous-variable half-hourly power
// schedule of spec.md §4.6: per vehicle and slot, how much power to
// draw so that route checkpoints and target SOC are met at minimum
// cost, subject to site capacity.
package charging

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/solver"
)

// Checkpoint is a route energy requirement gating a vehicle's
// schedule at a given slot: cumulative delivered energy through the
// previous slot must cover it.
type Checkpoint struct {
	VehicleID       string
	SlotIndex       int // k: requirement binds at end of slot k-1
	RequiredEnergyKWh float64
}

// VehicleDemand is one vehicle's charging need for the run.
type VehicleDemand struct {
	VehicleID          string
	ACChargeRateKW     float64
	InitialSOCEnergyKWh float64
	BatteryCapacityKWh float64
	TargetSOCEnergyKWh float64
	MaxShortfallKWh    float64
	AvailableSlots     []int // slots where the vehicle is present to charge
}

// Params tunes a single charge-scheduling run.
type Params struct {
	TimeLimit          time.Duration // default 300s per spec.md §6.1
	SiteCapacityKW     float64
	SyntheticTimeFactor float64 // default small, breaks ties toward earlier slots
	TriadFactor        float64
	ShortfallPenalty   float64 // λ, default 1000
}

func DefaultParams() Params {
	return Params{
		TimeLimit:          300 * time.Second,
		SyntheticTimeFactor: 0.01,
		TriadFactor:        50,
		ShortfallPenalty:   1000,
	}
}

// Solve runs the charge optimizer: the external solver first (if s is
// non-nil and available), greedy fallback otherwise.
func Solve(ctx context.Context, runID string, demands []VehicleDemand, slots []domain.TimeSlot, prices []domain.PricePoint, checkpoints []Checkpoint, s solver.Solver, params Params) (domain.ChargePlan, bool) {
	if params.TimeLimit <= 0 {
		d := DefaultParams()
		params.TimeLimit = d.TimeLimit
		if params.SyntheticTimeFactor == 0 {
			params.SyntheticTimeFactor = d.SyntheticTimeFactor
		}
		if params.ShortfallPenalty == 0 {
			params.ShortfallPenalty = d.ShortfallPenalty
		}
	}

	if s != nil {
		payload, err := json.Marshal(struct {
			Demands     []VehicleDemand    `json:"demands"`
			Slots       []domain.TimeSlot  `json:"slots"`
			Prices      []domain.PricePoint `json:"prices"`
			Checkpoints []Checkpoint       `json:"checkpoints"`
			Params      Params             `json:"params"`
		}{demands, slots, prices, checkpoints, params})
		if err == nil {
			outcome, callErr := s.Solve(ctx, solver.ProblemCharging, payload, params.TimeLimit)
			if callErr == nil && outcome.Status == solver.StatusOK {
				var plan domain.ChargePlan
				if json.Unmarshal(outcome.Payload, &plan) == nil {
					plan.RunID = runID
					plan.Fallback = false
					return plan, false
				}
			}
		}
	}

	plan := greedy(runID, demands, slots, prices, checkpoints, params)
	plan.Fallback = true
	plan.Diagnostics = append(plan.Diagnostics, domain.RunDiagnostic{
		Kind:    domain.KindSolverUnavailable,
		Message: "external charge solver unavailable or returned no solution, used greedy fallback",
	})
	return plan, true
}

// greedy fills each vehicle's need from cheapest available slots at
// full rate, then clips per-slot across vehicles to respect site
// capacity, in ascending vehicle-id priority order.
func greedy(runID string, demands []VehicleDemand, slots []domain.TimeSlot, prices []domain.PricePoint, checkpoints []Checkpoint, params Params) domain.ChargePlan {
	priceBySlot := make(map[int]domain.PricePoint, len(prices))
	for _, p := range prices {
		priceBySlot[p.SlotIndex] = p
	}

	checkpointsByVehicle := make(map[string][]Checkpoint)
	for _, c := range checkpoints {
		checkpointsByVehicle[c.VehicleID] = append(checkpointsByVehicle[c.VehicleID], c)
	}

	sortedDemands := make([]VehicleDemand, len(demands))
	copy(sortedDemands, demands)
	sort.SliceStable(sortedDemands, func(i, j int) bool { return sortedDemands[i].VehicleID < sortedDemands[j].VehicleID })

	power := make(map[string]map[int]float64) // vehicle -> slot -> kW
	shortfall := make(map[string]float64)

	for _, d := range sortedDemands {
		var need float64
		for _, c := range checkpointsByVehicle[d.VehicleID] {
			need += c.RequiredEnergyKWh
		}
		need += math.Max(0, d.TargetSOCEnergyKWh-d.InitialSOCEnergyKWh)

		candidateSlots := make([]int, len(d.AvailableSlots))
		copy(candidateSlots, d.AvailableSlots)
		sort.SliceStable(candidateSlots, func(i, j int) bool {
			pi := effectivePrice(priceBySlot[candidateSlots[i]], params)
			pj := effectivePrice(priceBySlot[candidateSlots[j]], params)
			if pi != pj {
				return pi < pj
			}
			return candidateSlots[i] < candidateSlots[j]
		})

		vehiclePower := make(map[int]float64)
		remaining := need
		for _, slotIdx := range candidateSlots {
			if remaining <= 0 {
				break
			}
			rate := d.ACChargeRateKW
			deliverable := rate * domain.SlotDuration.Hours()
			if deliverable > remaining {
				rate = remaining / domain.SlotDuration.Hours()
			}
			vehiclePower[slotIdx] = rate
			remaining -= rate * domain.SlotDuration.Hours()
		}
		if remaining > 0 {
			shortfall[d.VehicleID] = math.Min(remaining, d.MaxShortfallKWh)
		}
		power[d.VehicleID] = vehiclePower
	}

	if params.SiteCapacityKW > 0 {
		clipToSiteCapacity(sortedDemands, power, priceBySlot, slots, params.SiteCapacityKW)
	}

	return buildPlan(runID, sortedDemands, power, shortfall, priceBySlot)
}

func effectivePrice(p domain.PricePoint, params Params) float64 {
	price := p.EnergyPrice
	if p.TriadFlag {
		price += params.TriadFactor
	}
	return price
}

// clipToSiteCapacity enforces Σᵥ p[t,v] ≤ max(0, capacity - load_forecast[t])
// per slot, reducing lower-priority (later-iterated) vehicles first.
func clipToSiteCapacity(demands []VehicleDemand, power map[string]map[int]float64, prices map[int]domain.PricePoint, slots []domain.TimeSlot, siteCapacityKW float64) {
	for _, slot := range slots {
		headroom := siteCapacityKW
		if p, ok := prices[slot.Index]; ok {
			headroom = math.Max(0, siteCapacityKW-p.LoadForecastKW)
		}
		var total float64
		for _, d := range demands {
			total += power[d.VehicleID][slot.Index]
		}
		if total <= headroom {
			continue
		}
		excess := total - headroom
		for i := len(demands) - 1; i >= 0 && excess > 0; i-- {
			v := demands[i].VehicleID
			p := power[v][slot.Index]
			if p <= 0 {
				continue
			}
			reduce := math.Min(p, excess)
			power[v][slot.Index] = p - reduce
			excess -= reduce
		}
	}
}

func buildPlan(runID string, demands []VehicleDemand, power map[string]map[int]float64, shortfall map[string]float64, prices map[int]domain.PricePoint) domain.ChargePlan {
	var schedules []domain.VehicleSchedule
	var totalEnergy, totalCost float64

	for _, d := range demands {
		slotPowers := power[d.VehicleID]
		indices := make([]int, 0, len(slotPowers))
		for idx := range slotPowers {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		var powers []domain.VehiclePower
		for _, idx := range indices {
			kw := slotPowers[idx]
			if kw <= 0 {
				continue
			}
			powers = append(powers, domain.VehiclePower{SlotIndex: idx, PowerKW: kw})
			energy := kw * domain.SlotDuration.Hours()
			totalEnergy += energy
			if p, ok := prices[idx]; ok {
				totalCost += energy * p.EnergyPrice
			}
		}
		schedules = append(schedules, domain.VehicleSchedule{VehicleID: d.VehicleID, Powers: powers})
	}

	return domain.ChargePlan{
		RunID:       runID,
		Schedules:   schedules,
		Shortfall:   shortfall,
		TotalEnergy: totalEnergy,
		TotalCost:   totalCost,
	}
}
