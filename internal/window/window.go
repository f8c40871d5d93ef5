// Package window computes the rolling planning horizon, the eligible
// route set, and each vehicle's availability record at the start of a
// run.
package window

import (
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

const (
	DefaultHorizonHours = 18
	MinHorizonHours     = 4
	MaxHorizonHours     = 24
)

// ClampHorizonHours enforces the 4..24 bound on the configured window
// size, defaulting to 18 when h is zero.
func ClampHorizonHours(h int) int {
	if h == 0 {
		h = DefaultHorizonHours
	}
	if h < MinHorizonHours {
		h = MinHorizonHours
	}
	if h > MaxHorizonHours {
		h = MaxHorizonHours
	}
	return h
}

// Window is the computed rolling horizon plus the inputs derived from
// it: the eligible route set and per-vehicle availability.
type Window struct {
	Now              time.Time
	End              time.Time
	EligibleRoutes   []domain.Route
	UnfeasibleRoutes []domain.Route
	Availability     map[string]Availability
}

// Availability is one vehicle's computed starting point for sequence
// enumeration.
type Availability struct {
	VehicleID         string
	AvailableFrom     time.Time
	AvailableEnergyKWh float64
}

// Build computes the window for one run.
//
// minStops drops routes below the configured order-count floor,
// tagging them Unfeasible rather than simply excluding them, so the
// caller can report why a route did not enter the window.
func Build(
	now time.Time,
	horizonHours int,
	siteID string,
	minStops int,
	routes []domain.Route,
	states []domain.VehicleState,
	vehicles []domain.Vehicle,
	committed []domain.CommittedAllocation,
) Window {
	horizon := time.Duration(ClampHorizonHours(horizonHours)) * time.Hour
	end := now.Add(horizon)

	w := Window{
		Now:          now,
		End:          end,
		Availability: make(map[string]Availability, len(vehicles)),
	}

	stateByVehicle := make(map[string]domain.VehicleState, len(states))
	for _, s := range states {
		stateByVehicle[s.VehicleID] = s
	}

	for _, r := range routes {
		if r.Site != siteID || r.Status != domain.RouteStatusNew {
			continue
		}
		if r.PlanStart.Before(now) || !r.PlanStart.Before(end) {
			continue
		}
		if r.NOrders < minStops {
			r.Status = domain.RouteStatusUnfeasible
			w.UnfeasibleRoutes = append(w.UnfeasibleRoutes, r)
			continue
		}
		w.EligibleRoutes = append(w.EligibleRoutes, r)
	}

	for _, v := range vehicles {
		if !v.Enabled {
			continue
		}
		state := stateByVehicle[v.ID]
		avail := Availability{
			VehicleID:          v.ID,
			AvailableFrom:      state.AvailableFrom(now),
			AvailableEnergyKWh: state.AvailableEnergyKWh(v.BatteryCapacityKWh),
		}
		w.Availability[v.ID] = avail
	}

	applyCommittedRoutes(&w, routes, vehicles, committed)

	return w
}

// applyCommittedRoutes cascades already-committed routes within the
// window into each affected vehicle's availability, deducting energy
// and advancing available_from in route order.
func applyCommittedRoutes(w *Window, allRoutes []domain.Route, vehicles []domain.Vehicle, committed []domain.CommittedAllocation) {
	if len(committed) == 0 {
		return
	}

	routeByID := make(map[string]domain.Route, len(allRoutes))
	for _, r := range allRoutes {
		routeByID[r.ID] = r
	}
	vehicleByID := make(map[string]domain.Vehicle, len(vehicles))
	for _, v := range vehicles {
		vehicleByID[v.ID] = v
	}

	byVehicle := make(map[string][]domain.Route)
	for _, c := range committed {
		r, ok := routeByID[c.RouteID]
		if !ok {
			continue
		}
		if r.PlanStart.Before(w.Now) || !r.PlanStart.Before(w.End) {
			continue
		}
		byVehicle[c.VehicleID] = append(byVehicle[c.VehicleID], r)
	}

	for vehicleID, routes := range byVehicle {
		sortByPlanStart(routes)
		avail, ok := w.Availability[vehicleID]
		if !ok {
			continue
		}
		veh := vehicleByID[vehicleID]
		for _, r := range routes {
			if r.PlanStart.Before(avail.AvailableFrom) {
				continue
			}
			avail.AvailableEnergyKWh -= r.EnergyRequiredKWh(veh.EfficiencyKWhPerMile)
			if avail.AvailableEnergyKWh < 0 {
				avail.AvailableEnergyKWh = 0
			}
			avail.AvailableFrom = r.PlanEnd
		}
		w.Availability[vehicleID] = avail
	}
}

func sortByPlanStart(routes []domain.Route) {
	for i := 1; i < len(routes); i++ {
		for j := i; j > 0 && routes[j].PlanStart.Before(routes[j-1].PlanStart); j-- {
			routes[j], routes[j-1] = routes[j-1], routes[j]
		}
	}
}
