package domain

import "time"

// RouteStatus tracks a route through its planning lifecycle.
type RouteStatus string

const (
	RouteStatusNew        RouteStatus = "New"
	RouteStatusActive     RouteStatus = "Active"
	RouteStatusComplete   RouteStatus = "Complete"
	RouteStatusCancelled  RouteStatus = "Cancelled"
	RouteStatusError      RouteStatus = "Error"
	RouteStatusUnfeasible RouteStatus = "Unfeasible"
)

// NoVehicle is the sentinel used for "no pre-assigned vehicle". Input
// adapters are responsible for normalizing legacy sentinels (0, -1,
// "X", null) to this value before a route reaches the core.
const NoVehicle = ""

// Route is a single delivery route candidate for allocation.
type Route struct {
	ID                string      `json:"id"`
	Site              string      `json:"site"`
	PlanStart         time.Time   `json:"plan_start"`
	PlanEnd           time.Time   `json:"plan_end"`
	MileageMiles      float64     `json:"mileage_miles"`
	NOrders           int         `json:"n_orders"`
	Status            RouteStatus `json:"status"`
	PreAssignedVehicle string     `json:"pre_assigned_vehicle,omitempty"`
	ExternalRef       string      `json:"external_ref,omitempty"`
}

// Valid reports whether the route's own timestamps are internally
// consistent. Callers drop invalid routes as a DataError rather than
// propagating them into the window.
func (r Route) Valid() bool {
	return !r.PlanEnd.Before(r.PlanStart)
}

// Overlaps reports whether r and other share any instant strictly
// inside both plans; routes that only touch at an endpoint (one ends
// exactly when the other starts) do not overlap.
func (r Route) Overlaps(other Route) bool {
	return r.PlanStart.Before(other.PlanEnd) && other.PlanStart.Before(r.PlanEnd)
}

// EnergyRequiredKWh is the energy a vehicle with the given efficiency
// needs to complete this route.
func (r Route) EnergyRequiredKWh(efficiencyKWhPerMile float64) float64 {
	return r.MileageMiles * efficiencyKWhPerMile
}

// CommittedAllocation pairs a route with the vehicle it has already
// been committed to within the current window.
type CommittedAllocation struct {
	RouteID   string `json:"route_id"`
	VehicleID string `json:"vehicle_id"`
}
