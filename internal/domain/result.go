package domain

import "time"

// AllocationStatus is the outcome of an allocation run.
type AllocationStatus string

const (
	AllocationStatusAllocated AllocationStatus = "Allocated"
	AllocationStatusFailed    AllocationStatus = "Failed"
)

// RouteAssignment is one route's placement within an allocation result.
type RouteAssignment struct {
	RouteID               string    `json:"route_id"`
	VehicleID             string    `json:"vehicle_id"`
	EstimatedArrival      time.Time `json:"estimated_arrival"`
	EstimatedArrivalSOC   float64   `json:"estimated_arrival_soc"`
}

// AllocationResult is the output of the allocation optimizer.
type AllocationResult struct {
	RunID                   string            `json:"run_id"`
	AllocationID            string            `json:"allocation_id"`
	TotalScore              float64           `json:"total_score"`
	Assignments             []RouteAssignment `json:"assignments"`
	RoutesInWindow          int               `json:"routes_in_window"`
	RoutesAllocated         int               `json:"routes_allocated"`
	RoutesOverlappingCount  int               `json:"routes_overlapping_count"`
	Status                  AllocationStatus  `json:"status"`
	Fallback                bool              `json:"fallback"`
	Diagnostics             []RunDiagnostic   `json:"diagnostics,omitempty"`
}

// VehiclePower is one slot's power assignment for one vehicle.
type VehiclePower struct {
	SlotIndex int     `json:"slot_index"`
	PowerKW   float64 `json:"power_kw"`
}

// VehicleSchedule is the full per-slot power schedule for one vehicle.
type VehicleSchedule struct {
	VehicleID string         `json:"vehicle_id"`
	Powers    []VehiclePower `json:"powers"`
}

// ChargePlan is the output of the charge optimizer.
type ChargePlan struct {
	RunID       string                `json:"run_id"`
	Schedules   []VehicleSchedule     `json:"schedules"`
	Shortfall   map[string]float64    `json:"shortfall_kwh"`
	TotalEnergy float64               `json:"total_energy_kwh"`
	TotalCost   float64               `json:"total_cost"`
	Fallback    bool                  `json:"fallback"`
	Diagnostics []RunDiagnostic       `json:"diagnostics,omitempty"`
}

// CoordinatorMode selects which of the two optimization stages the
// unified coordinator runs.
type CoordinatorMode string

const (
	ModeAllocationOnly CoordinatorMode = "allocation_only"
	ModeSchedulingOnly CoordinatorMode = "scheduling_only"
	ModeIntegrated     CoordinatorMode = "integrated"
)

// SolverStatus reports how a run's optimization stages were solved.
type SolverStatus string

const (
	SolverStatusOK          SolverStatus = "ok"
	SolverStatusFallback    SolverStatus = "fallback"
	SolverStatusInfeasible  SolverStatus = "infeasible"
)

// UnifiedResult is the output of the unified coordinator.
type UnifiedResult struct {
	RunID          string           `json:"run_id"`
	Mode           CoordinatorMode  `json:"mode"`
	ObjectiveValue float64          `json:"objective_value"`
	Allocation     *AllocationResult `json:"allocation,omitempty"`
	ChargePlan     *ChargePlan      `json:"charge_plan,omitempty"`
	SolverStatus   SolverStatus     `json:"solver_status"`
	SolveTime      time.Duration    `json:"solve_time"`
	Diagnostics    []RunDiagnostic  `json:"diagnostics,omitempty"`
}
