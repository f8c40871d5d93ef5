package domain

import "time"

// VehicleStatus is the latest known operating status of a vehicle.
type VehicleStatus string

const (
	VehicleStatusOnRoute VehicleStatus = "OnRoute"
	VehicleStatusAtDepot VehicleStatus = "AtDepot"
	VehicleStatusCharging VehicleStatus = "Charging"
	VehicleStatusUnknown VehicleStatus = "Unknown"
)

// Vehicle is loaded once at the start of a run and never mutated for
// the duration of that run.
type Vehicle struct {
	ID                  string  `json:"id"`
	Site                string  `json:"site"`
	Active              bool    `json:"active"`
	OutOfService        bool    `json:"out_of_service"`
	Enabled             bool    `json:"enabled"`
	BatteryCapacityKWh  float64 `json:"battery_capacity_kwh"`
	EfficiencyKWhPerMile float64 `json:"efficiency_kwh_per_mile"`
	ACChargeRateKW      float64 `json:"ac_charge_rate_kw"`
	DCChargeRateKW      float64 `json:"dc_charge_rate_kw"`
}

// Eligible reports whether the vehicle may be considered for allocation
// or charge scheduling at all.
func (v Vehicle) Eligible() bool {
	return v.Active && v.Enabled && !v.OutOfService
}

// VehicleState is the latest telemetry snapshot for one vehicle.
type VehicleState struct {
	VehicleID           string        `json:"vehicle_id"`
	Status              VehicleStatus `json:"status"`
	EstimatedSOCPercent float64       `json:"estimated_soc_percent"`
	ReturnETA           *time.Time    `json:"return_eta,omitempty"`
	ReturnSOCPercent    *float64      `json:"return_soc_percent,omitempty"`
	CurrentRouteID      string        `json:"current_route_id,omitempty"`
}

// AvailableFrom computes the instant at which the vehicle becomes
// available for a new sequence, given the window's reference instant.
func (s VehicleState) AvailableFrom(now time.Time) time.Time {
	if s.Status == VehicleStatusOnRoute && s.ReturnETA != nil {
		return *s.ReturnETA
	}
	return now
}

// AvailableEnergyKWh derives starting energy from whichever of the
// estimated or return SOC is higher, per the window builder's rule.
func (s VehicleState) AvailableEnergyKWh(batteryCapacityKWh float64) float64 {
	socPercent := s.EstimatedSOCPercent
	if s.ReturnSOCPercent != nil && *s.ReturnSOCPercent > socPercent {
		socPercent = *s.ReturnSOCPercent
	}
	return socPercent / 100.0 * batteryCapacityKWh
}
