package postgres

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/evfleetops/alloc-core/internal/domain"
)

// siteParameterRow backs the site_parameters table, the Go-side
// stand-in for sp_get_module_params: one string-typed row per key.
type siteParameterRow struct {
	SiteID string `gorm:"column:site_id"`
	Key    string `gorm:"column:key"`
	Value  string `gorm:"column:value"`
}

func (siteParameterRow) TableName() string { return "site_parameters" }

type vehicleRow struct {
	ID                   string  `gorm:"column:id;primaryKey"`
	Site                 string  `gorm:"column:site"`
	Active               bool    `gorm:"column:active"`
	OutOfService         bool    `gorm:"column:out_of_service"`
	Enabled              bool    `gorm:"column:enabled"`
	BatteryCapacityKWh   float64 `gorm:"column:battery_capacity_kwh"`
	EfficiencyKWhPerMile float64 `gorm:"column:efficiency_kwh_per_mile"`
	ACChargeRateKW       float64 `gorm:"column:ac_charge_rate_kw"`
	DCChargeRateKW       float64 `gorm:"column:dc_charge_rate_kw"`
}

func (vehicleRow) TableName() string { return "vehicles" }

type vehicleStateRow struct {
	VehicleID           string     `gorm:"column:vehicle_id;primaryKey"`
	Status              string     `gorm:"column:status"`
	EstimatedSOCPercent float64    `gorm:"column:estimated_soc_percent"`
	ReturnETA           *time.Time `gorm:"column:return_eta"`
	ReturnSOCPercent    *float64   `gorm:"column:return_soc_percent"`
	CurrentRouteID      string     `gorm:"column:current_route_id"`
}

func (vehicleStateRow) TableName() string { return "vehicle_states" }

type routeRow struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	Site               string    `gorm:"column:site"`
	PlanStart          time.Time `gorm:"column:plan_start"`
	PlanEnd            time.Time `gorm:"column:plan_end"`
	MileageMiles       float64   `gorm:"column:mileage_miles"`
	NOrders            int       `gorm:"column:n_orders"`
	Status             string    `gorm:"column:status"`
	PreAssignedVehicle string    `gorm:"column:pre_assigned_vehicle"`
	ExternalRef        string    `gorm:"column:external_ref"`
}

func (routeRow) TableName() string { return "routes" }

type committedAllocationRow struct {
	RouteID   string `gorm:"column:route_id"`
	VehicleID string `gorm:"column:vehicle_id"`
}

func (committedAllocationRow) TableName() string { return "allocations" }

type previousAllocationRow struct {
	RouteID    string    `gorm:"column:route_id"`
	VehicleID  string    `gorm:"column:vehicle_id"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
}

func (previousAllocationRow) TableName() string { return "previous_allocations" }

type priceRow struct {
	SlotIndex      int       `gorm:"column:slot_index"`
	Timestamp      time.Time `gorm:"column:timestamp"`
	EnergyPrice    float64   `gorm:"column:energy_price"`
	TriadFlag      bool      `gorm:"column:triad_flag"`
	LoadForecastKW float64   `gorm:"column:load_forecast_kw"`
}

func (priceRow) TableName() string { return "price_forecasts" }

// Repository implements ports.SiteParameterRepository,
// ports.FleetRepository, and ports.PriceForecastProvider over a
// single GORM connection.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRepository(db *gorm.DB, log *zap.Logger) *Repository {
	return &Repository{db: db, log: log}
}

func (r *Repository) LoadSiteParameters(ctx context.Context, siteID string) (map[string]string, error) {
	var rows []siteParameterRow
	if err := r.db.WithContext(ctx).Where("site_id = ?", siteID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *Repository) ListVehicles(ctx context.Context, siteID string) ([]domain.Vehicle, error) {
	var rows []vehicleRow
	if err := r.db.WithContext(ctx).Where("site = ?", siteID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Vehicle, len(rows))
	for i, row := range rows {
		out[i] = domain.Vehicle{
			ID:                   row.ID,
			Site:                 row.Site,
			Active:               row.Active,
			OutOfService:         row.OutOfService,
			Enabled:              row.Enabled,
			BatteryCapacityKWh:   row.BatteryCapacityKWh,
			EfficiencyKWhPerMile: row.EfficiencyKWhPerMile,
			ACChargeRateKW:       row.ACChargeRateKW,
			DCChargeRateKW:       row.DCChargeRateKW,
		}
	}
	return out, nil
}

func (r *Repository) LatestVehicleStates(ctx context.Context, siteID string) ([]domain.VehicleState, error) {
	var rows []vehicleStateRow
	query := r.db.WithContext(ctx).
		Joins("JOIN vehicles ON vehicles.id = vehicle_states.vehicle_id").
		Where("vehicles.site = ?", siteID)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.VehicleState, len(rows))
	for i, row := range rows {
		out[i] = domain.VehicleState{
			VehicleID:           row.VehicleID,
			Status:              domain.VehicleStatus(row.Status),
			EstimatedSOCPercent: row.EstimatedSOCPercent,
			ReturnETA:           row.ReturnETA,
			ReturnSOCPercent:    row.ReturnSOCPercent,
			CurrentRouteID:      row.CurrentRouteID,
		}
	}
	return out, nil
}

func (r *Repository) ListRoutesInWindow(ctx context.Context, siteID string, windowStart, windowEnd time.Time) ([]domain.Route, error) {
	var rows []routeRow
	query := r.db.WithContext(ctx).
		Where("site = ? AND plan_start >= ? AND plan_start < ?", siteID, windowStart, windowEnd)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Route, 0, len(rows))
	for _, row := range rows {
		route := domain.Route{
			ID:                 row.ID,
			Site:               row.Site,
			PlanStart:          row.PlanStart,
			PlanEnd:            row.PlanEnd,
			MileageMiles:       row.MileageMiles,
			NOrders:            row.NOrders,
			Status:             domain.RouteStatus(row.Status),
			PreAssignedVehicle: normalizeVehicleID(row.PreAssignedVehicle),
			ExternalRef:        row.ExternalRef,
		}
		if !route.Valid() {
			r.log.Warn("dropping route with inconsistent plan window",
				zap.String("route_id", route.ID),
				zap.Time("plan_start", route.PlanStart),
				zap.Time("plan_end", route.PlanEnd),
			)
			continue
		}
		out = append(out, route)
	}
	return out, nil
}

func (r *Repository) ListCommittedAllocations(ctx context.Context, siteID string, windowStart, windowEnd time.Time) ([]domain.CommittedAllocation, error) {
	var rows []committedAllocationRow
	query := r.db.WithContext(ctx).
		Joins("JOIN routes ON routes.id = allocations.route_id").
		Where("routes.site = ? AND routes.plan_start >= ? AND routes.plan_start < ?", siteID, windowStart, windowEnd)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CommittedAllocation, len(rows))
	for i, row := range rows {
		out[i] = domain.CommittedAllocation{RouteID: row.RouteID, VehicleID: row.VehicleID}
	}
	return out, nil
}

func (r *Repository) PreviousAllocation(ctx context.Context, routeID string, since time.Time) (string, bool, error) {
	var row previousAllocationRow
	err := r.db.WithContext(ctx).
		Where("route_id = ? AND assigned_at >= ?", routeID, since).
		Order("assigned_at DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return row.VehicleID, true, nil
}

func (r *Repository) PricesAndForecast(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.PricePoint, error) {
	var rows []priceRow
	query := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", windowStart, windowEnd).
		Order("slot_index ASC")
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PricePoint, len(rows))
	for i, row := range rows {
		out[i] = domain.PricePoint{
			SlotIndex:      row.SlotIndex,
			Timestamp:      row.Timestamp,
			EnergyPrice:    row.EnergyPrice,
			TriadFlag:      row.TriadFlag,
			LoadForecastKW: row.LoadForecastKW,
		}
	}
	return out, nil
}

// normalizeVehicleID maps legacy "no vehicle" sentinels stored in the
// database to domain.NoVehicle at the input-adapter boundary.
func normalizeVehicleID(raw string) string {
	switch raw {
	case "", "0", "-1", "X", "NULL", "null":
		return domain.NoVehicle
	default:
		return raw
	}
}
