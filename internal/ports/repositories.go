package ports

import (
	"context"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

// SiteParameterRepository loads the string-keyed MAF configuration bag
// for a site, the Go-side stand-in for the stored procedure
// sp_get_module_params.
type SiteParameterRepository interface {
	LoadSiteParameters(ctx context.Context, siteID string) (map[string]string, error)
}

// FleetRepository exposes the domain-input queries a run needs over
// vehicles, routes, and committed allocations. A run treats the
// returned snapshot as immutable for its duration.
type FleetRepository interface {
	ListVehicles(ctx context.Context, siteID string) ([]domain.Vehicle, error)
	LatestVehicleStates(ctx context.Context, siteID string) ([]domain.VehicleState, error)
	ListRoutesInWindow(ctx context.Context, siteID string, windowStart, windowEnd time.Time) ([]domain.Route, error)
	ListCommittedAllocations(ctx context.Context, siteID string, windowStart, windowEnd time.Time) ([]domain.CommittedAllocation, error)
	PreviousAllocation(ctx context.Context, routeID string, since time.Time) (vehicleID string, ok bool, err error)
}

// PriceForecastProvider supplies the per-slot price curve consumed by
// the charge optimizer.
type PriceForecastProvider interface {
	PricesAndForecast(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.PricePoint, error)
}

// ResultPublisher pushes a run's results to the external TMS over the
// configured message queue. Publish failures are logged, not fatal:
// a run's in-process result is still returned to its caller.
type ResultPublisher interface {
	PublishAllocationResult(ctx context.Context, result domain.AllocationResult) error
	PublishChargePlan(ctx context.Context, plan domain.ChargePlan) error
	PublishUnifiedResult(ctx context.Context, result domain.UnifiedResult) error
}
