package coordinator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/domain"
)

type fakeFleet struct {
	vehicles  []domain.Vehicle
	states    []domain.VehicleState
	routes    []domain.Route
	committed []domain.CommittedAllocation
}

func (f *fakeFleet) ListVehicles(ctx context.Context, siteID string) ([]domain.Vehicle, error) {
	return f.vehicles, nil
}
func (f *fakeFleet) LatestVehicleStates(ctx context.Context, siteID string) ([]domain.VehicleState, error) {
	return f.states, nil
}
func (f *fakeFleet) ListRoutesInWindow(ctx context.Context, siteID string, start, end time.Time) ([]domain.Route, error) {
	return f.routes, nil
}
func (f *fakeFleet) ListCommittedAllocations(ctx context.Context, siteID string, start, end time.Time) ([]domain.CommittedAllocation, error) {
	return f.committed, nil
}
func (f *fakeFleet) PreviousAllocation(ctx context.Context, routeID string, since time.Time) (string, bool, error) {
	return "", false, nil
}

type fakePrices struct{}

func (fakePrices) PricesAndForecast(ctx context.Context, start, end time.Time) ([]domain.PricePoint, error) {
	n := int(end.Sub(start) / domain.SlotDuration)
	out := make([]domain.PricePoint, n)
	for i := 0; i < n; i++ {
		out[i] = domain.PricePoint{SlotIndex: i, Timestamp: start.Add(time.Duration(i) * domain.SlotDuration), EnergyPrice: 0.1}
	}
	return out, nil
}

type fakeSiteConfig struct {
	params map[string]string
}

func (f fakeSiteConfig) LoadSiteParameters(ctx context.Context, siteID string) (map[string]string, error) {
	if f.params == nil {
		return map[string]string{}, nil
	}
	return f.params, nil
}

func scenarioE1Fleet() *fakeFleet {
	base := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	mkRoute := func(id string, startHour int) domain.Route {
		start := base.Add(time.Duration(startHour) * time.Hour)
		return domain.Route{
			ID: id, Site: "site-1", Status: domain.RouteStatusNew,
			PlanStart: start, PlanEnd: start.Add(60 * time.Minute),
			MileageMiles: 30, NOrders: 1,
		}
	}
	return &fakeFleet{
		vehicles: []domain.Vehicle{
			{ID: "vA", Site: "site-1", Active: true, Enabled: true, BatteryCapacityKWh: 200, EfficiencyKWhPerMile: 1.0, ACChargeRateKW: 22},
			{ID: "vB", Site: "site-1", Active: true, Enabled: true, BatteryCapacityKWh: 200, EfficiencyKWhPerMile: 1.0, ACChargeRateKW: 22},
		},
		states: []domain.VehicleState{
			{VehicleID: "vA", Status: domain.VehicleStatusAtDepot, EstimatedSOCPercent: 100},
			{VehicleID: "vB", Status: domain.VehicleStatusAtDepot, EstimatedSOCPercent: 100},
		},
		routes: []domain.Route{mkRoute("r1", 2), mkRoute("r2", 6), mkRoute("r3", 10)},
	}
}

func TestRun_AllocationOnlyAllocatesAllRoutes(t *testing.T) {
	c := New(scenarioE1Fleet(), fakePrices{}, fakeSiteConfig{}, nil, nil, zap.NewNop())
	result, err := c.Run(context.Background(), "run-e1", RunParams{
		SiteID: "site-1", StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowHours: 18, Mode: domain.ModeAllocationOnly,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allocation == nil {
		t.Fatal("expected an allocation result")
	}
	if result.Allocation.RoutesAllocated != 3 {
		t.Errorf("expected all 3 routes allocated, got %d", result.Allocation.RoutesAllocated)
	}
}

func TestRun_SchedulingOnlySkipsAllocation(t *testing.T) {
	c := New(scenarioE1Fleet(), fakePrices{}, fakeSiteConfig{}, nil, nil, zap.NewNop())
	result, err := c.Run(context.Background(), "run-sched", RunParams{
		SiteID: "site-1", StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		WindowHours: 18, Mode: domain.ModeSchedulingOnly,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allocation != nil {
		t.Error("expected no allocation result in scheduling_only mode")
	}
	if result.ChargePlan == nil {
		t.Fatal("expected a charge plan")
	}
}

// TestRun_TurnaroundStrictDisabledAllowsShorterGap exercises spec
// scenario E4: with the strict turnaround constraint disabled, a
// 30-minute gap between routes (below the strict 45-minute minimum,
// but above the default 15-minute buffer) must still reach the
// constraint engine rather than being pruned by the enumerator.
func TestRun_TurnaroundStrictDisabledAllowsShorterGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	r1 := domain.Route{ID: "r1", Site: "site-1", Status: domain.RouteStatusNew, PlanStart: base, PlanEnd: base.Add(30 * time.Minute), MileageMiles: 10, NOrders: 1}
	r2start := r1.PlanEnd.Add(30 * time.Minute)
	r2 := domain.Route{ID: "r2", Site: "site-1", Status: domain.RouteStatusNew, PlanStart: r2start, PlanEnd: r2start.Add(30 * time.Minute), MileageMiles: 10, NOrders: 1}

	fleet := &fakeFleet{
		vehicles: []domain.Vehicle{
			{ID: "vA", Site: "site-1", Active: true, Enabled: true, BatteryCapacityKWh: 200, EfficiencyKWhPerMile: 1.0, ACChargeRateKW: 22},
		},
		states: []domain.VehicleState{
			{VehicleID: "vA", Status: domain.VehicleStatusAtDepot, EstimatedSOCPercent: 100},
		},
		routes: []domain.Route{r1, r2},
	}
	// The preferred-turnaround penalty is switched off too, so the pair
	// does not cost more than either single route in the greedy ranking.
	siteConfig := fakeSiteConfig{params: map[string]string{
		"constraint_turnaround_time_strict_enabled":    "false",
		"constraint_turnaround_time_preferred_enabled": "false",
	}}

	c := New(fleet, fakePrices{}, siteConfig, nil, nil, zap.NewNop())
	result, err := c.Run(context.Background(), "run-e4", RunParams{
		SiteID: "site-1", StartTime: base.Add(-time.Hour), WindowHours: 6, Mode: domain.ModeAllocationOnly,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allocation.RoutesAllocated != 2 {
		t.Errorf("expected both routes allocated with strict turnaround disabled, got %d", result.Allocation.RoutesAllocated)
	}
}

func TestRun_IdempotentAcrossRepeatedRuns(t *testing.T) {
	fleet := scenarioE1Fleet()
	c := New(fleet, fakePrices{}, fakeSiteConfig{}, nil, nil, zap.NewNop())
	params := RunParams{SiteID: "site-1", StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), WindowHours: 18, Mode: domain.ModeAllocationOnly}

	r1, err := c.Run(context.Background(), "run-1", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := c.Run(context.Background(), "run-1", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.Allocation.TotalScore != r2.Allocation.TotalScore {
		t.Errorf("expected deterministic score across repeated runs: %v vs %v", r1.Allocation.TotalScore, r2.Allocation.TotalScore)
	}
	if len(r1.Allocation.Assignments) != len(r2.Allocation.Assignments) {
		t.Errorf("expected identical assignment count across repeated runs")
	}
}
