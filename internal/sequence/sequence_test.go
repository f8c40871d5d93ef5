package sequence

import (
	"testing"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
	"github.com/evfleetops/alloc-core/internal/window"
)

func route(id string, startMin, endMin int, mileage float64) domain.Route {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Route{
		ID:           id,
		PlanStart:    base.Add(time.Duration(startMin) * time.Minute),
		PlanEnd:      base.Add(time.Duration(endMin) * time.Minute),
		MileageMiles: mileage,
		NOrders:      1,
	}
}

func TestEnumerate_NoEmptySequence(t *testing.T) {
	avail := window.Availability{AvailableEnergyKWh: 1000, AvailableFrom: time.Time{}}
	cands := Enumerate("v1", avail, 1.0, nil, Params{MaxRoutesPerVehicle: 5})
	if len(cands) != 0 {
		t.Fatalf("expected no candidates for empty input, got %d", len(cands))
	}
}

func TestEnumerate_RespectsTurnaround(t *testing.T) {
	avail := window.Availability{AvailableEnergyKWh: 1000}
	routes := []domain.Route{
		route("r1", 480, 540, 30),  // 08:00-09:00
		route("r2", 570, 630, 30),  // 09:30-10:30, gap=30min
		route("r3", 600, 660, 30),  // 10:00-11:00, gap=60min from r1
	}
	params := Params{MaxRoutesPerVehicle: 5, TurnaroundMinimum: 45 * time.Minute}
	cands := Enumerate("v1", avail, 1.0, routes, params)

	foundR1R2 := false
	for _, c := range cands {
		if len(c.Routes) == 2 && c.Routes[0].ID == "r1" && c.Routes[1].ID == "r2" {
			foundR1R2 = true
		}
	}
	if foundR1R2 {
		t.Error("r1->r2 violates 45min turnaround (gap=30min) and should be pruned")
	}

	foundR1R3 := false
	for _, c := range cands {
		if len(c.Routes) == 2 && c.Routes[0].ID == "r1" && c.Routes[1].ID == "r3" {
			foundR1R3 = true
		}
	}
	if !foundR1R3 {
		t.Error("expected r1->r3 (gap=60min >= 45min) to be enumerated")
	}
}

func TestEnumerate_EnergyPruning(t *testing.T) {
	avail := window.Availability{AvailableEnergyKWh: 50}
	routes := []domain.Route{
		route("r1", 480, 540, 60), // requires 60kWh at efficiency=1.0
	}
	params := Params{MaxRoutesPerVehicle: 5, SafetyMarginKWh: 5}
	cands := Enumerate("v1", avail, 1.0, routes, params)
	if len(cands) != 0 {
		t.Fatalf("expected r1 pruned due to insufficient energy, got %d candidates", len(cands))
	}
}

func TestEnumerate_TracksRemainingEnergyPerRoute(t *testing.T) {
	avail := window.Availability{AvailableEnergyKWh: 100}
	routes := []domain.Route{
		route("r1", 480, 540, 30), // requires 30kWh
		route("r2", 600, 660, 20), // requires 20kWh, gap=60min
	}
	params := Params{MaxRoutesPerVehicle: 5}
	cands := Enumerate("v1", avail, 1.0, routes, params)

	for _, c := range cands {
		if len(c.Routes) != 2 {
			continue
		}
		if len(c.RemainingEnergyKWh) != 2 {
			t.Fatalf("expected remaining energy tracked per route, got %d entries", len(c.RemainingEnergyKWh))
		}
		if c.RemainingEnergyKWh[0] != 70 {
			t.Errorf("expected 70kWh remaining after r1, got %v", c.RemainingEnergyKWh[0])
		}
		if c.RemainingEnergyKWh[1] != 50 {
			t.Errorf("expected 50kWh remaining after r2, got %v", c.RemainingEnergyKWh[1])
		}
	}
}

func TestEnumerate_BoundedByMaxLength(t *testing.T) {
	avail := window.Availability{AvailableEnergyKWh: 10000}
	var routes []domain.Route
	for i := 0; i < 8; i++ {
		start := 480 + i*120
		routes = append(routes, route("r", start, start+30, 1))
	}
	params := Params{MaxRoutesPerVehicle: 3}
	cands := Enumerate("v1", avail, 1.0, routes, params)
	for _, c := range cands {
		if len(c.Routes) > 3 {
			t.Fatalf("expected sequences capped at length 3, got %d", len(c.Routes))
		}
	}
}
