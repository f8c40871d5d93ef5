package charging

import (
	"context"
	"testing"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

func buildSlots(n int) []domain.TimeSlot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.BuildSlots(start, time.Duration(n)*domain.SlotDuration)
}

func flatPrices(slots []domain.TimeSlot, price float64) []domain.PricePoint {
	prices := make([]domain.PricePoint, len(slots))
	for i, s := range slots {
		prices[i] = domain.PricePoint{SlotIndex: s.Index, Timestamp: s.Start, EnergyPrice: price}
	}
	return prices
}

func TestSolve_NoSolverUsesGreedyFallback(t *testing.T) {
	slots := buildSlots(4)
	prices := flatPrices(slots, 0.10)
	demands := []VehicleDemand{
		{VehicleID: "v1", ACChargeRateKW: 50, TargetSOCEnergyKWh: 25, AvailableSlots: []int{0, 1, 2, 3}},
	}
	plan, fallback := Solve(context.Background(), "run1", demands, slots, prices, nil, nil, DefaultParams())
	if !fallback {
		t.Fatal("expected fallback with nil solver")
	}
	if plan.TotalEnergy <= 0 {
		t.Errorf("expected positive total energy delivered, got %v", plan.TotalEnergy)
	}
	if !plan.Fallback {
		t.Error("expected plan.Fallback to be true on the greedy path")
	}
	if len(plan.Diagnostics) == 0 || plan.Diagnostics[0].Kind != domain.KindSolverUnavailable {
		t.Errorf("expected a SolverUnavailable diagnostic, got %+v", plan.Diagnostics)
	}
}

func TestGreedy_PrefersCheaperSlots(t *testing.T) {
	slots := buildSlots(2)
	prices := []domain.PricePoint{
		{SlotIndex: 0, EnergyPrice: 1.0},
		{SlotIndex: 1, EnergyPrice: 0.1},
	}
	demands := []VehicleDemand{
		{VehicleID: "v1", ACChargeRateKW: 10, TargetSOCEnergyKWh: 5, AvailableSlots: []int{0, 1}},
	}
	plan := greedy("run1", demands, slots, prices, nil, DefaultParams())
	if len(plan.Schedules) != 1 {
		t.Fatalf("expected one schedule, got %d", len(plan.Schedules))
	}
	sched := plan.Schedules[0]
	foundSlot1 := false
	for _, p := range sched.Powers {
		if p.SlotIndex == 1 && p.PowerKW > 0 {
			foundSlot1 = true
		}
		if p.SlotIndex == 0 && p.PowerKW > 0 {
			t.Error("expected greedy to prefer the cheaper slot 1 before the pricier slot 0")
		}
	}
	if !foundSlot1 {
		t.Error("expected cheaper slot 1 to be used")
	}
}

func TestGreedy_ShortfallWhenDemandExceedsCapacity(t *testing.T) {
	slots := buildSlots(1)
	prices := flatPrices(slots, 0.10)
	demands := []VehicleDemand{
		{VehicleID: "v1", ACChargeRateKW: 1, TargetSOCEnergyKWh: 100, MaxShortfallKWh: 1000, AvailableSlots: []int{0}},
	}
	plan := greedy("run1", demands, slots, prices, nil, DefaultParams())
	if plan.Shortfall["v1"] <= 0 {
		t.Error("expected nonzero shortfall when demand exceeds available charging capacity")
	}
}

func TestClipToSiteCapacity_EnforcesSlotLimit(t *testing.T) {
	slots := buildSlots(1)
	prices := flatPrices(slots, 0.10)
	demands := []VehicleDemand{
		{VehicleID: "v1", ACChargeRateKW: 100, TargetSOCEnergyKWh: 50, AvailableSlots: []int{0}},
		{VehicleID: "v2", ACChargeRateKW: 100, TargetSOCEnergyKWh: 50, AvailableSlots: []int{0}},
	}
	params := DefaultParams()
	params.SiteCapacityKW = 100
	plan := greedy("run1", demands, slots, prices, nil, params)

	var total float64
	for _, sched := range plan.Schedules {
		for _, p := range sched.Powers {
			total += p.PowerKW
		}
	}
	if total > 100.01 {
		t.Errorf("expected combined power to respect site capacity of 100kW, got %v", total)
	}
}
