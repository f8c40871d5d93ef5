package priceforecast

import (
	"context"
	"testing"
	"time"
)

func TestPricesAndForecast_TiersByHour(t *testing.T) {
	p := NewProvider(DefaultConfig())
	start := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	points, err := p.PricesAndForecast(context.Background(), start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 8 {
		t.Fatalf("expected 8 half-hour slots, got %d", len(points))
	}

	superPeakSeen, triadSeen := false, false
	for _, pt := range points {
		if pt.EnergyPrice == DefaultConfig().SuperPeakPrice {
			superPeakSeen = true
		}
		if pt.TriadFlag {
			triadSeen = true
		}
	}
	if !superPeakSeen {
		t.Error("expected a super-peak-priced slot in the 16:00-20:00 window")
	}
	if !triadSeen {
		t.Error("expected at least one TRIAD-flagged slot in the 16:00-20:00 window")
	}
}

func TestPricesAndForecast_Deterministic(t *testing.T) {
	p := NewProvider(DefaultConfig())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	a, _ := p.PricesAndForecast(context.Background(), start, end)
	b, _ := p.PricesAndForecast(context.Background(), start, end)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("expected identical price points across calls, got %+v vs %+v", a[i], b[i])
		}
	}
}
