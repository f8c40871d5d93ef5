// Package priceforecast provides a deterministic, tiered synthetic
// price curve for sites with no external market-data feed wired up.
package priceforecast

import (
	"context"
	"time"

	"github.com/evfleetops/alloc-core/internal/domain"
)

// Config tunes the tiered pricing curve.
type Config struct {
	OffPeakPrice  float64
	PeakPrice     float64
	SuperPeakPrice float64

	PeakStartHour      int
	PeakEndHour        int
	SuperPeakStartHour int
	SuperPeakEndHour   int

	// TRIAD windows mark the half-hour slots the grid operator uses to
	// assess peak-demand transmission charges.
	TriadStartHour int
	TriadEndHour   int

	LoadForecastBaseKW float64
	LoadForecastPeakKW float64
}

func DefaultConfig() Config {
	return Config{
		OffPeakPrice:       0.10,
		PeakPrice:          0.22,
		SuperPeakPrice:     0.35,
		PeakStartHour:      16,
		PeakEndHour:        21,
		SuperPeakStartHour: 17,
		SuperPeakEndHour:   19,
		TriadStartHour:     17,
		TriadEndHour:       18,
		LoadForecastBaseKW: 20,
		LoadForecastPeakKW: 80,
	}
}

// Provider implements ports.PriceForecastProvider with a synthetic,
// time-of-day tiered curve rather than a market-data feed.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) PricesAndForecast(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.PricePoint, error) {
	slots := domain.BuildSlots(windowStart, windowEnd.Sub(windowStart))
	out := make([]domain.PricePoint, len(slots))
	for i, slot := range slots {
		out[i] = domain.PricePoint{
			SlotIndex:      slot.Index,
			Timestamp:      slot.Start,
			EnergyPrice:    p.priceAt(slot.Start),
			TriadFlag:      p.isTriadSlot(slot.Start),
			LoadForecastKW: p.loadForecastAt(slot.Start),
		}
	}
	return out, nil
}

func (p *Provider) priceAt(t time.Time) float64 {
	hour := t.Hour()
	switch {
	case hour >= p.cfg.SuperPeakStartHour && hour < p.cfg.SuperPeakEndHour:
		return p.cfg.SuperPeakPrice
	case hour >= p.cfg.PeakStartHour && hour < p.cfg.PeakEndHour:
		return p.cfg.PeakPrice
	default:
		return p.cfg.OffPeakPrice
	}
}

func (p *Provider) isTriadSlot(t time.Time) bool {
	hour := t.Hour()
	return hour >= p.cfg.TriadStartHour && hour < p.cfg.TriadEndHour
}

func (p *Provider) loadForecastAt(t time.Time) float64 {
	hour := t.Hour()
	if hour >= p.cfg.PeakStartHour && hour < p.cfg.PeakEndHour {
		return p.cfg.LoadForecastPeakKW
	}
	return p.cfg.LoadForecastBaseKW
}
