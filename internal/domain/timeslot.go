package domain

import "time"

// SlotDuration is the fixed half-hour granularity of the charge
// schedule, Δ in spec terms.
const SlotDuration = 30 * time.Minute

// TimeSlot is one fixed-length interval of the planning horizon,
// indexed 0..T-1.
type TimeSlot struct {
	Index int       `json:"index"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BuildSlots partitions [start, start+horizon) into SlotDuration
// slots, indexed from 0.
func BuildSlots(start time.Time, horizon time.Duration) []TimeSlot {
	n := int(horizon / SlotDuration)
	slots := make([]TimeSlot, n)
	for i := 0; i < n; i++ {
		slotStart := start.Add(time.Duration(i) * SlotDuration)
		slots[i] = TimeSlot{
			Index: i,
			Start: slotStart,
			End:   slotStart.Add(SlotDuration),
		}
	}
	return slots
}

// SlotIndexForTime returns the index of the slot containing t, or -1
// if t falls outside [start, start+horizon).
func SlotIndexForTime(start time.Time, horizon time.Duration, t time.Time) int {
	if t.Before(start) {
		return -1
	}
	n := int(horizon / SlotDuration)
	idx := int(t.Sub(start) / SlotDuration)
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}

// PricePoint is the price/forecast signal for one slot.
type PricePoint struct {
	SlotIndex      int       `json:"slot_index"`
	Timestamp      time.Time `json:"timestamp"`
	EnergyPrice    float64   `json:"energy_price"`
	TriadFlag      bool      `json:"triad_flag"`
	LoadForecastKW float64   `json:"load_forecast_kw"`
}
