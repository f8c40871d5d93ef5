package paramdecoder

import (
	"encoding/json"
	"strconv"
	"testing"
)

func TestDecode_SentinelNulls(t *testing.T) {
	raw := map[string]string{
		"a": "",
		"b": "NONE",
		"c": "None",
		"d": "NO_VALUE",
	}
	set := Decode(raw)
	for k, v := range set {
		if v.Kind != KindAbsent {
			t.Errorf("key %s: expected absent, got kind %v", k, v.Kind)
		}
	}
}

func TestDecode_BooleanSuffix(t *testing.T) {
	set := Decode(map[string]string{
		"constraint_foo_enabled": "true",
		"some_flag":              "no",
	})
	if !set["constraint_foo_enabled"].BoolOr(false) {
		t.Error("expected true")
	}
	if set["some_flag"].BoolOr(true) {
		t.Error("expected false")
	}
}

func TestDecode_BooleanByValueShape(t *testing.T) {
	set := Decode(map[string]string{"enable_dynamic_reallocation": "yes"})
	v := set["enable_dynamic_reallocation"]
	if v.Kind != KindBool || !v.Bool {
		t.Errorf("expected bool true, got %+v", v)
	}
}

func TestDecode_JSONArray(t *testing.T) {
	set := Decode(map[string]string{"margin_thresholds": `[0.1, 0.2, 0.3]`})
	v := set["margin_thresholds"]
	if v.Kind != KindArray || len(v.Array) != 3 {
		t.Errorf("expected array of 3, got %+v", v)
	}
}

func TestDecode_JSONObject(t *testing.T) {
	set := Decode(map[string]string{"constraint_charger_preference_map": `{"DISC": -5, "fast1": 10}`})
	v := set["constraint_charger_preference_map"]
	if v.Kind != KindObject || len(v.Object) != 2 {
		t.Errorf("expected object of 2, got %+v", v)
	}
}

func TestDecode_NumericSuffixInt(t *testing.T) {
	set := Decode(map[string]string{"route_sequence_buffer_minutes": "15"})
	v := set["route_sequence_buffer_minutes"]
	if v.Kind != KindInt || v.Int != 15 {
		t.Errorf("expected int 15, got %+v", v)
	}
}

func TestDecode_NumericSuffixFloat(t *testing.T) {
	set := Decode(map[string]string{"constraint_energy_feasibility_safety_margin_kwh": "5.5"})
	v := set["constraint_energy_feasibility_safety_margin_kwh"]
	if v.Kind != KindFloat || v.Float != 5.5 {
		t.Errorf("expected float 5.5, got %+v", v)
	}
}

func TestDecode_TimePeriod(t *testing.T) {
	set := Decode(map[string]string{"quiet_hours_period": "22:00:00"})
	v := set["quiet_hours_period"]
	if v.Kind != KindTime || v.Time != "22:00:00" {
		t.Errorf("expected time 22:00:00, got %+v", v)
	}
}

func TestDecode_StringFallback(t *testing.T) {
	set := Decode(map[string]string{"calculation_method": "first_to_last"})
	v := set["calculation_method"]
	if v.Kind != KindString || v.String != "first_to_last" {
		t.Errorf("expected string, got %+v", v)
	}
}

func TestDecode_ParseFailureNeverRaises(t *testing.T) {
	set := Decode(map[string]string{
		"constraint_foo_count": "not-a-number",
		"bar_enabled":          "maybe",
	})
	if !set["constraint_foo_count"].Failed {
		t.Error("expected Failed=true for unparsable numeric-suffixed value")
	}
	if !set["bar_enabled"].Failed {
		t.Error("expected Failed=true for unparsable bool-suffixed value")
	}
}

func TestConstraintConfig_CollectsAndStrips(t *testing.T) {
	set := Decode(map[string]string{
		"constraint_energy_feasibility_enabled":         "true",
		"constraint_energy_feasibility_safety_margin_kwh": "7",
		"constraint_energy_feasibility_penalty":         "-20",
		"unrelated_key":                                 "hello",
	})
	cfg := set.ConstraintConfig("energy_feasibility")
	if !cfg.Enabled {
		t.Error("expected enabled")
	}
	if cfg.Penalty != -20 {
		t.Errorf("expected penalty -20, got %v", cfg.Penalty)
	}
	if cfg.Params["safety_margin_kwh"].IntOr(0) != 7 {
		t.Errorf("expected safety_margin_kwh=7, got %+v", cfg.Params["safety_margin_kwh"])
	}
	if _, ok := cfg.Params["unrelated_key"]; ok {
		t.Error("unrelated key should not appear in constraint params")
	}
}

// TestDecode_RoundTrip enumerates keys from across the decoder's
// declared domain (one per rule) and checks encode(decode(x)) == x
// modulo int/float normalization, satisfying invariant 8.
func TestDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"constraint_foo_enabled", "true"},
		{"margin_thresholds", "[1,2,3]"},
		{"constraint_charger_preference_map", `{"a":1}`},
		{"route_sequence_buffer_minutes", "15"},
		{"constraint_x_safety_margin_kwh", "5.5"},
		{"quiet_hours_period", "08:30:00"},
		{"calculation_method", "cumulative"},
	}
	for _, c := range cases {
		v := decodeOne(c.key, c.value)
		var reencoded string
		switch v.Kind {
		case KindBool:
			reencoded = strconv.FormatBool(v.Bool)
		case KindArray:
			b, _ := json.Marshal(v.Array)
			reencoded = string(b)
		case KindObject:
			b, _ := json.Marshal(v.Object)
			reencoded = string(b)
		case KindInt:
			reencoded = strconv.FormatInt(v.Int, 10)
		case KindFloat:
			reencoded = strconv.FormatFloat(v.Float, 'f', -1, 64)
		case KindTime:
			reencoded = v.Time
		case KindString:
			reencoded = v.String
		}
		if reencoded != c.value {
			t.Errorf("key %s: round trip gave %q, want %q (decoded %+v)", c.key, reencoded, c.value, v)
		}
	}
}
