// Package paramdecoder turns the flat string-keyed site configuration
// bag returned by the fleet database into typed values, using only the
// key suffix and the value's own shape — never a key-specific schema.
package paramdecoder

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// sentinelNulls are values that mean "absent" regardless of key.
var sentinelNulls = map[string]struct{}{
	"":         {},
	"NONE":     {},
	"None":     {},
	"NO_VALUE": {},
}

var boolValues = map[string]bool{
	"true": true, "yes": true, "1": true,
	"false": false, "no": false, "0": false,
}

var numericSuffixes = []string{
	"_minutes", "_hours", "_seconds", "_kwh", "_penalty",
	"_weight", "_bonus", "_threshold", "_count", "_margin",
}

// Value is one decoded parameter. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind    Kind
	Bool    bool
	Int     int64
	Float   float64
	String  string
	Time    string // HH:MM:SS, kept as a string; callers parse further if needed
	Array   []interface{}
	Object  map[string]interface{}
	Failed  bool // a typed rule was attempted and failed to parse
}

// Kind discriminates which field of Value holds the decoded result.
type Kind int

const (
	KindAbsent Kind = iota
	KindBool
	KindArray
	KindObject
	KindInt
	KindFloat
	KindTime
	KindString
)

// Set is a decoded parameter bag, keyed by the original string key.
type Set map[string]Value

// Decode applies the parameter decoder rules, in order, to every
// key/value pair in raw. Parse failures of a typed rule never raise;
// the parameter is recorded as absent with Failed=true so callers can
// log it, and falls through to the per-constraint default.
func Decode(raw map[string]string) Set {
	out := make(Set, len(raw))
	for k, v := range raw {
		out[k] = decodeOne(k, v)
	}
	return out
}

func decodeOne(key, value string) Value {
	trimmed := strings.TrimSpace(value)

	if _, ok := sentinelNulls[trimmed]; ok {
		return Value{Kind: KindAbsent}
	}

	if hasSuffixAny(key, "_enabled", "_flag") {
		if b, ok := boolValues[strings.ToLower(trimmed)]; ok {
			return Value{Kind: KindBool, Bool: b}
		}
		return Value{Kind: KindAbsent, Failed: true}
	}
	if b, ok := boolValues[strings.ToLower(trimmed)]; ok {
		return Value{Kind: KindBool, Bool: b}
	}

	if strings.HasPrefix(trimmed, "[") {
		var arr []interface{}
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return Value{Kind: KindAbsent, Failed: true}
		}
		return Value{Kind: KindArray, Array: arr}
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return Value{Kind: KindAbsent, Failed: true}
		}
		return Value{Kind: KindObject, Object: obj}
	}

	if hasSuffixAny(key, numericSuffixes...) {
		if strings.Contains(trimmed, ".") {
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return Value{Kind: KindAbsent, Failed: true}
			}
			return Value{Kind: KindFloat, Float: f}
		}
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return Value{Kind: KindAbsent, Failed: true}
		}
		return Value{Kind: KindInt, Int: i}
	}

	if strings.HasSuffix(key, "_period") && strings.Contains(trimmed, ":") {
		if !looksLikeTimeOfDay(trimmed) {
			return Value{Kind: KindAbsent, Failed: true}
		}
		return Value{Kind: KindTime, Time: trimmed}
	}

	return Value{Kind: KindString, String: trimmed}
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func looksLikeTimeOfDay(s string) bool {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

// ConstraintConfig collects all keys of the form
// constraint_<name>_<param>, strips the "constraint_<name>_" prefix,
// and returns the enabled flag, a penalty (if present under the
// "penalty" suffix), and the remaining params keyed by their stripped
// name. Unknown keys elsewhere in the set are preserved but unused by
// this helper.
type ConstraintConfig struct {
	Enabled bool
	Penalty float64
	Params  map[string]Value
}

func (s Set) ConstraintConfig(name string) ConstraintConfig {
	prefix := "constraint_" + name + "_"
	cfg := ConstraintConfig{Params: map[string]Value{}}

	for k, v := range s {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		stripped := strings.TrimPrefix(k, prefix)
		switch stripped {
		case "enabled":
			cfg.Enabled = v.Kind == KindBool && v.Bool
		case "penalty":
			switch v.Kind {
			case KindInt:
				cfg.Penalty = float64(v.Int)
			case KindFloat:
				cfg.Penalty = v.Float
			}
		default:
			cfg.Params[stripped] = v
		}
	}
	return cfg
}

// IntOr returns the parameter's int value, or def if absent/failed. A
// string value that parses as a number (a key without a numeric
// suffix) is converted too.
func (v Value) IntOr(def int64) int64 {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return int64(v.Float)
	case KindString:
		if f, err := strconv.ParseFloat(v.String, 64); err == nil {
			return int64(f)
		}
		return def
	default:
		return def
	}
}

// FloatOr returns the parameter's float value, or def if absent/failed.
// A string value that parses as a number (a key without a numeric
// suffix) is converted too.
func (v Value) FloatOr(def float64) float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	case KindString:
		if f, err := strconv.ParseFloat(v.String, 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// BoolOr returns the parameter's bool value, or def if absent/failed.
func (v Value) BoolOr(def bool) bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return def
}

// StringOr returns the parameter's string value, or def if absent.
func (v Value) StringOr(def string) string {
	if v.Kind == KindString {
		return v.String
	}
	return def
}

// Duration interprets an hours/minutes/seconds-suffixed value as a
// time.Duration, given the already-known unit.
func (v Value) Duration(unit time.Duration, def time.Duration) time.Duration {
	switch v.Kind {
	case KindInt:
		return time.Duration(v.Int) * unit
	case KindFloat:
		return time.Duration(v.Float * float64(unit))
	default:
		return def
	}
}
