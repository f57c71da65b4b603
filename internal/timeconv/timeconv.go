// Package timeconv folds the many shapes a stored or client-supplied
// timestamp can take into one comparable epoch-millisecond value.
package timeconv

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a server-assigned timestamp split into seconds and nanoseconds.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

func (t Timestamp) Millis() int64 {
	return t.Seconds*1000 + t.Nanoseconds/int64(time.Millisecond)
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Millis returns v as epoch milliseconds, or 0 when v is absent or has a
// shape it does not recognise. It never panics.
func Millis(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case Timestamp:
		return t.Millis()
	case *Timestamp:
		if t == nil {
			return 0
		}
		return t.Millis()
	case time.Time:
		if t.IsZero() {
			return 0
		}
		return t.UnixMilli()
	case *time.Time:
		if t == nil || t.IsZero() {
			return 0
		}
		return t.UnixMilli()
	case map[string]any:
		return fromMap(t)
	case string:
		return fromString(t)
	case json.Number:
		return fromString(t.String())
	}
	n, _ := fromNumber(v)
	return n
}

// Time is Millis as a time.Time; ok is false when the value resolved to 0.
func Time(v any) (time.Time, bool) {
	ms := Millis(v)
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func fromMap(m map[string]any) int64 {
	sec, ok := m["seconds"]
	if !ok {
		sec, ok = m["_seconds"]
	}
	if !ok {
		return 0
	}
	nanos, ok := m["nanoseconds"]
	if !ok {
		nanos = m["_nanoseconds"]
	}
	s := toInt(sec)
	if s == 0 {
		return 0
	}
	return Timestamp{Seconds: s, Nanoseconds: toInt(nanos)}.Millis()
}

func toInt(v any) int64 {
	if n, ok := v.(json.Number); ok {
		i, err := n.Int64()
		if err != nil {
			return fromString(n.String())
		}
		return i
	}
	n, _ := fromNumber(v)
	return n
}

// fromNumber converts any integer or float kind, including named types.
// Values outside the int64 range resolve to 0.
func fromNumber(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return fromFloat(rv.Float()), true
	}
	return 0, false
}

func fromString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func fromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}
