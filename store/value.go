package store

import (
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies which member of the Value union is set.
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindText
	KindInt32
	KindInt64
	KindFloat64
	KindTimestamp
)

// TimestampLayout is the persisted form of timestamps. It is fixed width in UTC,
// so lexical order of stored strings matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindTimestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// parseValueKind is the inverse of ValueKind.String.
func parseValueKind(s string) ValueKind {
	switch s {
	case "text":
		return KindText
	case "int32":
		return KindInt32
	case "int64":
		return KindInt64
	case "float64":
		return KindFloat64
	case "timestamp":
		return KindTimestamp
	default:
		return KindInvalid
	}
}

// Value is a single typed property value. The zero Value is invalid.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	ts   time.Time
}

// Text returns a text Value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Int32 returns a 32-bit integer Value.
func Int32(n int32) Value { return Value{kind: KindInt32, num: int64(n)} }

// Int64 returns a 64-bit integer Value.
func Int64(n int64) Value { return Value{kind: KindInt64, num: n} }

// Float64 returns a floating point Value.
func Float64(f float64) Value { return Value{kind: KindFloat64, flt: f} }

// Timestamp returns a timestamp Value. Stored timestamps have nanosecond
// precision and come back in UTC. Only years 0000 through 9999 can be stored.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Kind reports which member of the union is set.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether v was built by one of the constructors.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsText() (string, bool) { return v.str, v.kind == KindText }

func (v Value) AsInt32() (int32, bool) { return int32(v.num), v.kind == KindInt32 }

func (v Value) AsInt64() (int64, bool) { return v.num, v.kind == KindInt64 }

func (v Value) AsFloat64() (float64, bool) { return v.flt, v.kind == KindFloat64 }

func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// Equal reports whether two values have the same kind and content.
// Timestamps compare by instant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.str == o.str
	case KindInt32, KindInt64:
		return v.num == o.num
	case KindFloat64:
		return v.flt == o.flt
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return strconv.Quote(v.str)
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindTimestamp:
		return formatTimestamp(v.ts)
	default:
		return "<invalid>"
	}
}

// native returns the Go value handed to attributevalue for marshaling.
func (v Value) native() (any, error) {
	switch v.kind {
	case KindText:
		return v.str, nil
	case KindInt32:
		return int32(v.num), nil
	case KindInt64:
		return v.num, nil
	case KindFloat64:
		return v.flt, nil
	case KindTimestamp:
		if y := v.ts.UTC().Year(); y < 0 || y > 9999 {
			return nil, fmt.Errorf("%w: year %d", ErrTimestampRange, y)
		}
		return formatTimestamp(v.ts), nil
	default:
		return nil, fmt.Errorf("kindstore: invalid value kind %d", v.kind)
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
