// Package value implements the GraphLite Value type: a discriminated union
// of Null, Boolean, Number, String, Vector, List, Array, DateTime (with
// fixed-offset/named-timezone variants) and TimeWindow, with structural
// equality and within-type comparison, plus the bit-exact content-hash
// encoding used for node/edge storage IDs on INSERT.
//
// The shape follows the teacher's Node/Edge property maps
// (pkg/storage/types.go uses map[string]any at the storage boundary); Value
// is the typed representation the planner and executor operate on above
// that boundary.
package value

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind discriminates the Value union.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindVector
	KindList
	KindArray
	KindDateTime
	KindTimeWindow
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindVector:
		return "Vector"
	case KindList:
		return "List"
	case KindArray:
		return "Array"
	case KindDateTime:
		return "DateTime"
	case KindTimeWindow:
		return "TimeWindow"
	default:
		return "Unknown"
	}
}

// DateTime carries an instant plus the variant describing how it was
// expressed: naive (no zone), a fixed UTC offset, or a named IANA zone.
type DateTime struct {
	Time     time.Time
	HasZone  bool   // false => naive local value, compared as UTC wall clock
	TZName   string // non-empty for named-timezone variant
	FixedOff int    // seconds east of UTC, used when TZName == ""
}

// TimeWindow is a half-open [Start, End) interval of instants.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Value is an immutable, discriminated union. Zero value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	vec  []float32
	list []Value // used for both List and Array
	dt   DateTime
	tw   TimeWindow
}

// Null is the singleton Null value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value    { return Value{kind: KindBoolean, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Int(n int64) Value    { return Value{kind: KindNumber, n: float64(n)} }
func Str(s string) Value   { return Value{kind: KindString, s: s} }

func Vector(v []float32) Value {
	cp := make([]float32, len(v))
	copy(cp, v)
	return Value{kind: KindVector, vec: cp}
}

func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, list: cp}
}

func DateTimeValue(dt DateTime) Value { return Value{kind: KindDateTime, dt: dt} }

func TimeWindowValue(tw TimeWindow) Value { return Value{kind: KindTimeWindow, tw: tw} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) AsBool() bool    { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsString() string  { return v.s }
func (v Value) AsVector() []float32 { return v.vec }
func (v Value) AsList() []Value     { return v.list }
func (v Value) AsDateTime() DateTime { return v.dt }
func (v Value) AsTimeWindow() TimeWindow { return v.tw }

// Truthy implements WHERE's collapse of non-boolean/NULL to false: only
// Boolean(true) is truthy, everything else (including Null) is not.
func (v Value) Truthy() bool {
	return v.kind == KindBoolean && v.b
}

// Equal is structural equality, defined across all Value kinds (two values
// of different kinds are never equal, Null equals only Null).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBoolean:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindVector:
		if len(v.vec) != len(other.vec) {
			return false
		}
		for i := range v.vec {
			if v.vec[i] != other.vec[i] {
				return false
			}
		}
		return true
	case KindList, KindArray:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindDateTime:
		return v.dt.Time.Equal(other.dt.Time)
	case KindTimeWindow:
		return v.tw.Start.Equal(other.tw.Start) && v.tw.End.Equal(other.tw.End)
	default:
		return false
	}
}

// Compare orders two values of the same kind; ok is false when comparison is
// undefined (different kinds, or a kind with no total order such as List).
// Only Numbers, Strings and DateTimes are ordered, per spec.
func Compare(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.n < b.n:
			return -1, true
		case a.n > b.n:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	case KindDateTime:
		switch {
		case a.dt.Time.Before(b.dt.Time):
			return -1, true
		case a.dt.Time.After(b.dt.Time):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// String renders a Value for display (Project output, error messages, CLI
// REPL echo).
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		if v.n == math.Trunc(v.n) && !math.IsInf(v.n, 0) {
			return fmt.Sprintf("%d", int64(v.n))
		}
		return fmt.Sprintf("%g", v.n)
	case KindString:
		return v.s
	case KindVector:
		return fmt.Sprintf("%v", v.vec)
	case KindList, KindArray:
		parts := make([]string, len(v.list))
		for i, it := range v.list {
			parts[i] = it.String()
		}
		return fmt.Sprintf("%v", parts)
	case KindDateTime:
		return v.dt.Time.Format(time.RFC3339Nano)
	case KindTimeWindow:
		return fmt.Sprintf("[%s, %s)", v.tw.Start.Format(time.RFC3339), v.tw.End.Format(time.RFC3339))
	default:
		return ""
	}
}

// FromAny converts a loosely-typed Go value (as decoded from storage/JSON)
// into a Value, the boundary conversion the executor performs when reading
// a Node/Edge property map.
func FromAny(a any) Value {
	switch t := a.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case string:
		return Str(t)
	case []float32:
		return Vector(t)
	case time.Time:
		return DateTimeValue(DateTime{Time: t, HasZone: true})
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromAny(it)
		}
		return List(items)
	case []Value:
		return List(t)
	default:
		return Str(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back to the loosely-typed representation stored in
// a Node/Edge property map, the inverse of FromAny.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBoolean:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindVector:
		return v.vec
	case KindList, KindArray:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.ToAny()
		}
		return out
	case KindDateTime:
		return v.dt.Time
	case KindTimeWindow:
		return v.tw
	default:
		return nil
	}
}

// SortedPropertyKeys returns property map keys sorted ascending, the
// deterministic iteration order content hashing and display require.
func SortedPropertyKeys(props map[string]Value) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
