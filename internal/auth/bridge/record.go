package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind enumerates the closed set of scalar kinds a column value can take.
// Keeping the set closed makes conversion logic exhaustive and testable.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

// Value is a tagged scalar holding one database column value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func Null() Value           { return Value{kind: KindNull} }
func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer form of the value. Floats truncate; other kinds
// return zero.
func (v Value) Int64() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	default:
		return 0
	}
}

// Float64 returns the floating-point form of the value. Integers widen;
// other kinds return zero.
func (v Value) Float64() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	default:
		return 0
	}
}

// Bool returns the boolean form of the value, false for non-boolean kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Text returns the string form of the value. Non-string kinds format to
// their canonical text representation; null formats to the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON emits the native JSON form of the scalar, so numeric columns
// stay numeric on the wire.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	default:
		return json.Marshal(v.s)
	}
}

// Record is an ordered mapping from column label to scalar value. Column
// order follows the query's declared labels, aliases included.
type Record struct {
	cols []string
	vals map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{vals: make(map[string]Value)}
}

// Set adds or replaces a column value. The first insertion of a column
// fixes its position.
func (r *Record) Set(col string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Get returns the value for col and whether the column is present.
func (r Record) Get(col string) (Value, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Columns returns the column labels in declaration order.
func (r Record) Columns() []string {
	return append([]string(nil), r.cols...)
}

// Len returns the number of columns.
func (r Record) Len() int { return len(r.cols) }

// Int64 returns the integer form of col, zero when absent or null.
func (r Record) Int64(col string) int64 { return r.vals[col].Int64() }

// Text returns the string form of col, empty when absent or null.
func (r Record) Text(col string) string { return r.vals[col].Text() }

// MarshalJSON renders the record as a JSON object preserving column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.vals[col].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// fromDriver maps a driver scalar onto the closed Value set: null stays
// null, numerics stay numeric, booleans stay boolean, everything else
// becomes its string representation.
func fromDriver(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case []byte:
		return String(string(x))
	case string:
		return String(x)
	case time.Time:
		return String(x.UTC().Format(time.RFC3339Nano))
	default:
		return String(fmt.Sprint(x))
	}
}
