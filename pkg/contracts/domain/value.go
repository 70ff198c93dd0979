package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindString
	KindTime
)

// String returns the kind name used in profiles and logs
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "missing"
	}
}

// Value is a single dataset cell. The zero Value is missing, which is
// distinct from the number zero and from the empty string.
type Value struct {
	kind Kind
	num  float64
	str  string
	t    time.Time
}

// Missing returns the missing-value marker
func Missing() Value { return Value{} }

// Number wraps a float64 cell
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a text cell
func String(s string) Value { return Value{kind: KindString, str: s} }

// Time wraps a timestamp cell
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind reports what the value holds
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell is missing
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Float returns the numeric payload and whether the value is a number
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text returns the string payload and whether the value is a string
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindString
}

// Timestamp returns the time payload and whether the value is a time
func (v Value) Timestamp() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Label renders the value for display. Missing values render as "".
func (v Value) Label() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// Equal compares kind and payload. Two missing values are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

// GroupKey returns a string that is equal for values that group together.
// The kind prefix keeps the number 1 and the text "1" apart.
func (v Value) GroupKey() string {
	switch v.kind {
	case KindNumber:
		n := v.num
		if n == 0 {
			n = 0 // folds -0 into 0
		}
		return "n:" + strconv.FormatFloat(n, 'g', -1, 64)
	case KindString:
		return "s:" + v.str
	case KindTime:
		return "t:" + strconv.FormatInt(v.t.UnixNano(), 10)
	default:
		return "-"
	}
}

// MarshalJSON encodes missing as null and times as RFC 3339
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Strings stay strings; the
// caller decides whether a string column holds dates.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Missing()
	case float64:
		*v = Number(x)
	case string:
		*v = String(x)
	default:
		*v = String(string(data))
	}
	return nil
}
