// Package frame provides the ordered tabular record set passed between
// pipeline stages. A Frame tracks its column order explicitly so that
// schema enforcement and warehouse loads are deterministic.
package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is a dynamically typed cell value. Before enforcement a cell may
// hold any JSON-decoded type; after enforcement it holds the contract
// type's Go representation (string, int64, float64, bool, time.Time) or
// nil for the timestamp null sentinel.
type Value = interface{}

// Row maps column names to values. Absent columns are allowed before
// enforcement, never after.
type Row map[string]Value

// Frame is an ordered sequence of rows with a tracked column order.
type Frame struct {
	cols []string
	rows []Row
}

// New creates an empty frame with the given column order.
func New(cols ...string) *Frame {
	return &Frame{cols: append([]string(nil), cols...)}
}

// FromRows builds a frame from rows, deriving column order from first
// appearance across all rows.
func FromRows(rows []Row) *Frame {
	f := New()
	for _, r := range rows {
		f.Append(r)
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Columns returns the column order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.cols...)
}

// HasColumn reports whether the frame tracks the named column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.cols {
		if c == name {
			return true
		}
	}
	return false
}

// Row returns the i-th row. The returned map is the live row, not a copy.
func (f *Frame) Row(i int) Row {
	return f.rows[i]
}

// Rows returns the live row slice.
func (f *Frame) Rows() []Row {
	return f.rows
}

// Append adds a row, registering any columns not yet tracked.
func (f *Frame) Append(r Row) {
	keys := make([]string, 0, len(r))
	for k := range r {
		if !f.HasColumn(k) {
			keys = append(keys, k)
		}
	}
	// Map iteration order is random; keep new columns deterministic.
	sort.Strings(keys)
	f.cols = append(f.cols, keys...)
	f.rows = append(f.rows, r)
}

// SetColumn assigns a value to the named column for every row, registering
// the column if needed.
func (f *Frame) SetColumn(name string, fn func(r Row) Value) {
	if !f.HasColumn(name) {
		f.cols = append(f.cols, name)
	}
	for _, r := range f.rows {
		r[name] = fn(r)
	}
}

// SetConstant assigns the same value to the named column for every row.
func (f *Frame) SetConstant(name string, v Value) {
	f.SetColumn(name, func(Row) Value { return v })
}

// Column returns the values of the named column in row order.
func (f *Frame) Column(name string) []Value {
	vals := make([]Value, f.Len())
	for i, r := range f.rows {
		vals[i] = r[name]
	}
	return vals
}

// Rename renames columns in place according to the mapping.
func (f *Frame) Rename(mapping map[string]string) {
	for i, c := range f.cols {
		if to, ok := mapping[c]; ok {
			f.cols[i] = to
		}
	}
	for _, r := range f.rows {
		for from, to := range mapping {
			if v, ok := r[from]; ok {
				r[to] = v
				delete(r, from)
			}
		}
	}
}

// Select returns a new frame containing exactly the given columns in the
// given order. Missing columns are filled with nil; extras are dropped.
func (f *Frame) Select(cols []string) *Frame {
	out := New(cols...)
	for _, r := range f.rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			nr[c] = r[c]
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := New(f.cols...)
	for _, r := range f.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// Deduplicate returns a new frame with exact duplicate rows removed,
// keeping first occurrence order.
func (f *Frame) Deduplicate() *Frame {
	out := New(f.cols...)
	seen := make(map[string]struct{}, f.Len())
	for _, r := range f.rows {
		key := fingerprint(f.cols, r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.rows = append(out.rows, r)
	}
	return out
}

// DistinctValues returns the distinct non-nil values of a column as
// strings, in first-appearance order.
func (f *Frame) DistinctValues(col string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range f.rows {
		v := r[col]
		if v == nil {
			continue
		}
		s := Stringify(v)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Concat appends all rows of the given frames into a single new frame.
// Column order follows first appearance across inputs.
func Concat(frames ...*Frame) *Frame {
	out := New()
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.cols {
			if !out.HasColumn(c) {
				out.cols = append(out.cols, c)
			}
		}
		out.rows = append(out.rows, f.rows...)
	}
	return out
}

// Kind describes the runtime type of a column, used to derive warehouse
// column types when a table is first created.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTimestamp
)

// ColumnKind infers the runtime kind of a column by scanning its values.
// Columns with no typed values fall back to KindString.
func (f *Frame) ColumnKind(name string) Kind {
	for _, r := range f.rows {
		switch r[name].(type) {
		case nil:
			continue
		case int, int32, int64:
			return KindInt
		case float32, float64:
			return KindFloat
		case bool:
			return KindBool
		case time.Time:
			return KindTimestamp
		default:
			return KindString
		}
	}
	return KindString
}

// Stringify renders a cell value the way enforced text columns do:
// nil becomes the empty string, numbers render without exponent noise,
// timestamps render as RFC 3339 UTC.
func Stringify(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func fingerprint(cols []string, r Row) string {
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(Stringify(r[c]))
		b.WriteByte('\x1f')
	}
	return b.String()
}
