package schema

import (
	"strconv"
	"strings"
	"time"

	"admart/internal/frame"
)

// Status is the three-way outcome of one enforcement pass.
type Status int

const (
	StatusAll Status = iota
	StatusPartial
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAll:
		return "all"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Summary reports what one enforcement pass did.
type Summary struct {
	Contract       string
	RowsIn         int
	RowsOut        int
	MissingColumns []string // contract columns absent from the input
	FailedColumns  []string // columns that contained unparseable values
}

// EnforcedFrame is the result of Enforce: the coerced frame plus status.
type EnforcedFrame struct {
	Frame   *frame.Frame
	Status  Status
	Summary Summary
}

// Enforce returns a new frame with exactly the named contract's columns,
// in contract order, each value coerced to its declared type. Extra
// columns are dropped; absent columns are inserted with the type default.
// Enforcement never adds or drops rows. Per-column coercion failures do
// not abort the pass; the value falls back to the type default and the
// overall status downgrades to partial. An unknown contract name yields
// status failed with the input frame returned unenforced, so the caller
// can downgrade that item without crashing the batch.
func Enforce(f *frame.Frame, contractName string) EnforcedFrame {
	summary := Summary{Contract: contractName, RowsIn: f.Len()}

	contract, err := Lookup(contractName)
	if err != nil {
		summary.RowsOut = f.Len()
		return EnforcedFrame{Frame: f, Status: StatusFailed, Summary: summary}
	}

	for _, col := range contract.Columns {
		if !f.HasColumn(col.Name) {
			summary.MissingColumns = append(summary.MissingColumns, col.Name)
		}
	}

	out := f.Select(contract.ColumnNames())
	for _, col := range contract.Columns {
		if failed := coerceColumn(out, col); failed {
			summary.FailedColumns = append(summary.FailedColumns, col.Name)
		}
	}

	summary.RowsOut = out.Len()
	status := StatusAll
	if summary.RowsOut < summary.RowsIn || len(summary.FailedColumns) > 0 {
		status = StatusPartial
	}
	return EnforcedFrame{Frame: out, Status: status, Summary: summary}
}

// coerceColumn rewrites every cell of a column to the declared type and
// reports whether any present value was unparseable. Missing values take
// the type default without counting as a failure.
func coerceColumn(f *frame.Frame, col Column) bool {
	failed := false
	for _, r := range f.Rows() {
		v, fellBack := coerceValue(r[col.Name], col.Type)
		r[col.Name] = v
		failed = failed || fellBack
	}
	return failed
}

func coerceValue(v frame.Value, t Type) (frame.Value, bool) {
	switch t {
	case Integer:
		return coerceInteger(v)
	case Decimal:
		return coerceDecimal(v)
	case Boolean:
		return coerceBoolean(v)
	case TimestampUTC:
		return coerceTimestamp(v)
	case Text:
		// Missing text becomes the empty string, not null, so repeated
		// enforcement is stable.
		return frame.Stringify(v), false
	default:
		return v, false
	}
}

func coerceInteger(v frame.Value) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(t), false
	case int32:
		return int64(t), false
	case int64:
		return t, false
	case float32:
		return int64(t), false
	case float64:
		return int64(t), false
	case bool:
		if t {
			return 1, false
		}
		return 0, false
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, false
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(fl), false
		}
		return 0, true
	default:
		return 0, true
	}
}

func coerceDecimal(v frame.Value) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(t), false
	case int32:
		return float64(t), false
	case int64:
		return float64(t), false
	case float32:
		return float64(t), false
	case float64:
		return t, false
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, false
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return fl, false
		}
		return 0, true
	default:
		return 0, true
	}
}

func coerceBoolean(v frame.Value) (bool, bool) {
	switch t := v.(type) {
	case nil:
		return false, false
	case bool:
		return t, false
	case int:
		return t != 0, false
	case int64:
		return t != 0, false
	case float64:
		return t != 0, false
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		if s == "" {
			return false, false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b, false
		}
		return false, true
	default:
		return false, true
	}
}

// timestampLayouts are tried in order; layouts without a zone are
// interpreted as UTC. Normalization is one way: there is no round trip
// back to the original offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func coerceTimestamp(v frame.Value) (frame.Value, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case time.Time:
		return t.UTC(), false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), false
			}
		}
		return nil, true
	default:
		return nil, true
	}
}
