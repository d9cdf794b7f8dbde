// Package records defines the record representation shared by every pipeline
// stage. A Record is a mapping from canonical field name to a value; values
// start as raw strings (or nil for absent/empty cells) as emitted by the
// reader and become typed (int64, float64, time.Time, string) once the
// cleaner has run.
package records

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record holds one row keyed by canonical field name. nil means the source
// cell was absent or recognized as a null token.
type Record map[string]any

// Date is a calendar date without a clock component.
type Date struct{ time.Time }

// Clock is a time of day without a calendar component.
type Clock struct{ time.Time }

// Layouts used to render Date and Clock values.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

func (d Date) String() string  { return d.Format(DateLayout) }
func (c Clock) String() string { return c.Format(ClockLayout) }

// Clone returns a shallow copy of r. Values are immutable from the reader's
// point of view (strings, numbers, time.Time), so a shallow copy is enough to
// protect the original from later in-place mutation.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the value for field as a string and whether it is non-nil.
// Typed values are formatted the same way every time so callers can rely on
// stable output (reject documents, dedup keys).
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return Format(v), true
}

// Format renders a single value into its canonical string form.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case Date:
		return t.String()
	case Clock:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// Document serializes r as a JSON object with the given field order. It is
// used to build the raw_record column of reject rows; ordering keeps the
// documents diffable across runs. Values are rendered via Format so the
// document is always a flat string→string object.
func (r Record) Document(fields []string) ([]byte, error) {
	doc := make(map[string]*string, len(fields))
	for _, f := range fields {
		v, ok := r[f]
		if !ok || v == nil {
			doc[f] = nil
			continue
		}
		s := Format(v)
		doc[f] = &s
	}
	return json.Marshal(doc)
}
