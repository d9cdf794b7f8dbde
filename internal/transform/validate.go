// Package transform implements the per-record stages between the CSV reader
// and the loader: validation, cleaning, and run-scoped deduplication.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rideingest/internal/schema"
	"rideingest/pkg/records"
)

// nullTokens are raw values that mean "no value". Comparison is on the
// lowercased form.
var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"na":   {},
	"n/a":  {},
}

// IsNullToken reports whether the raw cell value denotes a null.
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

// Outcome is the result of validating one raw record. A record is valid
// exactly when Reasons is empty; Typed then carries the coerced fields.
type Outcome struct {
	Typed   records.Record
	Reasons []string
}

// Valid reports whether the record passed every rule.
func (o Outcome) Valid() bool { return len(o.Reasons) == 0 }

// Reason joins the individual failure reasons for the reject audit row.
func (o Outcome) Reason() string { return strings.Join(o.Reasons, "; ") }

// Rule is one declarative business rule. Check inspects the typed record and
// returns a human-readable reason when the rule is violated, or "" otherwise.
// Rules must tolerate nil fields: a field that failed type coercion is nil in
// the typed record and its structural failure is already reported.
type Rule struct {
	Name  string
	Check func(records.Record) string
}

// Validator classifies raw records against a contract and an ordered rule
// list. Validation is pure: the input record is never mutated, and identical
// input always yields an identical outcome, reasons included.
type Validator struct {
	contract schema.Contract
	rules    []Rule
}

// NewValidator builds a Validator for the contract using the given business
// rules; pass DefaultRules() for the standard booking rule set.
func NewValidator(contract schema.Contract, rules []Rule) *Validator {
	return &Validator{contract: contract, rules: rules}
}

// Validate evaluates all structural rules (required, type coercion) and all
// business rules against one raw record. Every applicable failure reason is
// collected in rule-declaration order; nothing short-circuits.
func (v *Validator) Validate(raw records.Record) Outcome {
	typed := make(records.Record, len(v.contract.Fields))
	var reasons []string

	for _, f := range v.contract.Fields {
		val, coerced, reason := coerceField(f, raw[f.Name])
		if reason != "" {
			reasons = append(reasons, reason)
		}
		if coerced {
			typed[f.Name] = val
		} else {
			typed[f.Name] = nil
		}
	}

	for _, r := range v.rules {
		if reason := r.Check(typed); reason != "" {
			reasons = append(reasons, reason)
		}
	}

	return Outcome{Typed: typed, Reasons: reasons}
}

// coerceField applies the structural rules for a single field: requiredness
// and type coercion. It returns the typed value, whether coercion produced a
// usable value, and a failure reason ("" when the field is fine).
func coerceField(f schema.Field, v any) (any, bool, string) {
	s, _ := v.(string)
	if v == nil || IsNullToken(s) {
		if f.Required {
			return nil, false, fmt.Sprintf("%s is NULL", f.Name)
		}
		return nil, true, ""
	}

	switch f.Type {
	case schema.TypeDecimal:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, "type_error:" + f.Name
		}
		return n, true, ""

	case schema.TypeFlag:
		// Flags arrive as 0/1 counts; tolerate float spellings like "1.0".
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false, "type_error:" + f.Name
		}
		return int64(n), true, ""

	case schema.TypeDate:
		layout := f.Layout
		if layout == "" {
			layout = records.DateLayout
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, false, "type_error:" + f.Name
		}
		return records.Date{Time: t}, true, ""

	case schema.TypeTime:
		layout := f.Layout
		if layout == "" {
			layout = records.ClockLayout
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return nil, false, "type_error:" + f.Name
		}
		return records.Clock{Time: t}, true, ""

	default: // id, text, category
		return s, true, ""
	}
}

// decimal fetches a float field from the typed record, reporting presence.
func decimal(r records.Record, field string) (float64, bool) {
	n, ok := r[field].(float64)
	return n, ok
}

// DefaultRules returns the booking business rules in evaluation order.
func DefaultRules() []Rule {
	completedNeeds := func(field string) Rule {
		return Rule{
			Name: "completed_requires_" + field,
			Check: func(r records.Record) string {
				status, _ := r["booking_status"].(string)
				if !strings.EqualFold(strings.TrimSpace(status), "completed") {
					return ""
				}
				if n, ok := decimal(r, field); !ok || n <= 0 {
					return fmt.Sprintf("%s required for completed rides", field)
				}
				return ""
			},
		}
	}
	ratingInRange := func(field string) Rule {
		return Rule{
			Name: field + "_range",
			Check: func(r records.Record) string {
				if n, ok := decimal(r, field); ok && (n < 1 || n > 5) {
					return fmt.Sprintf("%s outside allowed range [1,5]", field)
				}
				return ""
			},
		}
	}
	nonNegative := func(field string) Rule {
		return Rule{
			Name: field + "_non_negative",
			Check: func(r records.Record) string {
				if n, ok := decimal(r, field); ok && n < 0 {
					return fmt.Sprintf("%s cannot be negative", field)
				}
				return ""
			},
		}
	}

	return []Rule{
		completedNeeds("booking_value"),
		completedNeeds("ride_distance"),
		ratingInRange("driver_ratings"),
		ratingInRange("customer_rating"),
		nonNegative("booking_value"),
		nonNegative("ride_distance"),
		nonNegative("avg_vtat"),
		nonNegative("avg_ctat"),
	}
}
