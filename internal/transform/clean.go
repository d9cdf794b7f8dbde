package transform

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	textransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"rideingest/internal/schema"
	"rideingest/pkg/records"
)

// InvariantError reports that the cleaner met a value the validator should
// have rejected. It signals a fault in the pipeline itself, never a data
// quality problem, and must abort the run loudly.
type InvariantError struct {
	Field string
	Value any
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cleaner invariant violated: field %q holds %T (%v) after validation", e.Field, e.Value, e.Value)
}

// Cleaner normalizes validated records into their canonical form: identifier
// quote-stripping, unicode normalization, categorical canonicalization, and
// flag defaulting. Cleaning is total and idempotent: cleaning a clean record
// returns it unchanged.
type Cleaner struct {
	contract schema.Contract
	titler   cases.Caser
	norm     textransform.Transformer
}

// NewCleaner builds a Cleaner for the contract.
func NewCleaner(contract schema.Contract) *Cleaner {
	// NFC plus non-breaking-space folding keeps exports from different
	// tools byte-comparable.
	nbsp := runes.Map(func(r rune) rune {
		if r == ' ' {
			return ' '
		}
		return r
	})
	return &Cleaner{
		contract: contract,
		titler:   cases.Title(language.English),
		norm:     textransform.Chain(norm.NFC, nbsp),
	}
}

// Clean returns the canonical form of a validated record. The input is not
// mutated. A type mismatch here means the validator let something through and
// is returned as *InvariantError.
func (c *Cleaner) Clean(in records.Record) (records.Record, error) {
	out := make(records.Record, len(c.contract.Fields))
	for _, f := range c.contract.Fields {
		v := in[f.Name]
		cv, err := c.cleanField(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = cv
	}
	return out, nil
}

func (c *Cleaner) cleanField(f schema.Field, v any) (any, error) {
	switch f.Type {
	case schema.TypeDecimal:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case float64:
			return t, nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	case schema.TypeFlag:
		switch t := v.(type) {
		case nil:
			// Absent flags mean "did not happen".
			return int64(0), nil
		case int64:
			return t, nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	case schema.TypeDate:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case records.Date:
			return t, nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	case schema.TypeTime:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case records.Clock:
			return t, nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	case schema.TypeID:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case string:
			return c.cleanText(strings.Trim(t, `"'`)), nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	case schema.TypeCategory:
		switch t := v.(type) {
		case nil:
			return nil, nil
		case string:
			return c.cleanCategory(f, t), nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}

	default: // text
		switch t := v.(type) {
		case nil:
			return nil, nil
		case string:
			return c.cleanText(t), nil
		}
		return nil, &InvariantError{Field: f.Name, Value: v}
	}
}

// cleanText trims and unicode-normalizes a string value.
func (c *Cleaner) cleanText(s string) string {
	if folded, _, err := textransform.String(c.norm, s); err == nil {
		s = folded
	}
	return strings.TrimSpace(s)
}

// cleanCategory maps a raw categorical value onto its canonical form: the
// synonym table wins (matched case-insensitively), anything else is
// title-cased.
func (c *Cleaner) cleanCategory(f schema.Field, s string) string {
	s = c.cleanText(s)
	if canonical, ok := f.Synonyms[strings.ToLower(s)]; ok {
		return canonical
	}
	return c.titler.String(s)
}
