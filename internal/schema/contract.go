// Package schema declares the data contract for an ingestion run: the field
// set, types, requiredness, the natural key, and the mapping from source CSV
// headers to canonical column names.
package schema

import (
	"fmt"
	"strings"
)

// Field types understood by the validator and cleaner.
const (
	TypeText     = "text"     // free-form string
	TypeDecimal  = "decimal"  // float64 after cleaning
	TypeDate     = "date"     // time.Time (date part), per Layout
	TypeTime     = "time"     // time.Time (clock part), per Layout
	TypeFlag     = "flag"     // 0/1 int64 after cleaning; nulls become 0
	TypeCategory = "category" // string canonicalized via Synonyms + title case
	TypeID       = "id"       // identifier string; quotes stripped
)

// Field describes one canonical column.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`

	// Layout is the time.Parse layout for date/time fields.
	Layout string `json:"layout,omitempty"`

	// Synonyms maps lowercased raw values of a category field to their
	// canonical form. Values with no synonym entry are title-cased.
	Synonyms map[string]string `json:"synonyms,omitempty"`
}

// Contract is the full data contract for one source.
type Contract struct {
	// Name identifies the source in logs and reject rows (source_name).
	Name string `json:"name"`

	Fields []Field `json:"fields"`

	// HeaderMap maps source CSV headers to canonical field names.
	HeaderMap map[string]string `json:"header_map,omitempty"`

	// NaturalKey names the field whose value identifies a record's real-world
	// identity; deduplication keys on it. It must be declared Required.
	NaturalKey string `json:"natural_key"`
}

// Columns returns the canonical column names in declaration order.
func (c Contract) Columns() []string {
	cols := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		cols[i] = f.Name
	}
	return cols
}

// FieldByName returns the declared field and whether it exists.
func (c Contract) FieldByName(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Check verifies the contract is internally consistent. In particular the
// natural key must be declared and required: a null key record must never
// exist by construction, so a contract that would permit one is a
// configuration error, not a runtime policy decision.
func (c Contract) Check() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("schema: contract name must not be empty")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("schema: contract %q declares no fields", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema: contract %q declares field %q twice", c.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if c.NaturalKey == "" {
		return fmt.Errorf("schema: contract %q declares no natural key", c.Name)
	}
	key, ok := c.FieldByName(c.NaturalKey)
	if !ok {
		return fmt.Errorf("schema: natural key %q is not a declared field", c.NaturalKey)
	}
	if !key.Required {
		return fmt.Errorf("schema: natural key %q must be declared required", c.NaturalKey)
	}
	return nil
}
