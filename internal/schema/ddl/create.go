// Package ddl renders CREATE TABLE statements for the staging and reject
// relations from a schema.Contract. Generation is pure and deterministic:
// the same contract always yields byte-identical SQL, which keeps generated
// migrations diffable.
package ddl

import (
	"fmt"
	"strings"

	"rideingest/internal/schema"
)

// Dialects understood by the renderer.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ColumnDef describes a single column of a generated table. Name is emitted
// quoted; Default is raw SQL and emitted as-is.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef is an ordered column list under a (possibly schema-qualified)
// table name.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// typeMap maps contract field types onto SQL types per dialect. SQLite's
// affinity model means TEXT/REAL/INTEGER cover everything.
var typeMap = map[string]map[string]string{
	DialectPostgres: {
		schema.TypeText:     "TEXT",
		schema.TypeDecimal:  "DOUBLE PRECISION",
		schema.TypeDate:     "DATE",
		schema.TypeTime:     "TIME",
		schema.TypeFlag:     "BIGINT",
		schema.TypeCategory: "TEXT",
		schema.TypeID:       "TEXT",
	},
	DialectSQLite: {
		schema.TypeText:     "TEXT",
		schema.TypeDecimal:  "REAL",
		schema.TypeDate:     "TEXT",
		schema.TypeTime:     "TEXT",
		schema.TypeFlag:     "INTEGER",
		schema.TypeCategory: "TEXT",
		schema.TypeID:       "TEXT",
	},
}

// StagingTable derives the staging table definition from a contract: one
// column per contract field in declaration order, NOT NULL exactly where the
// contract requires the field, primary key on the natural key.
func StagingTable(c schema.Contract, dialect, fqn string) (TableDef, error) {
	if err := c.Check(); err != nil {
		return TableDef{}, err
	}
	types, ok := typeMap[dialect]
	if !ok {
		return TableDef{}, fmt.Errorf("ddl: unsupported dialect %q", dialect)
	}
	if strings.TrimSpace(fqn) == "" {
		return TableDef{}, fmt.Errorf("ddl: table name must not be empty")
	}

	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(c.Fields))}
	for _, f := range c.Fields {
		sqlType, ok := types[f.Type]
		if !ok {
			return TableDef{}, fmt.Errorf("ddl: field %q has unknown type %q", f.Name, f.Type)
		}
		def.Columns = append(def.Columns, ColumnDef{
			Name:       f.Name,
			SQLType:    sqlType,
			Nullable:   !f.Required,
			PrimaryKey: f.Name == c.NaturalKey,
		})
	}
	return def, nil
}

// RejectTable is the fixed audit relation: append-only, no primary key, the
// raw record as JSON text.
func RejectTable(dialect, fqn string) (TableDef, error) {
	if strings.TrimSpace(fqn) == "" {
		return TableDef{}, fmt.Errorf("ddl: table name must not be empty")
	}
	ts := "TIMESTAMPTZ"
	raw := "JSONB"
	if dialect == DialectSQLite {
		ts = "TEXT"
		raw = "TEXT"
	} else if dialect != DialectPostgres {
		return TableDef{}, fmt.Errorf("ddl: unsupported dialect %q", dialect)
	}
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "source_name", SQLType: "TEXT"},
			{Name: "raw_record", SQLType: raw},
			{Name: "reject_reason", SQLType: "TEXT"},
			{Name: "rejected_at", SQLType: ts, Default: "CURRENT_TIMESTAMP"},
		},
	}, nil
}

// Render emits one CREATE TABLE IF NOT EXISTS statement for the definition.
// Identifiers are double-quoted per part, so schema-qualified names stay
// qualified.
func Render(t TableDef) (string, error) {
	if strings.TrimSpace(t.FQN) == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quoteFQN(t.FQN))

	var pk []string
	for i, col := range t.Columns {
		if col.Name == "" || col.SQLType == "" {
			return "", fmt.Errorf("ddl: column %d is missing a name or type", i)
		}
		fmt.Fprintf(&b, "    %s %s", quoteIdent(col.Name), col.SQLType)
		if !col.Nullable && !col.PrimaryKey {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", col.Default)
		}
		if col.PrimaryKey {
			pk = append(pk, quoteIdent(col.Name))
		}
		if i < len(t.Columns)-1 || len(pk) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(pk) > 0 {
		fmt.Fprintf(&b, "    PRIMARY KEY (%s)\n", strings.Join(pk, ", "))
	}
	b.WriteString(");\n")
	return b.String(), nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}
