// Package pgcopy encodes rows into the PostgreSQL COPY text format: one line
// per row, fields separated by a tab, NULL spelled as the reserved token \N,
// and backslash/delimiter/newline bytes escaped inside field content so the
// reserved token can never collide with real data.
package pgcopy

import (
	"io"
	"strings"

	"rideingest/pkg/records"
)

// Null is the reserved null token of the wire format.
const Null = `\N`

// Delimiter separates fields within a row.
const Delimiter = '\t'

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

// Field renders a single value for the wire: nil becomes the null token,
// everything else is formatted canonically and escaped.
func Field(v any) string {
	if v == nil {
		return Null
	}
	return escaper.Replace(records.Format(v))
}

// Encode writes all rows to w in COPY text format.
func Encode(w io.Writer, rows [][]any) error {
	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for i, v := range row {
			if i > 0 {
				sb.WriteByte(Delimiter)
			}
			sb.WriteString(Field(v))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
