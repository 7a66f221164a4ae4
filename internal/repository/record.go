// Package repository executes registry.QueryConfig statements against a
// dbpool.Pool with positionally-bound, typed parameters, and projects the
// result set into ordered records.
package repository

import (
	"bytes"
	"encoding/json"
)

// Record is an ordered name-value projection of one result row, preserving
// SQL column order the way a driver reports it.
type Record struct {
	Columns []string
	Values  []any
}

// Map renders the record as a plain map; encoding/json sorts map keys
// alphabetically, so prefer MarshalJSON (used automatically by the
// response envelope) when column order must survive on the wire.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		out[c] = r.Values[i]
	}
	return out
}

// MarshalJSON renders the record as a JSON object with keys in column
// order, since encoding/json would otherwise alphabetize a map[string]any.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
