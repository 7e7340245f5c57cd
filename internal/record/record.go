// Package record defines Data (EntityData), the ordered field->value record type
// that flows from adapters through the cache to the RESP encoder.
package record

import (
	"bytes"
	"encoding/json"
)

// Data is an ordered mapping from field name to field value. Insertion
// order is preserved so that repeated JSON encodes of the same record are
// byte-identical and HGET results are stable. An empty Data means "no such
// id" per the DatabaseAdapter contract.
type Data struct {
	fields []string
	values map[string]string
}

// New returns an empty record.
func New() Data {
	return Data{}
}

// NewWithCapacity returns an empty record pre-sized for n fields.
func NewWithCapacity(n int) Data {
	return Data{fields: make([]string, 0, n), values: make(map[string]string, n)}
}

// Set appends field=value, or overwrites value in place if field already
// exists (order is not disturbed by an overwrite).
func (d *Data) Set(field, value string) {
	if d.values == nil {
		d.values = make(map[string]string, 4)
	}
	if _, ok := d.values[field]; !ok {
		d.fields = append(d.fields, field)
	}
	d.values[field] = value
}

// Get returns the value for field and whether it was present.
func (d Data) Get(field string) (string, bool) {
	v, ok := d.values[field]
	return v, ok
}

// Len returns the number of fields.
func (d Data) Len() int { return len(d.fields) }

// Empty reports whether the record has no fields ("no such id").
func (d Data) Empty() bool { return len(d.fields) == 0 }

// Fields returns the field names in declaration order. The caller must not
// mutate the returned slice.
func (d Data) Fields() []string { return d.fields }

// Project returns a new record containing only the named fields, in the
// order they were requested. Fields absent from d are silently skipped.
func (d Data) Project(fields []string) Data {
	if len(fields) == 0 {
		return d
	}
	out := NewWithCapacity(len(fields))
	for _, f := range fields {
		if v, ok := d.values[f]; ok {
			out.Set(f, v)
		}
	}
	return out
}

// Clone returns a deep copy so callers on different goroutines never share
// the backing slice/map of a cached record.
func (d Data) Clone() Data {
	out := Data{
		fields: append([]string(nil), d.fields...),
		values: make(map[string]string, len(d.values)),
	}
	for k, v := range d.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON renders the record as a JSON object with fields in
// declaration order. encoding/json on a map would sort keys alphabetically
// and break the ordering invariant, so this is done by hand.
func (d Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(quoteJSON(f))
		buf.WriteByte(':')
		buf.Write(quoteJSON(d.values[f]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func quoteJSON(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}
