package shared

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Patch is a partial update keyed by API field name (camelCase).
// Only fields present in the patch are written.
type Patch map[string]any

// Set records a field in the patch
func (p Patch) Set(field string, value any) Patch {
	p[field] = value
	return p
}

// IsEmpty reports whether the patch carries no field
func (p Patch) IsEmpty() bool {
	return len(p) == 0
}

// Fields returns the field names in sorted order
func (p Patch) Fields() []string {
	fields := make([]string, 0, len(p))
	for k := range p {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Nullable distinguishes an absent JSON field from an explicit null.
// Set is true when the field appeared in the document; Null is true when
// its value was null.
type Nullable[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

// MarshalJSON implements json.Marshaler
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Null {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Ptr returns the value as a pointer, nil when null or absent
func (n Nullable[T]) Ptr() *T {
	if !n.Set || n.Null {
		return nil
	}
	v := n.Value
	return &v
}
