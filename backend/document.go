package backend

import (
	"fmt"
	"time"

	fserrors "github.com/familysync/familysync-go/errors"
)

// Document is a loosely-typed backend document. Field access goes through the
// typed decoders below: a payload that does not match the expected schema is
// an explicit deserialization error, never a silent zero value.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    map[string]any
}

// String decodes a required string field.
func (d *Document) String(key string) (string, error) {
	v, ok := d.Fields[key]
	if !ok || v == nil {
		return "", fserrors.NewDeserialization(key, "missing field")
	}
	s, ok := v.(string)
	if !ok {
		return "", fserrors.NewDeserialization(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptionalString decodes a string field that may be absent or null.
func (d *Document) OptionalString(key string) (string, error) {
	v, ok := d.Fields[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fserrors.NewDeserialization(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// StringSlice decodes a string array field. Absent or null decodes to nil.
// JSON unmarshalling yields []any, so both representations are accepted.
func (d *Document) StringSlice(key string) ([]string, error) {
	v, ok := d.Fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, fserrors.NewDeserialization(key, fmt.Sprintf("expected string element, got %T", e))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fserrors.NewDeserialization(key, fmt.Sprintf("expected string array, got %T", v))
	}
}

// OptionalTime decodes an RFC 3339 timestamp field that may be absent.
func (d *Document) OptionalTime(key string) (*time.Time, error) {
	s, err := d.OptionalString(key)
	if err != nil || s == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fserrors.NewDeserialization(key, fmt.Sprintf("invalid timestamp %q", s))
	}
	return &t, nil
}
