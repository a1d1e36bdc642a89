package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/predicate/internal/ir"
)

// marshalValue converts an IRValue to JSON TEXT for storage. Object keys
// are sorted, so equal values always store as equal text. Canonical JSON
// is not used here because it rejects null, and recorded values may
// contain null.
func marshalValue(v ir.IRValue) (string, error) {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalNullable stores a nil value as SQL NULL.
func marshalNullable(v ir.IRValue) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalValue(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// marshalArray stores a nil array as SQL NULL and an empty one as "[]".
func marshalArray(arr ir.IRArray) (sql.NullString, error) {
	if arr == nil {
		return sql.NullString{}, nil
	}
	return marshalNullable(arr)
}

// unmarshalValue parses stored JSON TEXT. Large integers keep full
// precision (see ir.UnmarshalIRValue).
func unmarshalValue(data sql.NullString) (ir.IRValue, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func unmarshalArray(data sql.NullString) (ir.IRArray, error) {
	v, err := unmarshalValue(data)
	if err != nil || v == nil {
		return nil, err
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("unmarshal array: got %s", ir.TypeName(v))
	}
	return arr, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
