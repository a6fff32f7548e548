// Package jsonutil smooths over inconsistencies in the backend's JSON.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// DecodeCollection decodes a resource collection that may arrive either as a
// bare array or wrapped in a {"data": [...]} envelope. Sources and
// destinations use the enveloped form, connections and histories the bare
// one; normalizing here keeps every caller on a plain slice.
func DecodeCollection[T any](body []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var envelope struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return envelope.Data, nil
}

// FlexibleString converts a raw JSON value to a string, handling backends
// that return numbers or booleans where strings are expected. Returns empty
// string for null/empty.
func FlexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleInt converts a raw JSON value to an int64, accepting numbers and
// numeric strings. The second return reports whether a value was present and
// parseable.
func FlexibleInt(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return int64(numVal), true
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		var parsed int64
		if _, err := fmt.Sscanf(strVal, "%d", &parsed); err == nil {
			return parsed, true
		}
	}

	return 0, false
}
