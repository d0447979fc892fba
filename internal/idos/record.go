package idos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Field names read from a task record.
const (
	FieldID   = "id"
	FieldIDOS = "idOS"
)

// ErrNotRecord is returned by ParseRecord when a child value is not a JSON object.
var ErrNotRecord = errors.New("value is not a task record")

// Record is one task as seen by the migration.
//
// Only id and idOS are interpreted. Every other field is kept verbatim in
// Extra and is never written back by the migration.
type Record struct {
	Key string

	// ID is the free-form source hint; empty when absent.
	ID string

	// IDOS is the stored identifier; empty when absent.
	IDOS string

	// IDOSNotString is set when the stored idOS was a number, boolean or
	// structure that had to be coerced to text. Such values are always
	// rewritten as strings.
	IDOSNotString bool

	Extra map[string]json.RawMessage
}

// HasIDOS reports whether the record carries an identifier.
func (r Record) HasIDOS() bool {
	return r.IDOS != ""
}

// ParseRecord decodes a stored task value. Missing, null, empty-string,
// false and zero fields are treated as absent.
func ParseRecord(key string, raw json.RawMessage) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, fmt.Errorf("task %s: %w", key, ErrNotRecord)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Record{}, fmt.Errorf("task %s: decoding: %w", key, err)
	}

	rec := Record{Key: key, Extra: make(map[string]json.RawMessage, len(fields))}
	for name, value := range fields {
		switch name {
		case FieldID:
			rec.ID, _ = scalarText(value)
		case FieldIDOS:
			var isString bool
			rec.IDOS, isString = scalarText(value)
			rec.IDOSNotString = rec.IDOS != "" && !isString
		default:
			rec.Extra[name] = value
		}
	}
	return rec, nil
}

// scalarText returns the textual form of a JSON value and whether it was a
// JSON string. Falsy values yield "".
func scalarText(raw json.RawMessage) (string, bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return "", false
	}

	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n', 'f':
		return "", false
	case 't':
		return "true", false
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return "", false
		}
		return buf.String(), false
	default:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), false
	}
}
