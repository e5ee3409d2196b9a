package model

import (
	"database/sql/driver"
	"fmt"
)

// Tristate is a boolean whose "not yet evaluated" state is first-class.
// It maps to a nullable boolean column: NULL means Unknown.
type Tristate int8

const (
	TriUnknown Tristate = iota
	TriTrue
	TriFalse
)

// TristateOf converts a plain bool to a settled Tristate.
func TristateOf(b bool) Tristate {
	if b {
		return TriTrue
	}
	return TriFalse
}

// Bool reports the settled value; known is false for TriUnknown.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case TriTrue:
		return true, true
	case TriFalse:
		return false, true
	default:
		return false, false
	}
}

func (t Tristate) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Value implements driver.Valuer.
func (t Tristate) Value() (driver.Value, error) {
	switch t {
	case TriTrue:
		return true, nil
	case TriFalse:
		return false, nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner.
func (t *Tristate) Scan(src any) error {
	if src == nil {
		*t = TriUnknown
		return nil
	}
	switch v := src.(type) {
	case bool:
		*t = TristateOf(v)
	case int64:
		*t = TristateOf(v != 0)
	default:
		return fmt.Errorf("cannot scan %T into Tristate", src)
	}
	return nil
}

// MarshalJSON renders Unknown as null so API consumers can distinguish
// "not yet determined" from a settled false.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *Tristate) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "null":
		*t = TriUnknown
	case "true":
		*t = TriTrue
	case "false":
		*t = TriFalse
	default:
		return fmt.Errorf("invalid Tristate value %q", b)
	}
	return nil
}
