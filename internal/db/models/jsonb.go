package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string stored as a JSONB array.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil || b == nil {
		*s = StringList{}
		return err
	}
	return json.Unmarshal(b, (*[]string)(s))
}

// JSONMap is a free-form object stored as JSONB.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil || b == nil {
		*m = JSONMap{}
		return err
	}
	return json.Unmarshal(b, (*map[string]any)(m))
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("models: cannot scan %T into JSONB", src)
	}
}
