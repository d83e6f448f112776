package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a flat key/value document stored in a jsonb column. It is used
// for trigger payloads, step configs and step outputs.
type JSONMap map[string]interface{}

// Value implements driver.Valuer so GORM can persist the map as jsonb.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
}
