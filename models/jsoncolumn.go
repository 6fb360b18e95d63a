package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// IncrementTierList and ImportRowErrorList are stored as jsonb columns.
// sqlx/lib-pq have no native support for []struct, so these implement
// driver.Valuer/sql.Scanner the way a thin storage layer would hand-roll a
// JSON column rather than pull in a JSON-column library.

// IncrementTierList is a jsonb-backed ordered tier schedule.
type IncrementTierList []IncrementTier

func (l IncrementTierList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *IncrementTierList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		s, ok := src.(string)
		if !ok {
			return fmt.Errorf("models: cannot scan %T into IncrementTierList", src)
		}
		b = []byte(s)
	}
	var out []IncrementTier
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("models: unmarshal IncrementTierList: %w", err)
	}
	*l = out
	return nil
}

// ImportRowErrorList is a jsonb-backed list of per-row CSV import errors.
type ImportRowErrorList []ImportRowError

func (l ImportRowErrorList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ImportRowErrorList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		s, ok := src.(string)
		if !ok {
			return fmt.Errorf("models: cannot scan %T into ImportRowErrorList", src)
		}
		b = []byte(s)
	}
	var out []ImportRowError
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("models: unmarshal ImportRowErrorList: %w", err)
	}
	*l = out
	return nil
}
