package friction

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ItemUpdate carries only the fields to change. Nil fields are left unchanged
// server-side. ClearEncounterLimit sends an explicit null for encounter_limit.
type ItemUpdate struct {
	Title               *string   `validate:"omitnil,notblank"`
	Description         *string
	AnnoyanceLevel      *int      `validate:"omitnil,min=1,max=5"`
	Category            *Category `validate:"omitnil,oneof=home work digital health other"`
	Status              *Status   `validate:"omitnil,oneof=not_fixed in_progress fixed"`
	EncounterLimit      *int      `validate:"omitnil,min=1"`
	ClearEncounterLimit bool
}

// IsEmpty reports whether the update would change nothing.
func (u ItemUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.AnnoyanceLevel == nil &&
		u.Category == nil && u.Status == nil && u.EncounterLimit == nil && !u.ClearEncounterLimit
}

// MarshalJSON writes only the supplied fields.
func (u ItemUpdate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.Description != nil {
		m["description"] = *u.Description
	}
	if u.AnnoyanceLevel != nil {
		m["annoyance_level"] = *u.AnnoyanceLevel
	}
	if u.Category != nil {
		m["category"] = *u.Category
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	switch {
	case u.ClearEncounterLimit:
		m["encounter_limit"] = nil
	case u.EncounterLimit != nil:
		m["encounter_limit"] = *u.EncounterLimit
	}
	return json.Marshal(m)
}

// UnmarshalJSON distinguishes an absent encounter_limit from an explicit null.
func (u *ItemUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = ItemUpdate{}
	fields := []struct {
		key string
		dst any
	}{
		{"title", &u.Title},
		{"description", &u.Description},
		{"annoyance_level", &u.AnnoyanceLevel},
		{"category", &u.Category},
		{"status", &u.Status},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("field %s: %w", f.key, err)
		}
	}
	if v, ok := raw["encounter_limit"]; ok {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			u.ClearEncounterLimit = true
		} else if err := json.Unmarshal(v, &u.EncounterLimit); err != nil {
			return fmt.Errorf("field encounter_limit: %w", err)
		}
	}
	return nil
}
