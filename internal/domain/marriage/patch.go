package marriage

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"shajara/internal/core/apperror"
)

// Patch is a sparse field map for marriage updates with the same presence
// semantics as profile.Patch: absent means unchanged, present-null clears.
type Patch map[string]json.RawMessage

var patchableFields = map[string]bool{
	"status":     true,
	"start_year": true,
	"end_year":   true,
}

var nullableFields = map[string]bool{
	"start_year": true,
	"end_year":   true,
}

// Validate checks the patch shape and field values.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return apperror.NewValidation("empty patch")
	}
	for field, raw := range p {
		if !patchableFields[field] {
			return apperror.NewValidation("field is not patchable").WithDetail("field", field)
		}
		if string(raw) == "null" {
			if !nullableFields[field] {
				return apperror.NewValidation("field cannot be cleared").WithDetail("field", field)
			}
			continue
		}
		switch field {
		case "status":
			var v Status
			if err := json.Unmarshal(raw, &v); err != nil {
				return apperror.NewValidation("malformed field value").WithDetail("field", field)
			}
			if !ValidStatus(v) {
				return apperror.NewValidation("invalid marriage status").WithDetail("value", string(v))
			}
		case "start_year", "end_year":
			var v int
			if err := json.Unmarshal(raw, &v); err != nil {
				return apperror.NewValidation("malformed field value").WithDetail("field", field)
			}
			if err := validation.Validate(v, validation.Min(1), validation.Max(3000)); err != nil {
				return apperror.NewValidation("year out of range").WithDetail("field", field).WithDetail("value", v)
			}
		}
	}
	return nil
}

// Fields returns the present field names (unordered).
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

// ColumnSet converts the patch into a SQL column set.
func (p Patch) ColumnSet() (map[string]any, error) {
	set := make(map[string]any, len(p))
	for field, raw := range p {
		if string(raw) == "null" {
			set[field] = nil
			continue
		}
		switch field {
		case "status":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", field, err)
			}
			set[field] = v
		case "start_year", "end_year":
			var v int
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", field, err)
			}
			set[field] = v
		}
	}
	return set, nil
}

// Snapshot serializes a marriage row for audit snapshots.
func Snapshot(m *Marriage) json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// FromSnapshot decodes an audit snapshot back into a marriage row.
func FromSnapshot(raw json.RawMessage) (*Marriage, error) {
	var m Marriage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode marriage snapshot: %w", err)
	}
	return &m, nil
}

// RestoreSet builds the column set that writes a snapshot back over the
// current row.
func RestoreSet(m *Marriage) map[string]any {
	return map[string]any{
		"husband_id": m.HusbandID,
		"wife_id":    m.WifeID,
		"status":     m.Status,
		"start_year": m.StartYear,
		"end_year":   m.EndYear,
		"deleted_at": m.DeletedAt,
	}
}
