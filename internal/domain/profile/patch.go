package profile

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"shajara/internal/core/apperror"
	"shajara/internal/core/id"
)

// Patch is a sparse field map for profile updates. Key absence means "leave
// unchanged"; a key present with JSON null means "clear the field". The two
// must never be conflated, so every check below is an explicit key-presence
// check, never null-coalescing.
type Patch map[string]json.RawMessage

// Patchable columns. Structural fields (hid, generation, sibling_order) are
// managed by their own operations and rejected here.
var patchableFields = map[string]bool{
	"name":       true,
	"gender":     true,
	"bio":        true,
	"birth_year": true,
	"death_year": true,
	"visibility": true,
	"father_id":  true,
	"mother_id":  true,
}

// Nullable patchable columns. Present-with-null on any other field is a
// validation error, not a silent no-op.
var nullableFields = map[string]bool{
	"bio":        true,
	"birth_year": true,
	"death_year": true,
	"father_id":  true,
	"mother_id":  true,
}

// Has reports whether the field key is present in the patch.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// IsNull reports whether the field is present and explicitly null.
func (p Patch) IsNull(field string) bool {
	raw, ok := p[field]
	return ok && isJSONNull(raw)
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Fields returns the present field names (unordered).
func (p Patch) Fields() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

// Validate checks the patch shape and field values. Referential checks
// (parent exists, is alive, has the expected gender) are the gateway's job;
// this validates only what the payload itself can prove.
func (p Patch) Validate() error {
	if len(p) == 0 {
		return apperror.NewValidation("empty patch")
	}
	for field, raw := range p {
		if !patchableFields[field] {
			return apperror.NewValidation("field is not patchable").WithDetail("field", field)
		}
		if isJSONNull(raw) {
			if !nullableFields[field] {
				return apperror.NewValidation("field cannot be cleared").WithDetail("field", field)
			}
			continue
		}
		if err := p.validateValue(field, raw); err != nil {
			return err
		}
	}
	// Clearing one parent while setting the other is fine; setting both to
	// the same profile is not.
	if p.Has("father_id") && p.Has("mother_id") && !p.IsNull("father_id") && !p.IsNull("mother_id") {
		var f, m id.ID
		if json.Unmarshal(p["father_id"], &f) == nil && json.Unmarshal(p["mother_id"], &m) == nil && f == m {
			return apperror.NewValidation("father and mother cannot be the same profile")
		}
	}
	return nil
}

func (p Patch) validateValue(field string, raw json.RawMessage) error {
	switch field {
	case "name":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if err := validation.Validate(v, validation.Required, validation.Length(1, 255)); err != nil {
			return apperror.NewValidation("invalid name").WithDetail("field", field).WithDetail("error", err.Error())
		}
	case "gender":
		var v Gender
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if !ValidGender(v) {
			return apperror.NewValidation("invalid gender").WithDetail("field", field).WithDetail("value", string(v))
		}
	case "visibility":
		var v Visibility
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if !ValidVisibility(v) {
			return apperror.NewValidation("invalid visibility").WithDetail("field", field).WithDetail("value", string(v))
		}
	case "bio":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if err := validation.Validate(v, validation.Length(0, 4000)); err != nil {
			return apperror.NewValidation("bio too long").WithDetail("field", field)
		}
	case "birth_year", "death_year":
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if err := validation.Validate(v, validation.Min(1), validation.Max(3000)); err != nil {
			return apperror.NewValidation("year out of range").WithDetail("field", field).WithDetail("value", v)
		}
	case "father_id", "mother_id":
		var v id.ID
		if err := json.Unmarshal(raw, &v); err != nil {
			return badField(field, err)
		}
		if id.IsNil(v) {
			return apperror.NewValidation("parent id must not be nil; use null to clear").WithDetail("field", field)
		}
	}
	return nil
}

func badField(field string, err error) error {
	return apperror.NewValidation("malformed field value").
		WithDetail("field", field).
		WithDetail("error", err.Error())
}

// ColumnSet converts the patch into a SQL column set. Null values map to
// NULL columns. Validate must have been called first.
func (p Patch) ColumnSet() (map[string]any, error) {
	set := make(map[string]any, len(p))
	for field, raw := range p {
		if isJSONNull(raw) {
			set[field] = nil
			continue
		}
		switch field {
		case "name", "bio":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, badField(field, err)
			}
			set[field] = v
		case "gender", "visibility":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, badField(field, err)
			}
			set[field] = v
		case "birth_year", "death_year":
			var v int
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, badField(field, err)
			}
			set[field] = v
		case "father_id", "mother_id":
			var v id.ID
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, badField(field, err)
			}
			set[field] = v
		default:
			return nil, fmt.Errorf("unexpected patch field %q", field)
		}
	}
	return set, nil
}

// ParentRef extracts a parent reference from the patch if present and
// non-null. The second return reports presence of a concrete value.
func (p Patch) ParentRef(field string) (id.ID, bool) {
	raw, ok := p[field]
	if !ok || isJSONNull(raw) {
		return id.Nil(), false
	}
	var v id.ID
	if err := json.Unmarshal(raw, &v); err != nil {
		return id.Nil(), false
	}
	return v, true
}

// Snapshot serializes a profile row for audit old/new snapshots. The full
// row is captured so undo can restore fields the patch never touched.
func Snapshot(p *Profile) json.RawMessage {
	b, err := json.Marshal(p)
	if err != nil {
		// Profile contains only marshalable fields; this cannot fire.
		return json.RawMessage(`{}`)
	}
	return b
}

// FromSnapshot decodes an audit snapshot back into a profile row.
func FromSnapshot(raw json.RawMessage) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile snapshot: %w", err)
	}
	return &p, nil
}

// RestoreSet builds the column set that writes a snapshot back over the
// current row. Identity and bookkeeping columns (id, version, created_at)
// stay untouched; version is incremented by the repository.
func RestoreSet(p *Profile) map[string]any {
	return map[string]any{
		"hid":           p.HID,
		"name":          p.Name,
		"gender":        p.Gender,
		"generation":    p.Generation,
		"sibling_order": p.SiblingOrder,
		"father_id":     p.FatherID,
		"mother_id":     p.MotherID,
		"bio":           p.Bio,
		"birth_year":    p.BirthYear,
		"death_year":    p.DeathYear,
		"visibility":    p.Visibility,
		"deleted_at":    p.DeletedAt,
	}
}
