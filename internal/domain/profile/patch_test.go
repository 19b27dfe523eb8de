package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"shajara/internal/core/apperror"
)

func mustPatch(t *testing.T, raw string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestPatch_PresenceVsNull(t *testing.T) {
	p := mustPatch(t, `{"bio": null, "name": "Salem"}`)

	if !p.Has("bio") || !p.IsNull("bio") {
		t.Error("bio must be present and null")
	}
	if !p.Has("name") || p.IsNull("name") {
		t.Error("name must be present and non-null")
	}
	if p.Has("birth_year") {
		t.Error("absent key must not count as present")
	}
}

func TestPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid update", `{"name": "Noura", "birth_year": 1950}`, false},
		{"clear nullable", `{"death_year": null}`, false},
		{"empty patch", `{}`, true},
		{"unknown field", `{"hid": "1.2"}`, true},
		{"structural field", `{"sibling_order": 3}`, true},
		{"null on required", `{"name": null}`, true},
		{"bad gender", `{"gender": "other"}`, true},
		{"bad visibility", `{"visibility": "secret"}`, true},
		{"year out of range", `{"birth_year": 99999}`, true},
		{"same parent twice", `{"father_id": "018f0000-0000-7000-8000-000000000001", "mother_id": "018f0000-0000-7000-8000-000000000001"}`, true},
		{"distinct parents", `{"father_id": "018f0000-0000-7000-8000-000000000001", "mother_id": "018f0000-0000-7000-8000-000000000002"}`, false},
		{"clear one parent set other", `{"father_id": null, "mother_id": "018f0000-0000-7000-8000-000000000002"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mustPatch(t, tt.raw).Validate()
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, apperror.Is(err, apperror.CodeValidation), "want VALIDATION_FAILED, got %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPatch_ColumnSet(t *testing.T) {
	p := mustPatch(t, `{"name": "Noura", "bio": null, "birth_year": 1950}`)
	require.NoError(t, p.Validate())

	set, err := p.ColumnSet()
	require.NoError(t, err)
	require.Equal(t, "Noura", set["name"])
	require.Equal(t, 1950, set["birth_year"])

	// Explicit null must become a NULL column, and only for present keys.
	v, ok := set["bio"]
	require.True(t, ok)
	require.Nil(t, v)
	_, ok = set["death_year"]
	require.False(t, ok)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	orig := New("Fahad", GenderMale)
	h := "1.3"
	orig.HID = &h
	orig.Generation = 2
	orig.SiblingOrder = 2
	year := 1940
	orig.BirthYear = &year

	restored, err := FromSnapshot(Snapshot(orig))
	require.NoError(t, err)
	require.Equal(t, orig.ID, restored.ID)
	require.Equal(t, orig.Name, restored.Name)
	require.Equal(t, orig.HID, restored.HID)
	require.Equal(t, orig.BirthYear, restored.BirthYear)
	require.Equal(t, orig.SiblingOrder, restored.SiblingOrder)
}

func TestProfile_Validate(t *testing.T) {
	p := New("Salem", GenderMale)
	require.NoError(t, p.Validate(t.Context()))

	p.Name = ""
	require.Error(t, p.Validate(t.Context()))

	p = New("Salem", Gender("unknown"))
	require.Error(t, p.Validate(t.Context()))

	p = New("Salem", GenderMale)
	bad := "1..2"
	p.HID = &bad
	require.Error(t, p.Validate(t.Context()))

	p = New("Salem", GenderMale)
	b, d := 1990, 1980
	p.BirthYear, p.DeathYear = &b, &d
	require.Error(t, p.Validate(t.Context()))
}
