package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shajara/internal/domain/profile"
)

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[profile.Profile]()

	// Embedded entity.Base columns come first.
	assert.Contains(t, cols, "id")
	assert.Contains(t, cols, "version")
	assert.Contains(t, cols, "deleted_at")

	assert.Contains(t, cols, "hid")
	assert.Contains(t, cols, "name")
	assert.Contains(t, cols, "father_id")
	assert.Contains(t, cols, "mother_id")
	assert.NotContains(t, cols, "")
}

func TestStructToMap(t *testing.T) {
	p := profile.New("test", profile.GenderMale)
	m := StructToMap(p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "test", m["name"])

	// Second call hits the metadata cache and must agree.
	m2 := StructToMap(p)
	assert.Equal(t, m, m2)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("x"))
}
