package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagged struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Skipped string `db:"-"`
	NoTag   string
}

func TestStructTagValues(t *testing.T) {
	columns := StructTagValues(tagged{})
	assert.Equal(t, []string{"id", "name"}, columns)

	// Pointers resolve to the same columns.
	assert.Equal(t, columns, StructTagValues(&tagged{}))
}

func TestStructToMap(t *testing.T) {
	m := StructToMap(&tagged{ID: "abc", Name: "x", Skipped: "never", NoTag: "never"})

	require.Len(t, m, 2)
	assert.Equal(t, "abc", m["id"])
	assert.Equal(t, "x", m["name"])
}

func TestErrorWrapOrNil(t *testing.T) {
	assert.NoError(t, ErrorWrapOrNil(nil, "context"))

	base := errors.New("boom")
	wrapped := ErrorWrapOrNil(base, "doing thing")
	assert.ErrorIs(t, wrapped, base)
	assert.EqualError(t, wrapped, "doing thing: boom")
}

func TestNanoIDFormat(t *testing.T) {
	id := NanoID()
	assert.Regexp(t, `^[0-9A-Za-z]{32}$`, id)
	assert.NotEqual(t, id, NanoID())
}

func TestRequestCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		code := RequestCode()
		assert.Regexp(t, `^REQ-[0-9A-Z]{5}$`, code)
		seen[code] = true
	}

	// Collisions over 100 draws from a 36^5 space would be suspicious.
	assert.Greater(t, len(seen), 95)
}
