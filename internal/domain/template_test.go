package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidthSpan(t *testing.T) {
	tests := map[Width]int{
		"":        12,
		"full":    12,
		"Half":    6,
		"third":   4,
		"quarter": 3,
		"5":       5,
		"0":       1,
		"40":      12,
		"wide":    12,
	}
	for width, want := range tests {
		assert.Equal(t, want, width.Span(), "width %q", width)
	}
}

func TestWidthUnmarshalJSON(t *testing.T) {
	var f struct {
		A Width `json:"a"`
		B Width `json:"b"`
		C Width `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"third","b":8,"c":null}`), &f))

	assert.Equal(t, 4, f.A.Span())
	assert.Equal(t, 8, f.B.Span())
	assert.Equal(t, 12, f.C.Span())
}

func TestFieldInSection(t *testing.T) {
	assert.True(t, Field{}.InSection(SectionMain))
	assert.True(t, Field{Section: SectionMain}.InSection(SectionMain))
	assert.False(t, Field{Section: SectionHeader}.InSection(SectionMain))
	assert.False(t, Field{Section: SectionSidebar}.InSection(SectionMain))
	assert.True(t, Field{Section: SectionSidebar}.InSection(SectionSidebar))
	assert.False(t, Field{}.InSection(SectionHeader))
}

func TestFieldMustAnswer(t *testing.T) {
	assert.True(t, Field{IsRequired: true, IsVisible: true}.MustAnswer())
	assert.False(t, Field{IsRequired: true}.MustAnswer())
	assert.False(t, Field{IsVisible: true}.MustAnswer())
}

func TestFieldTypeCapabilities(t *testing.T) {
	assert.True(t, FieldColor.Valid())
	assert.False(t, FieldType("currency").Valid())
	assert.True(t, FieldFile.IsMedia())
	assert.False(t, FieldURL.IsMedia())
	assert.True(t, FieldCheckbox.HasOptions())
	assert.False(t, FieldText.HasOptions())
}
