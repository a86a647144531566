package oclcsv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "concept_class", "concept_class"},
		{"padded", "  id  ", "id"},
		{"bom prefix", "\uFEFFresource_type", "resource_type"},
		{"excel formula", `="0123"`, "0123"},
		{"bare equals", "=A1", "A1"},
		{"surrounding quotes", `"name"`, "name"},
		{"single quotes", "'name'", "name"},
		{"quotes then padding", ` "name" `, "name"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCell(tt.input))
		})
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := MakeHeaderIndex([]string{"\uFEFFresource_type", " id ", "attr:Name"})
	assert.Equal(t, HeaderIndex{"resource_type": 0, "id": 1, "attr:Name": 2}, idx)
}

func TestRowToMap(t *testing.T) {
	header := []string{"resource_type", "id", "name", ""}
	row := []string{"Concept", "C1"}

	m := RowToMap(header, row)
	assert.Equal(t, map[string]string{
		"resource_type": "Concept",
		"id":            "C1",
		"name":          "",
	}, m)

	// Extra cells beyond the header are dropped.
	m = RowToMap([]string{"id"}, []string{"C1", "stray"})
	assert.Equal(t, map[string]string{"id": "C1"}, m)
}
