package resources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	// Header carries a BOM and an Excel formula prefix; a short row pads
	// with empty cells.
	csvData := "\uFEFFresource_type,id,=\"name\"\n" +
		"Concept,C1,Fever\n" +
		"Concept,C2\n"

	list, err := LoadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, []string{"resource_type", "id", "name"}, list.Header)

	first := list.Get(0)
	assert.Equal(t, TypeConcept, first.Type())
	assert.Equal(t, "C1", first.ID())
	assert.Equal(t, "Fever", first.GetString("name"))

	second := list.Get(1)
	assert.Equal(t, "C2", second.ID())
	assert.Equal(t, "", second.GetString("name"))

	assert.Equal(t, map[string]int{TypeConcept: 2}, list.SummarizeByType())
}

func TestLoadCSVEmpty(t *testing.T) {
	list, err := LoadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())
}

func TestLoadJSONLines(t *testing.T) {
	data := `{"type": "Concept", "id": "C1", "names": [{"name": "Fever"}]}
{"type": "Mapping", "id": "M1", "map_type": "Same As"}

{"type": "Concept", "id": "C2"}
`
	list, err := LoadJSONLines(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 3, list.Len())

	assert.Equal(t, "C1", list.Get(0).ID())
	require.Len(t, list.Get(0).Names(), 1)
	assert.Equal(t, map[string]int{TypeConcept: 2, TypeMapping: 1}, list.SummarizeByType())
}

func TestLoadJSONLinesMalformed(t *testing.T) {
	_, err := LoadJSONLines(strings.NewReader(`{"type": "Concept"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
