package resources

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleList() *ResourceList {
	return NewResourceList(
		Resource{"type": TypeOrganization, "id": "MyOrg", "name": "My Org"},
		Resource{"type": TypeSource, "id": "MySource", "owner": "MyOrg", "name": "My Source"},
		Resource{"type": TypeConcept, "id": "C1", "owner": "MyOrg", "source": "MySource",
			"concept_class": "Diagnosis",
			"extras":        map[string]any{"who_code": "W1"}},
		Resource{"type": TypeConcept, "id": "C2", "owner": "MyOrg", "source": "MySource",
			"concept_class": "Symptom"},
	)
}

func TestResourceListAppendPop(t *testing.T) {
	l := sampleList()
	require.Equal(t, 4, l.Len())

	r, err := l.Pop()
	require.NoError(t, err)
	assert.Equal(t, "C2", r.ID())
	assert.Equal(t, 3, l.Len())

	other := NewResourceList(Resource{"type": TypeConcept, "id": "C3"})
	l.AppendList(other)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, "C3", l.Get(3).ID())

	empty := NewResourceList()
	_, err = empty.Pop()
	require.Error(t, err)
}

func TestResourceListChunk(t *testing.T) {
	l := sampleList()

	chunks, err := l.Chunk(3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 3, chunks[0].Len())
	assert.Equal(t, 1, chunks[1].Len())

	_, err = l.Chunk(0)
	require.Error(t, err)
}

func TestResourceListChunkAppendDoesNotCorruptParent(t *testing.T) {
	l := sampleList()

	chunks, err := l.Chunk(2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	chunks[0].Append(Resource{"type": TypeConcept, "id": "C9"})

	assert.Equal(t, 3, chunks[0].Len())
	assert.Equal(t, "C1", l.Get(2).ID())
	assert.Equal(t, "C1", chunks[1].Get(0).ID())
}

func TestResourceListSummarize(t *testing.T) {
	summary := sampleList().Summarize("type")
	assert.Equal(t, map[string]int{
		TypeOrganization: 1,
		TypeSource:       1,
		TypeConcept:      2,
	}, summary)
}

func TestResourceListGetResources(t *testing.T) {
	l := sampleList()

	diagnoses := l.GetResources(map[string]any{"concept_class": "Diagnosis"}, nil)
	require.Equal(t, 1, diagnoses.Len())
	assert.Equal(t, "C1", diagnoses.Get(0).ID())

	byAttr := l.GetResources(nil, map[string]any{"who_code": "W1"})
	require.Equal(t, 1, byAttr.Len())
	assert.Equal(t, "C1", byAttr.Get(0).ID())

	none := l.GetResources(map[string]any{"concept_class": "Procedure"}, nil)
	assert.Equal(t, 0, none.Len())

	all := l.GetResources(nil, nil)
	assert.Equal(t, l.Len(), all.Len())
}

func TestResourceListGetResourceByURL(t *testing.T) {
	l := sampleList()

	r, ok := l.GetResourceByURL("/orgs/MyOrg/sources/MySource/concepts/C1/")
	require.True(t, ok)
	assert.Equal(t, "C1", r.ID())

	_, ok = l.GetResourceByURL("/orgs/MyOrg/sources/MySource/concepts/C9/")
	assert.False(t, ok)

	// Mutation invalidates the URL index.
	l.Append(Resource{"type": TypeConcept, "id": "C9", "owner": "MyOrg", "source": "MySource"})
	r, ok = l.GetResourceByURL("/orgs/MyOrg/sources/MySource/concepts/C9/")
	require.True(t, ok)
	assert.Equal(t, "C9", r.ID())
}

func TestResourceListColumnHeaders(t *testing.T) {
	headers := sampleList().ColumnHeaders()

	// Leading identity columns come first, in fixed order.
	require.GreaterOrEqual(t, len(headers), 4)
	assert.Equal(t, []string{"type", "owner", "source", "id"}, headers[:4])
	assert.Contains(t, headers, "concept_class")
	assert.Contains(t, headers, "attr:who_code")
	// Custom attribute columns come last.
	assert.Equal(t, "attr:who_code", headers[len(headers)-1])
	assert.NotContains(t, headers, "extras")
}

func TestResourceListWriteJSONLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleList().WriteJSONLines(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		var r Resource
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		assert.NotEmpty(t, r.Type())
	}
}

func TestResourceListString(t *testing.T) {
	s := sampleList().String()
	assert.Contains(t, s, "4 resources")
	assert.Contains(t, s, "Concept=2")
}
