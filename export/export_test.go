package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconceptlab/ocldev/resources"
)

func sampleExportDoc() resources.Resource {
	return resources.Resource{
		"type":        resources.TypeSourceVersion,
		"id":          "v1.0",
		"version":     "v1.0",
		"short_code":  "MySource",
		"description": "First release",
		"released":    true,
		"source": map[string]any{
			"id":         "MySource",
			"short_code": "MySource",
			"name":       "My Source",
			"owner":      "MyOrg",
			"owner_type": resources.OwnerTypeOrganization,
			"owner_url":  "/orgs/MyOrg/",
			"url":        "/orgs/MyOrg/sources/MySource/",
			"uuid":       "abc123",
		},
		"concepts": []any{
			map[string]any{
				"type":          resources.TypeConcept,
				"id":            "C1",
				"url":           "/orgs/MyOrg/sources/MySource/concepts/C1/",
				"concept_class": "Diagnosis",
				"datatype":      "None",
				"source":        "MySource",
				"retired":       false,
				"uuid":          "c1-uuid",
				"names": []any{
					map[string]any{"name": "Concept One", "locale": "en", "uuid": "n1"},
				},
				"extras": map[string]any{"who_code": "W1"},
			},
			map[string]any{
				"type":          resources.TypeConcept,
				"id":            "C2",
				"url":           "/orgs/MyOrg/sources/MySource/concepts/C2/",
				"concept_class": "Symptom",
				"datatype":      "None",
				"source":        "MySource",
			},
		},
		"mappings": []any{
			map[string]any{
				"type":             resources.TypeMapping,
				"id":               "M1",
				"map_type":         "Same As",
				"source":           "MySource",
				"from_concept_url": "/orgs/MyOrg/sources/MySource/concepts/C1/",
				"to_concept_url":   "/orgs/MyOrg/sources/MySource/concepts/C2/",
			},
			map[string]any{
				"type":             "MappingVersion",
				"id":               "M2",
				"map_type":         "Narrower Than",
				"source":           "MySource",
				"from_concept_url": "/orgs/MyOrg/sources/MySource/concepts/C2/",
				"to_concept_url":   "/orgs/WHO/sources/ICD-10/concepts/A15/",
				"to_source_url":    "/orgs/WHO/sources/ICD-10/",
			},
		},
	}
}

func TestExportLookups(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	assert.Equal(t, 4, e.Len())

	c, err := e.ConceptByIndex(0, Include{})
	require.NoError(t, err)
	assert.Equal(t, "C1", c.GetString("id"))
	_, err = e.ConceptByIndex(5, Include{})
	require.Error(t, err)

	c, ok := e.ConceptByID("C2", Include{})
	require.True(t, ok)
	assert.Equal(t, "C2", c.GetString("id"))
	_, ok = e.ConceptByID("missing", Include{})
	assert.False(t, ok)

	c, ok = e.ConceptByURI("/orgs/MyOrg/sources/MySource/concepts/C1/", Include{})
	require.True(t, ok)
	assert.Equal(t, "C1", c.GetString("id"))
}

func TestExportConceptWithMappings(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	// C1 is the from-concept of M1 only.
	c, ok := e.ConceptByID("C1", Include{Mappings: true})
	require.True(t, ok)
	assert.Len(t, c["mappings"], 1)

	// C2 is the from-concept of M2 and the to-concept of M1.
	c, ok = e.ConceptByID("C2", Include{Mappings: true, InverseMappings: true})
	require.True(t, ok)
	assert.Len(t, c["mappings"], 2)

	c, ok = e.ConceptByID("C2", Include{InverseMappings: true})
	require.True(t, ok)
	assert.Len(t, c["mappings"], 1)

	// The original concept must not gain a mappings field.
	original, _ := e.ConceptByID("C2", Include{})
	_, hasMappings := original["mappings"]
	assert.False(t, hasMappings)
}

func TestExportConceptQuery(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	assert.Len(t, e.Concepts(ConceptQuery{}), 2)
	assert.Len(t, e.Concepts(ConceptQuery{Class: "Diagnosis"}), 1)
	assert.Len(t, e.Concepts(ConceptQuery{Datatype: "None"}), 2)
	assert.Len(t, e.Concepts(ConceptQuery{Class: "Diagnosis", Datatype: "Numeric"}), 0)
	assert.Len(t, e.Concepts(ConceptQuery{CoreAttrs: map[string]any{"retired": false}}), 1)
	assert.Len(t, e.Concepts(ConceptQuery{CustomAttrs: map[string]any{"who_code": "W1"}}), 1)
	assert.Len(t, e.Concepts(ConceptQuery{CustomAttrs: map[string]any{"who_code": "nope"}}), 0)
}

func TestExportMappingQuery(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	assert.Len(t, e.Mappings(MappingQuery{}), 2)
	assert.Len(t, e.Mappings(MappingQuery{MapType: "Same As"}), 1)
	assert.Len(t, e.Mappings(MappingQuery{
		FromConceptURI: "/orgs/MyOrg/sources/MySource/concepts/C1/",
	}), 1)
	assert.Len(t, e.Mappings(MappingQuery{
		ToConceptURI: "/orgs/WHO/sources/ICD-10/concepts/A15/",
	}), 1)
}

func TestExportStats(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, 2, stats.Concepts.Total)
	assert.Equal(t, map[string]int{"Diagnosis": 1, "Symptom": 1}, stats.Concepts.ByClass)
	assert.Equal(t, 2, stats.Mappings.Total)
	// M1 joins two in-export concepts; M2 points outside the export.
	assert.Equal(t, 1, stats.Mappings.Internal)
	assert.Equal(t, 1, stats.Mappings.External)
	assert.Equal(t, map[string]int{"Same As": 1, "Narrower Than": 1}, stats.Mappings.ByMapType)
}

func TestExportToResourceList(t *testing.T) {
	e, err := New(sampleExportDoc())
	require.NoError(t, err)

	list, err := e.ToResourceList(DefaultListOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, list.Len())

	opts := DefaultListOptions()
	opts.CleanForBulkImport = true
	opts.IncludeRepo = true
	opts.IncludeRepoVersion = true
	list, err = e.ToResourceList(opts)
	require.NoError(t, err)
	assert.Equal(t, 6, list.Len())

	// Repo comes first with server-side fields removed.
	repo := list.Get(0)
	assert.Equal(t, "MySource", repo.GetString("id"))
	_, hasUUID := repo["uuid"]
	assert.False(t, hasUUID)
	_, hasURL := repo["url"]
	assert.False(t, hasURL)

	// Cleaned concepts keep only bulk import fields.
	concept := list.Get(1)
	assert.Equal(t, "C1", concept.GetString("id"))
	_, hasConceptURL := concept["url"]
	assert.False(t, hasConceptURL)

	// MappingVersion entries are renamed to Mapping.
	var mappingTypes []string
	for _, r := range list.Resources() {
		if r.GetString("map_type") != "" {
			mappingTypes = append(mappingTypes, r.GetString("type"))
		}
	}
	assert.Equal(t, []string{resources.TypeMapping, resources.TypeMapping}, mappingTypes)

	// Repo version carries the version metadata.
	version := list.Get(5)
	assert.Equal(t, resources.TypeSourceVersion, version.GetString("type"))
	assert.Equal(t, "v1.0", version.GetString("id"))
}

func TestExportInvalidDocuments(t *testing.T) {
	_, err := New(resources.Resource{"concepts": []any{}})
	require.Error(t, err)

	_, err = New(resources.Resource{"concepts": "nope", "mappings": []any{}})
	require.Error(t, err)

	e, err := New(resources.Resource{
		"type": "Widget", "concepts": []any{}, "mappings": []any{},
	})
	require.NoError(t, err)
	_, err = e.ToResourceList(DefaultListOptions())
	require.Error(t, err)
}
