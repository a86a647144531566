package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconceptlab/ocldev/resources"
)

func validConcept() resources.Resource {
	return resources.Resource{
		"type":          resources.TypeConcept,
		"id":            "A15",
		"owner":         "WHO",
		"source":        "ICD-10",
		"concept_class": "Diagnosis",
		"datatype":      "None",
	}
}

func TestJSONValidator(t *testing.T) {
	v, err := NewJSON()
	require.NoError(t, err)

	tests := []struct {
		name      string
		resource  resources.Resource
		wantValid bool
		wantField string
	}{
		{
			name:      "valid concept",
			resource:  validConcept(),
			wantValid: true,
		},
		{
			name: "concept missing datatype",
			resource: resources.Resource{
				"type":          resources.TypeConcept,
				"id":            "A15",
				"owner":         "WHO",
				"source":        "ICD-10",
				"concept_class": "Diagnosis",
			},
			wantValid: false,
		},
		{
			name: "concept with non-string id",
			resource: resources.Resource{
				"type":          resources.TypeConcept,
				"id":            15,
				"owner":         "WHO",
				"source":        "ICD-10",
				"concept_class": "Diagnosis",
				"datatype":      "None",
			},
			wantValid: false,
			wantField: "id",
		},
		{
			name: "valid mapping",
			resource: resources.Resource{
				"type":             resources.TypeMapping,
				"owner":            "WHO",
				"source":           "ICD-10",
				"map_type":         "Same As",
				"from_concept_url": "/orgs/WHO/sources/ICD-10/concepts/A15/",
			},
			wantValid: true,
		},
		{
			name: "mapping missing from_concept_url",
			resource: resources.Resource{
				"type":     resources.TypeMapping,
				"owner":    "WHO",
				"source":   "ICD-10",
				"map_type": "Same As",
			},
			wantValid: false,
		},
		{
			name: "valid organization",
			resource: resources.Resource{
				"type": resources.TypeOrganization,
				"id":   "WHO",
				"name": "World Health Organization",
			},
			wantValid: true,
		},
		{
			name: "source missing name",
			resource: resources.Resource{
				"type":  resources.TypeSource,
				"owner": "WHO",
				"id":    "ICD-10",
			},
			wantValid: false,
		},
		{
			name: "source version requires description",
			resource: resources.Resource{
				"type":   resources.TypeSourceVersion,
				"owner":  "WHO",
				"source": "ICD-10",
				"id":     "v2023",
			},
			wantValid: false,
		},
		{
			name: "source version released accepts bool",
			resource: resources.Resource{
				"type":        resources.TypeSourceVersion,
				"owner":       "WHO",
				"source":      "ICD-10",
				"id":          "v2023",
				"description": "2023 release",
				"released":    true,
			},
			wantValid: true,
		},
		{
			name: "reference always passes",
			resource: resources.Resource{
				"type": resources.TypeReference,
				"data": map[string]any{"expressions": []any{"/orgs/WHO/sources/ICD-10/concepts/A15/"}},
			},
			wantValid: true,
		},
		{
			name: "custom attributes allowed",
			resource: func() resources.Resource {
				r := validConcept()
				r["attr:my-attribute"] = "anything"
				return r
			}(),
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := v.ValidateResource(tc.resource)
			if tc.wantValid {
				assert.Empty(t, findings)
				return
			}
			require.NotEmpty(t, findings)
			if tc.wantField != "" {
				assert.Equal(t, tc.wantField, findings[0].Field)
			}
		})
	}
}

func TestJSONValidatorUnknownType(t *testing.T) {
	strict, err := NewJSON()
	require.NoError(t, err)

	findings := strict.ValidateResource(resources.Resource{"type": "Widget"})
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "Widget")

	findings = strict.ValidateResource(resources.Resource{"id": "no-type"})
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, `"type"`)

	lenient, err := NewJSON(SkipUnknownTypes(true))
	require.NoError(t, err)
	assert.Empty(t, lenient.ValidateResource(resources.Resource{"type": "Widget"}))
	assert.Empty(t, lenient.ValidateResource(resources.Resource{"id": "no-type"}))
}

func TestCSVValidator(t *testing.T) {
	v, err := NewCSV()
	require.NoError(t, err)

	tests := []struct {
		name      string
		resource  resources.Resource
		wantValid bool
	}{
		{
			name: "valid concept row",
			resource: resources.Resource{
				"resource_type": resources.TypeConcept,
				"id":            "A15",
				"owner_id":      "WHO",
				"source":        "ICD-10",
				"concept_class": "Diagnosis",
				"name":          "Respiratory tuberculosis",
			},
			wantValid: true,
		},
		{
			name: "concept row missing name",
			resource: resources.Resource{
				"resource_type": resources.TypeConcept,
				"id":            "A15",
				"owner_id":      "WHO",
				"source":        "ICD-10",
				"concept_class": "Diagnosis",
			},
			wantValid: false,
		},
		{
			name: "mapping row uses owner_id",
			resource: resources.Resource{
				"resource_type":    resources.TypeMapping,
				"owner_id":         "WHO",
				"source":           "ICD-10",
				"map_type":         "Same As",
				"from_concept_url": "/orgs/WHO/sources/ICD-10/concepts/A15/",
			},
			wantValid: true,
		},
		{
			name:      "unknown row type skipped by default",
			resource:  resources.Resource{"resource_type": "Widget"},
			wantValid: true,
		},
		{
			name:      "row without resource_type skipped by default",
			resource:  resources.Resource{"id": "stray"},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := v.ValidateResource(tc.resource)
			if tc.wantValid {
				assert.Empty(t, findings)
			} else {
				assert.NotEmpty(t, findings)
			}
		})
	}

	strict, err := NewCSV(SkipUnknownTypes(false))
	require.NoError(t, err)
	assert.NotEmpty(t, strict.ValidateResource(resources.Resource{"resource_type": "Widget"}))
}

func TestValidateList(t *testing.T) {
	v, err := NewJSON()
	require.NoError(t, err)

	list := resources.NewResourceList(
		validConcept(),
		resources.Resource{"type": resources.TypeConcept, "id": "broken"},
		resources.Resource{
			"type": resources.TypeOrganization,
			"id":   "WHO",
			"name": "World Health Organization",
		},
	)

	result := v.Validate(list)
	assert.False(t, result.Valid())
	require.NotEmpty(t, result.Findings)
	for _, f := range result.Findings {
		assert.Equal(t, 1, f.Index)
	}

	err = result.Err()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "validation failed"))

	clean := resources.NewResourceList(validConcept())
	assert.True(t, v.Validate(clean).Valid())
	assert.NoError(t, v.Validate(clean).Err())
}
