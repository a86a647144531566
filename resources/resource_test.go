package resources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceMarshalJSONLine(t *testing.T) {
	r := Resource{"type": TypeConcept, "id": "C1", "name": "Ts & Cs <draft>"}

	line, err := r.MarshalJSONLine()
	require.NoError(t, err)
	assert.False(t, strings.ContainsAny(string(line), "\n"))
	// Names keep their literal characters; the importer payload is not
	// HTML.
	assert.Contains(t, string(line), "Ts & Cs <draft>")
	assert.NotContains(t, string(line), `\u0026`)
	assert.NotContains(t, string(line), `\u003c`)
}

func TestResourceType(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		want     string
	}{
		{"json discriminator", Resource{"type": TypeConcept}, TypeConcept},
		{"csv discriminator", Resource{"resource_type": TypeMapping}, TypeMapping},
		{"json wins over csv", Resource{"type": TypeConcept, "resource_type": TypeMapping}, TypeConcept},
		{"missing", Resource{"id": "C1"}, ""},
		{"non-string type", Resource{"type": 7}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resource.Type())
		})
	}
}

func TestResourceGetString(t *testing.T) {
	r := Resource{
		"id":       "C1",
		"retired":  false,
		"count":    float64(3),
		"missing":  nil,
		"released": true,
	}
	assert.Equal(t, "C1", r.GetString("id"))
	assert.Equal(t, "false", r.GetString("retired"))
	assert.Equal(t, "true", r.GetString("released"))
	assert.Equal(t, "3", r.GetString("count"))
	assert.Equal(t, "", r.GetString("missing"))
	assert.Equal(t, "", r.GetString("absent"))
}

func TestResourceClone(t *testing.T) {
	r := Resource{"id": "C1", "type": TypeConcept}
	c := r.Clone()
	c["id"] = "C2"
	assert.Equal(t, "C1", r.ID())
	assert.Equal(t, "C2", c.ID())
}

func TestResourceURL(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		want     string
	}{
		{
			"explicit url",
			Resource{"type": TypeConcept, "url": "/orgs/X/sources/Y/concepts/Z/"},
			"/orgs/X/sources/Y/concepts/Z/",
		},
		{
			"version url",
			Resource{"type": TypeSourceVersion, "version_url": "/orgs/X/sources/Y/v1.0/"},
			"/orgs/X/sources/Y/v1.0/",
		},
		{
			"derived concept url",
			Resource{"type": TypeConcept, "id": "C1", "owner": "MyOrg", "source": "MySource"},
			"/orgs/MyOrg/sources/MySource/concepts/C1/",
		},
		{
			"derived mapping url in collection",
			Resource{"type": TypeMapping, "id": "M1", "owner": "MyOrg", "collection": "MyColl"},
			"/orgs/MyOrg/collections/MyColl/mappings/M1/",
		},
		{
			"user-owned concept",
			Resource{"type": TypeConcept, "id": "C1", "owner": "jo",
				"owner_type": OwnerTypeUser, "source": "S"},
			"/users/jo/sources/S/concepts/C1/",
		},
		{
			"underived type",
			Resource{"type": TypeOrganization, "id": "MyOrg"},
			"",
		},
		{
			"concept missing repo",
			Resource{"type": TypeConcept, "id": "C1", "owner": "MyOrg"},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resource.URL())
		})
	}
}

func TestResourceNames(t *testing.T) {
	r := Resource{
		"names": []any{
			map[string]any{"name": "Fever", "name_type": "Fully Specified"},
			map[string]any{"name": "Fvr", "name_type": "Short"},
			"not a name",
		},
	}
	names := r.Names()
	require.Len(t, names, 2)

	fs, ok := r.ConceptNameByType("Fully Specified")
	require.True(t, ok)
	assert.Equal(t, "Fever", fs["name"])

	_, ok = r.ConceptNameByType("Index Term")
	assert.False(t, ok)

	assert.Nil(t, Resource{}.Descriptions())
}

func TestOwnerURL(t *testing.T) {
	u, err := OwnerURL(OwnerTypeOrganization, "MyOrg")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/MyOrg/", u)

	u, err = OwnerURL(OwnerTypeUser, "jo")
	require.NoError(t, err)
	assert.Equal(t, "/users/jo/", u)

	// Organization is the default owner type.
	u, err = OwnerURL("", "MyOrg")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/MyOrg/", u)

	_, err = OwnerURL("Widget", "MyOrg")
	require.Error(t, err)
	_, err = OwnerURL(OwnerTypeOrganization, "")
	require.Error(t, err)
}

func TestRepositoryURL(t *testing.T) {
	u, err := RepositoryURL(OwnerTypeOrganization, "MyOrg", RepoTypeSource, "MySource")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/MyOrg/sources/MySource/", u)

	u, err = RepositoryURL(OwnerTypeUser, "jo", RepoTypeCollection, "MyColl")
	require.NoError(t, err)
	assert.Equal(t, "/users/jo/collections/MyColl/", u)

	_, err = RepositoryURL(OwnerTypeOrganization, "MyOrg", RepoTypeSource, "")
	require.Error(t, err)
}

func TestResourceURLBuilder(t *testing.T) {
	u, err := ResourceURL(OwnerTypeOrganization, "MyOrg", RepoTypeSource, "MySource", TypeConcept, "C1")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/MyOrg/sources/MySource/concepts/C1/", u)

	u, err = ResourceURL(OwnerTypeOrganization, "MyOrg", RepoTypeCollection, "MyColl", TypeMapping, "M1")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/MyOrg/collections/MyColl/mappings/M1/", u)

	_, err = ResourceURL(OwnerTypeOrganization, "MyOrg", RepoTypeSource, "MySource", TypeReference, "R1")
	require.Error(t, err)
	_, err = ResourceURL(OwnerTypeOrganization, "MyOrg", RepoTypeSource, "MySource", TypeConcept, "")
	require.Error(t, err)
}
