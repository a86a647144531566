package ocltest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconceptlab/ocldev/export"
	"github.com/openconceptlab/ocldev/importer"
	"github.com/openconceptlab/ocldev/resources"
)

func TestServerResourceLifecycle(t *testing.T) {
	s := NewServer()
	defer s.Close()

	s.Seed("/orgs/MyOrg/", resources.Resource{
		"type": resources.TypeOrganization, "id": "MyOrg", "name": "My Org",
	})

	resp, err := http.Head(s.URL() + "/orgs/MyOrg/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Head(s.URL() + "/orgs/OtherOrg/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(s.URL() + "/orgs/MyOrg/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServerTokenAuth(t *testing.T) {
	s := NewServer(WithToken("secret"))
	defer s.Close()

	req, err := http.NewRequest(http.MethodPost, s.URL()+"/orgs/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Reads stay open without a token.
	resp, err = http.Head(s.URL() + "/orgs/MyOrg/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func importList() *resources.ResourceList {
	return resources.NewResourceList(
		resources.Resource{"type": resources.TypeOrganization, "id": "MyOrg", "name": "My Org"},
		resources.Resource{"type": resources.TypeSource, "id": "MySource", "name": "My Source",
			"owner": "MyOrg", "owner_type": resources.OwnerTypeOrganization},
		resources.Resource{"type": resources.TypeConcept, "id": "C1",
			"owner": "MyOrg", "source": "MySource",
			"concept_class": "Diagnosis", "datatype": "None"},
	)
}

func TestServerBulkImport(t *testing.T) {
	s := NewServer(WithToken("secret"))
	defer s.Close()

	b := importer.NewBulkImporter(s.URL(), "secret")
	task, err := b.Submit(context.Background(), importList())
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	// No pending polls configured, so results come back on the first
	// status request.
	_, results, err := b.Status(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Equal(t, 3, results.Count)
	assert.False(t, results.HasErrors())

	_, ok := s.Resource("/orgs/MyOrg/sources/MySource/concepts/C1/")
	assert.True(t, ok, "bulk import should populate the store")
}

func TestServerBulkImportPendingPolls(t *testing.T) {
	s := NewServer(WithPendingPolls(2))
	defer s.Close()

	b := importer.NewBulkImporter(s.URL(), "")
	task, err := b.Submit(context.Background(), importList())
	require.NoError(t, err)

	task, results, err := b.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.True(t, task.InProgress())

	task, results, err = b.Status(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.True(t, task.InProgress())

	_, results, err = b.Status(context.Background(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Equal(t, 3, results.Count)
}

func TestServerBulkImportUnknownTask(t *testing.T) {
	s := NewServer()
	defer s.Close()

	b := importer.NewBulkImporter(s.URL(), "")
	_, _, err := b.Status(context.Background(), "no-such-task")
	require.Error(t, err)
}

func TestServerFlexImport(t *testing.T) {
	s := NewServer(WithToken("secret"))
	defer s.Close()

	f := importer.NewFlexImporter(s.URL(), "secret")
	results, err := f.Import(context.Background(), importList())
	require.NoError(t, err)
	assert.False(t, results.HasErrors(), results.Report(""))

	_, ok := s.Resource("/orgs/MyOrg/")
	assert.True(t, ok)
	_, ok = s.Resource("/orgs/MyOrg/sources/MySource/")
	assert.True(t, ok)
	_, ok = s.Resource("/orgs/MyOrg/sources/MySource/concepts/C1/")
	assert.True(t, ok)
}

func seedExportRepo(s *Server) {
	s.Seed("/orgs/MyOrg/", resources.Resource{
		"type": resources.TypeOrganization, "id": "MyOrg", "name": "My Org",
	})
	s.Seed("/orgs/MyOrg/sources/MySource/", resources.Resource{
		"type": resources.TypeSource, "id": "MySource", "short_code": "MySource",
		"name": "My Source", "owner": "MyOrg",
		"owner_type": resources.OwnerTypeOrganization,
	})
	s.Seed("/orgs/MyOrg/sources/MySource/v1.0/", resources.Resource{
		"type": resources.TypeSourceVersion, "id": "v1.0",
		"owner": "MyOrg", "owner_type": resources.OwnerTypeOrganization,
		"source": "MySource", "version": "v1.0", "released": true,
	})
	s.Seed("/orgs/MyOrg/sources/MySource/concepts/C1/", resources.Resource{
		"type": resources.TypeConcept, "id": "C1",
		"concept_class": "Diagnosis", "datatype": "None",
	})
	s.Seed("/orgs/MyOrg/sources/MySource/concepts/C2/", resources.Resource{
		"type": resources.TypeConcept, "id": "C2",
		"concept_class": "Symptom", "datatype": "None",
	})
	s.Seed("/orgs/MyOrg/sources/MySource/mappings/M1/", resources.Resource{
		"type": resources.TypeMapping, "id": "M1", "map_type": "Same As",
		"from_concept_url": "/orgs/MyOrg/sources/MySource/concepts/C1/",
		"to_concept_url":   "/orgs/MyOrg/sources/MySource/concepts/C2/",
	})
}

func TestServerExport(t *testing.T) {
	s := NewServer()
	defer s.Close()
	seedExportRepo(s)

	factory := export.NewFactory("")
	e, err := factory.Load(context.Background(), s.URL()+"/orgs/MyOrg/sources/MySource/v1.0/")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Len())

	c, ok := e.ConceptByID("C1", export.Include{})
	require.True(t, ok)
	assert.Equal(t, "Diagnosis", c.GetString("concept_class"))

	stats := e.Stats()
	assert.Equal(t, 2, stats.Concepts.Total)
	assert.Equal(t, 1, stats.Mappings.Internal)
}

func TestServerLatestVersion(t *testing.T) {
	s := NewServer()
	defer s.Close()
	seedExportRepo(s)

	factory := export.NewFactory("")
	id, err := factory.LatestVersionID(context.Background(), s.URL()+"/orgs/MyOrg/sources/MySource/")
	require.NoError(t, err)
	assert.Equal(t, "v1.0", id)

	e, err := factory.LoadLatest(context.Background(), s.URL()+"/orgs/MyOrg/sources/MySource/")
	require.NoError(t, err)
	assert.Equal(t, 3, e.Len())

	_, err = factory.LatestVersionID(context.Background(), s.URL()+"/orgs/Empty/sources/None/")
	require.Error(t, err)
}
