package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconceptlab/ocldev/resources"
)

func sampleImportList() *resources.ResourceList {
	return resources.NewResourceList(
		resources.Resource{
			"type": resources.TypeOrganization,
			"id":   "MyOrg",
			"name": "My Organization",
		},
		resources.Resource{
			"type":       resources.TypeSource,
			"id":         "MySource",
			"name":       "My Source",
			"owner":      "MyOrg",
			"owner_type": resources.OwnerTypeOrganization,
		},
		resources.Resource{
			"type":          resources.TypeConcept,
			"id":            "C1",
			"owner":         "MyOrg",
			"owner_type":    resources.OwnerTypeOrganization,
			"source":        "MySource",
			"concept_class": "Diagnosis",
			"datatype":      "None",
		},
	)
}

func TestBulkImporterSubmit(t *testing.T) {
	var gotBody string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/manage/bulkimport/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task": "task-123", "state": "PENDING"}`)
	}))
	defer srv.Close()

	b := NewBulkImporter(srv.URL, "secret")
	task, err := b.Submit(context.Background(), sampleImportList())
	require.NoError(t, err)
	assert.Equal(t, "task-123", task.ID)
	assert.True(t, task.InProgress())
	assert.Equal(t, "Token secret", gotAuth)

	// Payload must be one JSON object per line.
	lines := 0
	dec := json.NewDecoder(strings.NewReader(gotBody))
	for dec.More() {
		var obj map[string]any
		require.NoError(t, dec.Decode(&obj))
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestBulkImporterSubmitQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manage/bulkimport/priority/", r.URL.Path)
		fmt.Fprint(w, `{"task": "task-9", "state": "PENDING"}`)
	}))
	defer srv.Close()

	b := NewBulkImporter(srv.URL, "secret", WithQueue("priority"))
	task, err := b.Submit(context.Background(), sampleImportList())
	require.NoError(t, err)
	assert.Equal(t, "task-9", task.ID)
}

func TestBulkImporterSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := NewBulkImporter(srv.URL, "wrong")
	_, err := b.Submit(context.Background(), sampleImportList())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestBulkImporterWait(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "task-123", r.URL.Query().Get("task"))
		require.Equal(t, "json", r.URL.Query().Get("result"))
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"task": "task-123", "state": "STARTED"}`)
			return
		}
		fmt.Fprint(w, `{"count": 3, "total_lines": 3, "results": {"/orgs/": {"new": {"201": []}}}}`)
	}))
	defer srv.Close()

	b := NewBulkImporter(srv.URL, "secret")
	// Floors in NewBulkImporter keep the public default of 5s; drop
	// below it for the test.
	b.pollDelay = 10 * time.Millisecond
	b.maxPollDelay = 20 * time.Millisecond
	b.maxWait = 5 * time.Second

	results, err := b.Wait(context.Background(), "task-123")
	require.NoError(t, err)
	assert.Equal(t, 3, results.Count)
	assert.True(t, results.Has("/orgs/", false))
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestBulkImporterWaitContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"task": "task-123", "state": "PENDING"}`)
	}))
	defer srv.Close()

	b := NewBulkImporter(srv.URL, "secret")
	b.pollDelay = 10 * time.Millisecond
	b.maxWait = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := b.Wait(ctx, "task-123")
	require.Error(t, err)
}

// flexServer fakes just enough of the REST API for the flex importer:
// HEAD answers existence from a set of known URLs, writes record what
// was sent.
type flexServer struct {
	existing map[string]bool
	writes   []string // "METHOD URL"
}

func (s *flexServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			if s.existing[r.URL.Path] {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case http.MethodPost, http.MethodPut:
			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			s.writes = append(s.writes, r.Method+" "+target)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func TestFlexImporterCreatesMissingResources(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret")
	list := resources.NewResourceList(
		resources.Resource{
			"type": resources.TypeOrganization,
			"id":   "MyOrg",
			"name": "My Organization",
		},
	)

	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Count)
	assert.False(t, results.HasErrors())
	assert.Equal(t, []string{"POST /orgs/"}, srv.writes)
}

func TestFlexImporterSkipsWhenOwnerMissing(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret")
	list := resources.NewResourceList(
		resources.Resource{
			"type":       resources.TypeSource,
			"id":         "MySource",
			"name":       "My Source",
			"owner":      "NoSuchOrg",
			"owner_type": resources.OwnerTypeOrganization,
		},
	)

	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 1, results.NumSkipped)
	assert.True(t, results.HasErrors())
	assert.Empty(t, srv.writes)
}

func TestFlexImporterSkipsExisting(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{
		"/orgs/MyOrg/":                  true,
		"/orgs/MyOrg/sources/MySource/": true,
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	list := resources.NewResourceList(
		resources.Resource{
			"type":       resources.TypeSource,
			"id":         "MySource",
			"name":       "My Source",
			"owner":      "MyOrg",
			"owner_type": resources.OwnerTypeOrganization,
		},
	)

	f := NewFlexImporter(ts.URL, "secret")
	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 1, results.NumSkipped)
	assert.Empty(t, srv.writes)

	// With UpdateIfExists the same input becomes a PUT to the
	// resource URL.
	srv.writes = nil
	f = NewFlexImporter(ts.URL, "secret", UpdateIfExists(true))
	results, err = f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 0, results.NumSkipped)
	assert.Equal(t, []string{"PUT /orgs/MyOrg/sources/MySource/"}, srv.writes)
}

func TestFlexImporterConceptURLs(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{
		"/orgs/MyOrg/":                  true,
		"/orgs/MyOrg/sources/MySource/": true,
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret")
	list := resources.NewResourceList(
		resources.Resource{
			"type":          resources.TypeConcept,
			"id":            "C1",
			"owner":         "MyOrg",
			"owner_type":    resources.OwnerTypeOrganization,
			"source":        "MySource",
			"concept_class": "Diagnosis",
			"datatype":      "None",
		},
	)

	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.False(t, results.HasErrors())
	assert.Equal(t, []string{"POST /orgs/MyOrg/sources/MySource/concepts/"}, srv.writes)
}

func TestFlexImporterReferenceCascade(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{
		"/orgs/MyOrg/":                          true,
		"/orgs/MyOrg/collections/MyCollection/": true,
	}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret")
	list := resources.NewResourceList(
		resources.Resource{
			"type":       resources.TypeReference,
			"owner":      "MyOrg",
			"owner_type": resources.OwnerTypeOrganization,
			"collection": "MyCollection",
			"__cascade":  "sourcemappings",
			"data": map[string]any{
				"expressions": []any{"/orgs/MyOrg/sources/MySource/concepts/C1/"},
			},
		},
	)

	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.False(t, results.HasErrors())
	require.Len(t, srv.writes, 1)
	assert.Equal(t,
		"PUT /orgs/MyOrg/collections/MyCollection/references/?cascade=sourcemappings",
		srv.writes[0])
}

func TestFlexImporterUnknownType(t *testing.T) {
	ts := httptest.NewServer((&flexServer{existing: map[string]bool{}}).handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret")
	list := resources.NewResourceList(
		resources.Resource{"type": "Widget", "id": "W1"},
		resources.Resource{"id": "no-type"},
	)

	results, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 2, results.NumSkipped)
	assert.True(t, results.HasErrors())
}

func TestBatchReference(t *testing.T) {
	ref := resources.Resource{
		"collection": "MyCollection",
		"data": map[string]any{
			"expressions": []any{"/a/", "/b/", "/c/", "/d/", "/e/"},
		},
	}

	batches := batchReference(ref, 2)
	require.Len(t, batches, 3)
	for i, wantLen := range []int{2, 2, 1} {
		data := batches[i]["data"].(map[string]any)
		assert.Len(t, data["expressions"], wantLen)
		assert.Equal(t, "MyCollection", batches[i].GetString("collection"))
	}

	// Under the batch size the resource passes through untouched.
	batches = batchReference(ref, 10)
	require.Len(t, batches, 1)
}

func TestFlexImporterTestMode(t *testing.T) {
	srv := &flexServer{existing: map[string]bool{"/orgs/MyOrg/": true}}
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	f := NewFlexImporter(ts.URL, "secret", FlexTestMode(true))
	list := resources.NewResourceList(
		resources.Resource{
			"type":       resources.TypeSource,
			"id":         "MySource",
			"name":       "My Source",
			"owner":      "MyOrg",
			"owner_type": resources.OwnerTypeOrganization,
		},
	)

	_, err := f.Import(context.Background(), list)
	require.NoError(t, err)
	assert.Empty(t, srv.writes)
}
