// Package ocltest provides an in-memory mock of the OCL API for
// tests and local development. It covers the endpoints the rest of
// this module talks to: resource CRUD with HEAD existence checks, the
// bulk import endpoint with asynchronous task polling, and repository
// version exports.
package ocltest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/openconceptlab/ocldev/importer"
	"github.com/openconceptlab/ocldev/resources"
)

// Server is a mock OCL API backed by an in-memory resource store.
type Server struct {
	mu    sync.Mutex
	store map[string]resources.Resource // canonical URL -> resource
	tasks map[string]*task

	token        string
	pendingPolls int
	router       *chi.Mux
	httpServer   *httptest.Server
}

type task struct {
	id        string
	state     string
	pollsLeft int
	results   *importer.ImportResults
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires requests to carry the given API token.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithPendingPolls makes bulk import tasks report an in-progress
// state for n status requests before returning results.
func WithPendingPolls(n int) Option {
	return func(s *Server) { s.pendingPolls = n }
}

// NewServer creates and starts a mock server. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:  make(map[string]resources.Resource),
		tasks:  make(map[string]*task),
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.httpServer = httptest.NewServer(s.router)
	return s
}

// URL returns the server's base URL, suitable as an API root.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts the server down.
func (s *Server) Close() { s.httpServer.Close() }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requireToken)
}

func (s *Server) setupRoutes() {
	s.router.Post("/manage/bulkimport/", s.handleBulkImport)
	s.router.Post("/manage/bulkimport/{queue}/", s.handleBulkImport)
	s.router.Get("/manage/bulkimport/", s.handleBulkImportStatus)

	// Everything else is a resource URL handled against the store.
	s.router.NotFound(s.handleResource)
}

// requireToken rejects requests without the configured token. Reads
// of public data stay open, matching the live API.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Method != http.MethodGet && r.Method != http.MethodHead {
			if r.Header.Get("Authorization") != "Token "+s.token {
				writeError(w, http.StatusUnauthorized, "invalid API token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Seed inserts a resource at the given canonical URL.
func (s *Server) Seed(url string, r resources.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[normalize(url)] = r.Clone()
}

// Resource returns the stored resource at the URL, if any.
func (s *Server) Resource(url string) (resources.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.store[normalize(url)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Len returns the number of stored resources.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store)
}

func normalize(url string) string {
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

// handleResource serves HEAD/GET/POST/PUT against the store. POST to
// a collection URL creates a child using the payload's id; PUT
// upserts at the exact URL. Export and latest-version endpoints are
// dispatched by suffix.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	switch {
	case strings.HasSuffix(path, "/export/") && r.Method != http.MethodHead:
		s.handleExport(w, r, strings.TrimSuffix(path, "export/"))
		return
	case strings.HasSuffix(path, "/latest/") && r.Method == http.MethodGet:
		s.handleLatest(w, strings.TrimSuffix(path, "latest/"))
		return
	}

	switch r.Method {
	case http.MethodHead:
		s.mu.Lock()
		_, ok := s.store[path]
		s.mu.Unlock()
		if ok {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}

	case http.MethodGet:
		s.mu.Lock()
		res, ok := s.store[path]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, res)

	case http.MethodPost:
		var payload resources.Resource
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		id := payload.GetString("id")
		if id == "" {
			id = payload.GetString("username")
		}
		if id == "" {
			// References and mappings without IDs land at the
			// collection URL itself; just acknowledge them.
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, payload)
			return
		}
		childURL := path + id + "/"
		s.mu.Lock()
		_, exists := s.store[childURL]
		s.store[childURL] = payload
		s.mu.Unlock()
		if exists {
			writeJSON(w, payload)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, payload)

	case http.MethodPut:
		var payload resources.Resource
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		s.mu.Lock()
		s.store[path] = payload
		s.mu.Unlock()
		writeJSON(w, payload)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBulkImport accepts a JSON-lines payload, registers a task,
// and applies the resources to the store.
func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	results := importer.NewImportResults(0)
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	start := time.Now()

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		results.TotalLines++
		var res resources.Resource
		if err := json.Unmarshal(line, &res); err != nil {
			results.Add(importer.Result{Action: importer.ActionSkip,
				Text: string(line), Message: "invalid JSON line"})
			results.NumSkipped++
			continue
		}
		s.applyImported(res, results)
	}
	if err := scanner.Err(); err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}
	results.ElapsedSeconds = time.Since(start).Seconds()

	t := &task{
		id:        uuid.NewString(),
		state:     importer.TaskStatePending,
		pollsLeft: s.pendingPolls,
		results:   results,
	}
	s.mu.Lock()
	s.tasks[t.id] = t
	s.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{
		"task":  t.id,
		"state": t.state,
		"queue": chi.URLParam(r, "queue"),
	})
}

// applyImported stores one imported resource and records the result.
func (s *Server) applyImported(res resources.Resource, results *importer.ImportResults) {
	resourceType := res.Type()
	url, ownerURL, repoURL, err := importedURLs(res)
	if err != nil {
		results.Add(importer.Result{Action: importer.ActionSkip, Type: resourceType,
			Message: err.Error()})
		results.NumSkipped++
		return
	}
	url = normalize(url)

	s.mu.Lock()
	_, exists := s.store[url]
	s.store[url] = res
	s.mu.Unlock()

	action, status := importer.ActionNew, http.StatusCreated
	if exists {
		action, status = importer.ActionUpdate, http.StatusOK
	}
	results.Add(importer.Result{
		Type:       resourceType,
		URL:        url,
		OwnerURL:   ownerURL,
		RepoURL:    repoURL,
		Action:     action,
		StatusCode: strconv.Itoa(status),
	})
}

// importedURLs derives the canonical, owner, and repository URLs of a
// bulk-imported resource from its identity fields.
func importedURLs(res resources.Resource) (url, ownerURL, repoURL string, err error) {
	owner := res.GetString("owner")
	if owner == "" {
		owner = res.GetString("owner_id")
	}
	ownerType := res.GetString("owner_type")

	switch t := res.Type(); t {
	case resources.TypeOrganization:
		url, err = resources.OwnerURL(resources.OwnerTypeOrganization, res.ID())
		return url, url, "", err
	case resources.TypeUser:
		id := res.ID()
		if id == "" {
			id = res.GetString("username")
		}
		url, err = resources.OwnerURL(resources.OwnerTypeUser, id)
		return url, url, "", err
	case resources.TypeSource, resources.TypeCollection:
		ownerURL, err = resources.OwnerURL(ownerType, owner)
		if err != nil {
			return "", "", "", err
		}
		url, err = resources.RepositoryURL(ownerType, owner, t, res.ID())
		return url, ownerURL, "", err
	case resources.TypeSourceVersion:
		repoURL, err = resources.RepositoryURL(ownerType, owner, resources.TypeSource, res.GetString("source"))
		if err != nil {
			return "", "", "", err
		}
		return repoURL + res.ID() + "/", "", repoURL, nil
	case resources.TypeCollectionVersion:
		repoURL, err = resources.RepositoryURL(ownerType, owner, resources.TypeCollection, res.GetString("collection"))
		if err != nil {
			return "", "", "", err
		}
		return repoURL + res.ID() + "/", "", repoURL, nil
	case resources.TypeReference:
		repoURL, err = resources.RepositoryURL(ownerType, owner, resources.TypeCollection, res.GetString("collection"))
		if err != nil {
			return "", "", "", err
		}
		return repoURL + "references/", "", repoURL, nil
	case resources.TypeConcept, resources.TypeMapping:
		url = res.URL()
		if url == "" {
			return "", "", "", fmt.Errorf("cannot determine URL for %s", t)
		}
		return url, "", repoPrefix(url), nil
	default:
		return "", "", "", fmt.Errorf("unrecognized resource type %q", t)
	}
}

// repoPrefix trims a concept or mapping URL back to its repository,
// e.g. /orgs/O/sources/S/concepts/C/ -> /orgs/O/sources/S/.
func repoPrefix(url string) string {
	for _, stem := range []string{
		"/" + resources.ResourceStemConcepts + "/",
		"/" + resources.ResourceStemMappings + "/",
	} {
		if i := strings.Index(url, stem); i >= 0 {
			return url[:i+1]
		}
	}
	return url
}

func (s *Server) handleBulkImportStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task")
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if ok && t.pollsLeft > 0 {
		t.pollsLeft--
		if t.state == importer.TaskStatePending {
			t.state = importer.TaskStateStarted
		}
		state := t.state
		s.mu.Unlock()
		writeJSON(w, map[string]any{"task": taskID, "state": state})
		return
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown task %q", taskID))
		return
	}
	writeJSON(w, t.results)
}

// handleExport serves a zipped export of the repository version at
// the given URL, assembled from the store.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, versionURL string) {
	if r.Method == http.MethodPost {
		// Export generation request; the mock always has data ready.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s.mu.Lock()
	version, ok := s.store[versionURL]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no such repository version")
		return
	}

	// The version URL is {repoURL}{versionID}/.
	trimmed := strings.TrimSuffix(versionURL, "/")
	repoURL := trimmed[:strings.LastIndex(trimmed, "/")+1]

	doc := version.Clone()
	if doc.Type() == "" {
		doc["type"] = resources.TypeSourceVersion
	}
	doc["concepts"] = s.collect(repoURL + "concepts/")
	doc["mappings"] = s.collect(repoURL + "mappings/")
	if repo, ok := s.Resource(repoURL); ok {
		stem := "source"
		if strings.Contains(repoURL, "/"+resources.RepoStemCollections+"/") {
			stem = "collection"
		}
		doc[stem] = map[string]any(repo)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("export.json")
	if err == nil {
		err = json.NewEncoder(f).Encode(doc)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build export archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Write(buf.Bytes())
}

// collect returns stored resources whose URL sits directly under the
// prefix.
func (s *Server) collect(prefix string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []any{}
	for url, res := range s.store {
		if !strings.HasPrefix(url, prefix) {
			continue
		}
		rest := strings.TrimPrefix(url, prefix)
		if strings.Count(rest, "/") == 1 {
			copied := res.Clone()
			copied["url"] = url
			out = append(out, map[string]any(copied))
		}
	}
	return out
}

// handleLatest reports the most recently stored version of a repo.
func (s *Server) handleLatest(w http.ResponseWriter, repoURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest resources.Resource
	var latestURL string
	for url, res := range s.store {
		if !strings.HasPrefix(url, repoURL) || url == repoURL {
			continue
		}
		rest := strings.TrimPrefix(url, repoURL)
		// Direct children that are not concept/mapping stems are
		// version resources.
		if strings.Count(rest, "/") != 1 {
			continue
		}
		name := strings.TrimSuffix(rest, "/")
		if name == resources.ResourceStemConcepts || name == resources.ResourceStemMappings {
			continue
		}
		// Deterministic pick: highest URL in lexical order.
		if res.GetString("id") != "" && url > latestURL {
			latest, latestURL = res, url
		}
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "repository has no versions")
		return
	}
	writeJSON(w, latest)
}

func writeError(w http.ResponseWriter, status int, message string) {
	slog.Debug("mock API error response", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("mock API response encode failed", "error", err)
	}
}
