package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openconceptlab/ocldev/internal/logging"
	"github.com/openconceptlab/ocldev/resources"
)

// FlexImporter imports resources one at a time through the REST API.
// It resolves each resource's owner and repository URLs, checks that
// they exist, and creates or updates the resource. Slower than the
// bulk import API but gives per-resource control and works against
// servers without the bulk endpoint.
type FlexImporter struct {
	client             *http.Client
	apiURL             string
	token              string
	updateIfExists     bool
	testMode           bool
	limit              int
	importDelay        time.Duration
	referenceBatchSize int
	existsCache        map[string]bool
}

// FlexOption configures a FlexImporter.
type FlexOption func(*FlexImporter)

// FlexHTTPClient replaces the default HTTP client.
func FlexHTTPClient(c *http.Client) FlexOption {
	return func(f *FlexImporter) { f.client = c }
}

// UpdateIfExists makes the importer update resources that already
// exist on the server instead of skipping them.
func UpdateIfExists(update bool) FlexOption {
	return func(f *FlexImporter) { f.updateIfExists = update }
}

// FlexTestMode logs what would be sent without issuing writes.
func FlexTestMode(testMode bool) FlexOption {
	return func(f *FlexImporter) { f.testMode = testMode }
}

// Limit stops the import after n resources. Zero means no limit.
func Limit(n int) FlexOption {
	return func(f *FlexImporter) { f.limit = n }
}

// ImportDelay pauses between resources, for rate-limited servers.
func ImportDelay(d time.Duration) FlexOption {
	return func(f *FlexImporter) { f.importDelay = d }
}

// ReferenceBatchSize splits reference resources with many expressions
// into requests of at most n expressions each. Zero disables batching.
func ReferenceBatchSize(n int) FlexOption {
	return func(f *FlexImporter) { f.referenceBatchSize = n }
}

// NewFlexImporter creates a resource-by-resource importer for the
// given API root and token.
func NewFlexImporter(apiURL, token string, opts ...FlexOption) *FlexImporter {
	f := &FlexImporter{
		client:      &http.Client{Timeout: 120 * time.Second},
		apiURL:      apiURL,
		token:       token,
		existsCache: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Import processes every resource in the list and returns the
// accumulated results. An error is returned only for malformed input
// (missing owner or repository information) or context cancellation;
// server-side failures are recorded in the results instead.
func (f *FlexImporter) Import(ctx context.Context, list *resources.ResourceList) (*ImportResults, error) {
	start := time.Now()
	results := NewImportResults(list.Len())
	log := logging.FromContext(ctx)

	count := 0
	for _, original := range list.Resources() {
		if err := ctx.Err(); err != nil {
			results.ElapsedSeconds = time.Since(start).Seconds()
			return results, err
		}
		if f.limit > 0 && count >= f.limit {
			break
		}
		count++

		r := original.Clone()
		raw, _ := json.Marshal(r)
		resourceType := popField(r, "type")

		switch {
		case resourceType == "":
			message := fmt.Sprintf("No 'type' attribute: %s", raw)
			results.Add(Result{Action: ActionSkip, Text: string(raw), Message: message})
			results.NumSkipped++
			log.Warn("skipping resource", "reason", message)

		case resourceType == resources.TypeReference && f.referenceBatchSize > 0:
			for _, batch := range batchReference(r, f.referenceBatchSize) {
				if err := f.processResource(ctx, resourceType, batch, results); err != nil {
					results.ElapsedSeconds = time.Since(start).Seconds()
					return results, err
				}
			}

		default:
			if _, ok := endpoints[resourceType]; !ok {
				message := fmt.Sprintf("Unrecognized 'type' attribute %q for object: %s",
					resourceType, raw)
				results.Add(Result{Action: ActionSkip, Type: resourceType,
					Text: string(raw), Message: message})
				results.NumSkipped++
				log.Warn("skipping resource", "reason", message)
				break
			}
			if err := f.processResource(ctx, resourceType, r, results); err != nil {
				results.ElapsedSeconds = time.Since(start).Seconds()
				return results, err
			}
		}

		if f.importDelay > 0 && !f.testMode {
			select {
			case <-time.After(f.importDelay):
			case <-ctx.Done():
				results.ElapsedSeconds = time.Since(start).Seconds()
				return results, ctx.Err()
			}
		}
	}

	results.ElapsedSeconds = time.Since(start).Seconds()
	return results, nil
}

// batchReference splits a reference's expressions into chunks, each
// carried by a copy of the original resource.
func batchReference(r resources.Resource, batchSize int) []resources.Resource {
	data, ok := r["data"].(map[string]any)
	if !ok {
		return []resources.Resource{r}
	}
	expressions, ok := data["expressions"].([]any)
	if !ok || len(expressions) <= batchSize {
		return []resources.Resource{r}
	}

	var batches []resources.Resource
	for i := 0; i < len(expressions); i += batchSize {
		end := min(i+batchSize, len(expressions))
		batch := r.Clone()
		batch["data"] = map[string]any{"expressions": expressions[i:end]}
		batches = append(batches, batch)
	}
	return batches
}

func (f *FlexImporter) processResource(ctx context.Context, resourceType string,
	r resources.Resource, results *ImportResults) error {
	def := endpoints[resourceType]
	log := logging.FromContext(ctx)

	objID := ""
	if def.idField != "" {
		objID = r.GetString(def.idField)
	}

	ownerURL, err := f.resolveOwnerURL(resourceType, def, r)
	if err != nil {
		return err
	}
	repoURL, err := resolveRepoURL(resourceType, def, r, ownerURL)
	if err != nil {
		return err
	}
	objURL, newObjURL := objectURLs(def, ownerURL, repoURL, objID)

	// Query parameters are currently only meaningful for references.
	queryParams := url.Values{}
	if resourceType == resources.TypeReference {
		if cascade := popField(r, "__cascade"); cascade != "" {
			queryParams.Set("cascade", cascade)
		}
	}

	removed := resources.Resource{}
	for field := range r {
		if !def.allows(field) {
			removed[field] = r[field]
			delete(r, field)
		}
	}
	payload, _ := json.Marshal(r)

	log.Info("importing resource", "type", resourceType, "url", f.apiURL+objURL)
	if len(removed) > 0 {
		log.Debug("dropped fields not accepted by endpoint",
			"type", resourceType, "fields", removed)
	}

	skip := func(message string) {
		log.Warn("skipping resource", "reason", message)
		results.Add(Result{Action: ActionSkip, Type: resourceType, URL: objURL,
			RepoURL: repoURL, OwnerURL: ownerURL, Text: string(payload), Message: message})
		results.NumSkipped++
	}

	// The resource can only be imported if its owner and repository
	// are already on the server.
	if ownerURL != "" {
		exists, err := f.exists(ctx, ownerURL)
		if err != nil {
			skip(fmt.Sprintf("Unexpected error occurred: %v", err))
			return nil
		}
		if !exists {
			skip(fmt.Sprintf("Owner does not exist at: %s", ownerURL))
			if !f.testMode {
				return nil
			}
		}
	}
	if repoURL != "" {
		exists, err := f.exists(ctx, repoURL)
		if err != nil {
			skip(fmt.Sprintf("Unexpected error occurred: %v", err))
			return nil
		}
		if !exists {
			skip(fmt.Sprintf("Repository does not exist at: %s", repoURL))
			if !f.testMode {
				return nil
			}
		}
	}

	// Mappings and references have no stable URL before creation, so
	// they are always treated as new.
	objExists := false
	if resourceType != resources.TypeMapping && resourceType != resources.TypeReference {
		objExists, err = f.exists(ctx, objURL)
		if err != nil {
			skip(fmt.Sprintf("Unexpected error occurred: %v", err))
			return nil
		}
	}
	if objExists && !f.updateIfExists {
		skip(fmt.Sprintf("Object already exists at: %s%s", f.apiURL, objURL))
		if !f.testMode {
			return nil
		}
	}

	method := def.createMethod
	targetURL := newObjURL
	action := ActionNew
	if objExists && f.updateIfExists {
		if def.updateMethod == "" {
			skip(fmt.Sprintf("Resource type %q cannot be updated", resourceType))
			return nil
		}
		method = def.updateMethod
		targetURL = objURL
		action = ActionUpdate
	}
	if encoded := queryParams.Encode(); encoded != "" {
		targetURL += "?" + encoded
	}

	if f.testMode {
		log.Info("test mode, skipping write", "method", method, "url", f.apiURL+targetURL)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, method, f.apiURL+targetURL,
		bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request for %s: %w", method, targetURL, err)
	}
	req.Header.Set("Authorization", "Token "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		skip(fmt.Sprintf("Request failed: %v", err))
		return nil
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	_, _ = respBody.ReadFrom(resp.Body)

	log.Info("import response", "method", method, "url", f.apiURL+targetURL,
		"status", resp.StatusCode)
	results.Add(Result{
		Type:       resourceType,
		URL:        objURL,
		Action:     action,
		Method:     method,
		RepoURL:    repoURL,
		OwnerURL:   ownerURL,
		StatusCode: strconv.Itoa(resp.StatusCode),
		Text:       string(payload),
		Message:    respBody.String(),
	})
	return nil
}

// resolveOwnerURL determines the owner URL from owner_url, from owner
// plus owner_type, or from the owner segments of an explicit
// repository URL. The intermediate fields are consumed.
func (f *FlexImporter) resolveOwnerURL(resourceType string, def endpointDef,
	r resources.Resource) (string, error) {
	if !def.hasOwner {
		return "", nil
	}
	if ownerURL := popField(r, "owner_url"); ownerURL != "" {
		delete(r, "owner")
		delete(r, "owner_type")
		return ownerURL, nil
	}
	if owner := r.GetString("owner"); owner != "" {
		ownerType := popField(r, "owner_type")
		delete(r, "owner")
		if ownerType == "" {
			ownerType = resources.OwnerTypeOrganization
		}
		stem, err := resources.OwnerStem(ownerType)
		if err != nil {
			return "", fmt.Errorf("resource %q: %w", resourceType, err)
		}
		return "/" + stem + "/" + owner + "/", nil
	}
	if def.hasSource {
		if sourceURL := r.GetString("source_url"); sourceURL != "" {
			return ownerPrefix(sourceURL), nil
		}
	}
	if def.hasCollection {
		if collectionURL := r.GetString("collection_url"); collectionURL != "" {
			return ownerPrefix(collectionURL), nil
		}
	}
	return "", fmt.Errorf("valid owner information required for resource of type %q", resourceType)
}

// resolveRepoURL determines the repository URL from source_url/source
// or collection_url/collection. The intermediate fields are consumed.
func resolveRepoURL(resourceType string, def endpointDef, r resources.Resource,
	ownerURL string) (string, error) {
	switch {
	case def.hasSource:
		if sourceURL := popField(r, "source_url"); sourceURL != "" {
			delete(r, "source")
			return sourceURL, nil
		}
		if source := popField(r, "source"); source != "" {
			return ownerURL + resources.RepoStemSources + "/" + source + "/", nil
		}
		return "", fmt.Errorf("valid source information required for resource of type %q",
			resourceType)
	case def.hasCollection:
		if collectionURL := popField(r, "collection_url"); collectionURL != "" {
			delete(r, "collection")
			return collectionURL, nil
		}
		if collection := popField(r, "collection"); collection != "" {
			return ownerURL + resources.RepoStemCollections + "/" + collection + "/", nil
		}
		return "", fmt.Errorf("valid collection information required for resource of type %q",
			resourceType)
	}
	return "", nil
}

// objectURLs builds the resource's canonical URL and the URL new
// resources are posted to. Both end with a forward slash.
func objectURLs(def endpointDef, ownerURL, repoURL, objID string) (objURL, newObjURL string) {
	switch {
	case repoURL != "":
		newObjURL = repoURL + def.stem + "/"
		switch {
		case def.omitStemOnGet:
			objURL = repoURL + objID + "/"
		case objID != "":
			objURL = newObjURL + objID + "/"
		default:
			objURL = newObjURL
		}
	case ownerURL != "":
		newObjURL = ownerURL + def.stem + "/"
		objURL = newObjURL + objID + "/"
	default:
		newObjURL = "/" + def.stem + "/"
		objURL = newObjURL + objID + "/"
	}
	return objURL, newObjURL
}

// ownerPrefix returns the leading owner segments of a repository URL,
// e.g. "/orgs/MyOrg/" from "/orgs/MyOrg/sources/MySource/".
func ownerPrefix(repoURL string) string {
	parts := strings.SplitAfterN(repoURL, "/", 4)
	if len(parts) < 4 {
		return repoURL
	}
	return parts[0] + parts[1] + parts[2]
}

// exists issues a HEAD request for the resource URL, caching positive
// answers.
func (f *FlexImporter) exists(ctx context.Context, objURL string) (bool, error) {
	if f.existsCache[objURL] {
		return true, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.apiURL+objURL, nil)
	if err != nil {
		return false, fmt.Errorf("build HEAD request for %s: %w", objURL, err)
	}
	req.Header.Set("Authorization", "Token "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %w", objURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		f.existsCache[objURL] = true
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("HEAD %s%s: unexpected status code %d",
			f.apiURL, objURL, resp.StatusCode)
	}
}

// popField removes a field and returns its string form.
func popField(r resources.Resource, key string) string {
	v := r.GetString(key)
	delete(r, key)
	return v
}
