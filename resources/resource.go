package resources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Resource is a single OCL resource record: a field-name -> value map
// with a type discriminator. JSON resources carry the discriminator in
// "type", CSV rows in "resource_type".
type Resource map[string]any

// Type returns the resource's type discriminator, checking "type" then
// "resource_type". Returns "" when neither is present.
func (r Resource) Type() string {
	if t, ok := r["type"].(string); ok && t != "" {
		return t
	}
	if t, ok := r["resource_type"].(string); ok {
		return t
	}
	return ""
}

// GetString returns the value of a field as a string. Non-string
// scalars are formatted; missing and nil values return "".
func (r Resource) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ID returns the resource's "id" field as a string.
func (r Resource) ID() string { return r.GetString("id") }

// Attributes returns the resource's custom attributes map, or nil.
func (r Resource) Attributes() map[string]any {
	attrs, _ := r["extras"].(map[string]any)
	return attrs
}

// Clone returns a shallow copy of the resource.
func (r Resource) Clone() Resource {
	c := make(Resource, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// URL returns the resource's address relative to the API root. An
// explicit "url" or "version_url" field wins; otherwise the URL is
// derived from the owner, repository and ID fields for concepts and
// mappings. Returns "" when no URL can be determined.
func (r Resource) URL() string {
	if u := r.GetString("url"); u != "" {
		return u
	}
	if u := r.GetString("version_url"); u != "" {
		return u
	}

	switch r.Type() {
	case TypeConcept, TypeMapping:
		owner := r.GetString("owner")
		if owner == "" {
			owner = r.GetString("owner_id")
		}
		repoType := RepoTypeSource
		repoID := r.GetString("source")
		if repoID == "" {
			repoID = r.GetString("collection")
			if repoID != "" {
				repoType = RepoTypeCollection
			}
		}
		u, err := ResourceURL(r.GetString("owner_type"), owner, repoType, repoID, r.Type(), r.ID())
		if err != nil {
			return ""
		}
		return u
	}
	return ""
}

// Names returns the resource's "names" subresource list, or nil.
func (r Resource) Names() []map[string]any {
	return subresourceList(r["names"])
}

// Descriptions returns the resource's "descriptions" subresource list,
// or nil.
func (r Resource) Descriptions() []map[string]any {
	return subresourceList(r["descriptions"])
}

func subresourceList(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		if typed, ok := v.([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// ConceptNameByType returns the first concept name of the given
// name_type, e.g. "Fully Specified".
func (r Resource) ConceptNameByType(nameType string) (map[string]any, bool) {
	for _, name := range r.Names() {
		if nt, ok := name["name_type"].(string); ok && nt == nameType {
			return name, true
		}
	}
	return nil, false
}

// MarshalJSONLine renders the resource as a single JSON line without
// HTML escaping, suitable for bulk-import payloads.
func (r Resource) MarshalJSONLine() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(r)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
