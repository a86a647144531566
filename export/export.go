// Package export fetches and queries repository version exports from
// the OCL export API. An export is a zipped JSON snapshot of a source
// or collection version with all of its concepts and mappings.
package export

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/openconceptlab/ocldev/resources"
)

// resourcePattern matches concept and mapping URLs, capturing the URL
// without a trailing resource version segment.
var resourcePattern = regexp.MustCompile(
	`^(/(orgs|users)/([a-zA-Z0-9\-._@]+)/(sources|collections)/([a-zA-Z0-9\-._@]+)/` +
		`(concepts|mappings)/([a-zA-Z0-9\-._@]+)/)(([a-zA-Z0-9\-._@]+)/)?$`)

// Export is a parsed repository version export.
type Export struct {
	raw      resources.Resource
	concepts []resources.Resource
	mappings []resources.Resource
	byURI    map[string]int
}

// New wraps a decoded export document. The document must carry
// "concepts" and "mappings" lists.
func New(raw resources.Resource) (*Export, error) {
	e := &Export{raw: raw}
	var err error
	if e.concepts, err = resourceSlice(raw["concepts"]); err != nil {
		return nil, fmt.Errorf("export concepts: %w", err)
	}
	if e.mappings, err = resourceSlice(raw["mappings"]); err != nil {
		return nil, fmt.Errorf("export mappings: %w", err)
	}
	e.byURI = make(map[string]int, len(e.concepts))
	for i, c := range e.concepts {
		if uri := c.GetString("url"); uri != "" {
			if _, seen := e.byURI[uri]; !seen {
				e.byURI[uri] = i
			}
		}
	}
	return e, nil
}

func resourceSlice(v any) ([]resources.Resource, error) {
	if v == nil {
		return nil, fmt.Errorf("missing from export")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]resources.Resource, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected an object, got %T", i, item)
		}
		out = append(out, resources.Resource(m))
	}
	return out, nil
}

// Len returns the number of concepts plus mappings in the export.
func (e *Export) Len() int { return len(e.concepts) + len(e.mappings) }

// Raw returns the full export document.
func (e *Export) Raw() resources.Resource { return e.raw }

// Include selects which related mappings are attached to concepts
// returned by the lookup methods.
type Include struct {
	Mappings        bool // mappings whose from_concept is the concept
	InverseMappings bool // mappings whose to_concept is the concept
}

func (inc Include) any() bool { return inc.Mappings || inc.InverseMappings }

// withMappings returns a copy of the concept with a "mappings" list of
// the export's matching mappings.
func (e *Export) withMappings(concept resources.Resource, inc Include) resources.Resource {
	out := concept.Clone()
	matched := []any{}
	uri := concept.GetString("url")
	for _, m := range e.mappings {
		if inc.Mappings && m.GetString("from_concept_url") == uri {
			matched = append(matched, map[string]any(m))
		}
		if inc.InverseMappings && m.GetString("to_concept_url") == uri {
			matched = append(matched, map[string]any(m))
		}
	}
	out["mappings"] = matched
	return out
}

// ConceptByIndex returns the concept at the given position.
func (e *Export) ConceptByIndex(index int, inc Include) (resources.Resource, error) {
	if index < 0 || index >= len(e.concepts) {
		return nil, fmt.Errorf("concept index %d out of range (export has %d concepts)",
			index, len(e.concepts))
	}
	c := e.concepts[index]
	if !inc.any() {
		return c, nil
	}
	return e.withMappings(c, inc), nil
}

// ConceptByID returns the first concept with the given ID.
func (e *Export) ConceptByID(id string, inc Include) (resources.Resource, bool) {
	for _, c := range e.concepts {
		if c.GetString("id") == id {
			if !inc.any() {
				return c, true
			}
			return e.withMappings(c, inc), true
		}
	}
	return nil, false
}

// ConceptByURI returns the concept with the given URL.
func (e *Export) ConceptByURI(uri string, inc Include) (resources.Resource, bool) {
	i, ok := e.byURI[uri]
	if !ok {
		return nil, false
	}
	if !inc.any() {
		return e.concepts[i], true
	}
	return e.withMappings(e.concepts[i], inc), true
}

// ConceptQuery filters concepts by core and custom attributes. The
// named fields are shorthand for common core attributes.
type ConceptQuery struct {
	ID          string
	URI         string
	Class       string
	Datatype    string
	CoreAttrs   map[string]any
	CustomAttrs map[string]any
	Include     Include
}

// Concepts returns all concepts matching the query.
func (e *Export) Concepts(q ConceptQuery) []resources.Resource {
	core := make(map[string]any, len(q.CoreAttrs)+4)
	for k, v := range q.CoreAttrs {
		core[k] = v
	}
	if q.ID != "" {
		core["id"] = q.ID
	}
	if q.URI != "" {
		core["url"] = q.URI
	}
	if q.Class != "" {
		core["concept_class"] = q.Class
	}
	if q.Datatype != "" {
		core["datatype"] = q.Datatype
	}

	var matches []resources.Resource
	for _, c := range e.concepts {
		if !matchesAttrs(c, core) {
			continue
		}
		if len(q.CustomAttrs) > 0 {
			extras, _ := c["extras"].(map[string]any)
			if !matchesAttrs(resources.Resource(extras), q.CustomAttrs) {
				continue
			}
		}
		if q.Include.any() {
			matches = append(matches, e.withMappings(c, q.Include))
		} else {
			matches = append(matches, c)
		}
	}
	return matches
}

func matchesAttrs(r resources.Resource, attrs map[string]any) bool {
	for k, want := range attrs {
		got, ok := r[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// MappingQuery filters mappings; zero-valued fields match everything.
type MappingQuery struct {
	FromConceptURI string
	ToConceptURI   string
	MapType        string
}

// Mappings returns all mappings matching the query.
func (e *Export) Mappings(q MappingQuery) []resources.Resource {
	var matches []resources.Resource
	for _, m := range e.mappings {
		if q.FromConceptURI != "" && m.GetString("from_concept_url") != q.FromConceptURI {
			continue
		}
		if q.ToConceptURI != "" && m.GetString("to_concept_url") != q.ToConceptURI {
			continue
		}
		if q.MapType != "" && m.GetString("map_type") != q.MapType {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// ConceptStats breaks down the export's concepts by field value.
type ConceptStats struct {
	Total      int
	BySource   map[string]int
	ByClass    map[string]int
	ByDatatype map[string]int
}

// MappingStats breaks down the export's mappings. A mapping counts as
// internal when both of its concepts are in the export.
type MappingStats struct {
	Total           int
	Internal        int
	External        int
	BySource        map[string]int
	ByMapType       map[string]int
	ByFromSourceURL map[string]int
	ByToSourceURL   map[string]int
}

// Stats summarizes the export contents.
type Stats struct {
	Concepts ConceptStats
	Mappings MappingStats
}

func (e *Export) Stats() Stats {
	stats := Stats{
		Concepts: ConceptStats{
			Total:      len(e.concepts),
			BySource:   make(map[string]int),
			ByClass:    make(map[string]int),
			ByDatatype: make(map[string]int),
		},
		Mappings: MappingStats{
			Total:           len(e.mappings),
			BySource:        make(map[string]int),
			ByMapType:       make(map[string]int),
			ByFromSourceURL: make(map[string]int),
			ByToSourceURL:   make(map[string]int),
		},
	}

	countInto := func(counts map[string]int, r resources.Resource, field string) {
		if _, ok := r[field]; ok {
			counts[r.GetString(field)]++
		}
	}

	for _, c := range e.concepts {
		countInto(stats.Concepts.BySource, c, "source")
		countInto(stats.Concepts.ByClass, c, "concept_class")
		countInto(stats.Concepts.ByDatatype, c, "datatype")
	}
	for _, m := range e.mappings {
		countInto(stats.Mappings.BySource, m, "source")
		countInto(stats.Mappings.ByMapType, m, "map_type")
		countInto(stats.Mappings.ByFromSourceURL, m, "from_source_url")
		countInto(stats.Mappings.ByToSourceURL, m, "to_source_url")

		_, fromInExport := e.byURI[m.GetString("from_concept_url")]
		_, toInExport := e.byURI[m.GetString("to_concept_url")]
		if fromInExport && toInExport {
			stats.Mappings.Internal++
		} else {
			stats.Mappings.External++
		}
	}
	return stats
}
