package export

import (
	"fmt"
	"strings"

	"github.com/openconceptlab/ocldev/resources"
)

// ListOptions controls which parts of an export end up in the
// resource list produced by ToResourceList.
type ListOptions struct {
	// CleanForBulkImport strips each resource down to the fields the
	// bulk import API accepts.
	CleanForBulkImport bool
	IncludeConcepts    bool
	IncludeMappings    bool
	IncludeReferences  bool
	IncludeRepo        bool
	IncludeRepoVersion bool
}

// DefaultListOptions includes concepts and mappings only.
func DefaultListOptions() ListOptions {
	return ListOptions{IncludeConcepts: true, IncludeMappings: true}
}

var repoRemoveAttrs = []string{
	"active_concepts", "active_mappings", "concepts_url", "created_by", "created_on",
	"mappings_url", "owner_url", "updated_on", "updated_by", "url", "uuid",
	"versions", "versions_url",
}

var bulkImportConceptFields = []string{
	"concept_class", "datatype", "descriptions", "external_id", "extras", "id",
	"names", "owner", "owner_type", "retired", "source", "type",
}

var bulkImportMappingFields = []string{
	"external_id", "extras", "from_concept_url", "id", "map_type", "owner",
	"owner_type", "retired", "source", "to_concept_code", "to_concept_url",
	"to_source_url", "to_concept_name", "type",
}

var repoVersionFields = []string{
	"type", "id", "description", "released", "retired", "owner", "owner_type",
	"extras", "external_id",
}

// repoType returns Source or Collection depending on the export's
// type field.
func (e *Export) repoType() (string, error) {
	switch e.raw.GetString("type") {
	case resources.TypeSourceVersion, resources.TypeSource:
		return resources.TypeSource, nil
	case resources.TypeCollectionVersion, resources.TypeCollection:
		return resources.TypeCollection, nil
	}
	return "", fmt.Errorf(
		"invalid export type %q: expected Source Version or Collection Version",
		e.raw.GetString("type"))
}

// ToResourceList flattens the export into an importable resource
// list.
func (e *Export) ToResourceList(opts ListOptions) (*resources.ResourceList, error) {
	repoType, err := e.repoType()
	if err != nil {
		return nil, err
	}
	list := resources.NewResourceList()

	if opts.IncludeRepo {
		repoRaw, ok := e.raw[strings.ToLower(repoType)].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected %q field in export", strings.ToLower(repoType))
		}
		repo := resources.Resource(repoRaw).Clone()
		for _, attr := range repoRemoveAttrs {
			delete(repo, attr)
		}
		list.Append(repo)
	}

	if opts.IncludeConcepts {
		for _, c := range e.concepts {
			if opts.CleanForBulkImport {
				list.Append(keepFields(c, bulkImportConceptFields))
			} else {
				list.Append(c)
			}
		}
	}

	if opts.IncludeMappings {
		for _, m := range e.mappings {
			if !opts.CleanForBulkImport {
				list.Append(m)
				continue
			}
			cleaned := m.Clone()
			// Older exports label mapping versions as MappingVersion.
			if cleaned.GetString("type") == "MappingVersion" {
				cleaned["type"] = resources.TypeMapping
			}
			list.Append(keepFields(cleaned, bulkImportMappingFields))
		}
	}

	if opts.IncludeReferences && repoType == resources.TypeCollection {
		if refs, ok := e.raw["references"].([]any); ok {
			var expressions []any
			for _, ref := range refs {
				refMap, ok := ref.(map[string]any)
				if !ok {
					continue
				}
				expr := resources.Resource(refMap).GetString("expression")
				// Keep only the resource URL, dropping any trailing
				// resource version segment.
				if m := resourcePattern.FindStringSubmatch(expr); m != nil {
					expressions = append(expressions, m[1])
				}
			}
			if len(expressions) > 0 {
				list.Append(resources.Resource{
					"type":       resources.TypeReference,
					"owner":      e.raw.GetString("id"),
					"owner_type": e.raw.GetString("type"),
					"data":       map[string]any{"expressions": expressions},
				})
			}
		}
	}

	if opts.IncludeRepoVersion {
		version := resources.Resource{}
		for _, field := range repoVersionFields {
			if v, ok := e.raw[field]; ok {
				version[field] = v
			} else {
				version[field] = ""
			}
		}
		list.Append(version)
	}

	return list, nil
}

func keepFields(r resources.Resource, allowed []string) resources.Resource {
	out := resources.Resource{}
	for _, field := range allowed {
		if v, ok := r[field]; ok {
			out[field] = v
		}
	}
	return out
}
