package converter

import (
	"fmt"

	"github.com/openconceptlab/ocldev/resources"
)

// finalizeMapping resolves a mapping's from/to concept addressing. The
// intermediate fields (owner, source and concept IDs) are consumed and
// replaced with concept URLs. Internal mappings end up with a
// to_concept_url; external mappings with a to_source_url plus
// to_concept_code.
func finalizeMapping(r resources.Resource) error {
	target := popString(r, "map_target")
	if target != resources.MappingTargetInternal && target != resources.MappingTargetExternal {
		target = resources.MappingTargetInternal
	}

	fromURL, err := conceptURL(
		popString(r, resources.MappingFromConceptURL),
		popString(r, "from_concept_owner_type"),
		popString(r, "from_concept_owner_id"),
		popString(r, "from_concept_source"),
		popString(r, "from_concept_id"))
	if err != nil {
		return fmt.Errorf("mapping from-concept: %w", err)
	}
	r[resources.MappingFromConceptURL] = fromURL

	switch target {
	case resources.MappingTargetInternal:
		toURL, err := conceptURL(
			popString(r, resources.MappingToConceptURL),
			popString(r, "to_concept_owner_type"),
			popString(r, "to_concept_owner_id"),
			popString(r, "to_concept_source"),
			popString(r, resources.MappingToConceptCode))
		if err != nil {
			return fmt.Errorf("mapping to-concept: %w", err)
		}
		r[resources.MappingToConceptURL] = toURL

	case resources.MappingTargetExternal:
		if url := r.GetString(resources.MappingToConceptURL); url != "" {
			return fmt.Errorf("external mapping must not have a to_concept_url: %s", url)
		}
		delete(r, resources.MappingToConceptURL)
		toSourceURL := popString(r, resources.MappingToSourceURL)
		ownerType := popString(r, "to_concept_owner_type")
		ownerID := popString(r, "to_concept_owner_id")
		source := popString(r, "to_concept_source")
		if toSourceURL == "" {
			toSourceURL, err = resources.RepositoryURL(ownerType, ownerID, resources.RepoTypeSource, source)
			if err != nil {
				return fmt.Errorf("mapping to-source: %w", err)
			}
		}
		r[resources.MappingToSourceURL] = toSourceURL
	}

	return nil
}

// conceptURL returns the explicit URL when given, otherwise builds one
// from the owner, source, and concept ID.
func conceptURL(url, ownerType, ownerID, source, conceptID string) (string, error) {
	if url != "" {
		return url, nil
	}
	if conceptID == "" {
		return "", fmt.Errorf("a concept URL or concept ID is required")
	}
	return resources.ResourceURL(ownerType, ownerID, resources.RepoTypeSource, source,
		resources.TypeConcept, conceptID)
}

// popString removes a field and returns it as a string.
func popString(r resources.Resource, key string) string {
	v := r.GetString(key)
	delete(r, key)
	return v
}
