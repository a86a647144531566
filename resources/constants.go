// Package resources defines the OCL resource vocabulary: resource type
// names, owner and repository URL stems, URL builders, the Resource
// record type, and ordered resource lists loadable from CSV or
// JSON-lines files.
package resources

import "fmt"

// Resource type discriminators as they appear in OCL payloads.
const (
	TypeUser              = "User"
	TypeOrganization      = "Organization"
	TypeSource            = "Source"
	TypeCollection        = "Collection"
	TypeConcept           = "Concept"
	TypeMapping           = "Mapping"
	TypeConceptRef        = "Concept_Ref"
	TypeMappingRef        = "Mapping_Ref"
	TypeReference         = "Reference"
	TypeSourceVersion     = "Source Version"
	TypeCollectionVersion = "Collection Version"
)

// Owner types and their URL stems.
const (
	OwnerTypeUser         = "User"
	OwnerTypeOrganization = "Organization"

	OwnerStemUsers = "users"
	OwnerStemOrgs  = "orgs"
)

// Repository types and their URL stems.
const (
	RepoTypeSource     = "Source"
	RepoTypeCollection = "Collection"

	RepoStemSources     = "sources"
	RepoStemCollections = "collections"
)

// Resource URL stems for repository contents.
const (
	ResourceStemConcepts = "concepts"
	ResourceStemMappings = "mappings"
)

// Mapping targets distinguish mappings whose to-concept lives in an OCL
// source (internal) from mappings that point at an external code system.
const (
	MappingTargetInternal = "Internal"
	MappingTargetExternal = "External"
)

// Mapping field names.
const (
	MappingFromConceptURL = "from_concept_url"
	MappingToConceptURL   = "to_concept_url"
	MappingToSourceURL    = "to_source_url"
	MappingToConceptCode  = "to_concept_code"
	MappingToConceptName  = "to_concept_name"
	MappingMapType        = "map_type"
)

// OwnerStem returns the URL stem for an owner type.
func OwnerStem(ownerType string) (string, error) {
	switch ownerType {
	case OwnerTypeUser:
		return OwnerStemUsers, nil
	case OwnerTypeOrganization, "":
		// Organizations are the default owner type throughout OCL.
		return OwnerStemOrgs, nil
	default:
		return "", fmt.Errorf("unrecognized owner type %q", ownerType)
	}
}

// RepoStem returns the URL stem for a repository type.
func RepoStem(repoType string) (string, error) {
	switch repoType {
	case RepoTypeSource, "":
		return RepoStemSources, nil
	case RepoTypeCollection:
		return RepoStemCollections, nil
	default:
		return "", fmt.Errorf("unrecognized repository type %q", repoType)
	}
}

// OwnerURL builds a relative owner URL, e.g. /orgs/MyOrg/.
func OwnerURL(ownerType, ownerID string) (string, error) {
	stem, err := OwnerStem(ownerType)
	if err != nil {
		return "", err
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner ID is required to build an owner URL")
	}
	return fmt.Sprintf("/%s/%s/", stem, ownerID), nil
}

// RepositoryURL builds a relative repository URL,
// e.g. /orgs/MyOrg/sources/MySource/.
func RepositoryURL(ownerType, ownerID, repoType, repoID string) (string, error) {
	ownerURL, err := OwnerURL(ownerType, ownerID)
	if err != nil {
		return "", err
	}
	stem, err := RepoStem(repoType)
	if err != nil {
		return "", err
	}
	if repoID == "" {
		return "", fmt.Errorf("repository ID is required to build a repository URL")
	}
	return fmt.Sprintf("%s%s/%s/", ownerURL, stem, repoID), nil
}

// ResourceURL builds a relative URL for a concept or mapping,
// e.g. /orgs/MyOrg/sources/MySource/concepts/1234/.
func ResourceURL(ownerType, ownerID, repoType, repoID, resourceType, resourceID string) (string, error) {
	repoURL, err := RepositoryURL(ownerType, ownerID, repoType, repoID)
	if err != nil {
		return "", err
	}
	var stem string
	switch resourceType {
	case TypeConcept:
		stem = ResourceStemConcepts
	case TypeMapping:
		stem = ResourceStemMappings
	default:
		return "", fmt.Errorf("resource type %q has no addressable URL", resourceType)
	}
	if resourceID == "" {
		return "", fmt.Errorf("resource ID is required to build a resource URL")
	}
	return fmt.Sprintf("%s%s/%s/", repoURL, stem, resourceID), nil
}
