package importer

import "github.com/openconceptlab/ocldev/resources"

// endpointDef describes how one resource type maps onto the REST API:
// which URL stem it lives under, what addressing it needs, which
// fields the server accepts, and the HTTP methods for create/update.
type endpointDef struct {
	idField       string
	stem          string
	hasOwner      bool
	hasSource     bool
	hasCollection bool
	// Source and collection versions are fetched at {repo}/{id}/
	// rather than {repo}/versions/{id}/.
	omitStemOnGet bool
	allowedFields []string
	createMethod  string
	updateMethod  string
}

var endpoints = map[string]endpointDef{
	resources.TypeOrganization: {
		idField: "id",
		stem:    "orgs",
		allowedFields: []string{
			"id", "company", "extras", "location", "name", "public_access", "website",
		},
		createMethod: "POST",
		updateMethod: "PUT",
	},
	resources.TypeSource: {
		idField:  "id",
		stem:     "sources",
		hasOwner: true,
		allowedFields: []string{
			"id", "short_code", "name", "full_name", "description",
			"source_type", "custom_validation_schema", "public_access",
			"default_locale", "supported_locales", "website", "extras", "external_id",
		},
		createMethod: "POST",
		updateMethod: "PUT",
	},
	resources.TypeCollection: {
		idField:  "id",
		stem:     "collections",
		hasOwner: true,
		allowedFields: []string{
			"id", "short_code", "name", "full_name", "description", "collection_type",
			"custom_validation_schema", "public_access", "default_locale",
			"supported_locales", "website", "extras", "external_id",
		},
		createMethod: "POST",
		updateMethod: "PUT",
	},
	resources.TypeConcept: {
		idField:   "id",
		stem:      "concepts",
		hasOwner:  true,
		hasSource: true,
		allowedFields: []string{
			"id", "external_id", "concept_class", "datatype", "names",
			"descriptions", "retired", "extras",
		},
		createMethod: "POST",
		updateMethod: "PUT",
	},
	resources.TypeMapping: {
		idField:   "id",
		stem:      "mappings",
		hasOwner:  true,
		hasSource: true,
		allowedFields: []string{
			"id", "map_type", "from_concept_url", "to_source_url", "to_concept_url",
			"to_concept_code", "to_concept_name", "extras", "external_id",
		},
		createMethod: "POST",
		updateMethod: "POST",
	},
	resources.TypeReference: {
		stem:          "references",
		hasOwner:      true,
		hasCollection: true,
		allowedFields: []string{"data"},
		createMethod:  "PUT",
	},
	resources.TypeSourceVersion: {
		idField:       "id",
		stem:          "versions",
		hasOwner:      true,
		hasSource:     true,
		omitStemOnGet: true,
		allowedFields: []string{"id", "external_id", "description", "released"},
		createMethod:  "POST",
		updateMethod:  "POST",
	},
	resources.TypeCollectionVersion: {
		idField:       "id",
		stem:          "versions",
		hasOwner:      true,
		hasCollection: true,
		omitStemOnGet: true,
		allowedFields: []string{"id", "external_id", "description", "released"},
		createMethod:  "POST",
		updateMethod:  "PUT",
	},
	resources.TypeUser: {
		idField: "username",
		stem:    "users",
		allowedFields: []string{
			"username", "name", "email", "company", "location", "preferred_locale",
		},
		createMethod: "POST",
		updateMethod: "POST",
	},
}

func (d endpointDef) allows(field string) bool {
	for _, f := range d.allowedFields {
		if f == field {
			return true
		}
	}
	return false
}
