package validator

import "github.com/openconceptlab/ocldev/resources"

// The schema documents mirror the validation rules of the OCL bulk
// import API: required fields are checked for presence, everything
// else is advisory. Unknown properties are allowed so that custom
// attributes and extra CSV columns pass through untouched.

func strProp(description string) map[string]any {
	return map[string]any{"description": description, "type": "string"}
}

// anyProp is for fields like released/retired that accept booleans or
// their string spellings.
func anyProp(description string) map[string]any {
	return map[string]any{"description": description}
}

func objectSchema(id, title, description string, properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"$id":         "http://openconceptlab.org/" + id + ".schema.json",
		"title":       title,
		"description": description,
		"type":        "object",
		"properties":  properties,
		"required":    required,
	}
}

// repositoryProps returns the properties shared by sources and
// collections. typeField is "type" or "resource_type", ownerField is
// "owner" or "owner_id", and kindField is "source_type" or
// "collection_type".
func repositoryProps(typeField, ownerField, kindField, kind string) map[string]any {
	return map[string]any{
		typeField:  strProp("OCL resource type"),
		ownerField: strProp("ID for the owner of this resource"),
		"owner_type": strProp("Resource type for the owner of this resource, " +
			"either an Organization (default) or User."),
		"id":            strProp("ID of this " + kind),
		"name":          strProp("Name of the " + kind),
		"short_code":    strProp("Short code of the " + kind),
		"full_name":     strProp("Fully specified name of the " + kind),
		"external_id":   strProp("External ID for the " + kind),
		"public_access": strProp("Public access setting: View, Edit, or None"),
		kindField:       strProp("Repository type, eg Dictionary, Interface Terminology, etc"),
		"website":       strProp("Website URL"),
		"description":   strProp("Description of this repository"),
		"default_locale": strProp(
			"Default locale, eg 'en', for new content in this repository"),
		"supported_locales": strProp(
			"List of supported locales for this repository, eg \"en, es, fr\""),
		"custom_validation_schema": strProp("Custom validation schema for this repository"),
	}
}

func organizationProps(typeField string) map[string]any {
	return map[string]any{
		typeField:       strProp("OCL resource type"),
		"id":            strProp("ID of this resource"),
		"name":          strProp("Name of the organization"),
		"company":       strProp("Company name"),
		"website":       strProp("Website URL"),
		"location":      strProp("Location"),
		"public_access": strProp("Public access setting: View, Edit, or None"),
	}
}

// repoVersionProps covers source and collection versions. repoField is
// "source" or "collection".
func repoVersionProps(typeField, ownerField, repoField string) map[string]any {
	return map[string]any{
		typeField:  strProp("OCL resource type"),
		ownerField: strProp("ID for the owner of this resource"),
		"owner_type": strProp("Resource type for the owner of this resource, " +
			"either an Organization (default) or User."),
		repoField:     strProp("ID of the OCL " + repoField + " for this resource"),
		"id":          strProp("ID of this " + repoField + " version"),
		"description": strProp("Description for this " + repoField + " version."),
		"released":    anyProp("True if this " + repoField + " version is intended for use"),
		"retired":     anyProp("True if use of this " + repoField + " version is discouraged"),
	}
}

func mappingProps(typeField, ownerField string) map[string]any {
	return map[string]any{
		typeField:  strProp("OCL resource type"),
		ownerField: strProp("ID for the owner of this resource"),
		"owner_type": strProp("Resource type for the owner of this resource, " +
			"either an Organization (default) or User."),
		"source":   strProp("OCL source for this mapping"),
		"map_type": strProp("Map type for this mapping, eg \"Same As\" or \"Narrower Than\""),
		"id":       strProp("ID of this resource. Automatically assigned if omitted."),
		"from_concept_url": strProp(
			"Relative URL of the from_concept, eg \"/orgs/OCL/sources/Datatypes/concepts/Numeric/\""),
		"to_concept_url": strProp(
			"Relative URL of the to_concept, eg \"/orgs/OCL/sources/Datatypes/concepts/Numeric/\""),
		"to_source_url": strProp("Relative URL of the to_source, eg \"/orgs/WHO/sources/ICD-10/\""),
	}
}

// jsonSchemas returns the schemas for OCL-formatted JSON resources,
// keyed by the "type" discriminator.
func jsonSchemas() map[string]map[string]any {
	concept := objectSchema("json_concept", "JSON_Concept", "A JSON-based OCL concept",
		map[string]any{
			"type":  strProp("OCL resource type, eg \"Concept\" or \"Mapping\""),
			"owner": strProp("ID for the owner of this resource"),
			"owner_type": strProp("Resource type for the owner of this resource, " +
				"either \"Organization\" or \"User\"."),
			"source":        strProp("OCL source for this concept"),
			"concept_class": strProp("Class for this concept, eg Symptom, Diagnosis"),
			"datatype":      strProp("Datatype for this concept, eg Numeric, Text, Coded"),
			"id":            strProp("ID of this resource"),
			"external_id":   strProp("External identifier of this resource"),
		},
		"type", "id", "owner", "source", "concept_class", "datatype")

	return map[string]map[string]any{
		resources.TypeOrganization: objectSchema("json_organization", "JSON_Organization",
			"A JSON-based OCL Organization", organizationProps("type"),
			"type", "id", "name"),
		resources.TypeSource: objectSchema("json_source", "JSON_Source",
			"A JSON-based OCL Source",
			repositoryProps("type", "owner", "source_type", "source"),
			"type", "owner", "id", "name"),
		resources.TypeCollection: objectSchema("json_collection", "JSON_Collection",
			"A JSON-based OCL Collection",
			repositoryProps("type", "owner", "collection_type", "collection"),
			"type", "owner", "id", "name"),
		resources.TypeConcept: concept,
		resources.TypeMapping: objectSchema("json_mapping", "JSON_Mapping",
			"A JSON-based OCL mapping", mappingProps("type", "owner"),
			"type", "owner", "source", "from_concept_url", "map_type"),
		// References carry arbitrary expressions; anything goes.
		resources.TypeReference: {},
		resources.TypeSourceVersion: objectSchema("json_source_version", "JSON_Source_Version",
			"A JSON-based OCL Source Version",
			repoVersionProps("type", "owner", "source"),
			"type", "owner", "source", "id", "description"),
		resources.TypeCollectionVersion: objectSchema("json_collection_version",
			"JSON_Collection_Version", "A JSON-based OCL Collection Version",
			repoVersionProps("type", "owner", "collection"),
			"type", "owner", "collection", "id", "description"),
	}
}

// csvSchemas returns the schemas for CSV resource rows, keyed by the
// "resource_type" discriminator.
func csvSchemas() map[string]map[string]any {
	concept := objectSchema("csv_concept", "CSV_Concept", "A CSV-based OCL concept",
		map[string]any{
			"resource_type": strProp("OCL resource type"),
			"owner_id":      strProp("ID for the owner of this resource"),
			"owner_type": strProp("Resource type for the owner of this resource, " +
				"either an Organization (default) or User."),
			"source":        strProp("OCL source for this resource"),
			"concept_class": strProp("Class for this concept, eg Symptom, Diagnosis"),
			"id":            strProp("ID of this resource"),
			"name":          strProp("Primary name of the concept"),
		},
		"resource_type", "id", "owner_id", "source", "concept_class", "name")

	return map[string]map[string]any{
		resources.TypeOrganization: objectSchema("csv_organization", "CSV_Organization",
			"A CSV-based OCL Organization", organizationProps("resource_type"),
			"resource_type", "id", "name"),
		resources.TypeSource: objectSchema("csv_source", "CSV_Source",
			"A CSV-based OCL Source",
			repositoryProps("resource_type", "owner_id", "source_type", "source"),
			"resource_type", "owner_id", "id", "name"),
		resources.TypeCollection: objectSchema("csv_collection", "CSV_Collection",
			"A CSV-based OCL Collection",
			repositoryProps("resource_type", "owner_id", "collection_type", "collection"),
			"resource_type", "owner_id", "id", "name"),
		resources.TypeConcept: concept,
		resources.TypeMapping: objectSchema("csv_mapping", "CSV_Mapping",
			"A CSV-based OCL mapping", mappingProps("resource_type", "owner_id"),
			"resource_type", "owner_id", "source", "from_concept_url", "map_type"),
		resources.TypeReference: {},
		resources.TypeSourceVersion: objectSchema("csv_source_version", "CSV_Source_Version",
			"A CSV-based OCL Source Version",
			repoVersionProps("resource_type", "owner_id", "source"),
			"resource_type", "owner_id", "source", "id", "description"),
		resources.TypeCollectionVersion: objectSchema("csv_collection_version",
			"CSV_Collection_Version", "A CSV-based OCL Collection Version",
			repoVersionProps("resource_type", "owner_id", "collection"),
			"resource_type", "owner_id", "collection", "id", "description"),
	}
}
