package converter

import (
	"github.com/openconceptlab/ocldev/resources"
)

// Column spec helpers for the standard definition table.

func column(field string, columns ...string) FieldDef {
	return FieldDef{ResourceField: field, Columns: columns}
}

func columnDefault(field string, def any, columns ...string) FieldDef {
	return FieldDef{ResourceField: field, Columns: columns, Default: def, HasDefault: true}
}

func prefixed(field, prefix string, fallback ...string) FieldDef {
	return FieldDef{ResourceField: field, ColumnPrefix: prefix, Columns: fallback}
}

func prefixedDefault(field, prefix string, def any, fallback ...string) FieldDef {
	return FieldDef{ResourceField: field, ColumnPrefix: prefix, Columns: fallback,
		Default: def, HasDefault: true}
}

func boolColumn(field string, columns ...string) FieldDef {
	return FieldDef{ResourceField: field, Columns: columns, Datatype: "bool"}
}

func standardAutoAttributes() *AutoAttributes {
	return &AutoAttributes{
		StandardColumnPrefix: "attr", // e.g. attr:Reporting Frequency
		Separator:            ":",
		KeyColumnPrefix:      "attr_key", // e.g. attr_key[01] paired with attr_value[01]
		ValueColumnPrefix:    "attr_value",
		IndexPrefix:          StandardIndexPrefix,
		IndexPostfix:         StandardIndexPostfix,
		IndexRegex:           StandardIndexRegex,
	}
}

// StandardDefinitions returns the standard OCL resource definition set:
// organizations, sources, collections, concepts with auto names,
// descriptions, attributes and mappings, standalone mappings, and
// repository versions. Each call returns a fresh copy safe to modify.
func StandardDefinitions() []Definition {
	return []Definition{
		{
			Name:          "Generic Organization",
			IsActive:      true,
			ResourceType:  resources.TypeOrganization,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeOrganization,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("name", "name"),
				column("company", "company"),
				column("website", "website"),
				column("location", "location"),
				columnDefault("public_access", "View", "public_access"),
			},
			AutoAttributes: standardAutoAttributes(),
		},
		{
			Name:          "Generic Source",
			IsActive:      true,
			ResourceType:  resources.TypeSource,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeSource,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("external_id", "external_id"),
				column("short_code", "short_code", "id"),
				column("name", "name"),
				column("full_name", "full_name", "name"),
				column("source_type", "source_type"),
				columnDefault("public_access", "View", "public_access"),
				columnDefault("default_locale", "en", "default_locale"),
				columnDefault("supported_locales", "en", "supported_locales"),
				column("website", "website"),
				column("description", "description"),
				column("custom_validation_schema", "custom_validation_schema"),
				column("owner", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "owner_type"),
			},
			AutoAttributes: standardAutoAttributes(),
		},
		{
			Name:          "Generic Collection",
			IsActive:      true,
			ResourceType:  resources.TypeCollection,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeCollection,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("external_id", "external_id"),
				column("short_code", "short_code", "id"),
				column("name", "name"),
				column("full_name", "full_name", "name"),
				column("collection_type", "collection_type"),
				columnDefault("public_access", "View", "public_access"),
				columnDefault("default_locale", "en", "default_locale"),
				columnDefault("supported_locales", "en", "supported_locales"),
				column("website", "website"),
				column("description", "description"),
				column("custom_validation_schema", "custom_validation_schema"),
				column("owner", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "owner_type"),
			},
			AutoAttributes: standardAutoAttributes(),
		},
		{
			Name:          "Generic Concept",
			IsActive:      true,
			ResourceType:  resources.TypeConcept,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeConcept,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("retired", "retired"),
				column("external_id", "external_id"),
				column("concept_class", "concept_class"),
				columnDefault("datatype", "None", "datatype"),
				column("owner", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "owner_type"),
				column("source", "source"),
			},
			AutoNames: &AutoSubResources{
				Group:       "names",
				SkipIfEmpty: []string{"name"},
				Primary: []FieldDef{
					column("name", "name"),
					columnDefault("locale", "en", "name_locale"),
					columnDefault("locale_preferred", true, "name_locale_preferred"),
					columnDefault("name_type", "Fully Specified", "name_type"),
					column("external_id", "name_external_id"),
				},
				IndexPrefix:  StandardIndexPrefix,
				IndexPostfix: StandardIndexPostfix,
				IndexRegex:   StandardIndexRegex,
				Auto: []FieldDef{
					prefixed("name", "name"),
					prefixedDefault("locale", "name_locale", "en"),
					prefixed("locale_preferred", "name_locale_preferred"),
					prefixed("name_type", "name_type"),
					prefixed("external_id", "name_external_id"),
				},
			},
			AutoDescriptions: &AutoSubResources{
				Group:       "descriptions",
				SkipIfEmpty: []string{"description"},
				Primary: []FieldDef{
					column("description", "description"),
					columnDefault("locale", "en", "description_locale"),
					column("locale_preferred", "description_locale_preferred"),
					column("description_type", "description_type"),
					column("external_id", "description_external_id"),
				},
				IndexPrefix:  StandardIndexPrefix,
				IndexPostfix: StandardIndexPostfix,
				IndexRegex:   StandardIndexRegex,
				Auto: []FieldDef{
					prefixed("description", "description"),
					prefixedDefault("locale", "description_locale", "en"),
					prefixed("locale_preferred", "description_locale_preferred"),
					prefixed("description_type", "description_type"),
					prefixed("external_id", "description_external_id"),
				},
			},
			AutoAttributes: standardAutoAttributes(),
		},
		{
			Name:          "Generic Auto Concept Internal Mappings",
			IsActive:      true,
			ResourceType:  AutoResourceType,
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeConcept,
			Template: &AutoTemplate{
				Name:              "Generic Concept Internal Mapping",
				ResourceType:      resources.TypeMapping,
				IndexPrefix:       StandardIndexPrefix,
				IndexPostfix:      StandardIndexPostfix,
				IndexRegex:        StandardIndexRegex,
				SkipIfEmptyPrefix: []string{"map_to_concept_id", "map_to_concept_url"},
				CoreFields: []FieldDef{
					prefixedDefault("map_target", "map_target", resources.MappingTargetInternal),
					prefixedDefault("map_type", "map_type", "Same As"),
					prefixed("external_id", "map_external_id"),
					prefixed("from_concept_url", "map_from_concept_url"),
					prefixed("from_concept_id", "map_from_concept_id", "id"),
					prefixed("from_concept_owner_id", "map_from_concept_owner_id", "owner_id"),
					prefixedDefault("from_concept_owner_type", "map_from_concept_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("from_concept_source", "map_from_concept_source", "source"),
					prefixed("to_concept_url", "map_to_concept_url"),
					prefixed("to_concept_code", "map_to_concept_id"),
					prefixed("to_concept_name", "map_to_concept_name"),
					prefixed("to_concept_owner_id", "map_to_concept_owner_id", "owner_id"),
					prefixedDefault("to_concept_owner_type", "map_to_concept_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("to_concept_source", "map_to_concept_source", "source"),
					prefixed("owner", "map_owner_id", "owner_id"),
					prefixedDefault("owner_type", "map_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("source", "map_source", "source"),
				},
			},
		},
		{
			Name:          "Generic Auto Concept External Mappings",
			IsActive:      true,
			ResourceType:  AutoResourceType,
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeConcept,
			Template: &AutoTemplate{
				Name:              "Generic Concept External Mapping",
				ResourceType:      resources.TypeMapping,
				IndexPrefix:       StandardIndexPrefix,
				IndexPostfix:      StandardIndexPostfix,
				IndexRegex:        StandardIndexRegex,
				SkipIfEmptyPrefix: []string{"extmap_to_concept_id", "extmap_to_concept_url"},
				CoreFields: []FieldDef{
					prefixedDefault("map_target", "extmap_target", resources.MappingTargetExternal),
					prefixedDefault("map_type", "extmap_type", "Same As"),
					prefixed("external_id", "extmap_external_id"),
					prefixed("from_concept_url", "extmap_from_concept_url"),
					prefixed("from_concept_id", "extmap_from_concept_id", "id"),
					prefixed("from_concept_owner_id", "extmap_from_concept_owner_id", "owner_id"),
					prefixedDefault("from_concept_owner_type", "extmap_from_concept_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("from_concept_source", "extmap_from_concept_source", "source"),
					prefixed("to_concept_url", "extmap_to_concept_url"),
					prefixed("to_concept_code", "extmap_to_concept_id"),
					prefixed("to_concept_name", "extmap_to_concept_name"),
					prefixed("to_concept_owner_id", "extmap_to_concept_owner_id", "owner_id"),
					prefixedDefault("to_concept_owner_type", "extmap_to_concept_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("to_concept_source", "extmap_to_concept_source", "source"),
					prefixed("to_source_url", "extmap_to_source_url"),
					prefixed("owner", "extmap_owner_id", "owner_id"),
					prefixedDefault("owner_type", "extmap_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("source", "extmap_source", "source"),
				},
			},
		},
		{
			Name:          "Generic Auto Concept Reference",
			IsActive:      false,
			ResourceType:  AutoResourceType,
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeConcept,
			Template: &AutoTemplate{
				Name:              "Generic Concept Reference",
				ResourceType:      resources.TypeReference,
				IndexPrefix:       StandardIndexPrefix,
				IndexPostfix:      StandardIndexPostfix,
				IndexRegex:        StandardIndexRegex,
				SkipIfEmptyPrefix: []string{"ref_collection"},
				CoreFields: []FieldDef{
					prefixed("owner", "ref_owner_id", "owner_id"),
					prefixedDefault("owner_type", "ref_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("collection", "ref_collection"),
					columnDefault("ref_type", resources.TypeConcept, "ref_type"),
					prefixed("ref_target_owner_id", "ref_target_owner_id", "owner_id"),
					prefixedDefault("ref_target_owner_type", "ref_target_owner_type",
						resources.TypeOrganization, "owner_type"),
					prefixed("ref_target_source", "ref_target_source", "source"),
					column("ref_target_concept_id", "id"),
					{ResourceField: "data", Processor: "process_auto_concept_reference"},
				},
			},
		},
		{
			Name:          "Generic Standalone Internal Mapping",
			IsActive:      true,
			ResourceType:  resources.TypeMapping,
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeMapping,
			SkipIfEmpty: []string{"map_to_concept_id", "to_concept_id",
				"map_to_concept_url", "to_concept_url"},
			CoreFields: []FieldDef{
				columnDefault("map_target", resources.MappingTargetInternal, "map_target"),
				columnDefault("map_type", "Same As", "map_type"),
				column("external_id", "external_id"),
				column("from_concept_url", "map_from_concept_url", "from_concept_url"),
				column("from_concept_id", "map_from_concept_id", "from_concept_id", "from_concept_code"),
				column("from_concept_owner_id", "map_from_concept_owner_id", "from_concept_owner_id", "owner_id"),
				columnDefault("from_concept_owner_type", resources.TypeOrganization,
					"map_from_concept_owner_type", "from_concept_owner_type", "owner_type"),
				column("from_concept_source", "map_from_concept_source", "from_concept_source", "source"),
				column("to_concept_url", "map_to_concept_url", "to_concept_url"),
				column("to_concept_code", "map_to_concept_id", "to_concept_id", "to_concept_code"),
				column("to_concept_name", "map_to_concept_name", "to_concept_name"),
				column("to_concept_owner_id", "map_to_concept_owner_id", "to_concept_owner_id", "owner_id"),
				columnDefault("to_concept_owner_type", resources.TypeOrganization,
					"map_to_concept_owner_type", "to_concept_owner_type", "owner_type"),
				column("to_concept_source", "map_to_concept_source", "to_concept_source", "source"),
				column("owner", "map_owner_id", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "map_owner_type", "owner_type"),
				column("source", "map_source", "source"),
			},
		},
		{
			Name:          "Generic Standalone External Mapping",
			IsActive:      true,
			ResourceType:  resources.TypeMapping,
			TriggerColumn: "resource_type",
			TriggerValue:  "External Mapping",
			SkipIfEmpty: []string{"map_to_concept_id", "to_concept_id",
				"map_to_concept_url", "to_concept_url"},
			CoreFields: []FieldDef{
				columnDefault("map_target", resources.MappingTargetExternal, "map_target"),
				columnDefault("map_type", "Same As", "map_type"),
				column("external_id", "external_id"),
				column("from_concept_url", "map_from_concept_url", "from_concept_url"),
				column("from_concept_id", "map_from_concept_id", "from_concept_id", "from_concept_code"),
				column("from_concept_owner_id", "map_from_concept_owner_id", "from_concept_owner_id", "owner_id"),
				columnDefault("from_concept_owner_type", resources.TypeOrganization,
					"map_from_concept_owner_type", "from_concept_owner_type", "owner_type"),
				column("from_concept_source", "map_from_concept_source", "from_concept_source", "source"),
				column("to_concept_code", "map_to_concept_id", "to_concept_id", "to_concept_code"),
				column("to_concept_name", "map_to_concept_name", "to_concept_name"),
				column("to_concept_owner_id", "map_to_concept_owner_id", "to_concept_owner_id", "owner_id"),
				columnDefault("to_concept_owner_type", resources.TypeOrganization,
					"map_to_concept_owner_type", "to_concept_owner_type", "owner_type"),
				column("to_concept_source", "map_to_concept_source", "to_concept_source", "source"),
				column("owner", "map_owner_id", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "map_owner_type", "owner_type"),
				column("source", "map_source", "source"),
			},
		},
		{
			Name:          "Generic Collection Reference",
			IsActive:      false,
			ResourceType:  resources.TypeReference,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeReference,
			SkipIfEmpty:   []string{"id"},
		},
		{
			Name:          "Generic Source Version",
			IsActive:      true,
			ResourceType:  resources.TypeSourceVersion,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeSourceVersion,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("description", "description"),
				boolColumn("released", "released"),
				boolColumn("retired", "retired"),
				column("owner", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "owner_type"),
				column("source", "source"),
			},
		},
		{
			Name:          "Generic Collection Version",
			IsActive:      true,
			ResourceType:  resources.TypeCollectionVersion,
			IDColumn:      "id",
			TriggerColumn: "resource_type",
			TriggerValue:  resources.TypeCollectionVersion,
			SkipIfEmpty:   []string{"id"},
			CoreFields: []FieldDef{
				column("description", "description"),
				boolColumn("released", "released"),
				boolColumn("retired", "retired"),
				column("owner", "owner_id"),
				columnDefault("owner_type", resources.TypeOrganization, "owner_type"),
				column("collection", "collection"),
			},
		},
	}
}
