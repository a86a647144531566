// Package converter turns tabular (CSV) resource rows into
// OCL-formatted JSON resources, driven by declarative resource
// definitions. A definition names a target resource type, the trigger
// that selects rows, and how each output field is sourced from the
// row: a column (with ordered fallbacks), a static value, a default,
// or a named processor.
package converter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AutoResourceType marks a definition that expands into one resource
// per auto-index found in the row (e.g. one mapping per map_to_* column
// group) using its Template.
const AutoResourceType = "AUTO-RESOURCE"

// Standard auto-index tokens: columns like name[2] or attr_key[01].
const (
	StandardIndexPrefix  = "["
	StandardIndexPostfix = "]"
	StandardIndexRegex   = `[a-zA-Z0-9\-_]+`
)

// FieldDef describes how one output field is produced from a CSV row.
type FieldDef struct {
	// ResourceField is the output field name.
	ResourceField string

	// Columns are tried in order; the first present, non-empty cell
	// wins.
	Columns []string

	// ColumnPrefix is used inside auto-resource and auto-subresource
	// templates: the indexed column (prefix + "[i]") is prepended to
	// Columns when the template is instantiated.
	ColumnPrefix string

	// Value, when set, is emitted as-is and wins over Columns.
	Value    any
	HasValue bool

	// Default is emitted when no column yields a value.
	Default    any
	HasDefault bool

	// Required makes a missing value an error instead of an omission.
	Required bool

	// Datatype coerces the cell value: "bool", "int", "float", "list".
	Datatype string

	// Processor names a registered value processor that computes the
	// field from the whole row.
	Processor string
}

// KeyValueDef describes one entry of a key-value group (e.g. extras).
// The key comes from Key or the KeyColumn cell; the value from Value
// or the ValueColumn cell.
type KeyValueDef struct {
	Key         string
	KeyColumn   string
	Value       any
	HasValue    bool
	ValueColumn string

	// OmitIfEmptyValue defaults to true.
	OmitIfEmptyValue *bool
}

// AutoSubResources describes auto-generated subresource lists such as
// concept names and descriptions: a primary entry built from the
// standard columns plus one entry per auto-index (name[2], name[3], ...).
type AutoSubResources struct {
	Group         string
	SkipIfEmpty   []string
	Primary       []FieldDef
	Auto          []FieldDef
	IndexPrefix   string
	IndexPostfix  string
	IndexRegex    string
}

// AutoAttributes describes auto-collected custom attributes: standard
// columns ("attr:Name") and indexed key/value column pairs
// (attr_key[01] / attr_value[01]).
type AutoAttributes struct {
	StandardColumnPrefix string
	Separator            string
	KeyColumnPrefix      string
	ValueColumnPrefix    string
	IndexPrefix          string
	IndexPostfix         string
	IndexRegex           string
	OmitIfEmptyValue     *bool
}

// AutoTemplate is the per-index definition instantiated by an
// AUTO-RESOURCE definition.
type AutoTemplate struct {
	Name              string
	ResourceType      string
	IndexPrefix       string
	IndexPostfix      string
	IndexRegex        string
	SkipIfEmptyPrefix []string
	CoreFields        []FieldDef
}

// Definition describes how rows become resources of one type.
type Definition struct {
	Name          string
	ResourceType  string
	IsActive      bool
	TriggerColumn string
	TriggerValue  string
	SkipIfEmpty   []string
	IDColumn      string
	CoreFields    []FieldDef
	Subresources  map[string][][]FieldDef
	KeyValuePairs map[string][]KeyValueDef

	AutoNames        *AutoSubResources
	AutoDescriptions *AutoSubResources
	AutoAttributes   *AutoAttributes

	// Template is required when ResourceType is AutoResourceType.
	Template *AutoTemplate
}

// ParseDefinitions reads resource definitions from YAML (or JSON,
// which YAML subsumes). The document is a list of definition maps
// mirroring the Definition structure with snake_case keys.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse resource definitions: %w", err)
	}
	defs := make([]Definition, 0, len(raw))
	for i, m := range raw {
		def, err := definitionFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("resource definition %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadDefinitionsFile reads resource definitions from a YAML or JSON
// file.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resource definitions: %w", err)
	}
	return ParseDefinitions(data)
}

func definitionFromMap(m map[string]any) (Definition, error) {
	def := Definition{
		Name:          stringKey(m, "definition_name"),
		ResourceType:  stringKey(m, "resource_type"),
		TriggerColumn: stringKey(m, "__trigger_column"),
		TriggerValue:  stringKey(m, "__trigger_value"),
		IDColumn:      stringKey(m, "id_column"),
		SkipIfEmpty:   stringList(m["skip_if_empty_column"]),
		IsActive:      true,
	}
	if v, ok := m["is_active"]; ok {
		active, _ := v.(bool)
		def.IsActive = active
	}
	if def.ResourceType == "" {
		return def, fmt.Errorf("missing required resource_type")
	}

	if raw, ok := m["core_fields"].([]any); ok {
		fields, err := fieldDefsFromList(raw)
		if err != nil {
			return def, fmt.Errorf("core_fields: %w", err)
		}
		def.CoreFields = fields
	}

	if raw, ok := m["subresources"].(map[string]any); ok {
		def.Subresources = make(map[string][][]FieldDef, len(raw))
		for group, groupRaw := range raw {
			entries, ok := groupRaw.([]any)
			if !ok {
				return def, fmt.Errorf("subresources %q: expected a list", group)
			}
			for _, entryRaw := range entries {
				entryList, ok := entryRaw.([]any)
				if !ok {
					return def, fmt.Errorf("subresources %q: each entry must be a field list", group)
				}
				fields, err := fieldDefsFromList(entryList)
				if err != nil {
					return def, fmt.Errorf("subresources %q: %w", group, err)
				}
				def.Subresources[group] = append(def.Subresources[group], fields)
			}
		}
	}

	if raw, ok := m["key_value_pairs"].(map[string]any); ok {
		def.KeyValuePairs = make(map[string][]KeyValueDef, len(raw))
		for group, groupRaw := range raw {
			entries, ok := groupRaw.([]any)
			if !ok {
				return def, fmt.Errorf("key_value_pairs %q: expected a list", group)
			}
			for _, entryRaw := range entries {
				entry, ok := entryRaw.(map[string]any)
				if !ok {
					return def, fmt.Errorf("key_value_pairs %q: each entry must be a map", group)
				}
				kvp := KeyValueDef{
					Key:         stringKey(entry, "key"),
					KeyColumn:   stringKey(entry, "key_column"),
					ValueColumn: stringKey(entry, "value_column"),
				}
				if v, ok := entry["value"]; ok {
					kvp.Value = v
					kvp.HasValue = true
				}
				if v, ok := entry["omit_if_empty_value"].(bool); ok {
					kvp.OmitIfEmptyValue = &v
				}
				def.KeyValuePairs[group] = append(def.KeyValuePairs[group], kvp)
			}
		}
	}

	var err error
	if def.AutoNames, err = autoSubResourcesFromMap(m["auto_concept_names"]); err != nil {
		return def, fmt.Errorf("auto_concept_names: %w", err)
	}
	if def.AutoDescriptions, err = autoSubResourcesFromMap(m["auto_concept_descriptions"]); err != nil {
		return def, fmt.Errorf("auto_concept_descriptions: %w", err)
	}
	def.AutoAttributes = autoAttributesFromMap(m["auto_attributes"])

	if raw, ok := m["auto_resource_template"].(map[string]any); ok {
		tpl := &AutoTemplate{
			Name:              stringKey(raw, "definition_name"),
			ResourceType:      stringKey(raw, "resource_type"),
			IndexPrefix:       stringKey(raw, "index_prefix"),
			IndexPostfix:      stringKey(raw, "index_postfix"),
			IndexRegex:        stringKey(raw, "index_regex"),
			SkipIfEmptyPrefix: stringList(raw["skip_if_empty_column_prefix"]),
		}
		if fieldsRaw, ok := raw["core_fields"].([]any); ok {
			fields, err := fieldDefsFromList(fieldsRaw)
			if err != nil {
				return def, fmt.Errorf("auto_resource_template core_fields: %w", err)
			}
			tpl.CoreFields = fields
		}
		def.Template = tpl
	}
	if def.ResourceType == AutoResourceType && def.Template == nil {
		return def, fmt.Errorf("AUTO-RESOURCE definition requires auto_resource_template")
	}

	return def, nil
}

func fieldDefsFromList(raw []any) ([]FieldDef, error) {
	fields := make([]FieldDef, 0, len(raw))
	for i, entryRaw := range raw {
		entry, ok := entryRaw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %d: expected a map", i)
		}
		f := FieldDef{
			ResourceField: stringKey(entry, "resource_field"),
			Columns:       stringList(entry["column"]),
			ColumnPrefix:  stringKey(entry, "column_prefix"),
			Datatype:      stringKey(entry, "datatype"),
			Processor:     stringKey(entry, "csv_to_json_processor"),
		}
		if f.ResourceField == "" {
			return nil, fmt.Errorf("field %d: missing resource_field", i)
		}
		if v, ok := entry["value"]; ok {
			f.Value = v
			f.HasValue = true
		}
		if v, ok := entry["default"]; ok {
			f.Default = v
			f.HasDefault = true
		}
		if v, ok := entry["required"].(bool); ok {
			f.Required = v
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func autoSubResourcesFromMap(v any) (*AutoSubResources, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	auto := &AutoSubResources{
		Group:        stringKey(raw, "sub_resource_type"),
		SkipIfEmpty:  stringList(raw["skip_if_empty_column"]),
		IndexPrefix:  stringKey(raw, "index_prefix"),
		IndexPostfix: stringKey(raw, "index_postfix"),
		IndexRegex:   stringKey(raw, "index_regex"),
	}
	if auto.Group == "" {
		return nil, fmt.Errorf("missing required sub_resource_type")
	}
	if fieldsRaw, ok := raw["primary_sub_resource"].([]any); ok {
		fields, err := fieldDefsFromList(fieldsRaw)
		if err != nil {
			return nil, fmt.Errorf("primary_sub_resource: %w", err)
		}
		auto.Primary = fields
	}
	if fieldsRaw, ok := raw["auto_sub_resources"].([]any); ok {
		fields, err := fieldDefsFromList(fieldsRaw)
		if err != nil {
			return nil, fmt.Errorf("auto_sub_resources: %w", err)
		}
		auto.Auto = fields
	}
	return auto, nil
}

func autoAttributesFromMap(v any) *AutoAttributes {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	auto := &AutoAttributes{
		StandardColumnPrefix: stringKey(raw, "standard_column_prefix"),
		Separator:            stringKey(raw, "separator"),
		KeyColumnPrefix:      stringKey(raw, "key_column_prefix"),
		ValueColumnPrefix:    stringKey(raw, "value_column_prefix"),
		IndexPrefix:          stringKey(raw, "index_prefix"),
		IndexPostfix:         stringKey(raw, "index_postfix"),
		IndexRegex:           stringKey(raw, "index_regex"),
	}
	if b, ok := raw["omit_if_empty_value"].(bool); ok {
		auto.OmitIfEmptyValue = &b
	}
	return auto
}

func stringKey(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// stringList accepts a string or a list of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}
