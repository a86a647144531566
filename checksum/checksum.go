// Package checksum computes OCL resource checksums: an MD5 over a
// canonical serialization of the resource's comparable fields. The
// serialization matches the OCL server's, so checksums computed here
// line up with the ones the API reports.
//
// Two checksum types exist. Standard covers every field that makes
// two resources equivalent; smart covers only the fields that matter
// for a content-level comparison (for concepts, the fully specified
// names).
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Type selects which fields take part in the checksum.
type Type string

const (
	Standard Type = "standard"
	Smart    Type = "smart"
)

// Resource kinds accepted by Generate. Plural and versioned aliases
// of each are accepted too.
const (
	KindConcept            = "concept"
	KindConceptName        = "conceptname"
	KindConceptDescription = "conceptdescription"
	KindMapping            = "mapping"
	KindOrganization       = "organization"
	KindUser               = "user"
	KindSource             = "source"
	KindCollection         = "collection"
)

var kindAliases = map[string]string{
	"conceptname": KindConceptName, "conceptnames": KindConceptName,
	"conceptdescription": KindConceptDescription, "conceptdescriptions": KindConceptDescription,
	"concept": KindConcept, "concepts": KindConcept,
	"concept_version": KindConcept, "concept_versions": KindConcept,
	"mapping": KindMapping, "mappings": KindMapping,
	"mapping_version": KindMapping, "mapping_versions": KindMapping,
	"organization": KindOrganization, "org": KindOrganization,
	"orgs": KindOrganization, "organizations": KindOrganization,
	"user": KindUser, "userprofile": KindUser,
	"users": KindUser, "userprofiles": KindUser,
	"source": KindSource, "sources": KindSource,
	"source_version": KindSource, "source_versions": KindSource,
	"collection": KindCollection, "collections": KindCollection,
	"collection_version": KindCollection, "collection_versions": KindCollection,
}

// Generate computes the checksum of one resource, or of a list of
// resources (a []any of objects), of the given kind. An empty kind
// hashes the data as-is without field extraction.
func Generate(kind string, data any, checksumType Type) (string, error) {
	if checksumType != Standard && checksumType != Smart {
		return "", fmt.Errorf("invalid checksum type %q", checksumType)
	}

	canonical := ""
	if kind != "" {
		var ok bool
		canonical, ok = kindAliases[strings.ToLower(kind)]
		if !ok {
			return "", fmt.Errorf("invalid resource kind %q", kind)
		}
	}

	items := flatten(data)
	sums := make([]any, 0, len(items))
	for _, item := range items {
		fields := extractFields(canonical, item, checksumType)
		sums = append(sums, hashOf(cleanup(fields)))
	}
	if len(sums) == 1 {
		return sums[0].(string), nil
	}
	return hashOf(sums), nil
}

func flatten(data any) []any {
	if list, ok := data.([]any); ok {
		return list
	}
	return []any{data}
}

func hashOf(obj any) string {
	sum := md5.Sum([]byte(serialize(obj)))
	return hex.EncodeToString(sum[:])
}

func extractFields(kind string, data any, t Type) any {
	m, _ := data.(map[string]any)
	switch kind {
	case KindConceptName:
		return conceptNameFields(m)
	case KindConceptDescription:
		return conceptDescriptionFields(m)
	case KindConcept:
		return conceptFields(m, t)
	case KindMapping:
		return mappingFields(m, t)
	case KindOrganization:
		return organizationFields(m, t)
	case KindUser:
		return userFields(m, t)
	case KindSource:
		return sourceFields(m, t)
	case KindCollection:
		return collectionFields(m, t)
	}
	return data
}

// getValue returns the field's value, or the default when the field
// is missing or empty.
func getValue(m map[string]any, key string, def any) any {
	v, ok := m[key]
	if !ok || isEmpty(v) {
		return def
	}
	return v
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func conceptNameFields(m map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range []string{"locale", "locale_preferred", "name", "name_type", "external_id"} {
		out[f] = getValue(m, f, nil)
	}
	return out
}

func conceptDescriptionFields(m map[string]any) map[string]any {
	out := map[string]any{}
	for _, f := range []string{"locale", "locale_preferred", "description", "description_type", "external_id"} {
		out[f] = getValue(m, f, nil)
	}
	return out
}

func conceptFields(m map[string]any, t Type) map[string]any {
	fields := map[string]any{
		"concept_class": getValue(m, "concept_class", nil),
		"datatype":      getValue(m, "datatype", nil),
		"retired":       getValue(m, "retired", false),
	}
	if t == Standard {
		fields["external_id"] = getValue(m, "external_id", nil)
		fields["extras"] = getValue(m, "extras", nil)
		fields["names"] = localesFor(m, "names", func(map[string]any) bool { return true })
		fields["descriptions"] = localesFor(m, "descriptions", func(map[string]any) bool { return true })
		fields["parent_concept_urls"] = getValue(m, "parent_concept_urls", []any{})
		fields["child_concept_urls"] = getValue(m, "child_concept_urls", []any{})
		return fields
	}
	// Smart checksums compare only the fully specified names.
	fields["names"] = localesFor(m, "names", func(locale map[string]any) bool {
		nameType, _ := getValue(locale, "name_type", nil).(string)
		return isFullySpecifiedType(nameType)
	})
	return fields
}

func localesFor(m map[string]any, relation string, keep func(map[string]any) bool) []any {
	locales, _ := getValue(m, relation, nil).([]any)
	extract := conceptNameFields
	if relation == "descriptions" {
		extract = conceptDescriptionFields
	}
	out := []any{}
	for _, item := range locales {
		locale, _ := item.(map[string]any)
		if keep(locale) {
			out = append(out, extract(locale))
		}
	}
	return out
}

func isFullySpecifiedType(nameType string) bool {
	if nameType == "" {
		return false
	}
	if nameType == "FULLY_SPECIFIED" || nameType == "Fully Specified" {
		return true
	}
	normalized := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(nameType)
	return strings.ToLower(normalized) == "fullyspecified"
}

func mappingFields(m map[string]any, t Type) map[string]any {
	toCode, _ := getValue(m, "to_concept_code", nil).(string)
	toURL, _ := getValue(m, "to_concept_url", nil).(string)
	toSourceURL, _ := getValue(m, "to_source_url", nil).(string)
	toSourceVersion, _ := getValue(m, "to_source_version", nil).(string)
	fromCode, _ := getValue(m, "from_concept_code", nil).(string)
	fromURL, _ := getValue(m, "from_concept_url", nil).(string)
	fromSourceURL, _ := getValue(m, "from_source_url", nil).(string)
	fromSourceVersion, _ := getValue(m, "from_source_version", nil).(string)

	toCode, toSourceURL, toSourceVersion = expandConceptURL(toURL, toCode, toSourceURL, toSourceVersion)
	fromCode, fromSourceURL, fromSourceVersion = expandConceptURL(fromURL, fromCode, fromSourceURL, fromSourceVersion)

	fields := map[string]any{
		"map_type":          getValue(m, "map_type", nil),
		"from_concept_code": orNil(fromCode),
		"to_concept_code":   orNil(toCode),
		"from_concept_name": getValue(m, "from_concept_name", nil),
		"to_concept_name":   getValue(m, "to_concept_name", nil),
		"retired":           getValue(m, "retired", false),
	}
	if t != Standard {
		return fields
	}
	fields["sort_weight"] = getValue(m, "sort_weight", nil)
	fields["from_source_url"] = orNil(fromSourceURL)
	fields["from_source_version"] = orNil(fromSourceVersion)
	fields["to_source_url"] = orNil(toSourceURL)
	fields["to_source_version"] = orNil(toSourceVersion)
	fields["extras"] = getValue(m, "extras", nil)
	fields["external_id"] = getValue(m, "external_id", nil)
	return fields
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// expandConceptURL derives the concept code and source URL from a
// concept URL of the form {source_url}concepts/{code}/ when they are
// not given explicitly. A trailing source version segment on the
// source URL is split off.
func expandConceptURL(conceptURL, code, sourceURL, sourceVersion string) (string, string, string) {
	if conceptURL != "" && (code == "" || sourceURL == "") {
		parts := strings.SplitN(conceptURL, "/concepts/", 2)
		if len(parts) == 2 {
			if code == "" {
				code = strings.SplitN(parts[1], "/", 2)[0]
			}
			if sourceURL == "" {
				sourceURL = parts[0] + "/"
				if strings.Count(sourceURL, "/") == 6 {
					segments := strings.Split(sourceURL, "/")
					sourceVersion = segments[len(segments)-1]
					sourceURL = strings.Join(segments[:len(segments)-1], "/")
				}
			}
		}
	}
	if code != "" {
		if decoded, err := url.QueryUnescape(code); err == nil {
			code = decoded
		}
	}
	return code, sourceURL, sourceVersion
}

func organizationFields(m map[string]any, t Type) map[string]any {
	fields := map[string]any{
		"name":     getValue(m, "name", nil),
		"company":  getValue(m, "company", nil),
		"location": getValue(m, "location", nil),
		"website":  getValue(m, "website", nil),
	}
	if t == Standard {
		fields["extras"] = getValue(m, "extras", nil)
		return fields
	}
	fields["is_active"] = getValue(m, "is_active", true)
	return fields
}

func userFields(m map[string]any, t Type) map[string]any {
	fields := map[string]any{
		"first_name": getValue(m, "first_name", nil),
		"last_name":  getValue(m, "last_name", nil),
		"username":   getValue(m, "username", nil),
		"company":    getValue(m, "company", nil),
		"location":   getValue(m, "location", nil),
	}
	if t == Standard {
		fields["website"] = getValue(m, "website", nil)
		fields["preferred_locale"] = getValue(m, "preferred_locale", nil)
		fields["extras"] = getValue(m, "extras", nil)
		return fields
	}
	fields["is_active"] = getValue(m, "is_active", true)
	return fields
}

func sourceFields(m map[string]any, t Type) map[string]any {
	fields := map[string]any{
		"source_type":              getValue(m, "source_type", nil),
		"canonical_url":            getValue(m, "canonical_url", nil),
		"custom_validation_schema": getValue(m, "custom_validation_schema", nil),
		"default_locale":           getValue(m, "default_locale", nil),
	}
	if t == Standard {
		fields["hierarchy_meaning"] = getValue(m, "hierarchy_meaning", nil)
		fields["supported_locales"] = getValue(m, "supported_locales", nil)
		fields["website"] = getValue(m, "website", nil)
		fields["extras"] = getValue(m, "extras", nil)
		return fields
	}
	fields["released"] = getValue(m, "released", false)
	fields["retired"] = getValue(m, "retired", false)
	return fields
}

func collectionFields(m map[string]any, t Type) map[string]any {
	fields := map[string]any{
		"collection_type":          getValue(m, "collection_type", nil),
		"canonical_url":            getValue(m, "canonical_url", nil),
		"custom_validation_schema": getValue(m, "custom_validation_schema", nil),
		"default_locale":           getValue(m, "default_locale", nil),
	}
	if t == Standard {
		fields["supported_locales"] = getValue(m, "supported_locales", nil)
		fields["website"] = getValue(m, "website", nil)
		fields["extras"] = getValue(m, "extras", nil)
		return fields
	}
	fields["released"] = getValue(m, "released", false)
	fields["retired"] = getValue(m, "retired", false)
	return fields
}

// cleanup drops empty values and normalizes numbers before
// serialization, so that equivalent resources serialize identically.
func cleanup(v any) any {
	fields, ok := v.(map[string]any)
	if !ok {
		return v
	}
	dropIfEmpty := map[string]bool{
		"retired": true, "parent_concept_urls": true, "child_concept_urls": true,
		"descriptions": true, "extras": true, "names": true,
		"locale_preferred": true, "name_type": true, "description_type": true,
	}

	out := map[string]any{}
	for key, value := range fields {
		if value == nil {
			continue
		}
		if dropIfEmpty[key] && isEmpty(value) {
			continue
		}
		if key == "names" || key == "descriptions" {
			if list, ok := value.([]any); ok {
				cleaned := make([]any, 0, len(list))
				for _, item := range list {
					cleaned = append(cleaned, cleanup(item))
				}
				value = cleaned
			}
		}
		if key == "is_active" {
			if active, ok := value.(bool); ok && active {
				continue
			}
		}
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			value = int64(f)
		}
		if key == "extras" {
			if extras, ok := value.(map[string]any); ok {
				value = dropInternalExtras(extras)
			}
		}
		out[key] = value
	}
	return out
}

// Extras prefixed with a double underscore are import directives, not
// content, and are excluded from checksums.
func dropInternalExtras(extras map[string]any) map[string]any {
	hasInternal := false
	for k := range extras {
		if strings.HasPrefix(k, "__") {
			hasInternal = true
			break
		}
	}
	if !hasInternal {
		return extras
	}
	out := make(map[string]any, len(extras))
	for k, v := range extras {
		if !strings.HasPrefix(k, "__") {
			out[k] = v
		}
	}
	return out
}
