// Package validator checks OCL resources against per-type JSON
// schemas (draft-07). JSON resources are keyed by the "type" field,
// CSV resources by "resource_type". The two validators differ in their
// default handling of unknown types: the JSON validator errors, the
// CSV validator skips (CSV files routinely carry rows the converter
// expands into other types).
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/openconceptlab/ocldev/resources"
)

// Finding is a single validation failure for one resource.
type Finding struct {
	Index        int    // Position in the validated list (-1 for single resources)
	ResourceType string // Type discriminator of the offending resource
	Field        string // Offending field, "" for resource-level problems
	Message      string // Human-readable description
}

func (f Finding) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("resource %d (%s): %s: %s", f.Index, f.ResourceType, f.Field, f.Message)
	}
	return fmt.Sprintf("resource %d (%s): %s", f.Index, f.ResourceType, f.Message)
}

// Result collects the findings of a validation run.
type Result struct {
	Findings []Finding
}

// Valid reports whether the run produced no findings.
func (r Result) Valid() bool { return len(r.Findings) == 0 }

// Err returns an error summarizing the findings, or nil when valid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		msgs = append(msgs, f.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validator validates resources against a set of per-type schemas.
type Validator struct {
	schemas     map[string]*gojsonschema.Schema
	typeField   string
	skipUnknown bool
}

// Option configures a Validator.
type Option func(*Validator)

// SkipUnknownTypes makes resources with a missing or unrecognized type
// discriminator pass without validation instead of producing a finding.
func SkipUnknownTypes(skip bool) Option {
	return func(v *Validator) { v.skipUnknown = skip }
}

// NewJSON creates a validator for OCL-formatted JSON resources.
// Unknown resource types produce findings unless SkipUnknownTypes(true)
// is given.
func NewJSON(opts ...Option) (*Validator, error) {
	return newValidator("type", jsonSchemas(), false, opts)
}

// NewCSV creates a validator for CSV resource rows. Unknown resource
// types are skipped unless SkipUnknownTypes(false) is given.
func NewCSV(opts ...Option) (*Validator, error) {
	return newValidator("resource_type", csvSchemas(), true, opts)
}

func newValidator(typeField string, rawSchemas map[string]map[string]any, skipUnknown bool, opts []Option) (*Validator, error) {
	v := &Validator{
		schemas:     make(map[string]*gojsonschema.Schema, len(rawSchemas)),
		typeField:   typeField,
		skipUnknown: skipUnknown,
	}
	// Compile in sorted order so a broken schema is reported
	// deterministically.
	types := make([]string, 0, len(rawSchemas))
	for t := range rawSchemas {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(rawSchemas[t]))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", t, err)
		}
		v.schemas[t] = schema
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ValidateResource validates a single resource. The index is recorded
// as -1 in any findings.
func (v *Validator) ValidateResource(r resources.Resource) []Finding {
	return v.validateAt(-1, r)
}

// Validate validates every resource in the list, collecting all
// findings rather than stopping at the first.
func (v *Validator) Validate(list *resources.ResourceList) Result {
	var result Result
	for i, r := range list.Resources() {
		result.Findings = append(result.Findings, v.validateAt(i, r)...)
	}
	return result
}

func (v *Validator) validateAt(index int, r resources.Resource) []Finding {
	resourceType := r.GetString(v.typeField)
	if resourceType == "" {
		if v.skipUnknown {
			return nil
		}
		return []Finding{{
			Index:   index,
			Message: fmt.Sprintf("missing %q field", v.typeField),
		}}
	}

	schema, ok := v.schemas[resourceType]
	if !ok {
		if v.skipUnknown {
			return nil
		}
		return []Finding{{
			Index:        index,
			ResourceType: resourceType,
			Message:      fmt.Sprintf("unrecognized resource type %q", resourceType),
		}}
	}

	loaded, err := schema.Validate(gojsonschema.NewGoLoader(map[string]any(r)))
	if err != nil {
		return []Finding{{
			Index:        index,
			ResourceType: resourceType,
			Message:      err.Error(),
		}}
	}

	findings := make([]Finding, 0, len(loaded.Errors()))
	for _, schemaErr := range loaded.Errors() {
		field := schemaErr.Field()
		if field == "(root)" {
			field = ""
		}
		findings = append(findings, Finding{
			Index:        index,
			ResourceType: resourceType,
			Field:        field,
			Message:      schemaErr.Description(),
		})
	}
	return findings
}
