package converter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/openconceptlab/ocldev/internal/oclcsv"
	"github.com/openconceptlab/ocldev/resources"
)

// Characters replaced in resource IDs. Underscores are additionally
// allowed for concept and mapping IDs.
const (
	invalidIDChars = " `~!@#$%^&*()_+-=[]{}\\|;:\"',/<>?"
	idReplaceChar  = '-'
)

// Input is the tabular input to a conversion: the column order plus one
// column-name -> value map per row.
type Input struct {
	Header []string
	Rows   []map[string]string
}

// InputFromCSV reads CSV rows into an Input. The first row is the
// header.
func InputFromCSV(r io.Reader) (*Input, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rawHeader, err := reader.Read()
	if err == io.EOF {
		return &Input{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	in := &Input{}
	for _, h := range rawHeader {
		if cleaned := oclcsv.CleanCell(h); cleaned != "" {
			in.Header = append(in.Header, cleaned)
		}
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(in.Rows)+2, err)
		}
		in.Rows = append(in.Rows, oclcsv.RowToMap(rawHeader, row))
	}
	return in, nil
}

// InputFromFile reads CSV rows from the named file.
func InputFromFile(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer f.Close()
	return InputFromCSV(f)
}

// InputFromResourceList adapts a loaded CSV resource list.
func InputFromResourceList(list *resources.CSVResourceList) *Input {
	in := &Input{Header: list.Header}
	for _, r := range list.Resources() {
		row := make(map[string]string, len(r))
		for k := range r {
			row[k] = r.GetString(k)
		}
		in.Rows = append(in.Rows, row)
	}
	return in
}

// Processor computes a field value from the whole row. Processors are
// registered by name and referenced from field definitions.
type Processor func(row map[string]string, field FieldDef) (any, error)

// Converter converts tabular rows into OCL-formatted JSON resources.
type Converter struct {
	defs              []Definition
	allowSpecialChars bool
	processors        map[string]Processor
}

// Option configures a Converter.
type Option func(*Converter)

// AllowSpecialCharacters disables invalid-character replacement in
// resource IDs.
func AllowSpecialCharacters() Option {
	return func(c *Converter) { c.allowSpecialChars = true }
}

// WithProcessor registers a named field processor.
func WithProcessor(name string, fn Processor) Option {
	return func(c *Converter) { c.processors[name] = fn }
}

// New creates a converter with the given resource definitions.
func New(defs []Definition, opts ...Option) *Converter {
	c := &Converter{
		defs: defs,
		processors: map[string]Processor{
			"process_auto_concept_reference": autoConceptReference,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStandard creates a converter with the standard OCL resource
// definitions.
func NewStandard(opts ...Option) *Converter {
	return New(StandardDefinitions(), opts...)
}

// Process converts the input by looping through all rows once per
// definition. Output groups resources by type: all organizations, then
// all sources, and so on, in definition order.
func (c *Converter) Process(ctx context.Context, in *Input) (*resources.ResourceList, error) {
	out := resources.NewResourceList()
	for _, def := range c.defs {
		if !def.IsActive {
			continue
		}
		for i, row := range in.Rows {
			if i%100 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			built, err := c.applyDefinition(row, in.Header, def)
			if err != nil {
				return nil, fmt.Errorf("row %d, definition %q: %w", i+1, def.Name, err)
			}
			for _, r := range built {
				out.Append(r)
			}
		}
	}
	return out, nil
}

// ProcessByRow converts the input by applying every definition to each
// row before moving to the next row, keeping each row's resources
// adjacent in the output.
func (c *Converter) ProcessByRow(ctx context.Context, in *Input) (*resources.ResourceList, error) {
	out := resources.NewResourceList()
	for i, row := range in.Rows {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, def := range c.defs {
			if !def.IsActive {
				continue
			}
			built, err := c.applyDefinition(row, in.Header, def)
			if err != nil {
				return nil, fmt.Errorf("row %d, definition %q: %w", i+1, def.Name, err)
			}
			for _, r := range built {
				out.Append(r)
			}
		}
	}
	return out, nil
}

// applyDefinition processes one row with one definition, returning
// zero or more resources.
func (c *Converter) applyDefinition(row map[string]string, header []string, def Definition) ([]resources.Resource, error) {
	if def.TriggerColumn != "" {
		v, ok := row[def.TriggerColumn]
		if !ok || v != def.TriggerValue {
			return nil, nil
		}
	}

	if len(def.SkipIfEmpty) > 0 && allEmpty(row, def.SkipIfEmpty) {
		return nil, nil
	}

	if def.ResourceType == AutoResourceType {
		return c.expandAutoResource(row, header, def)
	}

	r, err := c.buildResource(row, header, def)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return []resources.Resource{r}, nil
}

// expandAutoResource instantiates the definition's template once per
// auto-index present in the row.
func (c *Converter) expandAutoResource(row map[string]string, header []string, def Definition) ([]resources.Resource, error) {
	tpl := def.Template
	prefixes := make([]string, 0, len(tpl.CoreFields))
	for _, f := range tpl.CoreFields {
		if f.ColumnPrefix != "" {
			prefixes = append(prefixes, f.ColumnPrefix)
		}
	}
	indexes := autoIndexes(header, prefixes, tpl.IndexPrefix, tpl.IndexPostfix, tpl.IndexRegex)

	var out []resources.Resource
	for _, index := range indexes {
		instance := instantiateTemplate(tpl, index)
		built, err := c.applyDefinition(row, header, instance)
		if err != nil {
			return nil, fmt.Errorf("auto index %q: %w", index, err)
		}
		out = append(out, built...)
	}
	return out, nil
}

// instantiateTemplate materializes a per-index definition: prefixed
// columns gain the index token and are tried before any fallback
// columns.
func instantiateTemplate(tpl *AutoTemplate, index string) Definition {
	def := Definition{
		Name:         tpl.Name,
		ResourceType: tpl.ResourceType,
		IsActive:     true,
	}
	for _, prefix := range tpl.SkipIfEmptyPrefix {
		def.SkipIfEmpty = append(def.SkipIfEmpty, indexedColumn(prefix, tpl.IndexPrefix, index, tpl.IndexPostfix))
	}
	def.CoreFields = indexFields(tpl.CoreFields, tpl.IndexPrefix, index, tpl.IndexPostfix)
	return def
}

func indexFields(fields []FieldDef, ixPrefix, index, ixPostfix string) []FieldDef {
	out := make([]FieldDef, 0, len(fields))
	for _, f := range fields {
		nf := f
		if f.ColumnPrefix != "" {
			indexed := indexedColumn(f.ColumnPrefix, ixPrefix, index, ixPostfix)
			nf.Columns = append([]string{indexed}, f.Columns...)
			nf.ColumnPrefix = ""
		}
		out = append(out, nf)
	}
	return out
}

func indexedColumn(prefix, ixPrefix, index, ixPostfix string) string {
	return prefix + ixPrefix + index + ixPostfix
}

// autoIndexes returns the unique auto-index tokens found in the header
// for the given column prefixes, in column order.
func autoIndexes(header, prefixes []string, ixPrefix, ixPostfix, ixRegex string) []string {
	var indexes []string
	seen := make(map[string]bool)
	for _, col := range header {
		for _, prefix := range prefixes {
			if !strings.HasPrefix(col, prefix) {
				continue
			}
			re := indexExpr(prefix, ixPrefix, ixPostfix, ixRegex)
			m := re.FindStringSubmatch(col)
			if m != nil && m[1] != "" && !seen[m[1]] {
				seen[m[1]] = true
				indexes = append(indexes, m[1])
			}
		}
	}
	return indexes
}

func indexExpr(prefix, ixPrefix, ixPostfix, ixRegex string) *regexp.Regexp {
	return regexp.MustCompile(
		"^" + regexp.QuoteMeta(prefix) + regexp.QuoteMeta(ixPrefix) +
			"(" + ixRegex + ")" + regexp.QuoteMeta(ixPostfix) + "$")
}

// buildResource builds one resource from a row.
func (c *Converter) buildResource(row map[string]string, header []string, def Definition) (resources.Resource, error) {
	r := resources.Resource{"type": def.ResourceType}

	if def.IDColumn != "" {
		id, ok := row[def.IDColumn]
		if !ok || id == "" {
			return nil, fmt.Errorf("ID column %q not set or empty", def.IDColumn)
		}
		allowUnderscore := def.ResourceType == resources.TypeConcept ||
			def.ResourceType == resources.TypeMapping
		r["id"] = c.formatIdentifier(id, allowUnderscore)
	}

	core, err := c.processFields(row, def.CoreFields)
	if err != nil {
		return nil, err
	}
	for k, v := range core {
		r[k] = v
	}

	if def.ResourceType == resources.TypeMapping {
		if err := finalizeMapping(r); err != nil {
			return nil, err
		}
	}

	for group, entries := range def.Subresources {
		list := make([]any, 0, len(entries))
		for _, fields := range entries {
			sub, err := c.processFields(row, fields)
			if err != nil {
				return nil, err
			}
			if len(sub) > 0 {
				list = append(list, sub)
			}
		}
		r[group] = list
	}

	for group, entries := range def.KeyValuePairs {
		pairs, err := c.processKeyValuePairs(row, entries)
		if err != nil {
			return nil, err
		}
		r[group] = pairs
	}

	if def.AutoNames != nil {
		names, err := c.autoSubResources(row, header, def.AutoNames)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			r["names"] = names
		}
	}
	if def.AutoDescriptions != nil {
		descriptions, err := c.autoSubResources(row, header, def.AutoDescriptions)
		if err != nil {
			return nil, err
		}
		if len(descriptions) > 0 {
			r["descriptions"] = descriptions
		}
	}
	if def.AutoAttributes != nil {
		extras := c.autoExtraAttributes(row, header, def.AutoAttributes)
		if len(extras) > 0 {
			r["extras"] = extras
		}
	}

	return r, nil
}

// processFields evaluates field definitions against a row, omitting
// fields with no value.
func (c *Converter) processFields(row map[string]string, fields []FieldDef) (map[string]any, error) {
	out := make(map[string]any)
	for _, f := range fields {
		value, ok, err := c.fieldValue(row, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out[f.ResourceField] = value
		}
	}
	return out, nil
}

// fieldValue resolves one field: static value, then the first
// non-empty column in order, then default. Required fields with no
// value are an error.
func (c *Converter) fieldValue(row map[string]string, f FieldDef) (any, bool, error) {
	if f.HasValue {
		return f.Value, true, nil
	}

	if f.Processor != "" {
		fn, ok := c.processors[f.Processor]
		if !ok {
			return nil, false, fmt.Errorf("field %q: processor %q is not registered", f.ResourceField, f.Processor)
		}
		value, err := fn(row, f)
		if err != nil {
			return nil, false, fmt.Errorf("field %q: %w", f.ResourceField, err)
		}
		return value, value != nil, nil
	}

	if len(f.Columns) == 0 {
		if f.HasDefault {
			return f.Default, true, nil
		}
		return nil, false, fmt.Errorf("field %q: no column, value, or processor defined", f.ResourceField)
	}

	for _, col := range f.Columns {
		cell, ok := row[col]
		if !ok || cell == "" {
			continue
		}
		if f.Datatype != "" {
			value, err := convertDatatype(cell, f.Datatype)
			if err != nil {
				return nil, false, fmt.Errorf("field %q, column %q: %w", f.ResourceField, col, err)
			}
			return value, true, nil
		}
		return cell, true, nil
	}

	if f.HasDefault {
		return f.Default, true, nil
	}
	if f.Required {
		return nil, false, fmt.Errorf("missing required column %v for field %q", f.Columns, f.ResourceField)
	}
	return nil, false, nil
}

func (c *Converter) processKeyValuePairs(row map[string]string, entries []KeyValueDef) (map[string]any, error) {
	pairs := make(map[string]any)
	for _, kvp := range entries {
		var key string
		switch {
		case kvp.Key != "":
			key = kvp.Key
		case kvp.KeyColumn != "":
			cell, ok := row[kvp.KeyColumn]
			if !ok || cell == "" {
				return nil, fmt.Errorf("key_column %q must be non-empty in CSV row", kvp.KeyColumn)
			}
			key = cell
		default:
			return nil, fmt.Errorf("key_value_pair requires a key or key_column")
		}

		var value any
		switch {
		case kvp.HasValue:
			value = kvp.Value
		case kvp.ValueColumn != "":
			cell, ok := row[kvp.ValueColumn]
			if !ok {
				return nil, fmt.Errorf("value_column %q does not exist in CSV row", kvp.ValueColumn)
			}
			value = cell
		default:
			return nil, fmt.Errorf("key_value_pair requires a value or value_column")
		}

		omitEmpty := kvp.OmitIfEmptyValue == nil || *kvp.OmitIfEmptyValue
		if isEmptyValue(value) && omitEmpty {
			continue
		}
		pairs[key] = value
	}
	return pairs, nil
}

// autoSubResources builds the subresource list for auto-generated
// names or descriptions: the primary entry from the standard columns,
// then one entry per auto-index.
func (c *Converter) autoSubResources(row map[string]string, header []string, auto *AutoSubResources) ([]any, error) {
	var out []any

	if len(auto.Primary) > 0 {
		sub, err := c.processFields(row, auto.Primary)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 && !allEmpty(row, auto.SkipIfEmpty) {
			out = append(out, sub)
		}
	}

	if len(auto.Auto) > 0 {
		prefixes := make([]string, 0, len(auto.Auto))
		for _, f := range auto.Auto {
			if f.ColumnPrefix != "" {
				prefixes = append(prefixes, f.ColumnPrefix)
			}
		}
		for _, index := range autoIndexes(header, prefixes, auto.IndexPrefix, auto.IndexPostfix, auto.IndexRegex) {
			fields := indexFields(auto.Auto, auto.IndexPrefix, index, auto.IndexPostfix)
			sub, err := c.processFields(row, fields)
			if err != nil {
				return nil, fmt.Errorf("auto index %q: %w", index, err)
			}
			// The skip columns name resource fields here: an indexed
			// entry without its primary field (e.g. a blank name[2]
			// cell) is dropped.
			if len(sub) > 0 && !allEmptyFields(sub, auto.SkipIfEmpty) {
				out = append(out, sub)
			}
		}
	}

	return out, nil
}

// autoExtraAttributes collects custom attributes from standard columns
// (attr:Key) and from indexed key/value column pairs (attr_key[01] and
// attr_value[01]).
func (c *Converter) autoExtraAttributes(row map[string]string, header []string, auto *AutoAttributes) map[string]any {
	extras := make(map[string]any)
	keylessValues := make(map[string]string)
	valuelessKeys := make(map[string]string)

	omitEmpty := auto.OmitIfEmptyValue == nil || *auto.OmitIfEmptyValue

	standardNeedle := auto.StandardColumnPrefix + auto.Separator
	keyExpr := indexExpr(auto.KeyColumnPrefix, auto.IndexPrefix, auto.IndexPostfix, auto.IndexRegex)
	valueExpr := indexExpr(auto.ValueColumnPrefix, auto.IndexPrefix, auto.IndexPostfix, auto.IndexRegex)

	for _, col := range header {
		cell := row[col]
		if strings.HasPrefix(col, standardNeedle) {
			if cell != "" || !omitEmpty {
				extras[col[len(standardNeedle):]] = cell
			}
			continue
		}
		if m := keyExpr.FindStringSubmatch(col); m != nil {
			index := m[1]
			switch {
			case cell == "":
				// Blank key: the pair is dropped.
			case hasKey(keylessValues, index):
				extras[cell] = keylessValues[index]
				delete(keylessValues, index)
			default:
				valuelessKeys[index] = cell
			}
			continue
		}
		if m := valueExpr.FindStringSubmatch(col); m != nil {
			index := m[1]
			switch {
			case cell == "" && omitEmpty:
			case hasKey(valuelessKeys, index):
				extras[valuelessKeys[index]] = cell
				delete(valuelessKeys, index)
			default:
				keylessValues[index] = cell
			}
		}
	}

	return extras
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

// formatIdentifier replaces invalid ID characters with '-'.
// Underscores are preserved for concept and mapping IDs.
func (c *Converter) formatIdentifier(id string, allowUnderscore bool) string {
	if c.allowSpecialChars {
		return id
	}
	invalid := invalidIDChars
	if allowUnderscore {
		invalid = strings.ReplaceAll(invalid, "_", "")
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, ch := range id {
		if strings.ContainsRune(invalid, ch) {
			b.WriteRune(idReplaceChar)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// convertDatatype coerces a cell string to the named datatype.
func convertDatatype(value, datatype string) (any, error) {
	switch datatype {
	case "bool":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		default:
			return nil, fmt.Errorf("invalid bool value %q", value)
		}
	case "int":
		i, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid int value %q", value)
		}
		return i, nil
	case "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value %q", value)
		}
		return f, nil
	case "list":
		parts := strings.Split(value, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list, nil
	case "", "str", "string":
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported datatype %q", datatype)
	}
}

// allEmpty reports whether every listed column is missing or empty in
// the row. An empty column list reports false (nothing to skip on).
func allEmpty(row map[string]string, columns []string) bool {
	if len(columns) == 0 {
		return false
	}
	for _, col := range columns {
		if row[col] != "" {
			return false
		}
	}
	return true
}

// allEmptyFields is allEmpty against a built subresource's fields.
func allEmptyFields(fields map[string]any, keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if v, ok := fields[key]; ok && !isEmptyValue(v) {
			return false
		}
	}
	return true
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}

// autoConceptReference builds a collection reference expression for
// the row's target concept.
func autoConceptReference(row map[string]string, _ FieldDef) (any, error) {
	ownerID := firstNonEmpty(row, "ref_target_owner_id", "owner_id")
	ownerType := firstNonEmpty(row, "ref_target_owner_type", "owner_type")
	if ownerType == "" {
		ownerType = resources.OwnerTypeOrganization
	}
	source := firstNonEmpty(row, "ref_target_source", "source")
	conceptID := firstNonEmpty(row, "ref_target_concept_id", "id")
	if conceptID == "" {
		return nil, nil
	}
	url, err := resources.ResourceURL(ownerType, ownerID, resources.RepoTypeSource, source,
		resources.TypeConcept, conceptID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expressions": []any{url}}, nil
}

func firstNonEmpty(row map[string]string, columns ...string) string {
	for _, col := range columns {
		if row[col] != "" {
			return row[col]
		}
	}
	return ""
}
