package export

import (
	"fmt"
	"strings"

	"github.com/openconceptlab/ocldev/resources"
)

// ImportConverter turns a repository version export back into a
// bulk-importable resource list: the owner, the repository, every
// concept and mapping, and (for non-HEAD versions) the repository
// version itself. The owner can be swapped for a different one, in
// which case owner URLs embedded in resource fields are rewritten.
type ImportConverter struct {
	export    *Export
	owner     string
	ownerType string
	version   string
}

// ConvertOption configures an ImportConverter.
type ConvertOption func(*ImportConverter)

// ReplaceOwner re-homes the converted resources under a different
// owner. ownerType must be Organization or User.
func ReplaceOwner(owner, ownerType string) ConvertOption {
	return func(c *ImportConverter) {
		c.owner = owner
		c.ownerType = ownerType
	}
}

// OverrideVersion sets the ID used for the repository version
// resource instead of the export's own version.
func OverrideVersion(version string) ConvertOption {
	return func(c *ImportConverter) { c.version = version }
}

// NewImportConverter creates a converter for the given export.
func NewImportConverter(e *Export, opts ...ConvertOption) (*ImportConverter, error) {
	c := &ImportConverter{export: e}
	for _, opt := range opts {
		opt(c)
	}
	if (c.owner == "") != (c.ownerType == "") {
		return nil, fmt.Errorf("owner and owner type must be provided together")
	}
	if c.ownerType != "" && c.ownerType != resources.OwnerTypeUser &&
		c.ownerType != resources.OwnerTypeOrganization {
		return nil, fmt.Errorf("owner type must be %q or %q, got %q",
			resources.OwnerTypeUser, resources.OwnerTypeOrganization, c.ownerType)
	}
	if _, err := e.repoType(); err != nil {
		return nil, err
	}
	return c, nil
}

// Repository fields that survive conversion.
var convertRepoFields = []string{
	"description", "extras", "custom_validation_schema", "full_name", "name",
	"source_type", "collection_type", "public_access", "default_locale",
	"supported_locales", "website", "external_id", "canonical_url", "identifier",
	"publisher", "contact", "jurisdiction", "purpose", "copyright", "content_type",
	"revision_date", "text", "meta", "experimental", "case_sensitive",
	"collection_reference", "hierarchy_meaning", "compositional", "version_needed",
	"hierarchy_root_url",
	"autoid_concept_mnemonic", "autoid_concept_external_id",
	"autoid_concept_mnemonic_start_from", "autoid_concept_external_id_start_from",
	"autoid_mapping_mnemonic", "autoid_mapping_external_id",
	"autoid_mapping_mnemonic_start_from", "autoid_mapping_external_id_start_from",
}

// Server-assigned fields stripped from concepts and mappings.
var convertDropFields = []string{
	"uuid", "source_url", "owner_url", "version", "created_on", "updated_on",
	"display_name", "display_locale", "owner", "owner_type", "owner_name",
	"version_created_on", "version_created_by", "is_latest_version", "locale",
	"url", "version_url", "previous_version_url", "child_concept_urls", "checksum",
	"checksums", "update_comment", "public_can_view", "created_by", "updated_by",
	"versioned_object_url", "from_concept_name_resolved", "to_concept_name_resolved",
}

var convertDropSubresourceFields = []string{"uuid", "checksum", "checksums", "type"}

func (c *ImportConverter) isHead() bool {
	return c.export.raw.GetString("version") == "HEAD"
}

// repo returns the export's embedded repository object, falling back
// to the export document itself for older export formats.
func (c *ImportConverter) repo() resources.Resource {
	repoType, _ := c.export.repoType()
	if repoRaw, ok := c.export.raw[strings.ToLower(repoType)].(map[string]any); ok {
		return resources.Resource(repoRaw)
	}
	return c.export.raw
}

func (c *ImportConverter) originalOwner() string     { return c.repo().GetString("owner") }
func (c *ImportConverter) originalOwnerType() string { return c.repo().GetString("owner_type") }
func (c *ImportConverter) originalOwnerURL() string  { return c.repo().GetString("owner_url") }

func (c *ImportConverter) newOwner() string {
	if c.owner != "" {
		return c.owner
	}
	return c.originalOwner()
}

func (c *ImportConverter) newOwnerType() string {
	if c.ownerType != "" {
		return c.ownerType
	}
	return c.originalOwnerType()
}

func (c *ImportConverter) ownerURL() string {
	if c.owner != "" {
		url, err := resources.OwnerURL(c.ownerType, c.owner)
		if err == nil {
			return url
		}
	}
	return c.originalOwnerURL()
}

// replaceOwnerURL rewrites the original owner's URL prefix inside
// string values when the owner is being replaced.
func (c *ImportConverter) replaceOwnerURL(v any) any {
	if c.owner == "" {
		return v
	}
	if s, ok := v.(string); ok {
		return strings.ReplaceAll(s, c.originalOwnerURL(), c.ownerURL())
	}
	return v
}

func (c *ImportConverter) ownerFields() resources.Resource {
	return resources.Resource{
		"owner":      c.newOwner(),
		"owner_type": c.newOwnerType(),
		"owner_url":  c.ownerURL(),
	}
}

// Convert produces the importable resource list.
func (c *ImportConverter) Convert() (*resources.ResourceList, error) {
	repoType, err := c.export.repoType()
	if err != nil {
		return nil, err
	}

	list := resources.NewResourceList()
	list.Append(c.ownerResource())
	list.Append(c.repoResource(repoType))
	for _, concept := range c.export.concepts {
		list.Append(c.convertResource(concept))
	}
	for _, mapping := range c.export.mappings {
		list.Append(c.convertMapping(mapping))
	}
	if !c.isHead() {
		list.Append(c.repoVersionResource(repoType))
	}
	return list, nil
}

func (c *ImportConverter) ownerResource() resources.Resource {
	return resources.Resource{
		"type": c.newOwnerType(),
		"id":   c.newOwner(),
		"name": c.newOwner(),
		"url":  c.ownerURL(),
	}
}

func (c *ImportConverter) repoResource(repoType string) resources.Resource {
	repo := c.repo()
	shortCode := c.export.raw.GetString("short_code")
	if shortCode == "" {
		shortCode = repo.GetString("short_code")
	}
	stem := resources.RepoStemSources
	if repoType == resources.TypeCollection {
		stem = resources.RepoStemCollections
	}

	out := resources.Resource{
		"type": repoType,
		"id":   shortCode,
		"url":  c.ownerURL() + stem + "/" + shortCode + "/",
	}
	for k, v := range c.ownerFields() {
		out[k] = v
	}
	for _, field := range convertRepoFields {
		if v, ok := repo[field]; ok {
			out[field] = c.replaceOwnerURL(v)
		}
	}
	return out
}

func (c *ImportConverter) repoVersionResource(repoType string) resources.Resource {
	version := c.version
	if version == "" {
		version = c.export.raw.GetString("version")
	}
	repoField := "source"
	if repoType == resources.TypeCollection {
		repoField = "collection"
	}

	out := resources.Resource{
		"type":        c.export.raw.GetString("type"),
		"id":          version,
		"description": c.export.raw.GetString("description"),
		"released":    c.export.raw["released"],
		repoField:     c.export.raw.GetString("short_code"),
	}
	for k, v := range c.ownerFields() {
		out[k] = v
	}
	return out
}

func (c *ImportConverter) convertResource(r resources.Resource) resources.Resource {
	out := resources.Resource{}
	for k, v := range r {
		if contains(convertDropFields, k) {
			continue
		}
		out[k] = c.replaceOwnerURL(v)
	}
	cleanSubresources(out, "names")
	cleanSubresources(out, "descriptions")
	for k, v := range c.ownerFields() {
		out[k] = v
	}
	return out
}

func (c *ImportConverter) convertMapping(m resources.Resource) resources.Resource {
	out := c.convertResource(m)
	// Mappings that point at the replaced owner's sources follow the
	// owner to its new home.
	if m.GetString("from_source_owner_type") == c.originalOwnerType() &&
		m.GetString("from_source_owner") == c.originalOwner() {
		out["from_source_owner_type"] = c.newOwnerType()
		out["from_source_owner"] = c.newOwner()
	}
	if m.GetString("to_source_owner_type") == c.originalOwnerType() &&
		m.GetString("to_source_owner") == c.originalOwner() {
		out["to_source_owner_type"] = c.newOwnerType()
		out["to_source_owner"] = c.newOwner()
	}
	return out
}

// cleanSubresources strips server-assigned fields from a concept's
// names or descriptions.
func cleanSubresources(r resources.Resource, field string) {
	items, ok := r[field].([]any)
	if !ok {
		return
	}
	cleaned := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			cleaned = append(cleaned, item)
			continue
		}
		copied := make(map[string]any, len(m))
		for k, v := range m {
			if !contains(convertDropSubresourceFields, k) {
				copied[k] = v
			}
		}
		cleaned = append(cleaned, copied)
	}
	r[field] = cleaned
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
