// Package importer submits OCL-formatted resources to the OCL API,
// either asynchronously through the bulk import endpoint or
// resource-by-resource through the REST API.
package importer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openconceptlab/ocldev/resources"
)

// Import action types recorded in results.
const (
	ActionNew    = "new"
	ActionUpdate = "update"
	ActionRetire = "retire"
	ActionDelete = "delete"
	ActionOther  = "other"
	ActionSkip   = "skip"
)

// Rendering modes for ImportResults.Render.
const (
	ModeSummary = "summary"
	ModeReport  = "report"
	ModeJSON    = "json"
)

// StatusSkip is the status key used for resources that were skipped
// rather than sent to the server.
const StatusSkip = "skip"

const (
	orgsResultsRoot  = "/orgs/"
	usersResultsRoot = "/users/"
)

// Result records the outcome of importing a single resource.
type Result struct {
	Type       string `json:"obj_type"`
	URL        string `json:"obj_url"`
	Action     string `json:"action_type"`
	Method     string `json:"method"`
	RepoURL    string `json:"obj_repo_url"`
	OwnerURL   string `json:"obj_owner_url"`
	StatusCode string `json:"status_code"`
	Text       string `json:"text"`
	Message    string `json:"message"`
}

// ImportResults accumulates per-resource outcomes of an import run.
// Results are grouped three levels deep: by "logging root" (the repo,
// owner, or resource-type URL the resource belongs under), then by
// action type, then by HTTP status code (or "skip").
//
// The JSON form round-trips with the payload returned by the OCL bulk
// import API.
type ImportResults struct {
	Results        map[string]map[string]map[string][]Result `json:"results"`
	Count          int                                       `json:"count"`
	NumSkipped     int                                       `json:"num_skipped"`
	TotalLines     int                                       `json:"total_lines"`
	ElapsedSeconds float64                                   `json:"elapsed_seconds"`
}

// NewImportResults creates an empty results object expecting the given
// number of input lines.
func NewImportResults(totalLines int) *ImportResults {
	return &ImportResults{
		Results:    make(map[string]map[string]map[string][]Result),
		TotalLines: totalLines,
	}
}

// loggingRoot picks the first-dimension key for a result: concepts,
// mappings and references group under their repository, repositories
// under their owner, and owners under a fixed root.
func loggingRoot(r Result) string {
	switch r.Type {
	case resources.TypeConcept, resources.TypeMapping, resources.TypeReference:
		return r.RepoURL
	case resources.TypeSource, resources.TypeCollection:
		return r.OwnerURL
	case resources.TypeOrganization:
		return orgsResultsRoot
	case resources.TypeUser:
		return usersResultsRoot
	}
	return "/"
}

// Add records a result. An empty StatusCode is stored under the "skip"
// key.
func (ir *ImportResults) Add(r Result) {
	if r.StatusCode == "" {
		r.StatusCode = StatusSkip
	}
	root := loggingRoot(r)
	if ir.Results == nil {
		ir.Results = make(map[string]map[string]map[string][]Result)
	}
	if ir.Results[root] == nil {
		ir.Results[root] = make(map[string]map[string][]Result)
	}
	if ir.Results[root][r.Action] == nil {
		ir.Results[root][r.Action] = make(map[string][]Result)
	}
	ir.Results[root][r.Action][r.StatusCode] = append(ir.Results[root][r.Action][r.StatusCode], r)
	ir.Count++
}

// Has reports whether any result was recorded under the given root
// key. With successOnly set, only 2xx results count.
func (ir *ImportResults) Has(rootKey string, successOnly bool) bool {
	actions, ok := ir.Results[rootKey]
	if !ok {
		return false
	}
	if !successOnly {
		return true
	}
	for _, statuses := range actions {
		for status := range statuses {
			if code, err := strconv.Atoi(status); err == nil && code >= 200 && code < 300 {
				return true
			}
		}
	}
	return false
}

// HasErrors reports whether any result was skipped or returned an HTTP
// status of 300 or above.
func (ir *ImportResults) HasErrors() bool {
	for _, actions := range ir.Results {
		for _, statuses := range actions {
			for status := range statuses {
				if status == StatusSkip {
					return true
				}
				if code, err := strconv.Atoi(status); err == nil && code >= 300 {
					return true
				}
			}
		}
	}
	return false
}

// RootKeys returns the logging roots present in the results, sorted.
func (ir *ImportResults) RootKeys() []string {
	keys := make([]string, 0, len(ir.Results))
	for k := range ir.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns a one-line count of processed resources, optionally
// scoped to a single root key.
func (ir *ImportResults) Summary(rootKey string) string {
	if rootKey == "" {
		return fmt.Sprintf("Processed %d of %d total", ir.Count, ir.TotalLines)
	}
	if !ir.Has(rootKey, false) {
		return ""
	}
	n := 0
	for _, statuses := range ir.Results[rootKey] {
		for _, results := range statuses {
			n += len(results)
		}
	}
	return fmt.Sprintf("Processed %d for key %q", n, rootKey)
}

// DetailedSummary returns a one-line breakdown by action type and
// status code, optionally scoped to a single root key.
func (ir *ImportResults) DetailedSummary(rootKey string) string {
	roots := ir.RootKeys()
	if rootKey != "" {
		roots = []string{rootKey}
	}

	// counts[action][status]
	counts := make(map[string]map[string]int)
	total := 0
	for _, root := range roots {
		for action, statuses := range ir.Results[root] {
			if counts[action] == nil {
				counts[action] = make(map[string]int)
			}
			for status, results := range statuses {
				counts[action][status] += len(results)
				total += len(results)
			}
		}
	}

	actions := make([]string, 0, len(counts))
	for action := range counts {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	var parts []string
	for _, action := range actions {
		statuses := make([]string, 0, len(counts[action]))
		for status := range counts[action] {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		actionTotal := 0
		var statusParts []string
		for _, status := range statuses {
			actionTotal += counts[action][status]
			statusParts = append(statusParts, fmt.Sprintf("%s:%d", status, counts[action][status]))
		}
		parts = append(parts, fmt.Sprintf("%d %s (%s)", actionTotal, action, strings.Join(statusParts, ", ")))
	}

	breakdown := strings.Join(parts, "; ")
	if rootKey != "" {
		return fmt.Sprintf("Processed %s for key %q", breakdown, rootKey)
	}
	return fmt.Sprintf("Processed %d of %d -- %s", total, ir.TotalLines, breakdown)
}

// Report returns a multi-line report of every result, optionally
// scoped to a single root key.
func (ir *ImportResults) Report(rootKey string) string {
	var b strings.Builder
	roots := ir.RootKeys()
	if rootKey != "" {
		roots = []string{rootKey}
		fmt.Fprintf(&b, "REPORT OF IMPORT RESULTS FOR KEY %q:\n", rootKey)
	} else {
		b.WriteString("REPORT OF IMPORT RESULTS:\n")
	}

	for _, root := range roots {
		fmt.Fprintf(&b, "%s:\n", root)
		actions := make([]string, 0, len(ir.Results[root]))
		for action := range ir.Results[root] {
			actions = append(actions, action)
		}
		sort.Strings(actions)
		for _, action := range actions {
			statuses := make([]string, 0, len(ir.Results[root][action]))
			for status := range ir.Results[root][action] {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				if action == ActionSkip && status == StatusSkip {
					fmt.Fprintf(&b, "  %s:\n", StatusSkip)
				} else {
					fmt.Fprintf(&b, "  %s %s:\n", action, status)
				}
				for _, r := range ir.Results[root][action][status] {
					fmt.Fprintf(&b, "    %s  %s\n", r.Message, r.Text)
				}
			}
		}
	}
	return b.String()
}

// Render returns the results in the requested mode. Unknown modes fall
// back to the report.
func (ir *ImportResults) Render(mode, rootKey string) (string, error) {
	switch strings.ToLower(mode) {
	case ModeSummary:
		return ir.DetailedSummary(rootKey), nil
	case ModeJSON:
		raw, err := json.Marshal(ir)
		if err != nil {
			return "", fmt.Errorf("marshal import results: %w", err)
		}
		return string(raw), nil
	default:
		return ir.Report(rootKey), nil
	}
}

func (ir *ImportResults) String() string {
	return ir.Summary("")
}

// ParseImportResults loads results from their JSON form, as produced
// by Render(ModeJSON, "") or returned by the bulk import API.
func ParseImportResults(raw []byte) (*ImportResults, error) {
	var ir ImportResults
	if err := json.Unmarshal(raw, &ir); err != nil {
		return nil, fmt.Errorf("parse import results: %w", err)
	}
	if ir.Results == nil {
		ir.Results = make(map[string]map[string]map[string][]Result)
	}
	return &ir, nil
}
