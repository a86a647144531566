package resources

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
)

// ResourceList is an ordered sequence of resources. Order is preserved
// through every operation; imports depend on it (owners before repos,
// repos before concepts).
type ResourceList struct {
	resources []Resource

	// urlIndex is built lazily on first URL lookup and invalidated by
	// any mutation.
	urlIndex map[string]int
}

// NewResourceList creates a list from zero or more resources.
func NewResourceList(items ...Resource) *ResourceList {
	l := &ResourceList{}
	for _, r := range items {
		l.Append(r)
	}
	return l
}

// Len returns the number of resources in the list.
func (l *ResourceList) Len() int { return len(l.resources) }

// Get returns the resource at index i. Panics on out-of-range, like a
// slice.
func (l *ResourceList) Get(i int) Resource { return l.resources[i] }

// Resources returns the backing slice. Callers must not reorder it.
func (l *ResourceList) Resources() []Resource { return l.resources }

// Append adds a resource to the end of the list.
func (l *ResourceList) Append(r Resource) {
	l.resources = append(l.resources, r)
	l.urlIndex = nil
}

// AppendList adds every resource from other, preserving order.
func (l *ResourceList) AppendList(other *ResourceList) {
	if other == nil {
		return
	}
	l.resources = append(l.resources, other.resources...)
	l.urlIndex = nil
}

// Pop removes and returns the last resource in the list.
func (l *ResourceList) Pop() (Resource, error) {
	if len(l.resources) == 0 {
		return nil, fmt.Errorf("pop from empty resource list")
	}
	r := l.resources[len(l.resources)-1]
	l.resources = l.resources[:len(l.resources)-1]
	l.urlIndex = nil
	return r, nil
}

// Chunk splits the list into sublists of at most size resources.
func (l *ResourceList) Chunk(size int) ([]*ResourceList, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	var chunks []*ResourceList
	for start := 0; start < len(l.resources); start += size {
		end := start + size
		if end > len(l.resources) {
			end = len(l.resources)
		}
		// Full slice expression: appending to a chunk must not clobber
		// the parent's backing array.
		chunk := &ResourceList{resources: l.resources[start:end:end]}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Summarize counts resources by the value of the given core field.
// Resources without the field are counted under "".
func (l *ResourceList) Summarize(field string) map[string]int {
	summary := make(map[string]int)
	for _, r := range l.resources {
		summary[r.GetString(field)]++
	}
	return summary
}

// GetResources returns the resources whose core fields match every
// entry of coreAttrs and whose custom attributes match every entry of
// customAttrs. Nil maps match everything.
func (l *ResourceList) GetResources(coreAttrs, customAttrs map[string]any) *ResourceList {
	matches := &ResourceList{}
	for _, r := range l.resources {
		if !matchesAttrs(map[string]any(r), coreAttrs) {
			continue
		}
		if customAttrs != nil && !matchesAttrs(r.Attributes(), customAttrs) {
			continue
		}
		matches.Append(r)
	}
	return matches
}

func matchesAttrs(fields map[string]any, want map[string]any) bool {
	if want == nil {
		return true
	}
	if fields == nil {
		return false
	}
	for k, v := range want {
		got, ok := fields[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

// GetResourceByURL returns the resource addressed by the given
// relative URL. The URL index is built on first use.
func (l *ResourceList) GetResourceByURL(url string) (Resource, bool) {
	if l.urlIndex == nil {
		l.urlIndex = make(map[string]int, len(l.resources))
		for i, r := range l.resources {
			if u := r.URL(); u != "" {
				if _, exists := l.urlIndex[u]; !exists {
					l.urlIndex[u] = i
				}
			}
		}
	}
	i, ok := l.urlIndex[url]
	if !ok {
		return nil, false
	}
	return l.resources[i], true
}

// ColumnHeaders returns the unique field names across all resources in
// display order: the type discriminator first, then owner and ID
// fields, then remaining core fields sorted by name, then custom
// attribute columns sorted by name.
func (l *ResourceList) ColumnHeaders() []string {
	leading := []string{"resource_type", "type", "owner", "owner_id", "owner_type", "source", "collection", "id"}
	isLeading := make(map[string]bool, len(leading))
	for _, h := range leading {
		isLeading[h] = true
	}

	var headers []string
	seen := make(map[string]bool)
	attrSeen := make(map[string]bool)
	var attrHeaders []string

	for _, h := range leading {
		for _, r := range l.resources {
			if _, ok := r[h]; ok {
				if !seen[h] {
					seen[h] = true
					headers = append(headers, h)
				}
				break
			}
		}
	}

	for _, r := range l.resources {
		for k := range r {
			if isLeading[k] || seen[k] {
				continue
			}
			if k == "extras" {
				for attr := range r.Attributes() {
					col := "attr:" + attr
					if !attrSeen[col] {
						attrSeen[col] = true
						attrHeaders = append(attrHeaders, col)
					}
				}
				continue
			}
			seen[k] = true
			headers = append(headers, k)
		}
	}

	// Core field order beyond the leading block follows map iteration,
	// so sort for a stable result.
	sort.Strings(headers[countLeading(headers, isLeading):])
	sort.Strings(attrHeaders)
	return append(headers, attrHeaders...)
}

func countLeading(headers []string, isLeading map[string]bool) int {
	n := 0
	for _, h := range headers {
		if isLeading[h] {
			n++
		} else {
			break
		}
	}
	return n
}

// WriteJSONLines writes the list as newline-delimited JSON, the format
// the bulk importer submits.
func (l *ResourceList) WriteJSONLines(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, r := range l.resources {
		line, err := r.MarshalJSONLine()
		if err != nil {
			return fmt.Errorf("marshal resource %d: %w", i, err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String summarizes the list for logging.
func (l *ResourceList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ResourceList(%d resources", len(l.resources))
	summary := l.Summarize("type")
	if len(summary) == 1 && summary[""] > 0 {
		summary = l.Summarize("resource_type")
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		label := k
		if label == "" {
			label = "unknown"
		}
		fmt.Fprintf(&b, ", %s=%d", label, summary[k])
	}
	b.WriteString(")")
	return b.String()
}
