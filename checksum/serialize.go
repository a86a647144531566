package checksum

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// serialize renders a value in the canonical form the OCL server
// hashes: maps with sorted keys, lists sorted by value, scalars as
// JSON with non-ASCII characters escaped. Single-element lists
// collapse to their element.
func serialize(v any) string {
	if list, ok := v.([]any); ok && len(list) == 1 {
		v = list[0]
	}

	switch t := v.(type) {
	case []any:
		sorted := sortedCopy(t)
		parts := make([]string, len(sorted))
		for i, item := range sorted {
			parts[i] = serialize(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("{")
		b.WriteString(serializeKeyList(keys))
		for _, k := range keys {
			b.WriteString(serialize(t[k]))
			b.WriteString(",")
		}
		b.WriteString("}")
		return b.String()
	default:
		return serializeScalar(v)
	}
}

// sortedCopy orders list elements without mutating the input.
// Numbers sort numerically, everything else by its string form.
func sortedCopy(list []any) []any {
	out := make([]any, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		a, aNum := asNumber(out[i])
		b, bNum := asNumber(out[j])
		if aNum && bNum {
			return a < b
		}
		return sortKey(out[i]) < sortKey(out[j])
	})
	return out
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func sortKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// serializeKeyList renders the key list header, e.g. ["a", "b"].
func serializeKeyList(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = serializeString(k)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func serializeScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return serializeString(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return serializeFloat(t)
	default:
		return serializeString(fmt.Sprintf("%v", v))
	}
}

func serializeFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// serializeString escapes like a strict JSON encoder with ASCII-only
// output: control characters and everything above U+007F become \u
// escapes.
func serializeString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || r > 0x7e:
				if r > 0xffff {
					hi, lo := utf16.EncodeRune(r)
					fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
				} else {
					fmt.Fprintf(&b, `\u%04x`, r)
				}
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
