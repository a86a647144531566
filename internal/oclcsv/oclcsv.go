// Package oclcsv provides CSV hygiene helpers shared by the resource
// list loaders and the CSV-to-JSON converter.
//
// CSV files headed for OCL come out of spreadsheets, so cells carry the
// usual artifacts: UTF-8 BOMs, Excel formula prefixes (="value"),
// stray surrounding quotes, and padding whitespace.
package oclcsv

import (
	"strings"
)

// HeaderIndex maps cleaned column names to their position in the row.
type HeaderIndex map[string]int

// CleanCell removes common CSV artifacts from a cell value:
// trims whitespace, strips a leading BOM, removes an Excel formula
// prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Header names are cleaned but case is preserved: OCL column names are
// case-sensitive (attr:Name and attr:name are different attributes).
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[CleanCell(h)] = i
	}
	return idx
}

// RowToMap converts a CSV row into a column-name -> value map using
// the given header. Cells beyond the header length are dropped;
// missing trailing cells become empty strings.
func RowToMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		key := CleanCell(h)
		if key == "" {
			continue
		}
		if i < len(row) {
			m[key] = row[i]
		} else {
			m[key] = ""
		}
	}
	return m
}
