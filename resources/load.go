package resources

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/openconceptlab/ocldev/internal/oclcsv"
)

// CSVResourceList is a resource list loaded from a CSV file. Every
// field value is a string and the type discriminator lives in the
// resource_type column. Header preserves the original column order,
// which the CSV-to-JSON converter relies on for deterministic
// auto-index discovery.
type CSVResourceList struct {
	ResourceList
	Header []string
}

// JSONResourceList is a resource list loaded from a JSON-lines file.
// The type discriminator lives in the type field.
type JSONResourceList struct {
	ResourceList
}

// LoadCSV reads CSV resource rows from r. The first row is the header;
// each subsequent row becomes one resource keyed by the cleaned header
// names. Rows with a different cell count than the header are
// tolerated (short rows pad with empty strings).
func LoadCSV(r io.Reader) (*CSVResourceList, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Spreadsheet exports carry artifacts like ="value" cells.
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return &CSVResourceList{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	list := &CSVResourceList{}
	for _, h := range header {
		if cleaned := oclcsv.CleanCell(h); cleaned != "" {
			list.Header = append(list.Header, cleaned)
		}
	}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		fields := oclcsv.RowToMap(header, row)
		resource := make(Resource, len(fields))
		for k, v := range fields {
			resource[k] = v
		}
		list.Append(resource)
	}
	return list, nil
}

// LoadCSVFile reads CSV resource rows from the named file.
func LoadCSVFile(path string) (*CSVResourceList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// SummarizeByType counts CSV resources by resource_type.
func (l *CSVResourceList) SummarizeByType() map[string]int {
	return l.Summarize("resource_type")
}

// LoadJSONLines reads newline-delimited JSON resources from r. Blank
// lines are skipped.
func LoadJSONLines(r io.Reader) (*JSONResourceList, error) {
	list := &JSONResourceList{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var resource Resource
		if err := json.Unmarshal(raw, &resource); err != nil {
			return nil, fmt.Errorf("parse JSON line %d: %w", line, err)
		}
		list.Append(resource)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read JSON lines: %w", err)
	}
	return list, nil
}

// LoadJSONLinesFile reads newline-delimited JSON resources from the
// named file.
func LoadJSONLinesFile(path string) (*JSONResourceList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	defer f.Close()
	return LoadJSONLines(f)
}

// SummarizeByType counts JSON resources by type.
func (l *JSONResourceList) SummarizeByType() map[string]int {
	return l.Summarize("type")
}
