package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCSVDelimiter is the field separator System Object exports use
const DefaultCSVDelimiter = ';'

// SystemObjectTable is one System Object CSV table: the header row in
// column order plus every data row. Tables are never merged; a document
// that supplies several CSVs sees them as separate tables in supply order.
type SystemObjectTable struct {
	Name          string              `json:"name"`
	PropertyNames []string            `json:"propertyNames"`
	Instances     []map[string]string `json:"instances"`
}

// Column returns the values of one property across all instances, in row
// order. Unknown properties yield empty strings.
func (t *SystemObjectTable) Column(property string) []string {
	values := make([]string, len(t.Instances))
	for i, inst := range t.Instances {
		values[i] = inst[property]
	}
	return values
}

// HasProperty reports whether the table header names the property
func (t *SystemObjectTable) HasProperty(property string) bool {
	for _, p := range t.PropertyNames {
		if p == property {
			return true
		}
	}
	return false
}

// ReadSystemObjects reads and parses a System Object CSV file. The table
// name is the file base name without extension. A zero delimiter selects
// the default.
func ReadSystemObjects(path string, delimiter rune) (*SystemObjectTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: system objects %s: %v", ErrArtifactUnreadable, path, err)
	}
	defer file.Close()

	if delimiter == 0 {
		delimiter = DefaultCSVDelimiter
	}

	reader := csv.NewReader(file)
	reader.Comma = delimiter

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: system objects %s: %v", ErrArtifactMalformed, path, err)
	}

	table := &SystemObjectTable{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	if len(records) == 0 {
		return table, nil
	}

	table.PropertyNames = records[0]
	table.Instances = make([]map[string]string, 0, len(records)-1)

	for _, row := range records[1:] {
		instance := make(map[string]string, len(table.PropertyNames))
		for i, name := range table.PropertyNames {
			instance[name] = row[i]
		}
		table.Instances = append(table.Instances, instance)
	}

	return table, nil
}
