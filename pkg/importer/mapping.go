package importer

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed mappings/*.yaml
var mappingsFS embed.FS

const defaultMapping = "mappings/spectrum_actuals.yaml"

// Mapping fields.
const (
	FieldCostCode = "cost_code"
	FieldMonth    = "month"
	FieldDate     = "date"
	FieldAmount   = "amount"
	FieldQuantity = "quantity"
	FieldNotes    = "notes"
)

// Mapping describes how a sheet's columns map to actual fields.
type Mapping struct {
	Version   int                 `yaml:"version"`
	Sheet     string              `yaml:"sheet"`
	HeaderRow int                 `yaml:"header_row"`
	Source    string              `yaml:"source"`
	Columns   map[string][]string `yaml:"columns"`
}

// LoadMapping reads a mapping file, or the built-in Spectrum mapping when
// path is empty.
func LoadMapping(path string) (*Mapping, error) {
	var (
		raw []byte
		err error
	)
	if path == "" {
		raw, err = mappingsFS.ReadFile(defaultMapping)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	return ParseMapping(raw)
}

func ParseMapping(raw []byte) (*Mapping, error) {
	m := &Mapping{}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	if m.HeaderRow <= 0 {
		m.HeaderRow = 1
	}
	if m.Source == "" {
		m.Source = "SPECTRUM"
	}
	for _, f := range []string{FieldCostCode, FieldAmount} {
		if len(m.Columns[f]) == 0 {
			return nil, fmt.Errorf("mapping has no headers for required field %q", f)
		}
	}
	return m, nil
}

// resolve finds the column index of every mapped field in header.
func (m *Mapping) resolve(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToUpper(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := map[string]int{}
	for field, aliases := range m.Columns {
		for _, alias := range aliases {
			if i, ok := index[strings.ToUpper(strings.TrimSpace(alias))]; ok {
				cols[field] = i
				break
			}
		}
	}
	return cols
}
