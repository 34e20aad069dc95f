package exports

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/frictionlessdata/datapackage-go/datapackage"
	"github.com/frictionlessdata/datapackage-go/validator"

	"biosys/schema"
	"biosys/store"
)

// This package turns a dataset and its accepted records back into portable
// files: a CSV of the records in schema column order, and a Frictionless
// data package (https://specs.frictionlessdata.io/data-package/) bundling
// that CSV with the dataset's schema.

// writes the records of a dataset as CSV, one column per schema field in
// schema order, with blank cells for absent or nil values
func WriteCSV(writer io.Writer, s *schema.Schema, records []store.Record) error {
	csvWriter := csv.NewWriter(writer)
	if err := csvWriter.Write(s.Headers()); err != nil {
		return err
	}
	for _, record := range records {
		cells := make([]string, 0, len(s.Fields))
		for _, field := range s.Fields {
			value := record.Data[field.Name]
			if schema.IsBlank(value) {
				cells = append(cells, "")
			} else {
				cells = append(cells, fmt.Sprintf("%v", value))
			}
		}
		if err := csvWriter.Write(cells); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// builds the data package descriptor for a dataset, with a single tabular
// resource pointing at the dataset's CSV file
func PackageDescriptor(dataset store.Dataset) (map[string]any, error) {
	var schemaDescriptor map[string]any
	if err := json.Unmarshal(dataset.Descriptor, &schemaDescriptor); err != nil {
		return nil, err
	}
	return map[string]any{
		"name":    dataset.Name,
		"profile": "tabular-data-package",
		"created": time.Now().Format(time.RFC3339),
		"resources": []any{
			map[string]any{
				"name":      dataset.Name,
				"path":      dataset.Name + ".csv",
				"profile":   "tabular-data-resource",
				"format":    "csv",
				"mediatype": "text/csv",
				"schema":    schemaDescriptor,
			},
		},
	}, nil
}

// validates a dataset's descriptor as a data package
func NewPackage(dataset store.Dataset) (*datapackage.Package, error) {
	descriptor, err := PackageDescriptor(dataset)
	if err != nil {
		return nil, err
	}
	return datapackage.New(descriptor, ".", validator.InMemoryLoader())
}

// WriteArchive writes a zip archive holding the dataset's data package
// descriptor (datapackage.json) and its records as CSV (<name>.csv).
func WriteArchive(writer io.Writer, dataset store.Dataset, records []store.Record) error {
	s, err := schema.New(dataset.Descriptor)
	if err != nil {
		return err
	}
	pkg, err := NewPackage(dataset)
	if err != nil {
		return err
	}
	descriptorBytes, err := json.MarshalIndent(pkg.Descriptor(), "", "  ")
	if err != nil {
		return err
	}

	archive := zip.NewWriter(writer)
	descriptorFile, err := archive.Create("datapackage.json")
	if err != nil {
		return err
	}
	if _, err := descriptorFile.Write(descriptorBytes); err != nil {
		return err
	}
	csvFile, err := archive.Create(dataset.Name + ".csv")
	if err != nil {
		return err
	}
	if err := WriteCSV(csvFile, s, records); err != nil {
		return err
	}
	return archive.Close()
}
