package uploads

import (
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"biosys/schema"
	"biosys/store"
	"biosys/validators"
)

// This package ingests uploaded CSV files into a dataset: it parses the
// file, validates every row against the dataset's schema and kind, and
// turns the clean rows into records ready for storage. Uploaded headers
// get their surrounding whitespace trimmed before they're matched against
// the schema; rows submitted through the JSON API get no such cleanup.

// the validation outcome of one data row that had something to report
type RowIssue struct {
	// 1-based data row number (the header row doesn't count)
	Row int `json:"row"`
	// per-column warnings (the row is still accepted)
	Warnings map[string]string `json:"warnings,omitempty"`
	// per-column errors (the row is rejected)
	Errors map[string]string `json:"errors,omitempty"`
}

// a summary of one processed upload
type Report struct {
	// the name of the target dataset
	Dataset string `json:"dataset"`
	// number of data rows in the file
	Rows int `json:"rows"`
	// number of rows accepted
	Accepted int `json:"accepted"`
	// number of rows rejected
	Rejected int `json:"rejected"`
	// rows with warnings or errors, in file order
	Issues []RowIssue `json:"issues,omitempty"`
}

// parses CSV content into rows keyed by their (trimmed) header
func ParseCSV(reader io.Reader) ([]string, []map[string]any, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, nil, &EmptyFileError{}
	}
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool)
	for i, header := range headers {
		headers[i] = strings.TrimSpace(header)
		if seen[headers[i]] {
			return nil, nil, &DuplicateHeaderError{Name: headers[i]}
		}
		seen[headers[i]] = true
	}

	rows := make([]map[string]any, 0)
	for {
		cells, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(headers))
		for i, header := range headers {
			row[header] = cells[i]
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// Process validates an uploaded CSV file against a dataset and returns the
// upload report alongside the records built from the accepted rows. Nothing
// is persisted here; the caller decides what to do with the records.
func Process(dataset store.Dataset, reader io.Reader, options validators.Options) (Report, []store.Record, error) {
	_, rows, err := ParseCSV(reader)
	if err != nil {
		return Report{Dataset: dataset.Name}, nil, err
	}
	return ProcessRows(dataset, rows, options)
}

// ProcessRows validates rows that arrived already keyed by field name, such
// as records submitted through the JSON API. No header cleanup happens here.
func ProcessRows(dataset store.Dataset, rows []map[string]any, options validators.Options) (Report, []store.Record, error) {
	report := Report{Dataset: dataset.Name}

	s, err := schema.New(dataset.Descriptor)
	if err != nil {
		return report, nil, err
	}
	validator, err := validators.ForKind(dataset.Kind, s, options)
	if err != nil {
		return report, nil, err
	}

	records := make([]store.Record, 0, len(rows))
	for i, row := range rows {
		result := validator.Validate(row)
		if len(result.Warnings) > 0 || len(result.Errors) > 0 {
			report.Issues = append(report.Issues, RowIssue{
				Row:      i + 1,
				Warnings: result.Warnings,
				Errors:   result.Errors,
			})
		}
		if result.HasErrors() {
			report.Rejected++
			continue
		}
		report.Accepted++
		casts := validator.Casts(row)
		records = append(records, store.Record{
			Id:          uuid.New(),
			Data:        row,
			Date:        casts.Date,
			Geometry:    casts.Geometry,
			SpeciesName: casts.SpeciesName,
			Created:     time.Now().UTC(),
		})
	}
	report.Rows = len(rows)
	return report, records, nil
}
