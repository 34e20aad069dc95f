package services

import (
	"context"
	"encoding/json"
	"time"
)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"biosys" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a request for the creation of a dataset (POST)
type DatasetRequest struct {
	// unique dataset name
	Name string `json:"name" example:"koala-survey-2017" doc:"a unique name for the dataset"`
	// dataset kind, deciding which semantic roles its schema must resolve
	Kind string `json:"kind" example:"observation" doc:"one of generic, observation, species_observation"`
	// free-form description
	Description string `json:"description,omitempty" doc:"a description of the dataset"`
	// the schema descriptor for the dataset's records
	Schema json.RawMessage `json:"schema" doc:"the tabular schema describing the dataset's records"`
}

// a response for a dataset-related query (GET)
type DatasetResponse struct {
	Name        string          `json:"name" example:"koala-survey-2017"`
	Kind        string          `json:"kind" example:"observation"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Created     time.Time       `json:"created"`
	// which schema fields play the dataset's semantic roles (single-dataset
	// queries on non-generic datasets only)
	Roles *RoleSummaryResponse `json:"roles,omitempty"`
}

// the fields a dataset's kind resolved its semantic roles to
type RoleSummaryResponse struct {
	DateField      string   `json:"date_field,omitempty"`
	GeometryKind   string   `json:"geometry_kind,omitempty"`
	GeometryFields []string `json:"geometry_fields,omitempty"`
	SpeciesFields  []string `json:"species_fields,omitempty"`
}

// a request carrying records for validation or submission (POST)
type RecordsRequest struct {
	// the rows, each keyed by schema field name
	Records []map[string]any `json:"records" doc:"an array of records, each a JSON object keyed by field name"`
}

// the validation outcome of one submitted record
type RowValidationResponse struct {
	// 1-based position of the record in the request
	Row int `json:"row"`
	// true if the record has no errors
	Valid bool `json:"valid"`
	// per-column warnings
	Warnings map[string]string `json:"warnings,omitempty"`
	// per-column errors
	Errors map[string]string `json:"errors,omitempty"`
}

// SurveyService defines the interface for our field survey data service.
type SurveyService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}
