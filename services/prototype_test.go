package services

// This file defines a unit test setup for the survey service prototype. The
// tests drive the REST API end to end: dataset creation, record validation
// and submission, CSV upload and data package export.
import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"biosys/config"
	"biosys/core"
	"biosys/store"
	"biosys/uploads"
)

// temporary testing directory
var TESTING_DIR string

// service URLs
var (
	baseUrl   = "http://localhost:8081/"
	apiPrefix = "api/v1/"
)

// service instance
var service SurveyService

const serviceConfig string = `
service:
  port: 8081
  max_connections: 100
  data_directory: TESTING_DIR
geo:
  default_datum: WGS84
`

const koalaSchema string = `{
	"fields": [
		{"name": "What", "type": "string", "constraints": {"required": true}},
		{"name": "When", "type": "date", "format": "any", "biosys": {"type": "observationDate"}},
		{"name": "Latitude", "type": "number"},
		{"name": "Longitude", "type": "number"}
	]
}`

// performs testing setup
func setup() {
	var err error
	TESTING_DIR, err = os.MkdirTemp(os.TempDir(), "biosys-service-tests-")
	if err != nil {
		log.Panicf("Couldn't create testing directory: %s", err)
	}

	myConfig := strings.ReplaceAll(serviceConfig, "TESTING_DIR", TESTING_DIR)
	err = core.Init([]byte(myConfig))
	if err != nil {
		log.Panicf("Couldn't initialize configuration: %s", err)
	}

	// Start the service.
	log.Print("Starting test survey service...\n")
	go func() {
		service, err = NewSurveyService()
		if err != nil {
			log.Panicf("Couldn't construct the service: %s", err.Error())
		}
		err = service.Start(config.Service.Port)
		if err != nil {
			log.Panicf("Couldn't start survey service: %s", err.Error())
		}
	}()

	// Give the service time to start up.
	time.Sleep(250 * time.Millisecond)
}

// Performs testing breakdown.
func breakdown() {

	if service != nil {
		// Gracefully shut the service down when it finishes its work.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		service.Shutdown(ctx)
	}

	if TESTING_DIR != "" {
		// Remove the testing directory and its contents.
		log.Printf("Deleting testing directory %s...\n", TESTING_DIR)
		os.RemoveAll(TESTING_DIR)
	}
}

// sends a GET query with well-formed headers
func get(resource string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, resource, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer testtoken")
	return http.DefaultClient.Do(req)
}

// sends a POST query with well-formed headers and a payload
func post(resource, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, resource, body)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer testtoken")
	req.Header.Add("Content-Type", contentType)
	return http.DefaultClient.Do(req)
}

// creates a dataset via the API, panicking on failure
func createTestDataset(name, kind, schema string) {
	payload, _ := json.Marshal(DatasetRequest{
		Name:   name,
		Kind:   kind,
		Schema: json.RawMessage(schema),
	})
	resp, err := post(baseUrl+apiPrefix+"datasets", "application/json", bytes.NewReader(payload))
	if err != nil || resp.StatusCode != http.StatusCreated {
		log.Panicf("Couldn't create test dataset %s", name)
	}
	resp.Body.Close()
}

// queries the service's root endpoint
func TestQueryRoot(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl)
	assert.Nil(err)

	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	defer resp.Body.Close()

	var root ServiceInfoResponse
	err = json.Unmarshal(respBody, &root)
	assert.Nil(err)
	assert.Equal("Biosys prototype", root.Name)
	assert.Equal(core.Version, root.Version)
}

// creates a dataset and reads it back
func TestCreateAndQueryDataset(t *testing.T) {
	assert := assert.New(t)

	payload, err := json.Marshal(DatasetRequest{
		Name:        "koalas",
		Kind:        "observation",
		Description: "Koala sightings",
		Schema:      json.RawMessage(koalaSchema),
	})
	assert.Nil(err)
	resp, err := post(baseUrl+apiPrefix+"datasets", "application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// the dataset comes back by name
	resp, err = get(baseUrl + apiPrefix + "datasets/koalas")
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()

	var dataset DatasetResponse
	err = json.Unmarshal(respBody, &dataset)
	assert.Nil(err)
	assert.Equal("koalas", dataset.Name)
	assert.Equal("observation", dataset.Kind)
	if assert.NotNil(dataset.Roles) {
		assert.Equal("When", dataset.Roles.DateField)
		assert.Equal("lat-long", dataset.Roles.GeometryKind)
		assert.Equal([]string{"Latitude", "Longitude"}, dataset.Roles.GeometryFields)
	}

	// and shows up in the listing
	resp, err = get(baseUrl + apiPrefix + "datasets")
	assert.Nil(err)
	respBody, err = io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()
	var datasets []DatasetResponse
	err = json.Unmarshal(respBody, &datasets)
	assert.Nil(err)
	assert.NotEmpty(datasets)

	// a second dataset with the same name is a conflict
	resp, err = post(baseUrl+apiPrefix+"datasets", "application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

// a dataset whose schema can't resolve its kind's roles is rejected
func TestCreateDatasetWithAmbiguousSchema(t *testing.T) {
	assert := assert.New(t)

	payload, _ := json.Marshal(DatasetRequest{
		Name: "broken",
		Kind: "observation",
		Schema: json.RawMessage(`{
			"fields": [
				{"name": "Start Date", "type": "date", "format": "any"},
				{"name": "End Date", "type": "date", "format": "any"}
			]
		}`),
	})
	resp, err := post(baseUrl+apiPrefix+"datasets", "application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// nothing was stored
	resp, err = get(baseUrl + apiPrefix + "datasets/broken")
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateDatasetWithBadKind(t *testing.T) {
	assert := assert.New(t)

	payload, _ := json.Marshal(DatasetRequest{
		Name:   "whatever",
		Kind:   "vegetation",
		Schema: json.RawMessage(koalaSchema),
	})
	resp, err := post(baseUrl+apiPrefix+"datasets", "application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

// validates records without storing them
func TestValidateRecords(t *testing.T) {
	assert := assert.New(t)
	createTestDataset("validation-target", "observation", koalaSchema)

	payload, _ := json.Marshal(RecordsRequest{
		Records: []map[string]any{
			{"What": "koala", "When": "01/06/2017", "Latitude": -34.0, "Longitude": 118.0},
			{"What": "koala", "When": "not a date", "Latitude": -34.0, "Longitude": 118.0},
		},
	})
	resp, err := post(baseUrl+apiPrefix+"datasets/validation-target/validate",
		"application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()

	var results []RowValidationResponse
	err = json.Unmarshal(respBody, &results)
	assert.Nil(err)
	assert.Equal(2, len(results))
	assert.True(results[0].Valid)
	assert.False(results[1].Valid)
	assert.Contains(results[1].Errors, "When")

	// validation stores nothing
	resp, err = get(baseUrl + apiPrefix + "datasets/validation-target/records")
	assert.Nil(err)
	respBody, err = io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()
	var records []store.Record
	err = json.Unmarshal(respBody, &records)
	assert.Nil(err)
	assert.Empty(records)
}

// submits records through the JSON API and reads them back
func TestCreateRecords(t *testing.T) {
	assert := assert.New(t)
	createTestDataset("submissions", "observation", koalaSchema)

	payload, _ := json.Marshal(RecordsRequest{
		Records: []map[string]any{
			{"What": "koala", "When": "01/06/2017", "Latitude": -34.0, "Longitude": 118.0},
			{"What": "wombat", "When": "nope", "Latitude": -34.0, "Longitude": 118.0},
		},
	})
	resp, err := post(baseUrl+apiPrefix+"datasets/submissions/records",
		"application/json", bytes.NewReader(payload))
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()

	var report uploads.Report
	err = json.Unmarshal(respBody, &report)
	assert.Nil(err)
	assert.Equal(2, report.Rows)
	assert.Equal(1, report.Accepted)
	assert.Equal(1, report.Rejected)

	resp, err = get(baseUrl + apiPrefix + "datasets/submissions/records")
	assert.Nil(err)
	respBody, err = io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()
	var records []store.Record
	err = json.Unmarshal(respBody, &records)
	assert.Nil(err)
	assert.Equal(1, len(records))
	assert.Equal("koala", records[0].Data["What"])
	assert.NotNil(records[0].Date)
	assert.NotNil(records[0].Geometry)
}

// uploads a CSV file, with headers that need trimming
func TestUploadRecords(t *testing.T) {
	assert := assert.New(t)
	createTestDataset("csv-uploads", "observation", koalaSchema)

	content := " What , When ,Latitude,Longitude\n" +
		"koala,01/06/2017,-34.0,118.0\n" +
		"wombat,02/06/2017,-33.5,117.8\n"
	resp, err := post(baseUrl+apiPrefix+"datasets/csv-uploads/upload",
		"text/csv", strings.NewReader(content))
	assert.Nil(err)
	assert.Equal(http.StatusCreated, resp.StatusCode)
	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()

	var report uploads.Report
	err = json.Unmarshal(respBody, &report)
	assert.Nil(err)
	assert.Equal(2, report.Accepted)
	assert.Equal(0, report.Rejected)
}

// exports a dataset as a zipped data package
func TestExportDataset(t *testing.T) {
	assert := assert.New(t)
	createTestDataset("exports-target", "observation", koalaSchema)

	payload, _ := json.Marshal(RecordsRequest{
		Records: []map[string]any{
			{"What": "koala", "When": "01/06/2017", "Latitude": -34.0, "Longitude": 118.0},
		},
	})
	resp, err := post(baseUrl+apiPrefix+"datasets/exports-target/records",
		"application/json", bytes.NewReader(payload))
	assert.Nil(err)
	resp.Body.Close()

	resp, err = get(baseUrl + apiPrefix + "datasets/exports-target/export")
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("application/zip", resp.Header.Get("Content-Type"))
	respBody, err := io.ReadAll(resp.Body)
	assert.Nil(err)
	resp.Body.Close()

	archive, err := zip.NewReader(bytes.NewReader(respBody), int64(len(respBody)))
	assert.Nil(err)
	names := make([]string, 0)
	for _, file := range archive.File {
		names = append(names, file.Name)
	}
	assert.Contains(names, "datapackage.json")
	assert.Contains(names, "exports-target.csv")
}

// queries a dataset that doesn't exist
func TestQueryInvalidDataset(t *testing.T) {
	assert := assert.New(t)

	resp, err := get(baseUrl + apiPrefix + "datasets/nonexistent")
	assert.Nil(err)
	assert.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// requests without a bearer token are turned away
func TestMissingAuthorizationHeader(t *testing.T) {
	assert := assert.New(t)

	req, err := http.NewRequest(http.MethodGet, baseUrl+apiPrefix+"datasets", http.NoBody)
	assert.Nil(err)
	resp, err := http.DefaultClient.Do(req)
	assert.Nil(err)
	assert.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestMain(m *testing.M) {
	var status int
	setup()
	if TESTING_DIR != "" {
		status = m.Run()
	}
	breakdown()
	os.Exit(status)
}
