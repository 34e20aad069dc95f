package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"biosys/auth"
	"biosys/config"
	"biosys/core"
	"biosys/exports"
	"biosys/schema"
	"biosys/species"
	"biosys/store"
	"biosys/uploads"
	"biosys/validators"
)

// This type implements the SurveyService interface, accepting dataset
// definitions and field survey records, validating the records against
// their dataset's schema and kind, and serving the accepted data back out.
type prototype struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server
	// access token authenticator
	Authenticator *auth.Authenticator
	// species name lookup (nil when no taxonomy service is configured)
	Species species.NameService
}

// authorize clients for the service, returning the client's user record and
// an error describing any issue encountered
func (service *prototype) authorize(authorizationHeader string) (auth.User, error) {
	if !strings.Contains(authorizationHeader, "Bearer") {
		return auth.User{}, huma.Error401Unauthorized("Invalid authorization header")
	}
	accessToken := strings.TrimSpace(authorizationHeader[len("Bearer "):])
	user, err := service.Authenticator.GetUser(accessToken)
	if err != nil {
		return auth.User{}, huma.Error401Unauthorized(err.Error())
	}
	return user, nil
}

// the validator options shared by all record-handling endpoints
func (service *prototype) validatorOptions(strict bool) validators.Options {
	return validators.Options{
		Strict:      strict,
		DefaultSRID: config.DefaultSRID(),
		Species:     service.Species,
	}
}

// builds the validator for a dataset, mapping its failure modes to HTTP errors
func validatorFor(dataset store.Dataset, options validators.Options) (*validators.RecordValidator, error) {
	s, err := schema.New(dataset.Descriptor)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	validator, err := validators.ForKind(dataset.Kind, s, options)
	if err != nil {
		var resolution *validators.ResolutionError
		if errors.As(err, &resolution) {
			return nil, huma.Error422UnprocessableEntity(resolution.Error())
		}
		return nil, err
	}
	return validator, nil
}

// fetches a dataset, mapping its absence to a 404
func fetchDataset(name string) (store.Dataset, error) {
	dataset, err := store.GetDataset(name)
	if err != nil {
		var notFound *store.DatasetNotFoundError
		if errors.As(err, &notFound) {
			return store.Dataset{}, huma.Error404NotFound(err.Error())
		}
		return store.Dataset{}, err
	}
	return dataset, nil
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root (no authorization needed for this one)
func (service *prototype) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type DatasetOutput struct {
	Body   DatasetResponse `doc:"Information about the requested dataset"`
	Status int
}

type DatasetsOutput struct {
	Body []DatasetResponse `doc:"A list of information about available datasets"`
}

func datasetResponse(dataset store.Dataset) DatasetResponse {
	return DatasetResponse{
		Name:        dataset.Name,
		Kind:        dataset.Kind,
		Description: dataset.Description,
		Schema:      dataset.Descriptor,
		Created:     dataset.Created,
	}
}

// handler method for querying all datasets
func (service *prototype) getDatasets(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization"`
	}) (*DatasetsOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info("Querying datasets...")
	datasets, err := store.Datasets()
	if err != nil {
		return nil, err
	}
	output := &DatasetsOutput{
		Body: make([]DatasetResponse, 0, len(datasets)),
	}
	for _, dataset := range datasets {
		output.Body = append(output.Body, datasetResponse(dataset))
	}
	return output, nil
}

// handler method for creating a dataset
func (service *prototype) createDataset(ctx context.Context,
	input *struct {
		Authorization string         `header:"Authorization" doc:"Authorization header with access token"`
		Body          DatasetRequest `doc:"The body of a POST request for a new dataset"`
		ContentType   string         `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*DatasetOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	if input.Body.Name == "" {
		return nil, huma.Error422UnprocessableEntity("A dataset needs a name.")
	}
	if !validators.IsValidKind(input.Body.Kind) {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("Invalid dataset kind: %s", input.Body.Kind))
	}
	if _, err := store.GetDataset(input.Body.Name); err == nil {
		return nil, huma.Error409Conflict(
			fmt.Sprintf("A dataset named '%s' already exists.", input.Body.Name))
	}

	dataset := store.Dataset{
		Name:        input.Body.Name,
		Kind:        input.Body.Kind,
		Description: input.Body.Description,
		Descriptor:  input.Body.Schema,
		Created:     time.Now().UTC(),
	}
	// the schema must build and resolve for its kind before anything is stored
	if _, err := validatorFor(dataset, service.validatorOptions(false)); err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Creating dataset %s...", dataset.Name))
	if err := store.SaveDataset(dataset); err != nil {
		return nil, err
	}
	return &DatasetOutput{
		Body:   datasetResponse(dataset),
		Status: http.StatusCreated,
	}, nil
}

// handler method for querying a single dataset
func (service *prototype) getDataset(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Name          string `path:"name" example:"koala-survey-2017" doc:"the name of a dataset"`
	}) (*DatasetOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Querying dataset %s...", input.Name))
	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}
	response := datasetResponse(dataset)
	response.Roles = roleSummary(dataset)
	return &DatasetOutput{
		Body:   response,
		Status: http.StatusOK,
	}, nil
}

// summarizes which fields a dataset's semantic roles resolved to
func roleSummary(dataset store.Dataset) *RoleSummaryResponse {
	if dataset.Kind == validators.DatasetGeneric {
		return nil
	}
	s, err := schema.New(dataset.Descriptor)
	if err != nil {
		return nil
	}
	summary := RoleSummaryResponse{}
	if dates := schema.ResolveObservationDate(s); dates.DateField != nil {
		summary.DateField = dates.DateField.Name
	}
	if geometry := schema.ResolveGeometry(s); geometry.Kind != schema.GeometryNone {
		summary.GeometryKind = string(geometry.Kind)
		for _, field := range geometry.ActiveFields() {
			summary.GeometryFields = append(summary.GeometryFields, field.Name)
		}
	}
	if dataset.Kind == validators.DatasetSpeciesObservation {
		if names := schema.ResolveSpeciesName(s); names.Valid {
			for _, field := range names.ActiveFields() {
				summary.SpeciesFields = append(summary.SpeciesFields, field.Name)
			}
		}
	}
	return &summary
}

type ValidationOutput struct {
	Body []RowValidationResponse `doc:"The validation outcome for each submitted record, in order"`
}

// handler method for validating records without storing anything
func (service *prototype) validateRecords(ctx context.Context,
	input *struct {
		Authorization string         `header:"Authorization" doc:"Authorization header with access token"`
		Name          string         `path:"name" doc:"the name of a dataset"`
		Strict        bool           `query:"strict" doc:"report casting problems as errors instead of warnings"`
		Body          RecordsRequest `doc:"The records to validate"`
		ContentType   string         `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*ValidationOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}
	validator, err := validatorFor(dataset, service.validatorOptions(input.Strict))
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Validating %d records against dataset %s...",
		len(input.Body.Records), input.Name))
	output := &ValidationOutput{
		Body: make([]RowValidationResponse, 0, len(input.Body.Records)),
	}
	for i, row := range input.Body.Records {
		result := validator.Validate(row)
		output.Body = append(output.Body, RowValidationResponse{
			Row:      i + 1,
			Valid:    result.IsValid(),
			Warnings: result.Warnings,
			Errors:   result.Errors,
		})
	}
	return output, nil
}

type ReportOutput struct {
	Body   uploads.Report `doc:"A summary of the accepted and rejected records"`
	Status int
}

// handler method for submitting records through the JSON API. Unlike file
// uploads, rows submitted here get no header cleanup: keys must match the
// schema's field names exactly.
func (service *prototype) createRecords(ctx context.Context,
	input *struct {
		Authorization string         `header:"Authorization" doc:"Authorization header with access token"`
		Name          string         `path:"name" doc:"the name of a dataset"`
		Strict        bool           `query:"strict" doc:"reject records with casting problems"`
		Body          RecordsRequest `doc:"The records to validate and store"`
		ContentType   string         `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*ReportOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Submitting %d records to dataset %s...",
		len(input.Body.Records), input.Name))
	report, records, err := uploads.ProcessRows(dataset, input.Body.Records,
		service.validatorOptions(input.Strict))
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := store.SaveRecords(dataset.Name, records); err != nil {
			return nil, err
		}
	}
	return &ReportOutput{
		Body:   report,
		Status: http.StatusCreated,
	}, nil
}

// handler method for uploading a CSV file of records
func (service *prototype) uploadRecords(ctx context.Context,
	input *struct {
		Authorization string `header:"Authorization" doc:"Authorization header with access token"`
		Name          string `path:"name" doc:"the name of a dataset"`
		Strict        bool   `query:"strict" doc:"reject records with casting problems"`
		RawBody       []byte `contentType:"text/csv" doc:"The CSV content, headers in the first row"`
	}) (*ReportOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Processing an upload for dataset %s...", input.Name))
	report, records, err := uploads.Process(dataset, bytes.NewReader(input.RawBody),
		service.validatorOptions(input.Strict))
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	if len(records) > 0 {
		if err := store.SaveRecords(dataset.Name, records); err != nil {
			return nil, err
		}
	}
	return &ReportOutput{
		Body:   report,
		Status: http.StatusCreated,
	}, nil
}

type RecordsOutput struct {
	Body []store.Record `doc:"The accepted records of the dataset"`
}

// handler method for querying a dataset's accepted records
func (service *prototype) getRecords(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Name          string `path:"name" doc:"the name of a dataset"`
	}) (*RecordsOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}
	records, err := store.Records(dataset.Name)
	if err != nil {
		return nil, err
	}
	return &RecordsOutput{Body: records}, nil
}

type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// handler method for exporting a dataset as a zipped data package
func (service *prototype) exportDataset(ctx context.Context,
	input *struct {
		Authorization string `header:"authorization" doc:"Authorization header with access token"`
		Name          string `path:"name" doc:"the name of a dataset"`
	}) (*ExportOutput, error) {

	_, err := service.authorize(input.Authorization)
	if err != nil {
		return nil, err
	}

	dataset, err := fetchDataset(input.Name)
	if err != nil {
		return nil, err
	}
	records, err := store.Records(dataset.Name)
	if err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("Exporting dataset %s (%d records)...", dataset.Name, len(records)))
	var buffer bytes.Buffer
	if err := exports.WriteArchive(&buffer, dataset, records); err != nil {
		return nil, err
	}
	return &ExportOutput{
		ContentType:        "application/zip",
		ContentDisposition: fmt.Sprintf("attachment; filename=\"%s.zip\"", dataset.Name),
		Body:               buffer.Bytes(),
	}, nil
}

// returns the uptime for the service in seconds
func (service *prototype) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// constructs a prototype field survey data service given our configuration
func NewSurveyService() (SurveyService, error) {

	// validate our configuration
	if config.Service.DataDirectory == "" {
		return nil, fmt.Errorf("No data directory was specified.")
	}

	service := new(prototype)
	service.Name = "Biosys prototype"
	service.Version = core.Version
	service.Port = -1

	authenticator, err := auth.NewAuthenticator()
	if err != nil {
		return nil, err
	}
	service.Authenticator = authenticator

	if config.Species.URL != "" {
		service.Species = species.NewWFSService(config.Species.URL,
			time.Duration(config.Species.Timeout)*time.Second)
	}

	// set up routing
	service.Router = mux.NewRouter()
	api := humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(api, "/", service.getRoot)

	// API v1
	huma.Get(api, "/api/v1/datasets", service.getDatasets)
	huma.Post(api, "/api/v1/datasets", service.createDataset)
	huma.Get(api, "/api/v1/datasets/{name}", service.getDataset)
	huma.Post(api, "/api/v1/datasets/{name}/validate", service.validateRecords)
	huma.Get(api, "/api/v1/datasets/{name}/records", service.getRecords)
	huma.Post(api, "/api/v1/datasets/{name}/records", service.createRecords)
	huma.Post(api, "/api/v1/datasets/{name}/upload", service.uploadRecords)
	huma.Get(api, "/api/v1/datasets/{name}/export", service.exportDataset)

	AddDocEndpoints(service.Router)

	return service, nil
}

// starts the prototype field survey data service
func (service *prototype) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// open the data store
	err = store.Init()
	if err != nil {
		return err
	}

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *prototype) Shutdown(ctx context.Context) error {
	store.Finalize()
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *prototype) Close() {
	store.Finalize()
	if service.Server != nil {
		service.Server.Close()
	}
}
