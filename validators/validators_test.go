package validators

// These tests exercise the record validation pipeline for the three dataset
// kinds: the schema pass, role promotion and the role casts.

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biosys/geo"
	"biosys/schema"
	"biosys/species"
)

// an observation schema: a required string column plus a tagged date column
const OBSERVATION_SCHEMA string = `{
	"fields": [
		{"name": "What", "type": "string", "constraints": {"required": true}},
		{"name": "When", "type": "date", "format": "any", "biosys": {"type": "observationDate"}}
	]
}`

// an observation schema with coordinates
const GEO_SCHEMA string = `{
	"fields": [
		{"name": "When", "type": "date", "format": "any"},
		{"name": "Latitude", "type": "number"},
		{"name": "Longitude", "type": "number"}
	]
}`

// a species observation schema
const SPECIES_SCHEMA string = `{
	"fields": [
		{"name": "When", "type": "date", "format": "any"},
		{"name": "Latitude", "type": "number"},
		{"name": "Longitude", "type": "number"},
		{"name": "Species Name", "type": "string", "constraints": {"required": true}}
	]
}`

func mustValidator(t *testing.T, kind, descriptor string, options Options) *RecordValidator {
	s, err := schema.New([]byte(descriptor))
	require.Nil(t, err, "The schema didn't build.")
	validator, err := ForKind(kind, s, options)
	require.Nil(t, err, "The validator didn't build.")
	return validator
}

func TestGenericValidRow(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"What": "a bird", "When": "01/06/2017"})
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings)
}

// schema problems are warnings by default for generic datasets
func TestGenericCastProblemIsWarning(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"What": "a bird", "When": "blah blah"})
	assert.True(t, result.IsValid())
	assert.Contains(t, result.Warnings, "When")
	assert.NotContains(t, result.Errors, "When")
}

// strict callers get hard errors instead
func TestGenericStrictMode(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{Strict: true})
	result := validator.Validate(map[string]any{"What": "a bird", "When": "blah blah"})
	assert.False(t, result.IsValid())
	assert.Contains(t, result.Errors, "When")
}

func TestMissingRequiredField(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"When": "01/06/2017"})
	assert.Equal(t, "The field 'What' is missing", result.Warnings["What"])
}

// a row key naming no schema field gets the not-found message
func TestUnknownColumnIsReported(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"What": "a bird", "Wher": "here"})
	assert.Contains(t, result.Warnings["Wher"], "doesn't exist in the schema")
}

func TestObservationValidRow(t *testing.T) {
	validator := mustValidator(t, DatasetObservation, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"What": "a bird", "When": "01/06/2017"})
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Errors)
}

// the resolved date column is load-bearing: its warnings become errors even
// though the schema doesn't declare the field required
func TestObservationDateWarningIsPromoted(t *testing.T) {
	validator := mustValidator(t, DatasetObservation, OBSERVATION_SCHEMA, Options{})
	result := validator.Validate(map[string]any{"What": "a bird", "When": "blah blah"})
	assert.False(t, result.IsValid())
	assert.Contains(t, result.Errors, "When")
	assert.NotContains(t, result.Warnings, "When")
}

func TestObservationGeometryErrors(t *testing.T) {
	validator := mustValidator(t, DatasetObservation, GEO_SCHEMA, Options{})

	result := validator.Validate(map[string]any{
		"When":      "01/06/2017",
		"Latitude":  -34.0,
		"Longitude": 118.0,
	})
	assert.True(t, result.IsValid())

	// a geometry failure lands on both coordinate columns
	result = validator.Validate(map[string]any{
		"When":     "01/06/2017",
		"Latitude": -34.0,
	})
	assert.False(t, result.IsValid())
	assert.Contains(t, result.Errors, "Latitude")
	assert.Contains(t, result.Errors, "Longitude")
}

// an ambiguous schema can't back an observation validator
func TestObservationRejectsAmbiguousSchema(t *testing.T) {
	descriptor := `{
		"fields": [
			{"name": "Start Date", "type": "date", "format": "any"},
			{"name": "End Date", "type": "date", "format": "any"}
		]
	}`
	s, err := schema.New([]byte(descriptor))
	require.Nil(t, err)
	_, err = ForKind(DatasetObservation, s, Options{})
	require.NotNil(t, err)
	assert.IsType(t, &ResolutionError{}, err)

	// the same schema still backs field-by-field generic validation
	_, err = ForKind(DatasetGeneric, s, Options{})
	assert.Nil(t, err)
}

func TestSpeciesObservationValidRow(t *testing.T) {
	validator := mustValidator(t, DatasetSpeciesObservation, SPECIES_SCHEMA, Options{
		Species: species.NoopService{},
	})
	result := validator.Validate(map[string]any{
		"When":         "01/06/2017",
		"Latitude":     -34.0,
		"Longitude":    118.0,
		"Species Name": "Canis lupus",
	})
	assert.True(t, result.IsValid())
}

func TestSpeciesObservationUnknownName(t *testing.T) {
	validator := mustValidator(t, DatasetSpeciesObservation, SPECIES_SCHEMA, Options{
		Species: species.ListService{Known: []string{"Canis lupus"}},
	})
	result := validator.Validate(map[string]any{
		"When":         "01/06/2017",
		"Latitude":     -34.0,
		"Longitude":    118.0,
		"Species Name": "Canis inventus",
	})
	assert.False(t, result.IsValid())
	assert.Equal(t, "Cannot find a species named 'Canis inventus'",
		result.Errors["Species Name"])
}

// with no name service configured, the species value is left alone
func TestSpeciesObservationWithoutNameService(t *testing.T) {
	validator := mustValidator(t, DatasetSpeciesObservation, SPECIES_SCHEMA, Options{})
	result := validator.Validate(map[string]any{
		"When":         "01/06/2017",
		"Latitude":     -34.0,
		"Longitude":    118.0,
		"Species Name": "Anything At All",
	})
	assert.True(t, result.IsValid())
}

// accepted rows surface their role casts for storage
func TestCastsFromValidRow(t *testing.T) {
	validator := mustValidator(t, DatasetSpeciesObservation, SPECIES_SCHEMA, Options{
		Species: species.NoopService{},
	})
	row := map[string]any{
		"When":         "01/06/2017",
		"Latitude":     -34.0,
		"Longitude":    118.0,
		"Species Name": "Canis lupus",
	}
	require.True(t, validator.Validate(row).IsValid())

	casts := validator.Casts(row)
	require.NotNil(t, casts.Date)
	assert.Equal(t, time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC), *casts.Date)
	require.NotNil(t, casts.Geometry)
	assert.Equal(t, geo.Point{X: 118.0, Y: -34.0, SRID: geo.ModelSRID}, *casts.Geometry)
	assert.Equal(t, "Canis lupus", casts.SpeciesName)
}

// generic datasets have no role casts at all
func TestCastsForGenericDataset(t *testing.T) {
	validator := mustValidator(t, DatasetGeneric, OBSERVATION_SCHEMA, Options{})
	casts := validator.Casts(map[string]any{"What": "a bird", "When": "01/06/2017"})
	assert.Nil(t, casts.Date)
	assert.Nil(t, casts.Geometry)
	assert.Empty(t, casts.SpeciesName)
}

func TestForKindRejectsUnknownKind(t *testing.T) {
	s, err := schema.New([]byte(OBSERVATION_SCHEMA))
	require.Nil(t, err)
	_, err = ForKind("vegetation", s, Options{})
	require.NotNil(t, err)
	assert.IsType(t, &UnknownKindError{}, err)
}

func TestResultPromote(t *testing.T) {
	result := NewResult()
	result.AddWarning("When", "bad date")
	result.Promote("When")
	assert.Equal(t, "bad date", result.Errors["When"])
	assert.NotContains(t, result.Warnings, "When")
	// promoting a column with no warning is a no-op
	result.Promote("Nope")
	assert.NotContains(t, result.Errors, "Nope")
}

func TestResultMerge(t *testing.T) {
	first := NewResult()
	first.AddWarning("A", "w1")
	first.AddError("B", "e1")
	second := NewResult()
	second.AddWarning("A", "w2")
	second.AddError("C", "e2")
	merged := first.Merge(second)
	assert.Equal(t, "w2", merged.Warnings["A"], "The later value must win on merge.")
	assert.Equal(t, "e1", merged.Errors["B"])
	assert.Equal(t, "e2", merged.Errors["C"])
}
