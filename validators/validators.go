package validators

import (
	"fmt"
	"time"

	"biosys/geo"
	"biosys/schema"
	"biosys/species"
)

// the dataset kinds, which pick the validation pipeline for a record
const (
	DatasetGeneric            = "generic"
	DatasetObservation        = "observation"
	DatasetSpeciesObservation = "species_observation"
)

// returns true for a recognized dataset kind
func IsValidKind(kind string) bool {
	switch kind {
	case DatasetGeneric, DatasetObservation, DatasetSpeciesObservation:
		return true
	}
	return false
}

// options shared by all validator kinds
type Options struct {
	// report schema cast problems as errors instead of warnings
	Strict bool
	// SRID applied when rows carry no datum column (0 means geo.ModelSRID)
	DefaultSRID int
	// species name lookup; nil skips the taxonomy check
	Species species.NameService
}

// a role-specific check run against a row once schema validation passes
type rowCheck func(row map[string]any, result *Result)

// A RecordValidator validates one submitted row at a time against a schema
// and the semantic roles its dataset kind cares about. It is a pipeline:
// schema pass, then promotion of warnings on role columns, then role casts
// (run only when no errors remain). Validators are stateless across rows
// and safe for concurrent use.
type RecordValidator struct {
	schema *schema.Schema
	strict bool
	// columns whose schema warnings get promoted to errors
	promotions []string
	checks     []rowCheck

	// resolved roles, kept around for extracting casts from accepted rows
	dates       schema.ObservationDateResolver
	geometry    schema.GeometryResolver
	names       schema.SpeciesNameResolver
	defaultSRID int
}

// ForKind builds the validator for a dataset kind. For observation and
// species-observation kinds the semantic roles must resolve; a failed
// resolution is a ResolutionError and the caller must not validate rows
// against the schema for that kind (generic validation still works).
func ForKind(kind string, s *schema.Schema, options Options) (*RecordValidator, error) {
	if options.DefaultSRID == 0 {
		options.DefaultSRID = geo.ModelSRID
	}
	validator := &RecordValidator{
		schema: s,
		strict: options.Strict,
	}
	switch kind {
	case DatasetGeneric:
		return validator, nil
	case DatasetObservation:
		if err := validator.addObservationChecks(kind, s, options); err != nil {
			return nil, err
		}
		return validator, nil
	case DatasetSpeciesObservation:
		if err := validator.addObservationChecks(kind, s, options); err != nil {
			return nil, err
		}
		if err := validator.addSpeciesChecks(s, options); err != nil {
			return nil, err
		}
		return validator, nil
	}
	return nil, &UnknownKindError{Kind: kind}
}

func (v *RecordValidator) addObservationChecks(kind string, s *schema.Schema, options Options) error {
	dates := schema.ResolveObservationDate(s)
	geometry := schema.ResolveGeometry(s)
	problems := append(append([]string{}, dates.Errors...), geometry.Errors...)
	if len(problems) > 0 {
		return &ResolutionError{Kind: kind, Problems: problems}
	}
	v.dates = dates
	v.geometry = geometry
	v.defaultSRID = options.DefaultSRID

	if dates.DateField != nil {
		v.promotions = append(v.promotions, dates.DateField.Name)
		v.checks = append(v.checks, func(row map[string]any, result *Result) {
			if _, err := dates.CastDate(row); err != nil {
				result.AddError(dates.DateField.Name, err.Error())
			}
		})
	}
	if geometry.Kind != schema.GeometryNone {
		active := geometry.ActiveFields()
		for _, field := range active {
			v.promotions = append(v.promotions, field.Name)
		}
		v.checks = append(v.checks, func(row map[string]any, result *Result) {
			if _, err := geometry.CastGeometry(row, options.DefaultSRID); err != nil {
				// the fields involved in the geometry can be many; put the
				// error on every one of them
				for _, field := range active {
					result.AddError(field.Name, err.Error())
				}
			}
		})
	}
	return nil
}

func (v *RecordValidator) addSpeciesChecks(s *schema.Schema, options Options) error {
	names := schema.ResolveSpeciesName(s)
	if !names.Valid {
		return &ResolutionError{Kind: DatasetSpeciesObservation, Problems: names.Errors}
	}
	v.names = names
	active := names.ActiveFields()
	for _, field := range active {
		v.promotions = append(v.promotions, field.Name)
	}
	// the taxonomy check only runs when a name service is configured
	if options.Species != nil {
		column := active[0].Name
		v.checks = append(v.checks, func(row map[string]any, result *Result) {
			name := names.CastSpeciesName(row)
			if name == "" {
				return
			}
			found, err := options.Species.HasName(name)
			if err != nil {
				result.AddError(column, fmt.Sprintf("Couldn't check the species name: %s", err))
				return
			}
			if !found {
				result.AddError(column, fmt.Sprintf("Cannot find a species named '%s'", name))
			}
		})
	}
	return nil
}

// Validate runs the pipeline over one row and returns a fresh Result.
func (v *RecordValidator) Validate(row map[string]any) *Result {
	result := v.validateSchema(row)
	for _, column := range v.promotions {
		result.Promote(column)
	}
	// role casts only run on rows with no hard errors
	if !result.HasErrors() {
		for _, check := range v.checks {
			check(row, result)
		}
	}
	return result
}

// the schema pass: cast errors for present values, then missing required
// fields, all as warnings unless the validator is strict
func (v *RecordValidator) validateSchema(row map[string]any) *Result {
	result := NewResult()
	for fieldName, value := range row {
		message, err := v.schema.FieldValidationError(fieldName, value)
		if err != nil {
			message = err.Error()
		}
		if message != "" {
			v.report(result, fieldName, message)
		}
	}
	for _, field := range v.schema.RequiredFields() {
		if _, present := row[field.Name]; !present {
			v.report(result, field.Name, fmt.Sprintf("The field '%s' is missing", field.Name))
		}
	}
	return result
}

// the values a valid row's role columns cast to, ready for storage
type Casts struct {
	// the observation date, nil when the dataset has no date semantics or
	// the row's date column is blank
	Date *time.Time
	// the point geometry, nil for generic datasets
	Geometry *geo.Point
	// the composed species name, empty for non-species datasets
	SpeciesName string
}

// Casts extracts the role casts from a row. It assumes the row already
// validated cleanly; casting problems surface as nil/empty values here, not
// as errors.
func (v *RecordValidator) Casts(row map[string]any) Casts {
	var casts Casts
	if v.dates.DateField != nil {
		if when, err := v.dates.CastDate(row); err == nil && !when.IsZero() {
			casts.Date = &when
		}
	}
	if v.geometry.Valid && v.geometry.Kind != schema.GeometryNone {
		if point, err := v.geometry.CastGeometry(row, v.defaultSRID); err == nil {
			casts.Geometry = &point
		}
	}
	if v.names.Valid {
		casts.SpeciesName = v.names.CastSpeciesName(row)
	}
	return casts
}

func (v *RecordValidator) report(result *Result, column, message string) {
	if v.strict {
		result.AddError(column, message)
	} else {
		result.AddWarning(column, message)
	}
}
