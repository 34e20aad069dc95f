package schema

import (
	"fmt"
	"time"
)

// the reserved column label used to break ties between untagged date fields
const ObservationDateFieldName = "Observation Date"

// ObservationDateResolver picks the one field that plays the observation
// date role in a schema. Resolution runs eagerly in ResolveObservationDate
// and the result never changes: either Valid with at most one resolved
// field, or invalid with a non-empty error list and no field.
//
// Precedence, over the fields declared date or datetime:
//  1. no candidates: valid, no date semantics (DateField is nil)
//  2. exactly one candidate: that's the date field, whatever its name
//  3. otherwise the biosys observationDate tag wins over any name, and the
//     reserved name/alias "Observation Date" (case-insensitive) breaks the
//     tie among untagged fields
type ObservationDateResolver struct {
	Valid     bool
	Errors    []string
	DateField *Field
}

// scans the schema's fields and resolves the observation date role
func ResolveObservationDate(s *Schema) ObservationDateResolver {
	candidates := make([]Field, 0)
	for _, field := range s.Fields {
		if field.Type == TypeDate || field.Type == TypeDateTime {
			candidates = append(candidates, field)
		}
	}

	switch len(candidates) {
	case 0:
		// a dataset with no date semantics is not an error
		return ObservationDateResolver{Valid: true}
	case 1:
		return ObservationDateResolver{Valid: true, DateField: &candidates[0]}
	}

	// more than one date field: the biosys tag takes precedence over names
	tagged := make([]Field, 0)
	for _, field := range candidates {
		if field.Tag == TagObservationDate {
			tagged = append(tagged, field)
		}
	}
	if len(tagged) == 1 {
		return ObservationDateResolver{Valid: true, DateField: &tagged[0]}
	}
	if len(tagged) > 1 {
		names := make([]string, len(tagged))
		for i, field := range tagged {
			names[i] = field.Name
		}
		return ObservationDateResolver{
			Errors: []string{fmt.Sprintf(
				"More than one Biosys type observationDate field found: %s", quotedNames(names))},
		}
	}

	// no tagged field: fall back to the reserved name
	named := make([]Field, 0)
	for _, field := range candidates {
		if field.HasNameOrAlias(ObservationDateFieldName, true) {
			named = append(named, field)
		}
	}
	if len(named) == 1 {
		return ObservationDateResolver{Valid: true, DateField: &named[0]}
	}
	if len(named) > 1 {
		return ObservationDateResolver{
			Errors: []string{"More than one field named Observation Date found."},
		}
	}
	return ObservationDateResolver{
		Errors: []string{
			"The schema contains more than one date. One must be named or alias as 'Observation Date'."},
	}
}

// CastDate extracts and casts the observation date from a raw row. It
// returns the zero time with no error when resolution failed, no date field
// exists, or the field's value is blank. A non-blank value that won't parse
// is an InvalidDateError: that's a per-row data problem, and the only place
// a resolver surfaces an error instead of absorbing it into Errors.
func (r ObservationDateResolver) CastDate(row map[string]any) (time.Time, error) {
	if !r.Valid || r.DateField == nil {
		return time.Time{}, nil
	}
	value := row[r.DateField.Name]
	if IsBlank(value) {
		return time.Time{}, nil
	}
	casted, err := r.DateField.Cast(value)
	if err != nil {
		return time.Time{}, err
	}
	return casted.(time.Time), nil
}
