package schema

// These tests pin down the observation date resolver's precedence rules and
// its row-level date casting.

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dateField(name string, tag Tag, aliases ...string) FieldDescriptor {
	descriptor := FieldDescriptor{Name: name, Type: "date", Format: "any", Aliases: aliases}
	if tag != "" {
		descriptor.Biosys = &BiosysDescriptor{Type: tag}
	}
	return descriptor
}

func schemaOf(t *testing.T, fields ...FieldDescriptor) *Schema {
	s, err := FromDescriptor(Descriptor{Fields: fields})
	require.Nil(t, err, "The schema didn't build.")
	return s
}

func TestResolveNoDateFieldIsValid(t *testing.T) {
	s := schemaOf(t, FieldDescriptor{Name: "What", Type: "string"})
	resolver := ResolveObservationDate(s)
	assert.True(t, resolver.Valid)
	assert.Nil(t, resolver.DateField)
	assert.Empty(t, resolver.Errors)
}

func TestResolveSingleDateFieldWinsWhateverItsName(t *testing.T) {
	s := schemaOf(t,
		FieldDescriptor{Name: "What", Type: "string"},
		dateField("Expedition Day", ""),
	)
	resolver := ResolveObservationDate(s)
	require.True(t, resolver.Valid)
	assert.Equal(t, "Expedition Day", resolver.DateField.Name)
}

// the biosys tag wins over names, whatever the field order
func TestResolveTagBeatsName(t *testing.T) {
	tagged := dateField("Survey Date", TagObservationDate)
	named := dateField("Observation Date", "")
	for _, fields := range [][]FieldDescriptor{
		{tagged, named},
		{named, tagged},
	} {
		s := schemaOf(t, fields...)
		resolver := ResolveObservationDate(s)
		require.True(t, resolver.Valid)
		assert.Equal(t, "Survey Date", resolver.DateField.Name)
	}
}

// with no tags, the reserved name (or alias, case-insensitive) breaks the tie
func TestResolveNameFallback(t *testing.T) {
	s := schemaOf(t,
		dateField("Start Date", ""),
		dateField("observation date", ""),
	)
	resolver := ResolveObservationDate(s)
	require.True(t, resolver.Valid)
	assert.Equal(t, "observation date", resolver.DateField.Name)

	s = schemaOf(t,
		dateField("Start Date", ""),
		dateField("When", "", "Observation Date"),
	)
	resolver = ResolveObservationDate(s)
	require.True(t, resolver.Valid)
	assert.Equal(t, "When", resolver.DateField.Name)
}

// two tagged date fields: invalid with exactly one error listing the names
// in schema order, and no resolved field
func TestResolveTwoTaggedFieldsIsInvalid(t *testing.T) {
	s := schemaOf(t,
		dateField("When", TagObservationDate),
		dateField("Then", TagObservationDate),
	)
	resolver := ResolveObservationDate(s)
	assert.False(t, resolver.Valid)
	assert.Nil(t, resolver.DateField)
	require.Equal(t, 1, len(resolver.Errors))
	assert.Equal(t,
		"More than one Biosys type observationDate field found: ['When', 'Then']",
		resolver.Errors[0])
}

func TestResolveTwoReservedNamesIsInvalid(t *testing.T) {
	s := schemaOf(t,
		dateField("Observation Date", ""),
		dateField("observation date", ""),
	)
	resolver := ResolveObservationDate(s)
	assert.False(t, resolver.Valid)
	require.Equal(t, 1, len(resolver.Errors))
	assert.Equal(t, "More than one field named Observation Date found.", resolver.Errors[0])
}

func TestResolveAmbiguousDatesIsInvalid(t *testing.T) {
	s := schemaOf(t,
		dateField("Start Date", ""),
		dateField("End Date", ""),
	)
	resolver := ResolveObservationDate(s)
	assert.False(t, resolver.Valid)
	require.Equal(t, 1, len(resolver.Errors))
	assert.Equal(t,
		"The schema contains more than one date. One must be named or alias as 'Observation Date'.",
		resolver.Errors[0])
}

func TestCastDate(t *testing.T) {
	s := schemaOf(t,
		FieldDescriptor{Name: "What", Type: "string"},
		dateField("When", TagObservationDate),
	)
	resolver := ResolveObservationDate(s)
	require.True(t, resolver.Valid)

	date, err := resolver.CastDate(map[string]any{"What": "a bird", "When": "01/06/2017"})
	require.Nil(t, err)
	assert.Equal(t, time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC), date)

	// blank values yield the zero time, not an error
	date, err = resolver.CastDate(map[string]any{"When": "  "})
	assert.Nil(t, err)
	assert.True(t, date.IsZero())

	// a non-blank unparseable value is a per-row data problem
	_, err = resolver.CastDate(map[string]any{"When": "blah blah"})
	require.NotNil(t, err)
	assert.IsType(t, &InvalidDateError{}, err)
}

func TestCastDateAfterFailedResolution(t *testing.T) {
	s := schemaOf(t,
		dateField("Start Date", ""),
		dateField("End Date", ""),
	)
	resolver := ResolveObservationDate(s)
	require.False(t, resolver.Valid)
	date, err := resolver.CastDate(map[string]any{"Start Date": "01/06/2017"})
	assert.Nil(t, err)
	assert.True(t, date.IsZero())
}
