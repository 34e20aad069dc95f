package schema

import (
	"fmt"
	"strings"
)

// indicates that a schema descriptor contains a field with no name
type UnnamedFieldError struct {
	Data string // the offending field descriptor, as JSON
}

func (e UnnamedFieldError) Error() string {
	return fmt.Sprintf("A field without a name: %s", e.Data)
}

// indicates that a field declares a type outside the supported set
type UnknownTypeError struct {
	Field string
	Type  string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown type '%s' for the field '%s'.", e.Type, e.Field)
}

// indicates that a field carries a semantic tag outside the supported set
type UnknownTagError struct {
	Field string
	Tag   string
}

func (e UnknownTagError) Error() string {
	return fmt.Sprintf("Unknown biosys type '%s' for the field '%s'.", e.Tag, e.Field)
}

// indicates a lookup of a field that isn't in the schema (a caller bug, not
// a data problem, so it surfaces as an error instead of a message)
type FieldNotFoundError struct {
	Name   string
	Fields []string
}

func (e FieldNotFoundError) Error() string {
	return fmt.Sprintf("The field '%s' doesn't exist in the schema. Should be one of %s",
		e.Name, quotedNames(e.Fields))
}

// indicates that a non-blank value couldn't be interpreted as a date
type InvalidDateError struct {
	Value any
}

func (e InvalidDateError) Error() string {
	return fmt.Sprintf("Invalid date '%v' (expected a day-first date like 21/06/2017 or an ISO date like 2017-06-21)",
		e.Value)
}

// indicates a per-row geometry problem (missing or out-of-range coordinates,
// bad datum, and the like)
type GeometryError struct {
	Message string
}

func (e GeometryError) Error() string {
	return e.Message
}

// formats field names the way they appear in resolver error messages:
// ['Name 1', 'Name 2']
func quotedNames(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
