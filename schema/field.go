package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// the closed set of semantic tags a field may carry in its biosys block
type Tag string

const (
	TagObservationDate Tag = "observationDate"
	TagLatitude        Tag = "latitude"
	TagLongitude       Tag = "longitude"
	TagNorthing        Tag = "northing"
	TagEasting         Tag = "easting"
	TagDatum           Tag = "datum"
	TagSpeciesName     Tag = "speciesName"
)

// a field's constraints block
type Constraints struct {
	Required bool     `json:"required"`
	Minimum  *float64 `json:"minimum,omitempty"`
	Maximum  *float64 `json:"maximum,omitempty"`
}

// the biosys block of a field descriptor, carrying its semantic tag
type BiosysDescriptor struct {
	Type Tag `json:"type"`
}

// one column definition within a schema descriptor
type FieldDescriptor struct {
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Type        string            `json:"type"`
	Format      string            `json:"format,omitempty"`
	Constraints *Constraints      `json:"constraints,omitempty"`
	Aliases     []string          `json:"aliases,omitempty"`
	Biosys      *BiosysDescriptor `json:"biosys,omitempty"`
}

// A Field wraps one column definition and does the typed casting and
// validation for single values. Fields are built once when their Schema is
// built and never change afterwards.
type Field struct {
	// column name (case-sensitive identity, unique within its schema)
	Name string
	// display title (optional)
	Title string
	// declared type
	Type FieldType
	// type format, e.g. "any" for flexible date parsing
	Format string
	// constraints block (zero value when the descriptor has none)
	Constraints Constraints
	// alternate names, matched case-insensitively on request
	Aliases []string
	// semantic tag ("" when untagged)
	Tag Tag
}

func newField(descriptor FieldDescriptor) (Field, error) {
	if descriptor.Name == "" {
		data, _ := json.Marshal(descriptor)
		return Field{}, &UnnamedFieldError{Data: string(data)}
	}
	fieldType, err := parseFieldType(descriptor.Name, descriptor.Type)
	if err != nil {
		return Field{}, err
	}
	field := Field{
		Name:    descriptor.Name,
		Title:   descriptor.Title,
		Type:    fieldType,
		Format:  descriptor.Format,
		Aliases: descriptor.Aliases,
	}
	if descriptor.Constraints != nil {
		field.Constraints = *descriptor.Constraints
	}
	if descriptor.Biosys != nil && descriptor.Biosys.Type != "" {
		switch descriptor.Biosys.Type {
		case TagObservationDate, TagLatitude, TagLongitude, TagNorthing,
			TagEasting, TagDatum, TagSpeciesName:
			field.Tag = descriptor.Biosys.Type
		default:
			return Field{}, &UnknownTagError{
				Field: descriptor.Name,
				Tag:   string(descriptor.Biosys.Type),
			}
		}
	}
	return field, nil
}

// returns true if the field's constraints mark it required
func (f Field) Required() bool {
	return f.Constraints.Required
}

// returns true if any of the field's aliases matches the given name
// (case-insensitively when icase is set)
func (f Field) HasAlias(name string, icase bool) bool {
	for _, alias := range f.Aliases {
		if alias == name || (icase && strings.EqualFold(alias, name)) {
			return true
		}
	}
	return false
}

// returns true if the field's name or one of its aliases matches the given
// name (case-insensitively when icase is set)
func (f Field) HasNameOrAlias(name string, icase bool) bool {
	if f.Name == name || (icase && strings.EqualFold(f.Name, name)) {
		return true
	}
	return f.HasAlias(name, icase)
}

// Cast converts a raw scalar into the field's native type. Blank values
// (nil, "" or all-whitespace strings) cast to nil whatever the declared
// type. Range constraints are enforced here: an out-of-range number is a
// casting failure, not a separate check. Required-ness is NOT enforced here;
// that's the validator's job.
func (f Field) Cast(value any) (any, error) {
	if IsBlank(value) {
		return nil, nil
	}
	switch f.Type {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", value), nil
	case TypeNumber:
		number, err := castNumber(value)
		if err != nil {
			return nil, err
		}
		if err := f.checkBounds(number); err != nil {
			return nil, err
		}
		return number, nil
	case TypeInteger:
		integer, err := castInteger(value)
		if err != nil {
			return nil, fmt.Errorf("The field \"%s\" must be a whole number.", f.Name)
		}
		if err := f.checkBounds(float64(integer)); err != nil {
			return nil, err
		}
		return integer, nil
	case TypeDate:
		return castDate(value, f.Format)
	case TypeDateTime:
		return castDateTime(value, f.Format)
	case TypeBoolean:
		return castBoolean(value)
	case TypeGeoJSON:
		return castGeoJSON(value)
	case TypeGeoPoint:
		return castGeoPoint(value)
	}
	// unreachable: the type was checked at construction
	return nil, &UnknownTypeError{Field: f.Name, Type: string(f.Type)}
}

// ValidationError attempts a cast and turns any failure into a message.
// Returns "" when the value is valid. This is the only bridge between cast
// errors and row-level messages; row validation never sees raised errors.
func (f Field) ValidationError(value any) string {
	if _, err := f.Cast(value); err != nil {
		return err.Error()
	}
	return ""
}

func (f Field) checkBounds(value float64) error {
	if f.Constraints.Minimum != nil && value < *f.Constraints.Minimum {
		return fmt.Errorf("The value %v is less than the minimum %v", value, *f.Constraints.Minimum)
	}
	if f.Constraints.Maximum != nil && value > *f.Constraints.Maximum {
		return fmt.Errorf("The value %v is greater than the maximum %v", value, *f.Constraints.Maximum)
	}
	return nil
}

func (f Field) String() string {
	return f.Name
}
