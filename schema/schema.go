package schema

import (
	"encoding/json"
)

// a list of field names that unmarshals from either a JSON string or a JSON
// array of strings (the table-schema spec allows both)
type FieldList []string

func (l *FieldList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = FieldList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = FieldList(many)
	return nil
}

// the reference half of a foreign key descriptor
type ReferenceDescriptor struct {
	Resource string    `json:"resource"`
	Fields   FieldList `json:"fields"`
}

// a foreign-key-like cross reference from a schema field to a field of an
// external resource (used by the export layer to populate choice lists)
type ForeignKey struct {
	Fields    FieldList           `json:"fields"`
	Reference ReferenceDescriptor `json:"reference"`
}

// the first local field participating in the key
func (fk ForeignKey) DataField() string {
	if len(fk.Fields) > 0 {
		return fk.Fields[0]
	}
	return ""
}

// the external resource the key points at
func (fk ForeignKey) Resource() string {
	return fk.Reference.Resource
}

// the first referenced field of the external resource
func (fk ForeignKey) ReferenceField() string {
	if len(fk.Reference.Fields) > 0 {
		return fk.Reference.Fields[0]
	}
	return ""
}

// the JSON shape of a dataset's schema, as persisted by the storage layer
type Descriptor struct {
	Fields      []FieldDescriptor `json:"fields"`
	ForeignKeys []ForeignKey      `json:"foreignKeys,omitempty"`
}

// the outcome of validating one field of a row
type FieldValidation struct {
	// the value as given
	Value any `json:"value"`
	// the cast error message, or "" when the value is fine
	Error string `json:"error,omitempty"`
}

// A Schema is an ordered collection of Fields plus any cross-field
// references, built fresh from a dataset's descriptor and immutable after
// construction (so it's safe to share across rows validated in parallel).
// Field order matters for display and export, not for lookup.
type Schema struct {
	Descriptor  Descriptor
	Fields      []Field
	ForeignKeys []ForeignKey
}

// builds a Schema from descriptor JSON. A malformed descriptor, an unnamed
// field, an unknown type or an unknown biosys tag are all fatal here; the
// caller must not validate rows against a schema that failed to build.
func New(data []byte) (*Schema, error) {
	var descriptor Descriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, err
	}
	return FromDescriptor(descriptor)
}

// builds a Schema from an already-unmarshalled descriptor
func FromDescriptor(descriptor Descriptor) (*Schema, error) {
	s := &Schema{
		Descriptor:  descriptor,
		Fields:      make([]Field, 0, len(descriptor.Fields)),
		ForeignKeys: descriptor.ForeignKeys,
	}
	for _, fd := range descriptor.Fields {
		field, err := newField(fd)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

// the field names in declaration order (also the export headers)
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, field := range s.Fields {
		names[i] = field.Name
	}
	return names
}

// Headers is an alias for FieldNames, used by the export layer.
func (s *Schema) Headers() []string {
	return s.FieldNames()
}

// the fields whose constraints mark them required
func (s *Schema) RequiredFields() []Field {
	required := make([]Field, 0)
	for _, field := range s.Fields {
		if field.Required() {
			required = append(required, field)
		}
	}
	return required
}

// exact-name lookup (alias matching is a resolver concern, not a schema one)
func (s *Schema) FieldByName(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// looks up a field by exact name and returns its cast error message for the
// given value ("" when valid). A missing field is a FieldNotFoundError: it
// means the caller is validating against a nonexistent column.
func (s *Schema) FieldValidationError(fieldName string, value any) (string, error) {
	field, found := s.FieldByName(fieldName)
	if !found {
		return "", &FieldNotFoundError{Name: fieldName, Fields: s.FieldNames()}
	}
	return field.ValidationError(value), nil
}

// returns true if the named field accepts the given value
func (s *Schema) IsFieldValid(fieldName string, value any) (bool, error) {
	message, err := s.FieldValidationError(fieldName, value)
	return message == "", err
}

// ValidateRow records a cast error (or "") for every key present in the
// row. Keys naming fields not in the schema get the not-found message as
// their error. Required fields absent from the row do NOT show up here;
// missing-field detection is layered on by the record validators.
func (s *Schema) ValidateRow(row map[string]any) map[string]FieldValidation {
	result := make(map[string]FieldValidation, len(row))
	for fieldName, value := range row {
		message, err := s.FieldValidationError(fieldName, value)
		if err != nil {
			message = err.Error()
		}
		result[fieldName] = FieldValidation{Value: value, Error: message}
	}
	return result
}

// returns true if every value in the row casts cleanly
func (s *Schema) IsRowValid(row map[string]any) bool {
	for _, validation := range s.ValidateRow(row) {
		if validation.Error != "" {
			return false
		}
	}
	return true
}

// returns true if the schema has a foreign key pointing at the named
// resource
func (s *Schema) HasFKForResource(resource string) bool {
	_, found := s.FKForResource(resource)
	return found
}

// returns the foreign key pointing at the named resource, if any
func (s *Schema) FKForResource(resource string) (ForeignKey, bool) {
	for _, fk := range s.ForeignKeys {
		if fk.Resource() == resource {
			return fk, true
		}
	}
	return ForeignKey{}, false
}
