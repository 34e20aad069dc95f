package schema

import (
	"fmt"
	"strings"
)

// reserved column labels for species naming
const (
	SpeciesNameFieldName = "Species Name"
	GenusFieldName       = "Genus"
	SpeciesFieldName     = "Species"
	InfraRankFieldName   = "Infraspecific Rank"
	InfraNameFieldName   = "Infraspecific Name"
)

// SpeciesNameResolver picks the field (or field group) that names the
// observed species. A field tagged speciesName wins over a field named or
// aliased "Species Name" (tag over name, like the date resolver); if
// neither exists, a Genus + Species pair is tried, optionally extended with
// infraspecific rank/name fields. Whichever field(s) back the role must be
// declared required.
type SpeciesNameResolver struct {
	Valid  bool
	Errors []string

	// the single species-name field form
	NameField *Field
	// the composite Genus/Species form
	GenusField     *Field
	SpeciesField   *Field
	InfraRankField *Field
	InfraNameField *Field
}

// scans the schema's fields and resolves the species name role
func ResolveSpeciesName(s *Schema) SpeciesNameResolver {
	tagged := make([]Field, 0)
	named := make([]Field, 0)
	for _, field := range s.Fields {
		if field.Tag == TagSpeciesName {
			tagged = append(tagged, field)
		} else if field.HasNameOrAlias(SpeciesNameFieldName, true) {
			named = append(named, field)
		}
	}

	// the tag tier wins whenever it's non-empty
	if len(tagged) > 1 {
		names := make([]string, len(tagged))
		for i, field := range tagged {
			names[i] = field.Name
		}
		return SpeciesNameResolver{
			Errors: []string{fmt.Sprintf(
				"More than one Biosys type speciesName field found: %s", quotedNames(names))},
		}
	}
	if len(tagged) == 1 {
		return singleSpeciesField(tagged[0])
	}
	if len(named) > 1 {
		return SpeciesNameResolver{
			Errors: []string{"More than one field named Species Name found."},
		}
	}
	if len(named) == 1 {
		return singleSpeciesField(named[0])
	}

	// no single species-name field: try the Genus + Species pair
	return resolveGenusSpecies(s)
}

func singleSpeciesField(field Field) SpeciesNameResolver {
	if !field.Required() {
		return SpeciesNameResolver{
			Errors: []string{fmt.Sprintf(
				"The field '%s' must be set as 'required' to be used as the species name.", field.Name)},
		}
	}
	return SpeciesNameResolver{Valid: true, NameField: &field}
}

func resolveGenusSpecies(s *Schema) SpeciesNameResolver {
	genus, genusFound := s.FieldByName(GenusFieldName)
	species, speciesFound := s.FieldByName(SpeciesFieldName)
	if !genusFound || !speciesFound {
		return SpeciesNameResolver{
			Errors: []string{fmt.Sprintf(
				"The schema doesn't include a species name. It must have a field named '%s' "+
					"(or tagged with biosys type %s), or a '%s'/'%s' pair.",
				SpeciesNameFieldName, TagSpeciesName, GenusFieldName, SpeciesFieldName)},
		}
	}
	errors := make([]string, 0)
	for _, field := range []Field{genus, species} {
		if !field.Required() {
			errors = append(errors, fmt.Sprintf(
				"The field '%s' must be set as 'required' to be used as the species name.", field.Name))
		}
	}
	if len(errors) > 0 {
		return SpeciesNameResolver{Errors: errors}
	}
	resolver := SpeciesNameResolver{
		Valid:        true,
		GenusField:   &genus,
		SpeciesField: &species,
	}
	// the infraspecific fields are optional refinements
	if infraRank, found := s.FieldByName(InfraRankFieldName); found {
		resolver.InfraRankField = &infraRank
	}
	if infraName, found := s.FieldByName(InfraNameFieldName); found {
		resolver.InfraNameField = &infraName
	}
	return resolver
}

// the fields backing the species name role; record validators promote
// warnings on these to errors
func (r SpeciesNameResolver) ActiveFields() []Field {
	fields := make([]Field, 0, 4)
	if r.NameField != nil {
		fields = append(fields, *r.NameField)
	}
	if r.GenusField != nil {
		fields = append(fields, *r.GenusField, *r.SpeciesField)
		if r.InfraNameField != nil {
			fields = append(fields, *r.InfraNameField)
		}
		if r.InfraRankField != nil {
			fields = append(fields, *r.InfraRankField)
		}
	}
	return fields
}

// CastSpeciesName composes the species display name from a raw row: each
// contributing value is trimmed and the parts are joined with single
// spaces, absent optional parts omitted. The composite order is
// "Genus Species InfraName InfraRank".
func (r SpeciesNameResolver) CastSpeciesName(row map[string]any) string {
	if !r.Valid {
		return ""
	}
	if r.NameField != nil {
		return trimmedValue(row, *r.NameField)
	}
	parts := make([]string, 0, 4)
	for _, field := range []*Field{r.GenusField, r.SpeciesField, r.InfraNameField, r.InfraRankField} {
		if field == nil {
			continue
		}
		if part := trimmedValue(row, *field); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

func trimmedValue(row map[string]any, field Field) string {
	value := row[field.Name]
	if IsBlank(value) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", value))
}
