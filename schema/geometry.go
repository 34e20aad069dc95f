package schema

import (
	"fmt"

	"biosys/geo"
)

// reserved column labels for coordinate and datum fields
const (
	LatitudeFieldName  = "Latitude"
	LongitudeFieldName = "Longitude"
	EastingFieldName   = "Easting"
	NorthingFieldName  = "Northing"
	ZoneFieldName      = "Zone"
	DatumFieldName     = "Datum"
)

// the coordinate system a schema's geometry fields describe
type GeometryKind string

const (
	// a geojson or geopoint typed field carries the whole geometry
	GeometryField GeometryKind = "geo-field"
	// a latitude/longitude pair
	GeometryLatLong GeometryKind = "lat-long"
	// an easting/northing pair with a zone
	GeometryEastingNorthing GeometryKind = "easting-northing"
	// no geometry fields at all
	GeometryNone GeometryKind = "none"
)

// GeometryResolver picks the fields that carry a record's location. A
// geojson or geopoint typed field is authoritative whenever one exists;
// otherwise a latitude/longitude pair is looked up (tag first, reserved
// name second, like the date resolver), then an easting/northing pair. A
// datum field resolves independently and applies to whichever coordinate
// system won. Unsupported datum values are a casting error, not a
// resolution one.
type GeometryResolver struct {
	Valid  bool
	Errors []string
	Kind   GeometryKind

	// set when Kind == GeometryField
	Field *Field
	// set when Kind == GeometryLatLong
	LatitudeField  *Field
	LongitudeField *Field
	// set when Kind == GeometryEastingNorthing (ZoneField may be nil)
	EastingField  *Field
	NorthingField *Field
	ZoneField     *Field
	// optional, any Kind
	DatumField *Field
}

// resolves one role field by tag first, then by reserved name. Returns
// (nil, nil) when no field matches; ambiguity within the winning tier is an
// error.
func resolveTaggedField(s *Schema, tag Tag, name string) (*Field, []string) {
	tagged := make([]Field, 0)
	for _, field := range s.Fields {
		if field.Tag == tag {
			tagged = append(tagged, field)
		}
	}
	if len(tagged) == 1 {
		return &tagged[0], nil
	}
	if len(tagged) > 1 {
		names := make([]string, len(tagged))
		for i, field := range tagged {
			names[i] = field.Name
		}
		return nil, []string{fmt.Sprintf("More than one Biosys type %s field found: %s",
			tag, quotedNames(names))}
	}
	named := make([]Field, 0)
	for _, field := range s.Fields {
		if field.HasNameOrAlias(name, true) {
			named = append(named, field)
		}
	}
	if len(named) == 1 {
		return &named[0], nil
	}
	if len(named) > 1 {
		return nil, []string{fmt.Sprintf("More than one field named %s found.", name)}
	}
	return nil, nil
}

// scans the schema's fields and resolves the geometry role
func ResolveGeometry(s *Schema) GeometryResolver {
	resolver := GeometryResolver{Kind: GeometryNone}

	// the datum field resolves independently of the coordinate system
	datumField, errors := resolveTaggedField(s, TagDatum, DatumFieldName)
	resolver.Errors = append(resolver.Errors, errors...)
	resolver.DatumField = datumField

	// a geojson/geopoint field wins over any coordinate pair
	geomFields := make([]Field, 0)
	for _, field := range s.Fields {
		if field.Type == TypeGeoJSON || field.Type == TypeGeoPoint {
			geomFields = append(geomFields, field)
		}
	}
	if len(geomFields) > 1 {
		names := make([]string, len(geomFields))
		for i, field := range geomFields {
			names[i] = field.Name
		}
		resolver.Errors = append(resolver.Errors,
			fmt.Sprintf("More than one geometry field found: %s", quotedNames(names)))
	} else if len(geomFields) == 1 {
		resolver.Kind = GeometryField
		resolver.Field = &geomFields[0]
	} else {
		resolveCoordinatePair(s, &resolver)
	}

	resolver.Valid = len(resolver.Errors) == 0
	if !resolver.Valid {
		// invalid resolution carries no resolved targets
		resolver.Kind = GeometryNone
		resolver.Field = nil
		resolver.LatitudeField = nil
		resolver.LongitudeField = nil
		resolver.EastingField = nil
		resolver.NorthingField = nil
		resolver.ZoneField = nil
		resolver.DatumField = nil
	}
	return resolver
}

func resolveCoordinatePair(s *Schema, resolver *GeometryResolver) {
	latitude, errors := resolveTaggedField(s, TagLatitude, LatitudeFieldName)
	resolver.Errors = append(resolver.Errors, errors...)
	longitude, errors := resolveTaggedField(s, TagLongitude, LongitudeFieldName)
	resolver.Errors = append(resolver.Errors, errors...)
	if latitude != nil || longitude != nil {
		if latitude == nil {
			resolver.Errors = append(resolver.Errors,
				"A Longitude field must be paired with a Latitude field.")
			return
		}
		if longitude == nil {
			resolver.Errors = append(resolver.Errors,
				"A Latitude field must be paired with a Longitude field.")
			return
		}
		resolver.Kind = GeometryLatLong
		resolver.LatitudeField = latitude
		resolver.LongitudeField = longitude
		return
	}

	easting, errors := resolveTaggedField(s, TagEasting, EastingFieldName)
	resolver.Errors = append(resolver.Errors, errors...)
	northing, errors := resolveTaggedField(s, TagNorthing, NorthingFieldName)
	resolver.Errors = append(resolver.Errors, errors...)
	if easting != nil || northing != nil {
		if easting == nil {
			resolver.Errors = append(resolver.Errors,
				"A Northing field must be paired with an Easting field.")
			return
		}
		if northing == nil {
			resolver.Errors = append(resolver.Errors,
				"An Easting field must be paired with a Northing field.")
			return
		}
		resolver.Kind = GeometryEastingNorthing
		resolver.EastingField = easting
		resolver.NorthingField = northing
		// the zone has no biosys tag; only the reserved name applies
		zone, errors := resolveTaggedField(s, Tag("zone"), ZoneFieldName)
		resolver.Errors = append(resolver.Errors, errors...)
		resolver.ZoneField = zone
	}
}

// the coordinate fields the resolver settled on, in schema order within
// their pair. Record validators promote warnings on these to errors.
func (r GeometryResolver) ActiveFields() []Field {
	fields := make([]Field, 0, 2)
	switch r.Kind {
	case GeometryField:
		fields = append(fields, *r.Field)
	case GeometryLatLong:
		fields = append(fields, *r.LatitudeField, *r.LongitudeField)
	case GeometryEastingNorthing:
		fields = append(fields, *r.EastingField, *r.NorthingField)
	}
	return fields
}

// CastGeometry builds a point from the resolved coordinate fields of a raw
// row. The default SRID applies when no datum field or value is present.
// Missing one half of a coordinate pair, a non-numeric coordinate, an
// out-of-range latitude/longitude and an unrecognized datum are all
// GeometryError/UnsupportedDatumError values.
func (r GeometryResolver) CastGeometry(row map[string]any, defaultSRID int) (geo.Point, error) {
	if !r.Valid || r.Kind == GeometryNone {
		return geo.Point{}, &GeometryError{Message: "The schema has no geometry fields."}
	}

	srid := defaultSRID
	if r.DatumField != nil {
		if value := row[r.DatumField.Name]; !IsBlank(value) {
			datumSRID, err := geo.DatumSRID(fmt.Sprintf("%v", value))
			if err != nil {
				return geo.Point{}, err
			}
			srid = datumSRID
		}
	}

	switch r.Kind {
	case GeometryField:
		return r.castGeometryField(row, srid)
	case GeometryLatLong:
		latitude, err := r.castCoordinate(row, *r.LatitudeField, -90, 90)
		if err != nil {
			return geo.Point{}, err
		}
		longitude, err := r.castCoordinate(row, *r.LongitudeField, -180, 180)
		if err != nil {
			return geo.Point{}, err
		}
		return geo.Point{X: longitude, Y: latitude, SRID: srid}, nil
	default: // GeometryEastingNorthing
		return r.castEastingNorthing(row, srid)
	}
}

func (r GeometryResolver) castGeometryField(row map[string]any, srid int) (geo.Point, error) {
	value := row[r.Field.Name]
	if IsBlank(value) {
		return geo.Point{}, &GeometryError{
			Message: fmt.Sprintf("Missing value for the field '%s'", r.Field.Name)}
	}
	casted, err := r.Field.Cast(value)
	if err != nil {
		return geo.Point{}, &GeometryError{Message: err.Error()}
	}
	switch v := casted.(type) {
	case [2]float64:
		return geo.Point{X: v[0], Y: v[1], SRID: srid}, nil
	case map[string]any:
		point, err := castGeoPoint(v["coordinates"])
		if err != nil {
			return geo.Point{}, &GeometryError{
				Message: fmt.Sprintf("The field '%s' is not a point geometry", r.Field.Name)}
		}
		return geo.Point{X: point[0], Y: point[1], SRID: srid}, nil
	}
	return geo.Point{}, &GeometryError{
		Message: fmt.Sprintf("The field '%s' is not a point geometry", r.Field.Name)}
}

func (r GeometryResolver) castCoordinate(row map[string]any, field Field, min, max float64) (float64, error) {
	value := row[field.Name]
	if IsBlank(value) {
		return 0, &GeometryError{
			Message: fmt.Sprintf("Missing value for the field '%s'", field.Name)}
	}
	casted, err := field.Cast(value)
	if err != nil {
		return 0, &GeometryError{Message: err.Error()}
	}
	coordinate, err := castNumber(casted)
	if err != nil {
		return 0, &GeometryError{
			Message: fmt.Sprintf("'%v' is not a valid value for the field '%s'", value, field.Name)}
	}
	if coordinate < min || coordinate > max {
		return 0, &GeometryError{
			Message: fmt.Sprintf("The value %v for the field '%s' must be between %g and %g",
				value, field.Name, min, max)}
	}
	return coordinate, nil
}

func (r GeometryResolver) castEastingNorthing(row map[string]any, srid int) (geo.Point, error) {
	easting, err := r.castProjected(row, *r.EastingField)
	if err != nil {
		return geo.Point{}, err
	}
	northing, err := r.castProjected(row, *r.NorthingField)
	if err != nil {
		return geo.Point{}, err
	}
	if r.ZoneField != nil {
		if value := row[r.ZoneField.Name]; !IsBlank(value) {
			zone, err := castInteger(value)
			if err != nil {
				return geo.Point{}, &GeometryError{
					Message: fmt.Sprintf("'%v' is not a valid zone", value)}
			}
			zoneSRID, err := geo.ZoneSRID(int(zone))
			if err != nil {
				return geo.Point{}, &GeometryError{Message: err.Error()}
			}
			srid = zoneSRID
		}
	}
	return geo.Point{X: easting, Y: northing, SRID: srid}, nil
}

func (r GeometryResolver) castProjected(row map[string]any, field Field) (float64, error) {
	value := row[field.Name]
	if IsBlank(value) {
		return 0, &GeometryError{
			Message: fmt.Sprintf("Missing value for the field '%s'", field.Name)}
	}
	casted, err := field.Cast(value)
	if err != nil {
		return 0, &GeometryError{Message: err.Error()}
	}
	coordinate, err := castNumber(casted)
	if err != nil {
		return 0, &GeometryError{
			Message: fmt.Sprintf("'%v' is not a valid value for the field '%s'", value, field.Name)}
	}
	return coordinate, nil
}
