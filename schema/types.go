package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// the closed set of types a field may declare
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeInteger  FieldType = "integer"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeBoolean  FieldType = "boolean"
	TypeGeoJSON  FieldType = "geojson"
	TypeGeoPoint FieldType = "geopoint"
)

// returns the FieldType for a declared type name, or an UnknownTypeError
func parseFieldType(fieldName, typeName string) (FieldType, error) {
	switch t := FieldType(typeName); t {
	case TypeString, TypeNumber, TypeInteger, TypeDate, TypeDateTime,
		TypeBoolean, TypeGeoJSON, TypeGeoPoint:
		return t, nil
	}
	return "", &UnknownTypeError{Field: fieldName, Type: typeName}
}

// returns true for values that count as blank: nil, the empty string, or a
// string of nothing but whitespace. Blank values cast to nil for every type,
// so optional spreadsheet cells never trip type parsing.
func IsBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return len(strings.TrimSpace(s)) == 0
	}
	return false
}

// the truthy/falsy vocabulary accepted by boolean fields (compared after
// lowercasing)
var booleanTokens = map[string]bool{
	"yes": true, "no": false,
	"true": true, "false": false,
	"y": true, "n": false,
	"on": true, "off": false,
	"1": true, "0": false,
}

func castBoolean(value any) (bool, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	token := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	if b, found := booleanTokens[token]; found {
		return b, nil
	}
	return false, fmt.Errorf("'%v' is not a valid boolean (try yes/no, true/false, y/n, on/off or 1/0)", value)
}

func castNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("'%v' is not a valid number", value)
		}
		return number, nil
	}
	return 0, fmt.Errorf("'%v' is not a valid number", value)
}

// casts a value to an integer, insisting on a whole number ("1.2" and 1.2
// are both rejected)
func castInteger(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("'%v' is not a whole number", value)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		number, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("'%v' is not a whole number", value)
		}
		return number, nil
	}
	return 0, fmt.Errorf("'%v' is not a whole number", value)
}

// matches strings that lead with an ISO date (YYYY-MM-DD)
var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// layouts tried for strings that lead with an ISO date
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// layouts tried for everything else, day before month: field surveys around
// here record 21/06/2017, never 06/21/2017
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006",
	"2.1.2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
}

// parses a date/datetime string, trying day-first layouts unless the string
// leads with YYYY-MM-DD, in which case only ISO layouts apply (a purely
// day-first pass would read 2017-06-21 as the 6th day of month 21)
func parseDayFirst(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := dayFirstLayouts
	if isoDatePrefix.MatchString(s) {
		layouts = isoLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &InvalidDateError{Value: s}
}

// casts a value to a date. The "any" format enables the flexible day-first
// parser; the default accepts ISO dates only.
func castDate(value any, format string) (time.Time, error) {
	t, err := castDateTime(value, format)
	if err != nil {
		return time.Time{}, err
	}
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

func castDateTime(value any, format string) (time.Time, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	s, ok := value.(string)
	if !ok {
		return time.Time{}, &InvalidDateError{Value: value}
	}
	if format == "any" {
		return parseDayFirst(s)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &InvalidDateError{Value: value}
}

// casts a value to a GeoJSON geometry, represented as the unmarshalled JSON
// object
func castGeoJSON(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		if _, found := v["type"]; !found {
			return nil, fmt.Errorf("'%v' is not a valid GeoJSON geometry (no type)", value)
		}
		return v, nil
	case string:
		var geometry map[string]any
		if err := json.Unmarshal([]byte(v), &geometry); err != nil {
			return nil, fmt.Errorf("'%v' is not a valid GeoJSON geometry", value)
		}
		if _, found := geometry["type"]; !found {
			return nil, fmt.Errorf("'%v' is not a valid GeoJSON geometry (no type)", value)
		}
		return geometry, nil
	}
	return nil, fmt.Errorf("'%v' is not a valid GeoJSON geometry", value)
}

// casts a value to a geographic point as [lon, lat]. Accepts "lon,lat"
// strings and two-element numeric arrays.
func castGeoPoint(value any) ([2]float64, error) {
	var point [2]float64
	switch v := value.(type) {
	case [2]float64:
		return v, nil
	case []float64:
		if len(v) == 2 {
			return [2]float64{v[0], v[1]}, nil
		}
	case []any:
		if len(v) == 2 {
			lon, lonErr := castNumber(v[0])
			lat, latErr := castNumber(v[1])
			if lonErr == nil && latErr == nil {
				return [2]float64{lon, lat}, nil
			}
		}
	case string:
		parts := strings.Split(v, ",")
		if len(parts) == 2 {
			lon, lonErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if lonErr == nil && latErr == nil {
				return [2]float64{lon, lat}, nil
			}
		}
	}
	return point, fmt.Errorf("'%v' is not a valid geopoint (expected \"lon,lat\")", value)
}
