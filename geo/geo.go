package geo

import (
	"fmt"
	"strings"
)

// The spatial reference used for stored geometries. All coordinates are
// reprojected into this SRID by the GIS layer before persistence.
const ModelSRID = 4326

// a geodetic datum supported for raw coordinate input
type Datum struct {
	// EPSG spatial reference identifier
	SRID int
	// display name, matched case-insensitively against datum column values
	Name string
}

// the datums accepted in datum columns, in display order
var SupportedDatums = []Datum{
	{ModelSRID, "WGS84"},
	{4283, "GDA94"},
	{4203, "AGD84"},
	{4202, "AGD66"},
	{28350, "GDA94/Zone50"},
}

// returns the SRID for the named datum, or an UnsupportedDatumError if the
// name isn't one we know (matching is case-insensitive)
func DatumSRID(name string) (int, error) {
	for _, datum := range SupportedDatums {
		if strings.EqualFold(datum.Name, name) {
			return datum.SRID, nil
		}
	}
	return 0, &UnsupportedDatumError{Name: name}
}

// returns true if the named datum is supported
func IsSupportedDatum(name string) bool {
	_, err := DatumSRID(name)
	return err == nil
}

// returns the names of all supported datums in display order
func DatumNames() []string {
	names := make([]string, len(SupportedDatums))
	for i, datum := range SupportedDatums {
		names[i] = datum.Name
	}
	return names
}

// returns the SRID for a projected (easting/northing) coordinate system in
// the given MGA zone
func ZoneSRID(zone int) (int, error) {
	// MGA zones sit in the 283xx range (GDA94 / MGA zone NN)
	if zone >= 49 && zone <= 56 {
		return 28300 + zone, nil
	}
	return 0, fmt.Errorf("Unsupported zone: %d (must be 49-56)", zone)
}

// A geometric point with its spatial reference. X is the longitude/easting,
// Y the latitude/northing.
type Point struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	SRID int     `json:"srid"`
}

func (p Point) String() string {
	return fmt.Sprintf("POINT(%g %g) SRID=%d", p.X, p.Y, p.SRID)
}
