package geo

import (
	"fmt"
)

// indicates that a datum column holds a value we don't recognize
type UnsupportedDatumError struct {
	Name string
}

func (e UnsupportedDatumError) Error() string {
	return fmt.Sprintf("Invalid Datum '%s'. Should be one of: %v", e.Name, DatumNames())
}
