package validators

import (
	"fmt"
	"strings"
)

// indicates a dataset kind outside the supported set
type UnknownKindError struct {
	Kind string
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("Unknown dataset kind '%s'.", e.Kind)
}

// indicates that a semantic role needed by the dataset kind couldn't be
// resolved from the schema
type ResolutionError struct {
	Kind     string
	Problems []string
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("The schema is not a valid %s schema: %s",
		e.Kind, strings.Join(e.Problems, " "))
}
