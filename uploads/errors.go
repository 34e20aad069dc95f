package uploads

import (
	"fmt"
)

// indicates an uploaded file with no content at all
type EmptyFileError struct{}

func (e EmptyFileError) Error() string {
	return "The uploaded file is empty."
}

// indicates a header that appears more than once after trimming
type DuplicateHeaderError struct {
	Name string
}

func (e DuplicateHeaderError) Error() string {
	return fmt.Sprintf("The column '%s' appears more than once in the uploaded file.", e.Name)
}
