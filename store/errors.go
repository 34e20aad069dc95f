package store

import (
	"fmt"
)

// indicates that the store database couldn't be opened
type CantOpenError struct {
	Message string
}

func (e CantOpenError) Error() string {
	return fmt.Sprintf("The data store couldn't be opened: %s", e.Message)
}

// indicates that the store database couldn't be closed
type CantCloseError struct {
	Message string
}

func (e CantCloseError) Error() string {
	return fmt.Sprintf("The data store couldn't be closed: %s", e.Message)
}

// indicates an operation against a store that isn't open
type NotOpenError struct{}

func (e NotOpenError) Error() string {
	return "The data store is not open."
}

// indicates that a dataset is sought but not found
type DatasetNotFoundError struct {
	Name string
}

func (e DatasetNotFoundError) Error() string {
	return fmt.Sprintf("The dataset '%s' was not found.", e.Name)
}
