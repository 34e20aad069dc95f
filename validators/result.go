package validators

// The outcome of validating one row: per-column messages split into
// warnings and errors. A fresh Result is built for every row and discarded
// once the caller has consumed it.
type Result struct {
	Warnings map[string]string `json:"warnings"`
	Errors   map[string]string `json:"errors"`
}

func NewResult() *Result {
	return &Result{
		Warnings: make(map[string]string),
		Errors:   make(map[string]string),
	}
}

func (r *Result) AddWarning(column, message string) {
	r.Warnings[column] = message
}

func (r *Result) AddError(column, message string) {
	r.Errors[column] = message
}

// Promote moves a column's warning to the errors map. Role promotion: the
// column is load-bearing for downstream geolocation/temporal logic, so a
// schema warning on it can't stay a warning. A column never ends up in both
// maps.
func (r *Result) Promote(column string) {
	if message, found := r.Warnings[column]; found {
		delete(r.Warnings, column)
		r.Errors[column] = message
	}
}

func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *Result) IsValid() bool {
	return !r.HasErrors()
}

// Merge shallow-merges two results into a new one; for a duplicate column
// the other result's message wins.
func (r *Result) Merge(other *Result) *Result {
	merged := NewResult()
	for column, message := range r.Warnings {
		merged.Warnings[column] = message
	}
	for column, message := range r.Errors {
		merged.Errors[column] = message
	}
	for column, message := range other.Warnings {
		merged.Warnings[column] = message
	}
	for column, message := range other.Errors {
		merged.Errors[column] = message
	}
	return merged
}
