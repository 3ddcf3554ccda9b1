// Package validate collects per-field input failures so a request with
// several bad fields reports them all in one response.
package validate

import "strings"

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors aggregates field errors; the zero value is ready to use.
type Errors struct {
	fields []FieldError
}

func (e *Errors) Add(field, message string) {
	e.fields = append(e.fields, FieldError{Field: field, Message: message})
}

func (e *Errors) HasErrors() bool { return len(e.fields) > 0 }

func (e *Errors) Fields() []FieldError { return e.fields }

// Error joins every message into a single human-readable line.
func (e *Errors) Error() string {
	msgs := make([]string, len(e.fields))
	for i, f := range e.fields {
		msgs[i] = f.Message
	}
	return "Validation Error: " + strings.Join(msgs, ", ")
}

// Err returns the aggregate as an error, or nil when nothing failed.
func (e *Errors) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
