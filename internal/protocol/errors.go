package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError is a structural rejection of a payload: every offending
// field path mapped to the reason it was refused.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError builds an error with a single field.
func NewValidationError(field, reason string) *ValidationError {
	e := &ValidationError{}
	e.Add(field, reason)
	return e
}

// Add records a reason for field. The first reason per field wins.
func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = reason
	}
}

// Paths returns the offending field paths sorted.
func (e *ValidationError) Paths() []string {
	out := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, p := range e.Paths() {
		name := p
		if name == "" {
			name = "body"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[p]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
