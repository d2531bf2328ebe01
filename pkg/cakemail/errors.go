package cakemail

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrMalformedTemplate is matched by errors.Is for every structural template
// failure (unbalanced IF/ENDIF markup).
var ErrMalformedTemplate = errors.New("malformed template")

// TemplateError represents a structural error in the template markup
type TemplateError struct {
	Message  string
	Token    string
	Position int
}

func (e *TemplateError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("template error at position %d near '%s': %s", e.Position, e.Token, e.Message)
	}
	return fmt.Sprintf("template error at position %d: %s", e.Position, e.Message)
}

// Is makes every TemplateError match ErrMalformedTemplate.
func (e *TemplateError) Is(target error) bool {
	return target == ErrMalformedTemplate
}

// NewTemplateError creates a new template error with position information
func NewTemplateError(message, token string, position int) error {
	return &TemplateError{
		Message:  message,
		Token:    token,
		Position: position,
	}
}

// ParseError represents a condition that matches neither comparison grammar
type ParseError struct {
	Message   string
	Condition string
	Position  int
}

func (e *ParseError) Error() string {
	if e.Condition != "" {
		return fmt.Sprintf("parse error at position %d in condition '%s': %s", e.Position, e.Condition, e.Message)
	}
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// NewParseError creates a new parse error
func NewParseError(message, condition string, position int) error {
	return &ParseError{
		Message:   message,
		Condition: condition,
		Position:  position,
	}
}

// ValidationError represents multiple validation issues
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation error"
	}

	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation error: %s", e.Issues[0])
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d validation issues:", len(e.Issues)))
	for _, issue := range e.Issues {
		parts = append(parts, "  "+issue.String())
	}
	return strings.Join(parts, "\n")
}

// MultiError collects multiple errors
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}

	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// ContextError wraps a failure with the operation and the inputs it ran on.
// Context keys are printed in sorted order.
type ContextError struct {
	Operation string
	Context   map[string]interface{}
	Cause     error
}

func (e *ContextError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
	}

	parts := make([]string, 0, len(e.Context))
	for _, k := range slices.Sorted(maps.Keys(e.Context)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return fmt.Sprintf("%s [%s]: %v", e.Operation, strings.Join(parts, ", "), e.Cause)
}

func (e *ContextError) Unwrap() error {
	return e.Cause
}

// WithContext wraps an error with additional context
func WithContext(err error, operation string, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ContextError{
		Operation: operation,
		Context:   context,
		Cause:     err,
	}
}

// IsTemplateError checks if an error is a template error
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
