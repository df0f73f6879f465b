package schema

import (
	"fmt"
	"strings"
)

// ValidationError is one setting that does not fit its option schema.
type ValidationError struct {
	// Path is the dotted settings path, for example
	// codeintel_config.Go.codeintel_live.
	Path string

	// Language names the override block the value came from, if any.
	Language string

	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors collects the problems found in one validation pass.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e.Errors), strings.Join(e.Problems(), "\n  - "))
}

// Problems returns one line per error, in the order they were found.
func (e *ValidationErrors) Problems() []string {
	out := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err.Error()
	}
	return out
}

// Len returns the number of errors.
func (e *ValidationErrors) Len() int {
	return len(e.Errors)
}

// AsError returns nil when nothing was collected.
func (e *ValidationErrors) AsError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *ValidationErrors) add(path string, value any, format string, args ...any) {
	e.Errors = append(e.Errors, &ValidationError{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
		Value:   value,
	})
}

// tagLanguage marks every error from index from onward as coming from the
// override block of lang.
func (e *ValidationErrors) tagLanguage(from int, lang string) {
	for _, err := range e.Errors[from:] {
		err.Language = lang
	}
}

func (e *ValidationErrors) wrongType(path, want string, got any) {
	e.add(path, got, "expected %s, got %s", want, kindOf(got))
}

func (e *ValidationErrors) notAllowed(path string, value any, allowed []any) {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = fmt.Sprint(a)
	}
	e.add(path, value, "%v is not one of %s", value, strings.Join(names, ", "))
}

func (e *ValidationErrors) outOfRange(path string, value any, min, max *float64) {
	switch {
	case min != nil && max != nil:
		e.add(path, value, "%v is outside %v..%v", value, *min, *max)
	case min != nil:
		e.add(path, value, "%v is below the minimum %v", value, *min)
	default:
		e.add(path, value, "%v is above the maximum %v", value, *max)
	}
}

func (e *ValidationErrors) missing(path string) {
	e.add(path, nil, "required option is missing")
}

func (e *ValidationErrors) unknown(path string, value any) {
	e.add(path, value, "unknown option")
}

// kindOf names the settings-file type of v.
func kindOf(v any) string {
	switch {
	case v == nil:
		return "null"
	case isInteger(v):
		return TypeNameInteger
	case isNumber(v):
		return TypeNameNumber
	case toSlice(v) != nil:
		return TypeNameArray
	}
	switch v.(type) {
	case string:
		return TypeNameString
	case bool:
		return TypeNameBoolean
	case map[string]any:
		return TypeNameObject
	}
	return fmt.Sprintf("%T", v)
}
