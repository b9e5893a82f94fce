package errors

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryCLI        Category = "cli"
	CategorySource     Category = "source"
	CategoryRender     Category = "render"
	CategoryDescriptor Category = "descriptor"
)

// Location represents a position inside a template file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// DjenesisError is a structured error with location, suggestions, and documentation.
type DjenesisError struct {
	// Code is a unique error identifier (e.g., "E140").
	Code string

	// Category is the error type (config, cli, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the template position where the error occurred.
	Location *Location

	// Context contains surrounding source lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DjenesisError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DjenesisError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a template location to the error.
func (e *DjenesisError) WithLocation(file string, line, column int) *DjenesisError {
	e.Location = &Location{File: file, Line: line, Column: column}
	return e
}

// WithSource fills Context with the lines around Location taken from src.
// It is a no-op when no location is set.
func (e *DjenesisError) WithSource(src []byte) *DjenesisError {
	if e.Location == nil {
		return e
	}
	e.Context = contextLines(src, e.Location.Line)
	return e
}

// templateErrPattern matches text/template errors such as
// "template: settings.py.tmpl:12:3: executing ..." or "template: x:4: ...".
var templateErrPattern = regexp.MustCompile(`template: ([^:]+):(\d+)(?::(\d+))?:`)

// WithLocationFromError extracts a location from a text/template error.
func (e *DjenesisError) WithLocationFromError(err error) *DjenesisError {
	if err == nil {
		return e
	}
	m := templateErrPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return e
	}
	line, _ := strconv.Atoi(m[2])
	col := 0
	if m[3] != "" {
		col, _ = strconv.Atoi(m[3])
	}
	if line > 0 {
		e.Location = &Location{File: m[1], Line: line, Column: col}
	}
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DjenesisError) WithSuggestion(s string) *DjenesisError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DjenesisError) WithDetail(d string) *DjenesisError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *DjenesisError) Wrap(err error) *DjenesisError {
	e.Wrapped = err
	return e
}

// contextSize is the number of source lines kept around an error location.
const contextSize = 5

// contextStart returns the first line number shown for targetLine.
func contextStart(targetLine int) int {
	return max(targetLine-contextSize/2, 1)
}

func contextLines(src []byte, targetLine int) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(src))
	lineNum := 0
	startLine := contextStart(targetLine)
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a DjenesisError from a registered error code.
func New(code string) *DjenesisError {
	template, ok := registry[code]
	if !ok {
		return &DjenesisError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DjenesisError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new DjenesisError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DjenesisError {
	return &DjenesisError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DjenesisError.
func FromError(err error, code string) *DjenesisError {
	if err == nil {
		return nil
	}
	if de, ok := err.(*DjenesisError); ok {
		return de
	}
	return New(code).Wrap(err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// HasCode reports whether err is, or wraps, a DjenesisError with the given code.
func HasCode(err error, code string) bool {
	var de *DjenesisError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Wrapped
	}
	return false
}
