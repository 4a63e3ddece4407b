package errors

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategorySession  Category = "session"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryTransfer Category = "transfer"
	CategoryCLI      Category = "cli"
)

// Location points into a file, usually parley.yaml.
type Location struct {
	File string
	Line int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ParleyError is a structured error with a stable code, a fix
// suggestion, and an optional location in the offending file.
type ParleyError struct {
	// Code is a unique error identifier (e.g., "E040").
	Code string

	// Category is the error type (session, config, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is where in a file the error occurred.
	Location *Location

	// Context contains the file lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ParleyError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ParleyError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file location to the error.
func (e *ParleyError) WithLocation(file string, line int) *ParleyError {
	e.Location = &Location{File: file, Line: line}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithLocationFromYAML extracts the line number from a yaml parse
// error ("yaml: line N: ...") and points the error at file.
func (e *ParleyError) WithLocationFromYAML(file string, err error) *ParleyError {
	if err == nil {
		return e
	}
	msg := err.Error()
	idx := strings.Index(msg, "line ")
	if idx < 0 {
		return e
	}
	rest := msg[idx+len("line "):]
	end := strings.IndexByte(rest, ':')
	if end < 0 {
		return e
	}
	line, convErr := strconv.Atoi(rest[:end])
	if convErr != nil || line <= 0 {
		return e
	}
	return e.WithLocation(file, line)
}

// WithSuggestion adds a fix suggestion to the error.
func (e *ParleyError) WithSuggestion(s string) *ParleyError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *ParleyError) WithDetail(d string) *ParleyError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *ParleyError) Wrap(err error) *ParleyError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > endLine {
			break
		}
		if lineNum >= startLine {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

// New creates a ParleyError from a registered error code.
func New(code string) *ParleyError {
	template, ok := registry[code]
	if !ok {
		return &ParleyError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &ParleyError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new ParleyError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *ParleyError {
	return &ParleyError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a ParleyError.
func FromError(err error, code string) *ParleyError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*ParleyError); ok {
		return pe
	}
	return New(code).Wrap(err)
}
