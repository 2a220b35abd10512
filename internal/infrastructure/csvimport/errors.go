package csvimport

import "fmt"

// Row error codes
const (
	CodeRequired      = "ERR_IMPORT_REQUIRED_FIELD"
	CodeInvalidFormat = "ERR_IMPORT_INVALID_FORMAT"
	CodeInvalidValue  = "ERR_IMPORT_INVALID_VALUE"
	CodeDuplicateFile = "ERR_IMPORT_DUPLICATE_IN_FILE"
	CodeDuplicateDB   = "ERR_IMPORT_DUPLICATE_IN_DB"
)

// RowError is a problem found in one line of the file
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection keeps the first row errors and counts the rest
type ErrorCollection struct {
	errors []RowError
	limit  int
	total  int
}

// NewErrorCollection creates a collection holding at most limit errors
func NewErrorCollection(limit int) *ErrorCollection {
	return &ErrorCollection{limit: limit}
}

// Add records errors, dropping those past the cap
func (c *ErrorCollection) Add(errs ...RowError) {
	for _, e := range errs {
		c.total++
		if len(c.errors) < c.limit {
			c.errors = append(c.errors, e)
		}
	}
}

// Errors returns the kept errors
func (c *ErrorCollection) Errors() []RowError {
	return c.errors
}

// TotalCount counts every added error, kept or not
func (c *ErrorCollection) TotalCount() int {
	return c.total
}

// IsTruncated reports whether errors were dropped
func (c *ErrorCollection) IsTruncated() bool {
	return c.total > len(c.errors)
}
