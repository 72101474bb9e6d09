// Package errors provides coded domain errors for the Hex Flower engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidParameter covers bad radii, roll totals outside [2,12]
	// and semantically invalid imports.
	CodeInvalidParameter Code = "INVALID_PARAMETER"

	// CodeNotFound is returned when an operation that must report it
	// addresses an unknown flower.
	CodeNotFound Code = "NOT_FOUND"

	// CodeParseError marks a malformed import payload.
	CodeParseError Code = "PARSE_ERROR"
)

// HTTPStatus maps the code to the HTTP status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidParameter:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeParseError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
