package board

import (
	"fmt"
	"net/http"
)

// DomainError is the one error shape the board engine raises. Four kinds
// exist: not found, forbidden, invalid request and conflict; the routing
// layer maps Status straight onto the response.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errNotFound(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func errForbidden(message string) *DomainError {
	return &DomainError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: message}
}

func errInvalid(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: message}
}

func errInvalidDetails(message string, details any) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: message, Details: details}
}
