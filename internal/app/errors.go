package app

import "fmt"

// DomainError is a typed failure the presentation layer can react to.
// Codes: NOT_AUTHENTICATED, NOT_FOUND, VALIDATION_ERROR, FORBIDDEN,
// SERVER_ERROR.
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

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
