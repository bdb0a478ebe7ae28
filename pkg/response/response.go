// Package response provides unified structures for API responses.
package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response represents the standard envelope returned by all API endpoints.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

// SuccessResponse returns a success envelope with the given message and
// optional details.
func SuccessResponse(message string, details ...any) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Details: details,
	}
}

// ErrorResponse returns an error envelope with the given message and
// optional details.
func ErrorResponse(message string, details ...any) Response {
	return Response{
		Status:  StatusError,
		Message: message,
		Details: details,
	}
}

var (
	EmptyRequestBodyResponse = ErrorResponse("Empty request body.")
	BadRequestResponse       = ErrorResponse("Invalid request body.")
	UnauthorizedResponse     = ErrorResponse("Missing or invalid user identity.")
	LinkNotFoundResponse     = ErrorResponse("Link not found.")
	ShortCodeExistsResponse  = ErrorResponse("Short code is already taken.")
	ServerErrorResponse      = ErrorResponse("Internal server error occurred.")
)

// LimitExceededResponse builds an error envelope for an exhausted plan quota.
func LimitExceededResponse(kind string) Response {
	return ErrorResponse(fmt.Sprintf("Plan limit for %s has been reached.", kind))
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	var errs []validationError

	for _, err := range validationErrs {
		var issue string

		switch err.Tag() {
		case "required":
			issue = "This field is required."
		case "url":
			issue = "Invalid url."
		case "min":
			issue = fmt.Sprintf("Must be at least %s characters long.", err.Param())
		case "max":
			issue = fmt.Sprintf("Must be at most %s characters long.", err.Param())
		default:
			issue = fmt.Sprintf("Failed on the '%s' rule.", err.Tag())
		}

		errs = append(errs, validationError{
			Field: strings.ToLower(err.Field()),
			Value: err.Value(),
			Issue: issue,
		})
	}

	return errs
}

// ValidationErrorResponse builds an error envelope describing every field
// that failed validation.
func ValidationErrorResponse(err error) Response {
	errs := getValidationErrors(err)

	details := make([]any, 0, len(errs))
	for _, e := range errs {
		details = append(details, e)
	}

	return ErrorResponse("Validation failed.", details...)
}
