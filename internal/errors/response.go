// Error values shared by the relay surface, the query layer and the emit API in Agora.

package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Standard for Error reponses to the client.
type ErrorResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error is required by the error interface.
func (e ErrorResponse) Error() string {
	return e.Message
}

// Get the StatusCode of the error.
func (e ErrorResponse) StatusCode() int {
	return e.Status
}

// Replicates the New method of default errors package.
func New(err string) error {
	return ErrorResponse{
		Message: err,
	}
}

// As converts any error into an ErrorResponse, wrapping unknown errors as internal errors.
func As(err error) ErrorResponse {
	if resp, ok := err.(ErrorResponse); ok {
		if resp.Status == 0 {
			resp.Status = http.StatusInternalServerError
		}
		return resp
	}
	return InternalServerError("")
}

// InternalServerError creates a new error response representing an internal server error (HTTP 500)
func InternalServerError(msg string) ErrorResponse {
	if msg == "" {
		msg = "We encountered an error while processing your request."
	}
	return ErrorResponse{
		Status:  http.StatusInternalServerError,
		Message: msg,
	}
}

// NotFound creates a new error response representing a resource-not-found error (HTTP 404)
func NotFound(msg string) ErrorResponse {
	if msg == "" {
		msg = "The requested resource was not found."
	}
	return ErrorResponse{
		Status:  http.StatusNotFound,
		Message: msg,
	}
}

// BadRequest creates a new error response representing a bad request (HTTP 400)
func BadRequest(msg string) ErrorResponse {
	if msg == "" {
		msg = "Your request is in a bad format."
	}
	return ErrorResponse{
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}

// Upstream maps a failed response of the forum HTTP API onto an ErrorResponse carrying the same status.
func Upstream(status int, path string) ErrorResponse {
	return ErrorResponse{
		Status:  status,
		Message: fmt.Sprintf("upstream %s responded with %d %s", path, status, http.StatusText(status)),
	}
}

// Standard for Validation-error responses to the client.
type validationError struct {
	Param   string `json:"param"`   // Parameter or Field
	Message string `json:"message"` // Issue in Field
}

// Captures multiple validation issues and sends it as a response in one go.
type ValidationErrorResponse struct {
	Response []validationError `json:"errors"`
}

// Scans through set of validation errors found by govalidator,
// Generates a slice of serializable validationErrorResponse.
func GenerateValidationErrorResponse(errs []error) ErrorResponse {
	// govalidator returns array of errors in -> Param:Message format
	// We split the error from ":"
	resp := []validationError{}
	for _, err := range errs {
		param, msg, found := strings.Cut(err.Error(), ":")
		if !found {
			// No param prefix, the whole text is the message
			param, msg = "", param
		}
		resp = append(
			resp, validationError{
				Param:   param,
				Message: strings.TrimSpace(msg),
			},
		)
	}
	return ErrorResponse{
		Status:  http.StatusBadRequest,
		Message: "Data validation error",
		Details: ValidationErrorResponse{Response: resp},
	}
}
