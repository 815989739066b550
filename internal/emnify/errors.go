package emnify

import (
	"errors"
	"fmt"
)

const (
	transportErrorTemplateConstant        = "%s request failed: %s"
	unexpectedStatusTemplateConstant      = "%s returned unexpected status %d (expected %d)"
	unexpectedStatusBodyTemplateConstant  = "%s returned unexpected status %d (expected %d): %s"
	responseDecodingErrorTemplateConstant = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant     = "%s: %s"
	requiredValueMessageConstant          = "value required"
	httpClientMissingMessageConstant      = "emnify http client not configured"
	baseURLInvalidTemplateConstant        = "invalid emnify base url %q: %w"
)

// ErrHTTPClientNotConfigured indicates the client was constructed without an HTTP client.
var ErrHTTPClientNotConfigured = errors.New(httpClientMissingMessageConstant)

// OperationName identifies an EMnify API call.
type OperationName string

// Supported operations.
const (
	OperationAuthenticate            OperationName = OperationName("Authenticate")
	OperationListSimsByIMSI          OperationName = OperationName("ListSimsByIMSI")
	OperationListEndpointsBySim      OperationName = OperationName("ListEndpointsBySim")
	OperationReleaseEndpoint         OperationName = OperationName("ReleaseEndpoint")
	OperationReassignSimOrganization OperationName = OperationName("ReassignSimOrganization")
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// TransportError wraps network-level failures.
type TransportError struct {
	Operation OperationName
	Cause     error
}

// Error describes the transport failure.
func (transportError TransportError) Error() string {
	return fmt.Sprintf(transportErrorTemplateConstant, transportError.Operation, transportError.Cause)
}

// Unwrap exposes the underlying cause.
func (transportError TransportError) Unwrap() error {
	return transportError.Cause
}

// UnexpectedStatusError reports any HTTP status other than the one the operation requires.
type UnexpectedStatusError struct {
	Operation      OperationName
	StatusCode     int
	ExpectedStatus int
	Body           string
}

// Error describes the status mismatch.
func (statusError UnexpectedStatusError) Error() string {
	if len(statusError.Body) == 0 {
		return fmt.Sprintf(unexpectedStatusTemplateConstant, statusError.Operation, statusError.StatusCode, statusError.ExpectedStatus)
	}
	return fmt.Sprintf(unexpectedStatusBodyTemplateConstant, statusError.Operation, statusError.StatusCode, statusError.ExpectedStatus, statusError.Body)
}

// ResponseDecodingError indicates a malformed response body.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// StatusCode extracts the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var statusError UnexpectedStatusError
	if errors.As(err, &statusError) {
		return statusError.StatusCode
	}
	return 0
}
