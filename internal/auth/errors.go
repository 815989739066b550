package auth

import (
	"errors"
	"fmt"

	"github.com/temirov/simmigrate/internal/events"
)

const (
	configurationErrorTemplateConstant       = "%s application token not configured"
	configurationCauseErrorTemplateConstant  = "%s application token not configured: %s"
	authenticationErrorTemplateConstant      = "%s authentication failed: %s"
	authenticatorMissingErrorMessageConstant = "authenticator not configured"
)

// ErrAuthenticatorNotConfigured indicates the dual authenticator was built without a backend.
var ErrAuthenticatorNotConfigured = errors.New(authenticatorMissingErrorMessageConstant)

// ConfigurationError reports a missing or unreadable application token for one identity.
type ConfigurationError struct {
	Identity events.Identity
	Cause    error
}

// Error describes the missing configuration.
func (configurationError ConfigurationError) Error() string {
	if configurationError.Cause == nil {
		return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Identity)
	}
	return fmt.Sprintf(configurationCauseErrorTemplateConstant, configurationError.Identity, configurationError.Cause)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// AuthenticationError reports a rejected or failed authentication for one identity.
type AuthenticationError struct {
	Identity events.Identity
	Cause    error
}

// Error describes the authentication failure.
func (authenticationError AuthenticationError) Error() string {
	return fmt.Sprintf(authenticationErrorTemplateConstant, authenticationError.Identity, authenticationError.Cause)
}

// Unwrap exposes the underlying cause.
func (authenticationError AuthenticationError) Unwrap() error {
	return authenticationError.Cause
}
