package migrate

import (
	"errors"
	"fmt"

	"github.com/temirov/simmigrate/internal/events"
)

const (
	directoryMissingMessageConstant          = "sim directory client not configured"
	authenticatorMissingMessageConstant      = "authenticator not configured"
	mutationsMissingMessageConstant          = "mutation executor not configured"
	noIMSIsMessageConstant                   = "no IMSIs to migrate"
	endpointAlreadyReleasedMessageConstant   = "endpoint already released"
	configurationErrorTemplateConstant       = "%s not configured"
	emptyStageErrorTemplateConstant          = "stage %s produced no items to continue with"
	stalledErrorTemplateConstant             = "migration run %s stalled during %s: %s"
	stalledWithoutCauseErrorTemplateConstant = "migration run %s stalled during %s"
)

var (
	// ErrDirectoryNotConfigured indicates the orchestrator has no lookup client.
	ErrDirectoryNotConfigured = errors.New(directoryMissingMessageConstant)
	// ErrAuthenticatorNotConfigured indicates the orchestrator has no authenticator.
	ErrAuthenticatorNotConfigured = errors.New(authenticatorMissingMessageConstant)
	// ErrMutationsNotConfigured indicates the orchestrator has no mutation executor.
	ErrMutationsNotConfigured = errors.New(mutationsMissingMessageConstant)
	// ErrNoIMSIs indicates the run was requested without any IMSI.
	ErrNoIMSIs = errors.New(noIMSIsMessageConstant)
	// ErrEndpointAlreadyReleased marks SIMs that reach the release stage without an endpoint.
	ErrEndpointAlreadyReleased = errors.New(endpointAlreadyReleasedMessageConstant)
)

// ConfigurationError reports a setting the run needed but did not receive.
type ConfigurationError struct {
	Setting string
}

// Error describes the missing setting.
func (configurationError ConfigurationError) Error() string {
	return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Setting)
}

// EmptyStageError reports a stage that left nothing for the next one.
type EmptyStageError struct {
	Stage events.Stage
}

// Error describes the empty stage.
func (emptyStageError EmptyStageError) Error() string {
	return fmt.Sprintf(emptyStageErrorTemplateConstant, emptyStageError.Stage)
}

// StalledError is returned by the command when a run ends in StateStalled.
type StalledError struct {
	RunID string
	Stage events.Stage
	Cause error
}

// Error describes where the run stopped.
func (stalledError StalledError) Error() string {
	if stalledError.Cause == nil {
		return fmt.Sprintf(stalledWithoutCauseErrorTemplateConstant, stalledError.RunID, stalledError.Stage)
	}
	return fmt.Sprintf(stalledErrorTemplateConstant, stalledError.RunID, stalledError.Stage, stalledError.Cause)
}

// Unwrap exposes the stall reason.
func (stalledError StalledError) Unwrap() error {
	return stalledError.Cause
}
