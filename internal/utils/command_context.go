package utils

import "context"

type commandContextKey string

const (
	configurationFilePathContextKey = commandContextKey("configuration_file_path")
	runIDContextKey                 = commandContextKey("run_id")
)

// CommandContextAccessor stores and retrieves per-invocation values on a command context.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath records the configuration file the invocation was loaded from.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return withValue(parentContext, configurationFilePathContextKey, configurationFilePath)
}

// ConfigurationFilePath returns the configuration file recorded on the context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	return lookupString(executionContext, configurationFilePathContextKey)
}

// WithRunID records the migration run identifier.
func (accessor CommandContextAccessor) WithRunID(parentContext context.Context, runID string) context.Context {
	return withValue(parentContext, runIDContextKey, runID)
}

// RunID returns the migration run identifier recorded on the context.
func (accessor CommandContextAccessor) RunID(executionContext context.Context) (string, bool) {
	return lookupString(executionContext, runIDContextKey)
}

func withValue(parentContext context.Context, key commandContextKey, value string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, key, value)
}

func lookupString(executionContext context.Context, key commandContextKey) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	value, available := executionContext.Value(key).(string)
	return value, available
}
