package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/events"
)

const (
	authenticationSucceededTemplateConstant = "Authenticated %s identity"
	authenticationFailedTemplateConstant    = "%s authentication failed: %s"
	configurationMissingTemplateConstant    = "Missing configuration: %s"
	stateChangedTemplateConstant            = "Entering %s"
	simResolvedTemplateConstant             = "IMSI %s resolved to SIM %s"
	endpointResolvedTemplateConstant        = "SIM %s (IMSI %s) is attached to endpoint %s"
	itemSkippedTemplateConstant             = "%s: %s"
	itemFailedTemplateConstant              = "%s failed for %s"
	statusSuffixTemplateConstant            = " (status %d)"
	failureCauseSuffixTemplateConstant      = ": %s"
	itemMutatedTemplateConstant             = "Completed %s"
	itemPreviewedTemplateConstant           = "Would %s"
	stageCompletedTemplateConstant          = "Stage %s complete: %d in, %d succeeded, %d skipped, %d errored"
	runSummaryTemplateConstant              = "Run %s finished in state %s"
	dryRunSummarySuffixConstant             = " (dry run, nothing changed)"
	subjectIMSITemplateConstant             = "IMSI %s"
	subjectSimTemplateConstant              = "SIM %s"
	subjectEndpointTemplateConstant         = "endpoint %s"
	subjectSeparatorConstant                = ", "
	unknownFailureMessageConstant           = "unknown error"
	unknownSubjectMessageConstant           = "unknown item"
	runIDLogFieldConstant                   = "run_id"
	stageLogFieldConstant                   = "stage"
	imsiLogFieldConstant                    = "imsi"
	simLogFieldConstant                     = "sim_id"
	endpointLogFieldConstant                = "endpoint_id"
	statusCodeLogFieldConstant              = "status_code"
)

// MigrationEventFormatter builds human-readable messages for migration events.
type MigrationEventFormatter struct{}

// BuildMessage renders event as a single console line.
func (formatter MigrationEventFormatter) BuildMessage(event events.Event) string {
	switch event.Kind {
	case events.KindAuthenticationSucceeded:
		return fmt.Sprintf(authenticationSucceededTemplateConstant, event.Identity)
	case events.KindAuthenticationFailed:
		return fmt.Sprintf(authenticationFailedTemplateConstant, event.Identity, formatter.describeFailure(event))
	case events.KindConfigurationMissing:
		return fmt.Sprintf(configurationMissingTemplateConstant, formatter.describeFailure(event))
	case events.KindStateChanged:
		return fmt.Sprintf(stateChangedTemplateConstant, event.State)
	case events.KindItemResolved:
		if event.Stage == events.StageResolveEndpoints {
			return fmt.Sprintf(endpointResolvedTemplateConstant, event.Subject.SimID, event.Subject.IMSI, event.Subject.EndpointID)
		}
		return fmt.Sprintf(simResolvedTemplateConstant, event.Subject.IMSI, event.Subject.SimID)
	case events.KindItemSkipped:
		return fmt.Sprintf(itemSkippedTemplateConstant, formatter.describeSubject(event.Subject), event.Detail)
	case events.KindItemFailed:
		return fmt.Sprintf(itemFailedTemplateConstant, event.Stage, formatter.describeSubject(event.Subject)) +
			formatter.formatStatusSuffix(event.StatusCode) +
			fmt.Sprintf(failureCauseSuffixTemplateConstant, formatter.describeFailure(event))
	case events.KindItemMutated:
		return fmt.Sprintf(itemMutatedTemplateConstant, event.Detail)
	case events.KindItemPreviewed:
		return fmt.Sprintf(itemPreviewedTemplateConstant, event.Detail)
	case events.KindStageCompleted:
		return fmt.Sprintf(stageCompletedTemplateConstant, event.Stage, event.Counts.Input, event.Counts.Succeeded, event.Counts.Skipped, event.Counts.Errored)
	case events.KindRunCompleted:
		return event.Detail
	case events.KindRunSummary:
		return formatter.describeSummary(event)
	default:
		return string(event.Kind)
	}
}

func (formatter MigrationEventFormatter) describeSubject(subject events.Subject) string {
	parts := make([]string, 0, 3)
	if trimmed := strings.TrimSpace(subject.IMSI); len(trimmed) > 0 {
		parts = append(parts, fmt.Sprintf(subjectIMSITemplateConstant, trimmed))
	}
	if trimmed := strings.TrimSpace(subject.SimID); len(trimmed) > 0 {
		parts = append(parts, fmt.Sprintf(subjectSimTemplateConstant, trimmed))
	}
	if trimmed := strings.TrimSpace(subject.EndpointID); len(trimmed) > 0 {
		parts = append(parts, fmt.Sprintf(subjectEndpointTemplateConstant, trimmed))
	}
	if len(parts) == 0 {
		return unknownSubjectMessageConstant
	}
	return strings.Join(parts, subjectSeparatorConstant)
}

func (formatter MigrationEventFormatter) describeFailure(event events.Event) string {
	if event.Err != nil {
		return event.Err.Error()
	}
	if trimmed := strings.TrimSpace(event.Detail); len(trimmed) > 0 {
		return trimmed
	}
	return unknownFailureMessageConstant
}

func (formatter MigrationEventFormatter) formatStatusSuffix(statusCode int) string {
	if statusCode == 0 {
		return ""
	}
	return fmt.Sprintf(statusSuffixTemplateConstant, statusCode)
}

func (formatter MigrationEventFormatter) describeSummary(event events.Event) string {
	if event.Summary == nil {
		return fmt.Sprintf(runSummaryTemplateConstant, event.RunID, event.State)
	}
	message := fmt.Sprintf(runSummaryTemplateConstant, event.RunID, event.Summary.FinalState)
	for _, stage := range []events.Stage{events.StageResolveSims, events.StageResolveEndpoints, events.StageReleaseEndpoints, events.StageReassignSims} {
		counts, found := event.Summary.Stages[stage]
		if !found {
			continue
		}
		message += fmt.Sprintf("; %s %d/%d", stage, counts.Succeeded+counts.Skipped, counts.Input)
	}
	if event.Summary.DryRun {
		message += dryRunSummarySuffixConstant
	}
	return message
}

// ConsoleMigrationEventLogger renders migration events through a zap logger. Human-readable
// loggers receive the bare message; structured loggers also receive traceability fields.
type ConsoleMigrationEventLogger struct {
	logger        *zap.Logger
	formatter     MigrationEventFormatter
	humanReadable bool
}

// NewConsoleMigrationEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleMigrationEventLogger(logger *zap.Logger, humanReadable bool) *ConsoleMigrationEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMigrationEventLogger{logger: logger, formatter: MigrationEventFormatter{}, humanReadable: humanReadable}
}

// Observe implements events.Observer.
func (eventLogger *ConsoleMigrationEventLogger) Observe(event events.Event) {
	if eventLogger == nil {
		return
	}

	message := eventLogger.formatter.BuildMessage(event)
	var fields []zap.Field
	if !eventLogger.humanReadable {
		fields = eventLogger.buildFields(event)
	}

	switch event.Kind {
	case events.KindItemFailed, events.KindAuthenticationFailed:
		eventLogger.logger.Warn(message, fields...)
	case events.KindConfigurationMissing:
		eventLogger.logger.Error(message, fields...)
	case events.KindStateChanged:
		eventLogger.logger.Debug(message, fields...)
	default:
		eventLogger.logger.Info(message, fields...)
	}
}

func (eventLogger *ConsoleMigrationEventLogger) buildFields(event events.Event) []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if len(event.RunID) > 0 {
		fields = append(fields, zap.String(runIDLogFieldConstant, event.RunID))
	}
	if len(event.Stage) > 0 {
		fields = append(fields, zap.String(stageLogFieldConstant, string(event.Stage)))
	}
	if len(event.Subject.IMSI) > 0 {
		fields = append(fields, zap.String(imsiLogFieldConstant, event.Subject.IMSI))
	}
	if len(event.Subject.SimID) > 0 {
		fields = append(fields, zap.String(simLogFieldConstant, event.Subject.SimID))
	}
	if len(event.Subject.EndpointID) > 0 {
		fields = append(fields, zap.String(endpointLogFieldConstant, event.Subject.EndpointID))
	}
	if event.StatusCode != 0 {
		fields = append(fields, zap.Int(statusCodeLogFieldConstant, event.StatusCode))
	}
	return fields
}
