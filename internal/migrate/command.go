package migrate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/auth"
	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/events"
	"github.com/temirov/simmigrate/internal/imsilist"
	"github.com/temirov/simmigrate/internal/mutation"
	"github.com/temirov/simmigrate/internal/ratelimit"
	"github.com/temirov/simmigrate/internal/telemetry"
	"github.com/temirov/simmigrate/internal/ui"
	"github.com/temirov/simmigrate/internal/utils"
	"github.com/temirov/simmigrate/internal/utils/flags"
)

const (
	commandUseConstant                   = "migrate"
	commandShortDescriptionConstant      = "Move SIMs into a destination organization"
	commandLongDescriptionConstant       = "migrate resolves every IMSI to its SIM, releases the SIM from its endpoint in the enterprise organization, and reassigns the SIM to the destination organization. Requests share one rate-limited connection; --dry-run resolves everything and only previews the mutations."
	imsiLoadErrorTemplateConstant        = "unable to load IMSIs: %w"
	limiterCreationErrorTemplateConstant = "unable to construct rate limiter: %w"
	clientCreationErrorTemplateConstant  = "unable to construct EMnify client: %w"
	tracingErrorTemplateConstant         = "unable to initialize tracing: %w"
	migrationErrorTemplateConstant       = "migration failed: %w"
	metricsWriteFailedMessageConstant    = "unable to write metrics file"
	tracingShutdownFailedMessageConstant = "unable to flush traces"
	runFinishedMessageConstant           = "migration run finished"
	metricsFileLogFieldConstant          = "metrics_file"
	finalStateLogFieldConstant           = "final_state"
	dryRunLogFieldConstant               = "dry_run"
	imsiCountLogFieldConstant            = "imsi_count"
	configurationFileLogFieldConstant    = "config_file"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConsoleLoggerProvider        LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Transport                    http.RoundTripper
	Clock                        ratelimit.Clock
	EnvironmentLookup            auth.EnvironmentLookup
	FileReader                   auth.FileReader
	FileOpener                   imsilist.FileOpener
	TraceWriter                  io.Writer
	RunIDGenerator               func() string
	Observers                    []events.Observer
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}

	flagValues := flags.BindMigrationFlags(command)
	command.RunE = func(command *cobra.Command, arguments []string) error {
		return builder.run(command, flagValues)
	}

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, flagValues *flags.MigrationFlagValues) error {
	configuration := builder.resolveConfiguration(command, flagValues)
	logger := builder.resolveLogger()

	imsis, loadError := imsilist.NewLoader(builder.FileOpener).Load(flagValues.AllIMSIs(), configuration.IMSIFiles)
	if loadError != nil {
		return fmt.Errorf(imsiLoadErrorTemplateConstant, loadError)
	}

	tokenResolver := auth.NewTokenResolver(builder.EnvironmentLookup, builder.FileReader)
	credentials := auth.Credentials{
		Master:     tokenResolver.Resolve(flagValues.MasterToken, configuration.MasterTokenSource),
		Enterprise: tokenResolver.Resolve(flagValues.EnterpriseToken, configuration.EnterpriseTokenSource),
	}

	shutdownTracing, tracingError := telemetry.InitTracer(configuration.TracingEnabled, builder.TraceWriter, logger)
	if tracingError != nil {
		return fmt.Errorf(tracingErrorTemplateConstant, tracingError)
	}
	defer func() {
		if shutdownError := shutdownTracing(context.Background()); shutdownError != nil {
			logger.Warn(tracingShutdownFailedMessageConstant, zap.Error(shutdownError))
		}
	}()

	client, clientError := builder.buildClient(configuration)
	if clientError != nil {
		return clientError
	}

	authenticator, authenticatorError := auth.NewDualAuthenticator(client, logger)
	if authenticatorError != nil {
		return authenticatorError
	}

	executor, executorError := mutation.NewExecutor(client, configuration.DryRun, configuration.MaxInFlight, logger)
	if executorError != nil {
		return executorError
	}

	var metricsObserver *telemetry.MetricsObserver
	observers := []events.Observer{ui.NewConsoleMigrationEventLogger(builder.resolveConsoleLogger(logger), builder.humanReadableLogging())}
	if len(configuration.MetricsFile) > 0 {
		metricsObserver = telemetry.NewMetricsObserver()
		observers = append(observers, metricsObserver)
	}
	observers = append(observers, builder.Observers...)

	contextAccessor := utils.NewCommandContextAccessor()
	runExecutionContext := contextAccessor.WithRunID(command.Context(), builder.nextRunID())

	orchestrator, orchestratorError := NewOrchestrator(Dependencies{
		Directory:     client,
		Authenticator: authenticator,
		Mutations:     executor,
		Observer:      events.NewObservers(observers...),
		Logger:        logger,
		MaxInFlight:   configuration.MaxInFlight,
	})
	if orchestratorError != nil {
		return orchestratorError
	}

	report, runError := orchestrator.Run(runExecutionContext, Request{
		IMSIs:                     imsis,
		DestinationOrganizationID: configuration.DestinationOrganization,
		Credentials:               credentials,
	})

	if metricsObserver != nil {
		if writeError := metricsObserver.WriteTextfile(configuration.MetricsFile); writeError != nil {
			logger.Warn(metricsWriteFailedMessageConstant, zap.String(metricsFileLogFieldConstant, configuration.MetricsFile), zap.Error(writeError))
		}
	}

	if runError != nil {
		return fmt.Errorf(migrationErrorTemplateConstant, runError)
	}

	configurationFilePath, _ := contextAccessor.ConfigurationFilePath(command.Context())
	logger.Debug(
		runFinishedMessageConstant,
		zap.String(runIDLogFieldConstant, report.RunID),
		zap.String(finalStateLogFieldConstant, string(report.FinalState)),
		zap.Bool(dryRunLogFieldConstant, configuration.DryRun),
		zap.Int(imsiCountLogFieldConstant, len(imsis)),
		zap.String(configurationFileLogFieldConstant, configurationFilePath),
	)

	if report.FinalState == StateStalled {
		return StalledError{RunID: report.RunID, Stage: report.StalledStage, Cause: report.Reason}
	}
	return nil
}

func (builder *CommandBuilder) buildClient(configuration CommandConfiguration) (*emnify.Client, error) {
	clock := builder.Clock
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	limiter, limiterError := ratelimit.NewLimiter(configuration.RateLimiterConfiguration(), clock)
	if limiterError != nil {
		return nil, fmt.Errorf(limiterCreationErrorTemplateConstant, limiterError)
	}

	baseTransport := builder.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: ratelimit.NewTransport(limiter, otelhttp.NewTransport(baseTransport))}

	client, clientError := emnify.NewClient(httpClient, configuration.APIURL)
	if clientError != nil {
		return nil, fmt.Errorf(clientCreationErrorTemplateConstant, clientError)
	}
	return client, nil
}

// resolveConfiguration overlays explicitly provided flags on the persisted configuration.
func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command, flagValues *flags.MigrationFlagValues) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}
	configuration = configuration.Sanitize()

	if trimmed := strings.TrimSpace(flagValues.DestinationOrganization); len(trimmed) > 0 {
		configuration.DestinationOrganization = trimmed
	}
	if command != nil && command.Flags().Changed(flags.DryRunFlagName) {
		configuration.DryRun = flagValues.DryRun
	}
	configuration.IMSIFiles = append(configuration.IMSIFiles, flagValues.IMSIFiles...)

	return configuration
}

func (builder *CommandBuilder) nextRunID() string {
	if builder.RunIDGenerator != nil {
		if runID := strings.TrimSpace(builder.RunIDGenerator()); len(runID) > 0 {
			return runID
		}
	}
	return uuid.NewString()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConsoleLogger(fallback *zap.Logger) *zap.Logger {
	if builder.ConsoleLoggerProvider != nil {
		if consoleLogger := builder.ConsoleLoggerProvider(); consoleLogger != nil {
			return consoleLogger
		}
	}
	return fallback
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}
