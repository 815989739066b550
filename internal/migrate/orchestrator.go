package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/auth"
	"github.com/temirov/simmigrate/internal/batch"
	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/events"
	"github.com/temirov/simmigrate/internal/imsilist"
	"github.com/temirov/simmigrate/internal/mutation"
	"github.com/temirov/simmigrate/internal/utils"
)

const (
	tracerNameConstant                     = "github.com/temirov/simmigrate/internal/migrate"
	runSpanNameConstant                    = "migration.run"
	stageSpanNameTemplateConstant          = "migration.%s"
	runIDAttributeConstant                 = "simmigrate.run_id"
	itemCountAttributeConstant             = "simmigrate.items"
	dryRunAttributeConstant                = "simmigrate.dry_run"
	transitionBufferSizeConstant           = 4
	noEndpointDetailConstant               = "no endpoint attached"
	runCompletedTemplateConstant           = "Migrated %d SIMs to organization %s"
	dryRunCompletedTemplateConstant        = "Dry run: %d SIMs would be migrated to organization %s"
	destinationOrganizationSettingConstant = "destination_org_id"
	stateChangedLogMessageConstant         = "migration state changed"
	runStalledLogMessageConstant           = "migration stalled"
	awaitingEnterpriseLogMessageConstant   = "waiting for enterprise authentication before releasing endpoints"
	runIDLogFieldConstant                  = "run_id"
	stateLogFieldConstant                  = "state"
	stageLogFieldConstant                  = "stage"
)

// DirectoryClient performs the read-only lookups of the pipeline.
type DirectoryClient interface {
	ListSimsByIMSI(executionContext context.Context, bearerToken string, imsi string) ([]emnify.Sim, error)
	ListEndpointsBySim(executionContext context.Context, bearerToken string, simID string) ([]emnify.Endpoint, error)
}

// CredentialAuthenticator authenticates both identities and reports each result once.
type CredentialAuthenticator interface {
	Start(executionContext context.Context, credentials auth.Credentials) <-chan auth.Result
}

// MutationApplier applies a batch of mutations and classifies every one of them.
type MutationApplier interface {
	DryRun() bool
	ApplyAll(executionContext context.Context, mutations []mutation.Mutation, onClassified func(batch.Entry[string, mutation.Result])) (*batch.Tally[string, mutation.Result], error)
}

// Dependencies describes the collaborators of an Orchestrator.
type Dependencies struct {
	Directory      DirectoryClient
	Authenticator  CredentialAuthenticator
	Mutations      MutationApplier
	Observer       events.Observer
	Logger         *zap.Logger
	Tracer         trace.Tracer
	RunIDGenerator func() string
	MaxInFlight    int
}

// Request describes one migration run.
type Request struct {
	IMSIs                     []string
	DestinationOrganizationID string
	Credentials               auth.Credentials
}

// Report is the outcome of a run.
type Report struct {
	RunID        string
	FinalState   State
	StalledStage events.Stage
	Reason       error
	Summary      events.Summary
	Migrated     []events.Subject
}

// Orchestrator drives the five-stage migration pipeline.
type Orchestrator struct {
	directory      DirectoryClient
	authenticator  CredentialAuthenticator
	mutations      MutationApplier
	observer       events.Observer
	logger         *zap.Logger
	tracer         trace.Tracer
	runIDGenerator func() string
	maxInFlight    int
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(dependencies Dependencies) (*Orchestrator, error) {
	if dependencies.Directory == nil {
		return nil, ErrDirectoryNotConfigured
	}
	if dependencies.Authenticator == nil {
		return nil, ErrAuthenticatorNotConfigured
	}
	if dependencies.Mutations == nil {
		return nil, ErrMutationsNotConfigured
	}

	orchestrator := &Orchestrator{
		directory:      dependencies.Directory,
		authenticator:  dependencies.Authenticator,
		mutations:      dependencies.Mutations,
		observer:       dependencies.Observer,
		logger:         dependencies.Logger,
		tracer:         dependencies.Tracer,
		runIDGenerator: dependencies.RunIDGenerator,
		maxInFlight:    dependencies.MaxInFlight,
	}
	if orchestrator.observer == nil {
		orchestrator.observer = events.NewObservers()
	}
	if orchestrator.logger == nil {
		orchestrator.logger = zap.NewNop()
	}
	if orchestrator.tracer == nil {
		orchestrator.tracer = otel.Tracer(tracerNameConstant)
	}
	if orchestrator.runIDGenerator == nil {
		orchestrator.runIDGenerator = uuid.NewString
	}
	if orchestrator.maxInFlight <= 0 {
		orchestrator.maxInFlight = batch.DefaultMaxInFlight
	}
	return orchestrator, nil
}

// runContext is the cross-stage state of one run. Only the Run loop mutates it.
type runContext struct {
	id                      string
	dryRun                  bool
	imsis                   []string
	destinationOrganization string

	state        State
	stalledStage events.Stage
	reason       error

	masterToken        string
	enterprise         *auth.Result
	awaitingEnterprise bool

	simOrder      []string
	imsiBySim     map[string]string
	endpointBySim map[string]string
	releaseOrder  []string

	counts   map[events.Stage]events.StageCounts
	migrated []events.Subject
}

func (run *runContext) subject(simID string) events.Subject {
	return events.Subject{IMSI: run.imsiBySim[simID], SimID: simID, EndpointID: run.endpointBySim[simID]}
}

// needsEnterpriseToken reports whether a live release is pending. Dry runs only
// preview releases and never present the enterprise token.
func (run *runContext) needsEnterpriseToken() bool {
	if run.dryRun {
		return false
	}
	for _, simID := range run.releaseOrder {
		if _, attached := run.endpointBySim[simID]; attached {
			return true
		}
	}
	return false
}

// Run executes the pipeline until it reaches StateDone or StateStalled. Item
// failures and stalls are reported through the Report; the error is reserved
// for requests that cannot start. A run id already attached to the context is reused.
func (orchestrator *Orchestrator) Run(executionContext context.Context, request Request) (Report, error) {
	imsis := imsilist.Normalize(request.IMSIs)
	if len(imsis) == 0 {
		return Report{}, ErrNoIMSIs
	}

	runID, runIDProvided := utils.NewCommandContextAccessor().RunID(executionContext)
	if !runIDProvided || len(runID) == 0 {
		runID = orchestrator.runIDGenerator()
	}

	run := &runContext{
		id:                      runID,
		dryRun:                  orchestrator.mutations.DryRun(),
		imsis:                   imsis,
		destinationOrganization: strings.TrimSpace(request.DestinationOrganizationID),
		imsiBySim:               make(map[string]string, len(imsis)),
		endpointBySim:           make(map[string]string, len(imsis)),
		counts:                  make(map[events.Stage]events.StageCounts),
	}

	tracedContext, runSpan := orchestrator.tracer.Start(executionContext, runSpanNameConstant, trace.WithAttributes(
		attribute.String(runIDAttributeConstant, run.id),
		attribute.Int(itemCountAttributeConstant, len(imsis)),
		attribute.Bool(dryRunAttributeConstant, run.dryRun),
	))
	defer runSpan.End()

	if len(run.destinationOrganization) == 0 {
		configurationError := ConfigurationError{Setting: destinationOrganizationSettingConstant}
		orchestrator.emit(run, events.Event{Kind: events.KindConfigurationMissing, Stage: events.StageReassignSims, Err: configurationError})
		orchestrator.stall(run, events.StageReassignSims, configurationError)
	} else {
		orchestrator.drive(tracedContext, run, request.Credentials)
	}

	summary := events.Summary{FinalState: string(run.state), DryRun: run.dryRun, Stages: make(map[events.Stage]events.StageCounts, len(run.counts))}
	for stage, counts := range run.counts {
		summary.Stages[stage] = counts
	}
	orchestrator.emit(run, events.Event{Kind: events.KindRunSummary, State: string(run.state), Summary: &summary})

	if run.state == StateStalled {
		runSpan.SetStatus(codes.Error, string(run.stalledStage))
		if run.reason != nil {
			runSpan.RecordError(run.reason)
		}
	}

	return Report{
		RunID:        run.id,
		FinalState:   run.state,
		StalledStage: run.stalledStage,
		Reason:       run.reason,
		Summary:      summary,
		Migrated:     run.migrated,
	}, nil
}

// drive feeds authentication results and stage outcomes through the state
// machine until the run is terminal. The destination organization is already
// validated, so releases only start for runs that can reassign.
func (orchestrator *Orchestrator) drive(executionContext context.Context, run *runContext, credentials auth.Credentials) {
	transitions := make(chan transition, transitionBufferSizeConstant)
	authenticationResults := orchestrator.authenticator.Start(executionContext, credentials)
	go func() {
		for result := range authenticationResults {
			transitions <- authenticated{result: result}
		}
	}()

	orchestrator.enter(run, StateAwaitingAuth)
	for !run.state.Terminal() {
		switch message := (<-transitions).(type) {
		case authenticated:
			orchestrator.handleAuthentication(executionContext, run, transitions, message.result)
		case simsResolved:
			orchestrator.handleSimsResolved(executionContext, run, transitions, message)
		case endpointsResolved:
			orchestrator.handleEndpointsResolved(executionContext, run, transitions, message)
		case endpointsReleased:
			orchestrator.handleEndpointsReleased(executionContext, run, transitions, message)
		case simsReassigned:
			orchestrator.handleSimsReassigned(run, message)
		}
	}
}

func (orchestrator *Orchestrator) handleAuthentication(executionContext context.Context, run *runContext, transitions chan<- transition, result auth.Result) {
	orchestrator.reportAuthentication(run, result)

	switch result.Identity {
	case events.IdentityMaster:
		if result.Err != nil {
			orchestrator.stall(run, events.StageAuthentication, result.Err)
			return
		}
		run.masterToken = result.Token
		orchestrator.enter(run, StateResolvingSims)
		orchestrator.launchSimResolution(executionContext, run, transitions)
	case events.IdentityEnterprise:
		enterpriseResult := result
		run.enterprise = &enterpriseResult
		if run.awaitingEnterprise {
			run.awaitingEnterprise = false
			orchestrator.beginRelease(executionContext, run, transitions)
		}
	}
}

func (orchestrator *Orchestrator) handleSimsResolved(executionContext context.Context, run *runContext, transitions chan<- transition, message simsResolved) {
	if !completeStage(orchestrator, run, events.StageResolveSims, message.tally, message.err) {
		return
	}

	for _, entry := range message.tally.Succeeded() {
		simID := string(entry.Value.ID)
		if _, seen := run.imsiBySim[simID]; seen {
			continue
		}
		run.imsiBySim[simID] = entry.Key
		run.simOrder = append(run.simOrder, simID)
	}

	orchestrator.enter(run, StateResolvingEndpoints)
	orchestrator.launchEndpointResolution(executionContext, run, transitions)
}

func (orchestrator *Orchestrator) handleEndpointsResolved(executionContext context.Context, run *runContext, transitions chan<- transition, message endpointsResolved) {
	if !completeStage(orchestrator, run, events.StageResolveEndpoints, message.tally, message.err) {
		return
	}

	for _, entry := range message.tally.Entries() {
		switch entry.Outcome {
		case batch.OutcomeSucceeded:
			run.endpointBySim[entry.Key] = string(entry.Value.ID)
			run.releaseOrder = append(run.releaseOrder, entry.Key)
		case batch.OutcomeSkipped:
			run.releaseOrder = append(run.releaseOrder, entry.Key)
		}
	}

	orchestrator.enter(run, StateReleasingEndpoints)
	if run.needsEnterpriseToken() && run.enterprise == nil {
		run.awaitingEnterprise = true
		orchestrator.logger.Debug(awaitingEnterpriseLogMessageConstant, zap.String(runIDLogFieldConstant, run.id))
		return
	}
	orchestrator.beginRelease(executionContext, run, transitions)
}

func (orchestrator *Orchestrator) handleEndpointsReleased(executionContext context.Context, run *runContext, transitions chan<- transition, message endpointsReleased) {
	if !completeStage(orchestrator, run, events.StageReleaseEndpoints, message.tally, message.err) {
		return
	}

	candidates := make([]string, 0, len(run.releaseOrder))
	for _, entry := range message.tally.Entries() {
		if entry.Outcome == batch.OutcomeSucceeded || entry.Outcome == batch.OutcomeSkipped {
			candidates = append(candidates, entry.Key)
		}
	}

	orchestrator.enter(run, StateReassigningOrg)

	mutations := make([]mutation.Mutation, 0, len(candidates))
	for _, simID := range candidates {
		mutations = append(mutations, mutation.Mutation{
			Kind:           mutation.KindReassignSim,
			Subject:        run.subject(simID),
			OrganizationID: run.destinationOrganization,
			BearerToken:    run.masterToken,
		})
	}

	runID := run.id
	orchestrator.launch(executionContext, transitions, events.StageReassignSims, len(mutations), func(stageContext context.Context) transition {
		tally, applyError := orchestrator.mutations.ApplyAll(stageContext, mutations, func(entry batch.Entry[string, mutation.Result]) {
			orchestrator.reportMutation(runID, events.StageReassignSims, entry)
		})
		return simsReassigned{tally: tally, err: applyError}
	})
}

func (orchestrator *Orchestrator) handleSimsReassigned(run *runContext, message simsReassigned) {
	if !completeStage(orchestrator, run, events.StageReassignSims, message.tally, message.err) {
		return
	}

	for _, entry := range message.tally.Succeeded() {
		run.migrated = append(run.migrated, entry.Value.Mutation.Subject)
	}

	counts := run.counts[events.StageReassignSims]
	if counts.Succeeded == counts.Input {
		template := runCompletedTemplateConstant
		if run.dryRun {
			template = dryRunCompletedTemplateConstant
		}
		orchestrator.emit(run, events.Event{
			Kind:   events.KindRunCompleted,
			Stage:  events.StageReassignSims,
			Counts: counts,
			Detail: fmt.Sprintf(template, counts.Succeeded, run.destinationOrganization),
		})
	}
	orchestrator.enter(run, StateDone)
}

func (orchestrator *Orchestrator) beginRelease(executionContext context.Context, run *runContext, transitions chan<- transition) {
	enterpriseToken := ""
	if run.needsEnterpriseToken() {
		if run.enterprise.Err != nil {
			orchestrator.stall(run, events.StageReleaseEndpoints, run.enterprise.Err)
			return
		}
		enterpriseToken = run.enterprise.Token
	}

	simIDs := append([]string(nil), run.releaseOrder...)
	subjects := make(map[string]events.Subject, len(simIDs))
	for _, simID := range simIDs {
		subjects[simID] = run.subject(simID)
	}

	runID := run.id
	orchestrator.launch(executionContext, transitions, events.StageReleaseEndpoints, len(simIDs), func(stageContext context.Context) transition {
		tally := batch.NewTally[string, mutation.Result](simIDs)

		mutations := make([]mutation.Mutation, 0, len(simIDs))
		for _, simID := range simIDs {
			subject := subjects[simID]
			if len(subject.EndpointID) == 0 {
				if tally.Skip(simID, ErrEndpointAlreadyReleased) == nil {
					orchestrator.observer.Observe(events.Event{RunID: runID, Kind: events.KindItemSkipped, Stage: events.StageReleaseEndpoints, Subject: subject, Detail: ErrEndpointAlreadyReleased.Error()})
				}
				continue
			}
			mutations = append(mutations, mutation.Mutation{Kind: mutation.KindReleaseEndpoint, Subject: subject, BearerToken: enterpriseToken})
		}

		if len(mutations) > 0 {
			released, _ := orchestrator.mutations.ApplyAll(stageContext, mutations, func(entry batch.Entry[string, mutation.Result]) {
				orchestrator.reportMutation(runID, events.StageReleaseEndpoints, entry)
			})
			if released != nil {
				for _, releaseMutation := range mutations {
					if entry, found := released.Entry(releaseMutation.Target()); found {
						_ = tally.Record(releaseMutation.Subject.SimID, entry.Outcome, entry.Value, entry.Err)
					}
				}
			}
		}

		return endpointsReleased{tally: tally, err: tally.Verify()}
	})
}

func (orchestrator *Orchestrator) launchSimResolution(executionContext context.Context, run *runContext, transitions chan<- transition) {
	imsis := run.imsis
	masterToken := run.masterToken
	runID := run.id

	orchestrator.launch(executionContext, transitions, events.StageResolveSims, len(imsis), func(stageContext context.Context) transition {
		resolver, resolverError := batch.NewResolver[string, emnify.Sim](
			func(lookupContext context.Context, imsi string) ([]emnify.Sim, error) {
				return orchestrator.directory.ListSimsByIMSI(lookupContext, masterToken, imsi)
			},
			batch.ZeroMatchError,
			batch.WithMaxInFlight[string, emnify.Sim](orchestrator.maxInFlight),
			batch.WithClassificationHandler[string, emnify.Sim](func(entry batch.Entry[string, emnify.Sim]) {
				subject := events.Subject{IMSI: entry.Key, SimID: string(entry.Value.ID)}
				orchestrator.reportResolution(runID, events.StageResolveSims, subject, entry.Outcome, entry.Err)
			}),
		)
		if resolverError != nil {
			return simsResolved{err: resolverError}
		}
		tally, resolveError := resolver.Resolve(stageContext, imsis)
		return simsResolved{tally: tally, err: resolveError}
	})
}

func (orchestrator *Orchestrator) launchEndpointResolution(executionContext context.Context, run *runContext, transitions chan<- transition) {
	simIDs := append([]string(nil), run.simOrder...)
	imsiBySim := make(map[string]string, len(simIDs))
	for _, simID := range simIDs {
		imsiBySim[simID] = run.imsiBySim[simID]
	}
	masterToken := run.masterToken
	runID := run.id

	orchestrator.launch(executionContext, transitions, events.StageResolveEndpoints, len(simIDs), func(stageContext context.Context) transition {
		resolver, resolverError := batch.NewResolver[string, emnify.Endpoint](
			func(lookupContext context.Context, simID string) ([]emnify.Endpoint, error) {
				return orchestrator.directory.ListEndpointsBySim(lookupContext, masterToken, simID)
			},
			batch.ZeroMatchSkip,
			batch.WithMaxInFlight[string, emnify.Endpoint](orchestrator.maxInFlight),
			batch.WithClassificationHandler[string, emnify.Endpoint](func(entry batch.Entry[string, emnify.Endpoint]) {
				subject := events.Subject{IMSI: imsiBySim[entry.Key], SimID: entry.Key, EndpointID: string(entry.Value.ID)}
				orchestrator.reportResolution(runID, events.StageResolveEndpoints, subject, entry.Outcome, entry.Err)
			}),
		)
		if resolverError != nil {
			return endpointsResolved{err: resolverError}
		}
		tally, resolveError := resolver.Resolve(stageContext, simIDs)
		return endpointsResolved{tally: tally, err: resolveError}
	})
}

// launch runs one stage in its own goroutine and delivers its completion message.
func (orchestrator *Orchestrator) launch(executionContext context.Context, transitions chan<- transition, stage events.Stage, items int, work func(context.Context) transition) {
	go func() {
		stageContext, stageSpan := orchestrator.tracer.Start(
			executionContext,
			fmt.Sprintf(stageSpanNameTemplateConstant, stage),
			trace.WithAttributes(attribute.Int(itemCountAttributeConstant, items)),
		)
		message := work(stageContext)
		stageSpan.End()
		transitions <- message
	}()
}

// completeStage records the stage counts and reports whether any item survived it.
func completeStage[K comparable, V any](orchestrator *Orchestrator, run *runContext, stage events.Stage, tally *batch.Tally[K, V], stageError error) bool {
	if tally != nil {
		counts := tally.Counts()
		run.counts[stage] = counts
		orchestrator.emit(run, events.Event{Kind: events.KindStageCompleted, Stage: stage, Counts: counts})
	}
	if stageError != nil {
		orchestrator.stall(run, stage, stageError)
		return false
	}

	counts := run.counts[stage]
	if counts.Succeeded+counts.Skipped == 0 {
		orchestrator.stall(run, stage, EmptyStageError{Stage: stage})
		return false
	}
	return true
}

func (orchestrator *Orchestrator) reportAuthentication(run *runContext, result auth.Result) {
	if result.Err == nil {
		orchestrator.emit(run, events.Event{Kind: events.KindAuthenticationSucceeded, Stage: events.StageAuthentication, Identity: result.Identity})
		return
	}

	kind := events.KindAuthenticationFailed
	var configurationError auth.ConfigurationError
	if errors.As(result.Err, &configurationError) {
		kind = events.KindConfigurationMissing
	}
	orchestrator.emit(run, events.Event{
		Kind:       kind,
		Stage:      events.StageAuthentication,
		Identity:   result.Identity,
		StatusCode: emnify.StatusCode(result.Err),
		Err:        result.Err,
	})
}

func (orchestrator *Orchestrator) reportResolution(runID string, stage events.Stage, subject events.Subject, outcome batch.Outcome, cause error) {
	event := events.Event{RunID: runID, Stage: stage, Subject: subject}
	switch outcome {
	case batch.OutcomeSucceeded:
		event.Kind = events.KindItemResolved
	case batch.OutcomeSkipped:
		event.Kind = events.KindItemSkipped
		event.Detail = noEndpointDetailConstant
	default:
		event.Kind = events.KindItemFailed
		event.StatusCode = emnify.StatusCode(cause)
		event.Err = cause
	}
	orchestrator.observer.Observe(event)
}

func (orchestrator *Orchestrator) reportMutation(runID string, stage events.Stage, entry batch.Entry[string, mutation.Result]) {
	event := events.Event{
		RunID:   runID,
		Stage:   stage,
		Subject: entry.Value.Mutation.Subject,
		Detail:  entry.Value.Mutation.Describe(),
	}
	switch {
	case entry.Outcome == batch.OutcomeErrored:
		event.Kind = events.KindItemFailed
		event.StatusCode = emnify.StatusCode(entry.Err)
		event.Err = entry.Err
	case entry.Value.Previewed:
		event.Kind = events.KindItemPreviewed
	default:
		event.Kind = events.KindItemMutated
	}
	orchestrator.observer.Observe(event)
}

func (orchestrator *Orchestrator) enter(run *runContext, state State) {
	run.state = state
	orchestrator.logger.Debug(stateChangedLogMessageConstant, zap.String(runIDLogFieldConstant, run.id), zap.String(stateLogFieldConstant, string(state)))
	orchestrator.emit(run, events.Event{Kind: events.KindStateChanged, State: string(state)})
}

func (orchestrator *Orchestrator) stall(run *runContext, stage events.Stage, reason error) {
	run.stalledStage = stage
	run.reason = reason
	orchestrator.logger.Warn(
		runStalledLogMessageConstant,
		zap.String(runIDLogFieldConstant, run.id),
		zap.String(stageLogFieldConstant, string(stage)),
		zap.Error(reason),
	)
	orchestrator.enter(run, StateStalled)
}

func (orchestrator *Orchestrator) emit(run *runContext, event events.Event) {
	event.RunID = run.id
	orchestrator.observer.Observe(event)
}
