package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/batch"
	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/events"
)

const (
	releaseDescriptionTemplateConstant  = "release endpoint %s from sim %s"
	reassignDescriptionTemplateConstant = "reassign sim %s to organization %s"
	unknownKindTemplateConstant         = "unknown mutation kind %q"
	clientMissingErrorMessageConstant   = "mutation client not configured"
	mutationPreviewedMessageConstant    = "mutation previewed"
	mutationAppliedMessageConstant      = "mutation applied"
	mutationFailedMessageConstant       = "mutation failed"
	kindLogFieldConstant                = "mutation"
	targetLogFieldConstant              = "target_id"
	imsiLogFieldConstant                = "imsi"
	statusCodeLogFieldConstant          = "status_code"
)

// ErrClientNotConfigured indicates an executor built without a remote client.
var ErrClientNotConfigured = errors.New(clientMissingErrorMessageConstant)

// Kind names a remote mutation.
type Kind string

// Supported mutations.
const (
	KindReleaseEndpoint Kind = Kind("release_endpoint")
	KindReassignSim     Kind = Kind("reassign_sim")
)

// Client applies remote mutations.
type Client interface {
	ReleaseEndpoint(executionContext context.Context, bearerToken string, endpointID string) error
	ReassignSimOrganization(executionContext context.Context, bearerToken string, simID string, organizationID string) error
}

// Mutation describes one state-changing request.
type Mutation struct {
	Kind           Kind
	Subject        events.Subject
	OrganizationID string
	BearerToken    string
}

// Target returns the identifier of the resource the mutation changes.
func (mutation Mutation) Target() string {
	if mutation.Kind == KindReleaseEndpoint {
		return mutation.Subject.EndpointID
	}
	return mutation.Subject.SimID
}

// Describe renders the intended change for operators.
func (mutation Mutation) Describe() string {
	switch mutation.Kind {
	case KindReleaseEndpoint:
		return fmt.Sprintf(releaseDescriptionTemplateConstant, mutation.Subject.EndpointID, mutation.Subject.SimID)
	case KindReassignSim:
		return fmt.Sprintf(reassignDescriptionTemplateConstant, mutation.Subject.SimID, mutation.OrganizationID)
	default:
		return string(mutation.Kind)
	}
}

// Result reports how a mutation was handled.
type Result struct {
	Mutation  Mutation
	Previewed bool
}

// Executor applies mutations, or only previews them in dry-run mode.
type Executor struct {
	client      Client
	dryRun      bool
	maxInFlight int
	logger      *zap.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(client Client, dryRun bool, maxInFlight int, logger *zap.Logger) (*Executor, error) {
	if client == nil && !dryRun {
		return nil, ErrClientNotConfigured
	}
	if maxInFlight <= 0 {
		maxInFlight = batch.DefaultMaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, dryRun: dryRun, maxInFlight: maxInFlight, logger: logger}, nil
}

// DryRun reports whether the executor only previews.
func (executor *Executor) DryRun() bool {
	return executor.dryRun
}

// Apply performs a single mutation. In dry-run mode no request is issued.
func (executor *Executor) Apply(executionContext context.Context, mutation Mutation) (Result, error) {
	fields := []zap.Field{
		zap.String(kindLogFieldConstant, string(mutation.Kind)),
		zap.String(targetLogFieldConstant, mutation.Target()),
		zap.String(imsiLogFieldConstant, mutation.Subject.IMSI),
	}

	if executor.dryRun {
		executor.logger.Debug(mutationPreviewedMessageConstant, fields...)
		return Result{Mutation: mutation, Previewed: true}, nil
	}

	var applyError error
	switch mutation.Kind {
	case KindReleaseEndpoint:
		applyError = executor.client.ReleaseEndpoint(executionContext, mutation.BearerToken, mutation.Subject.EndpointID)
	case KindReassignSim:
		applyError = executor.client.ReassignSimOrganization(executionContext, mutation.BearerToken, mutation.Subject.SimID, mutation.OrganizationID)
	default:
		applyError = fmt.Errorf(unknownKindTemplateConstant, mutation.Kind)
	}

	if applyError != nil {
		executor.logger.Warn(mutationFailedMessageConstant, append(fields, zap.Int(statusCodeLogFieldConstant, emnify.StatusCode(applyError)), zap.Error(applyError))...)
		return Result{Mutation: mutation}, applyError
	}

	executor.logger.Debug(mutationAppliedMessageConstant, fields...)
	return Result{Mutation: mutation}, nil
}

// ApplyAll applies every mutation concurrently and returns a completed tally keyed by target id.
// onClassified, when set, is invoked once per mutation as soon as it settles.
func (executor *Executor) ApplyAll(executionContext context.Context, mutations []Mutation, onClassified func(batch.Entry[string, Result])) (*batch.Tally[string, Result], error) {
	byTarget := make(map[string]Mutation, len(mutations))
	targets := make([]string, 0, len(mutations))
	for _, mutation := range mutations {
		target := strings.TrimSpace(mutation.Target())
		if _, exists := byTarget[target]; exists {
			continue
		}
		byTarget[target] = mutation
		targets = append(targets, target)
	}

	tally := batch.NewTally[string, Result](targets)
	batch.ForEach(executionContext, targets, executor.maxInFlight, func(itemContext context.Context, target string) {
		result, applyError := executor.Apply(itemContext, byTarget[target])
		outcome := batch.OutcomeSucceeded
		if applyError != nil {
			outcome = batch.OutcomeErrored
		}
		if classificationError := tally.Record(target, outcome, result, applyError); classificationError != nil || onClassified == nil {
			return
		}
		entry, _ := tally.Entry(target)
		onClassified(entry)
	})

	if verificationError := tally.Verify(); verificationError != nil {
		return tally, verificationError
	}
	return tally, nil
}
