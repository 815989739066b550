package batch

import (
	"errors"
	"fmt"
)

const (
	ambiguousMatchTemplateConstant         = "%s matched %d records, expected exactly one"
	unresolvedTemplateConstant             = "%s matched no records"
	incompleteTallyTemplateConstant        = "stage tally incomplete: %d of %d items classified"
	unknownKeyMessageConstant              = "key is not part of this stage"
	alreadyClassifiedMessageConstant       = "key already classified"
	pendingOutcomeMessageConstant          = "pending is not a terminal outcome"
	classificationErrorTemplateConstant    = "classify %v: %w"
	lookupMissingErrorMessageConstant      = "lookup function not configured"
	invalidConcurrencyTemplateConstant     = "max in flight must be positive, got %d"
	unknownZeroMatchPolicyTemplateConstant = "unknown zero match policy %d"
)

var (
	// ErrUnknownKey indicates classification of a key outside the tally's input set.
	ErrUnknownKey = errors.New(unknownKeyMessageConstant)
	// ErrAlreadyClassified indicates a second classification of the same key.
	ErrAlreadyClassified = errors.New(alreadyClassifiedMessageConstant)
	// ErrPendingOutcome indicates an attempt to record a non-terminal outcome.
	ErrPendingOutcome = errors.New(pendingOutcomeMessageConstant)
	// ErrLookupNotConfigured indicates a resolver built without a lookup.
	ErrLookupNotConfigured = errors.New(lookupMissingErrorMessageConstant)
)

// AmbiguousMatchError reports a lookup that returned more than one record.
type AmbiguousMatchError struct {
	Key     string
	Matches int
}

// Error describes the ambiguity.
func (ambiguousError AmbiguousMatchError) Error() string {
	return fmt.Sprintf(ambiguousMatchTemplateConstant, ambiguousError.Key, ambiguousError.Matches)
}

// UnresolvedError reports a lookup that returned no record where one was required.
type UnresolvedError struct {
	Key string
}

// Error describes the missing record.
func (unresolvedError UnresolvedError) Error() string {
	return fmt.Sprintf(unresolvedTemplateConstant, unresolvedError.Key)
}

// IncompleteTallyError reports a stage that finished without classifying every input.
type IncompleteTallyError struct {
	Classified int
	Input      int
}

// Error describes the shortfall.
func (incompleteError IncompleteTallyError) Error() string {
	return fmt.Sprintf(incompleteTallyTemplateConstant, incompleteError.Classified, incompleteError.Input)
}
