package batch

import (
	"context"
	"fmt"
)

// ZeroMatchPolicy decides how a lookup with no results is classified.
type ZeroMatchPolicy int

// Zero-match policies.
const (
	// ZeroMatchError classifies an empty lookup as errored with UnresolvedError.
	ZeroMatchError ZeroMatchPolicy = iota
	// ZeroMatchSkip classifies an empty lookup as a valid skip.
	ZeroMatchSkip
)

// Lookup fetches the records matching key.
type Lookup[K comparable, V any] func(executionContext context.Context, key K) ([]V, error)

// Resolver maps every key to exactly one record through a rate-limited lookup.
type Resolver[K comparable, V any] struct {
	lookup       Lookup[K, V]
	policy       ZeroMatchPolicy
	maxInFlight  int
	onClassified func(Entry[K, V])
}

// ResolverOption customizes a Resolver.
type ResolverOption[K comparable, V any] func(*Resolver[K, V])

// WithMaxInFlight bounds concurrent lookups.
func WithMaxInFlight[K comparable, V any](maxInFlight int) ResolverOption[K, V] {
	return func(resolver *Resolver[K, V]) {
		resolver.maxInFlight = maxInFlight
	}
}

// WithClassificationHandler registers a callback invoked once per classified key.
func WithClassificationHandler[K comparable, V any](handler func(Entry[K, V])) ResolverOption[K, V] {
	return func(resolver *Resolver[K, V]) {
		resolver.onClassified = handler
	}
}

// NewResolver constructs a Resolver.
func NewResolver[K comparable, V any](lookup Lookup[K, V], policy ZeroMatchPolicy, options ...ResolverOption[K, V]) (*Resolver[K, V], error) {
	if lookup == nil {
		return nil, ErrLookupNotConfigured
	}
	if policy != ZeroMatchError && policy != ZeroMatchSkip {
		return nil, fmt.Errorf(unknownZeroMatchPolicyTemplateConstant, policy)
	}

	resolver := &Resolver[K, V]{lookup: lookup, policy: policy, maxInFlight: DefaultMaxInFlight}
	for _, option := range options {
		if option != nil {
			option(resolver)
		}
	}
	if resolver.maxInFlight <= 0 {
		return nil, fmt.Errorf(invalidConcurrencyTemplateConstant, resolver.maxInFlight)
	}
	return resolver, nil
}

// Resolve issues one lookup per distinct key and returns the completed tally.
// Per-key failures are recorded in the tally; the returned error is reserved
// for a tally that could not be completed.
func (resolver *Resolver[K, V]) Resolve(executionContext context.Context, keys []K) (*Tally[K, V], error) {
	tally := NewTally[K, V](keys)

	ForEach(executionContext, tally.Keys(), resolver.maxInFlight, func(itemContext context.Context, key K) {
		resolver.classify(tally, key, resolver.resolveOne(itemContext, key))
	})

	if verificationError := tally.Verify(); verificationError != nil {
		return tally, verificationError
	}
	return tally, nil
}

type resolution[V any] struct {
	outcome Outcome
	value   V
	err     error
}

func (resolver *Resolver[K, V]) resolveOne(executionContext context.Context, key K) resolution[V] {
	matches, lookupError := resolver.lookup(executionContext, key)
	if lookupError != nil {
		return resolution[V]{outcome: OutcomeErrored, err: lookupError}
	}

	switch len(matches) {
	case 0:
		if resolver.policy == ZeroMatchSkip {
			return resolution[V]{outcome: OutcomeSkipped}
		}
		return resolution[V]{outcome: OutcomeErrored, err: UnresolvedError{Key: fmt.Sprint(key)}}
	case 1:
		return resolution[V]{outcome: OutcomeSucceeded, value: matches[0]}
	default:
		return resolution[V]{outcome: OutcomeErrored, err: AmbiguousMatchError{Key: fmt.Sprint(key), Matches: len(matches)}}
	}
}

func (resolver *Resolver[K, V]) classify(tally *Tally[K, V], key K, result resolution[V]) {
	var classificationError error
	switch result.outcome {
	case OutcomeSucceeded:
		classificationError = tally.Succeed(key, result.value)
	case OutcomeSkipped:
		classificationError = tally.Skip(key, result.err)
	default:
		classificationError = tally.Fail(key, result.err)
	}
	if classificationError != nil {
		return
	}

	if resolver.onClassified != nil {
		entry, _ := tally.Entry(key)
		resolver.onClassified(entry)
	}
}
