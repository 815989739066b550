package batch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/simmigrate/internal/batch"
)

func staticLookup(results map[string][]string, failures map[string]error) batch.Lookup[string, string] {
	return func(_ context.Context, key string) ([]string, error) {
		if failure, found := failures[key]; found {
			return nil, failure
		}
		return results[key], nil
	}
}

func TestNewResolverValidation(testInstance *testing.T) {
	_, missingLookupError := batch.NewResolver[string, string](nil, batch.ZeroMatchError)
	require.ErrorIs(testInstance, missingLookupError, batch.ErrLookupNotConfigured)

	_, policyError := batch.NewResolver(staticLookup(nil, nil), batch.ZeroMatchPolicy(7))
	require.Error(testInstance, policyError)

	_, concurrencyError := batch.NewResolver(staticLookup(nil, nil), batch.ZeroMatchSkip, batch.WithMaxInFlight[string, string](0))
	require.Error(testInstance, concurrencyError)
}

func TestResolverClassifiesEveryKey(testInstance *testing.T) {
	transportFailure := errors.New("connection reset")
	lookup := staticLookup(
		map[string][]string{
			"single":    {"sim-1"},
			"ambiguous": {"sim-2", "sim-3"},
		},
		map[string]error{"broken": transportFailure},
	)

	testCases := []struct {
		name          string
		policy        batch.ZeroMatchPolicy
		expectMissing func(testInstance *testing.T, entry batch.Entry[string, string])
	}{
		{
			name:   "zero_match_is_error",
			policy: batch.ZeroMatchError,
			expectMissing: func(testInstance *testing.T, entry batch.Entry[string, string]) {
				require.Equal(testInstance, batch.OutcomeErrored, entry.Outcome)
				var unresolvedError batch.UnresolvedError
				require.ErrorAs(testInstance, entry.Err, &unresolvedError)
				require.Equal(testInstance, "missing", unresolvedError.Key)
			},
		},
		{
			name:   "zero_match_is_skip",
			policy: batch.ZeroMatchSkip,
			expectMissing: func(testInstance *testing.T, entry batch.Entry[string, string]) {
				require.Equal(testInstance, batch.OutcomeSkipped, entry.Outcome)
				require.NoError(testInstance, entry.Err)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			var classifiedMutex sync.Mutex
			classified := map[string]batch.Outcome{}
			resolver, creationError := batch.NewResolver(lookup, testCase.policy,
				batch.WithClassificationHandler(func(entry batch.Entry[string, string]) {
					classifiedMutex.Lock()
					defer classifiedMutex.Unlock()
					classified[entry.Key] = entry.Outcome
				}),
			)
			require.NoError(testInstance, creationError)

			tally, resolveError := resolver.Resolve(context.Background(), []string{"single", "ambiguous", "missing", "broken", "single"})
			require.NoError(testInstance, resolveError)
			require.True(testInstance, tally.Complete())
			require.Len(testInstance, classified, 4)

			single, _ := tally.Entry("single")
			require.Equal(testInstance, batch.OutcomeSucceeded, single.Outcome)
			require.Equal(testInstance, "sim-1", single.Value)

			ambiguous, _ := tally.Entry("ambiguous")
			var ambiguousError batch.AmbiguousMatchError
			require.ErrorAs(testInstance, ambiguous.Err, &ambiguousError)
			require.Equal(testInstance, 2, ambiguousError.Matches)

			broken, _ := tally.Entry("broken")
			require.Equal(testInstance, batch.OutcomeErrored, broken.Outcome)
			require.ErrorIs(testInstance, broken.Err, transportFailure)

			missing, _ := tally.Entry("missing")
			testCase.expectMissing(testInstance, missing)
		})
	}
}

func TestResolverBoundsConcurrency(testInstance *testing.T) {
	var active atomic.Int32
	var peak atomic.Int32
	lookup := func(_ context.Context, key int) ([]int, error) {
		current := active.Add(1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return []int{key}, nil
	}

	resolver, creationError := batch.NewResolver[int, int](lookup, batch.ZeroMatchError, batch.WithMaxInFlight[int, int](3))
	require.NoError(testInstance, creationError)

	keys := make([]int, 20)
	for index := range keys {
		keys[index] = index
	}

	tally, resolveError := resolver.Resolve(context.Background(), keys)
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, 20, tally.Counts().Succeeded)
	require.LessOrEqual(testInstance, peak.Load(), int32(3))
}

func TestResolverRecordsCancellationPerItem(testInstance *testing.T) {
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := func(executionContext context.Context, key string) ([]string, error) {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}
		return []string{key}, nil
	}
	resolver, creationError := batch.NewResolver[string, string](lookup, batch.ZeroMatchError)
	require.NoError(testInstance, creationError)

	tally, resolveError := resolver.Resolve(cancelledContext, []string{"a", "b"})
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, 2, tally.Counts().Errored)
	require.ErrorIs(testInstance, tally.Errored()[0].Err, context.Canceled)
}

func TestForEachVisitsEveryKey(testInstance *testing.T) {
	var visited sync.Map
	batch.ForEach(context.Background(), []string{"a", "b", "c"}, 0, func(_ context.Context, key string) {
		visited.Store(key, true)
	})
	for _, key := range []string{"a", "b", "c"} {
		_, found := visited.Load(key)
		require.True(testInstance, found)
	}
}
