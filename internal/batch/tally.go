package batch

import (
	"fmt"
	"sync"

	"github.com/temirov/simmigrate/internal/events"
)

// Outcome is the terminal classification of one item within a stage.
type Outcome int

// Terminal outcomes.
const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeSkipped
	OutcomeErrored
)

// String renders the outcome for logs.
func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeErrored:
		return "errored"
	default:
		return "pending"
	}
}

// Entry is one item's classification.
type Entry[K comparable, V any] struct {
	Key     K
	Outcome Outcome
	Value   V
	Err     error
}

// Tally accumulates exactly one terminal outcome per input key.
type Tally[K comparable, V any] struct {
	mutex      sync.Mutex
	order      []K
	entries    map[K]*Entry[K, V]
	classified int
}

// NewTally creates a tally over keys. Duplicate keys collapse onto their first occurrence.
func NewTally[K comparable, V any](keys []K) *Tally[K, V] {
	tally := &Tally[K, V]{entries: make(map[K]*Entry[K, V], len(keys))}
	for _, key := range keys {
		if _, exists := tally.entries[key]; exists {
			continue
		}
		tally.order = append(tally.order, key)
		tally.entries[key] = &Entry[K, V]{Key: key}
	}
	return tally
}

// Keys returns the distinct input keys in first-seen order.
func (tally *Tally[K, V]) Keys() []K {
	return append([]K(nil), tally.order...)
}

// Succeed classifies key as succeeded with value.
func (tally *Tally[K, V]) Succeed(key K, value V) error {
	return tally.Record(key, OutcomeSucceeded, value, nil)
}

// Skip classifies key as skipped; reason is optional.
func (tally *Tally[K, V]) Skip(key K, reason error) error {
	var zero V
	return tally.Record(key, OutcomeSkipped, zero, reason)
}

// Fail classifies key as errored.
func (tally *Tally[K, V]) Fail(key K, cause error) error {
	var zero V
	return tally.Record(key, OutcomeErrored, zero, cause)
}

// Record classifies key with an explicit outcome, keeping value even for failures.
func (tally *Tally[K, V]) Record(key K, outcome Outcome, value V, cause error) error {
	if outcome == OutcomePending {
		return fmt.Errorf(classificationErrorTemplateConstant, key, ErrPendingOutcome)
	}

	tally.mutex.Lock()
	defer tally.mutex.Unlock()

	entry, exists := tally.entries[key]
	if !exists {
		return fmt.Errorf(classificationErrorTemplateConstant, key, ErrUnknownKey)
	}
	if entry.Outcome != OutcomePending {
		return fmt.Errorf(classificationErrorTemplateConstant, key, ErrAlreadyClassified)
	}

	entry.Outcome = outcome
	entry.Value = value
	entry.Err = cause
	tally.classified++
	return nil
}

// Complete reports whether every input key has been classified.
func (tally *Tally[K, V]) Complete() bool {
	tally.mutex.Lock()
	defer tally.mutex.Unlock()
	return tally.classified == len(tally.order)
}

// Verify returns an IncompleteTallyError unless the tally is complete.
func (tally *Tally[K, V]) Verify() error {
	tally.mutex.Lock()
	defer tally.mutex.Unlock()
	if tally.classified != len(tally.order) {
		return IncompleteTallyError{Classified: tally.classified, Input: len(tally.order)}
	}
	return nil
}

// Entry returns the classification of key.
func (tally *Tally[K, V]) Entry(key K) (Entry[K, V], bool) {
	tally.mutex.Lock()
	defer tally.mutex.Unlock()
	entry, exists := tally.entries[key]
	if !exists {
		return Entry[K, V]{}, false
	}
	return *entry, true
}

// Entries returns every entry in input order.
func (tally *Tally[K, V]) Entries() []Entry[K, V] {
	return tally.filter(func(Outcome) bool { return true })
}

// Succeeded returns the succeeded entries in input order.
func (tally *Tally[K, V]) Succeeded() []Entry[K, V] {
	return tally.filter(func(outcome Outcome) bool { return outcome == OutcomeSucceeded })
}

// Skipped returns the skipped entries in input order.
func (tally *Tally[K, V]) Skipped() []Entry[K, V] {
	return tally.filter(func(outcome Outcome) bool { return outcome == OutcomeSkipped })
}

// Errored returns the errored entries in input order.
func (tally *Tally[K, V]) Errored() []Entry[K, V] {
	return tally.filter(func(outcome Outcome) bool { return outcome == OutcomeErrored })
}

// Counts summarizes the tally.
func (tally *Tally[K, V]) Counts() events.StageCounts {
	tally.mutex.Lock()
	defer tally.mutex.Unlock()

	counts := events.StageCounts{Input: len(tally.order)}
	for _, key := range tally.order {
		switch tally.entries[key].Outcome {
		case OutcomeSucceeded:
			counts.Succeeded++
		case OutcomeSkipped:
			counts.Skipped++
		case OutcomeErrored:
			counts.Errored++
		}
	}
	return counts
}

func (tally *Tally[K, V]) filter(include func(Outcome) bool) []Entry[K, V] {
	tally.mutex.Lock()
	defer tally.mutex.Unlock()

	selected := make([]Entry[K, V], 0, len(tally.order))
	for _, key := range tally.order {
		entry := tally.entries[key]
		if include(entry.Outcome) {
			selected = append(selected, *entry)
		}
	}
	return selected
}
