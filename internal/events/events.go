package events

import (
	"sync"
)

// Kind classifies migration events.
type Kind string

// Event kinds emitted during a migration run.
const (
	KindAuthenticationSucceeded Kind = Kind("authentication_succeeded")
	KindAuthenticationFailed    Kind = Kind("authentication_failed")
	KindConfigurationMissing    Kind = Kind("configuration_missing")
	KindStateChanged            Kind = Kind("state_changed")
	KindItemResolved            Kind = Kind("item_resolved")
	KindItemSkipped             Kind = Kind("item_skipped")
	KindItemFailed              Kind = Kind("item_failed")
	KindItemMutated             Kind = Kind("item_mutated")
	KindItemPreviewed           Kind = Kind("item_previewed")
	KindStageCompleted          Kind = Kind("stage_completed")
	KindRunCompleted            Kind = Kind("run_completed")
	KindRunSummary              Kind = Kind("run_summary")
)

// Stage names the pipeline step an event belongs to.
type Stage string

// Pipeline stages.
const (
	StageAuthentication   Stage = Stage("authentication")
	StageResolveSims      Stage = Stage("resolve_sims")
	StageResolveEndpoints Stage = Stage("resolve_endpoints")
	StageReleaseEndpoints Stage = Stage("release_endpoints")
	StageReassignSims     Stage = Stage("reassign_sims")
	StageNone             Stage = Stage("")
)

// Identity labels the credential an authentication event refers to.
type Identity string

// Supported identities.
const (
	IdentityMaster     Identity = Identity("master")
	IdentityEnterprise Identity = Identity("enterprise")
)

// Subject carries per-item traceability from the original IMSI onwards.
type Subject struct {
	IMSI       string
	SimID      string
	EndpointID string
}

// StageCounts summarizes the terminal classification of one stage.
type StageCounts struct {
	Input     int
	Succeeded int
	Skipped   int
	Errored   int
}

// Summary reports how many items survived every stage of the run.
type Summary struct {
	FinalState string
	DryRun     bool
	Stages     map[Stage]StageCounts
}

// Event describes one meaningful transition in a migration run.
type Event struct {
	RunID      string
	Kind       Kind
	Stage      Stage
	Identity   Identity
	Subject    Subject
	State      string
	StatusCode int
	Detail     string
	Counts     StageCounts
	Summary    *Summary
	Err        error
}

// Observer receives migration events. Implementations must tolerate
// concurrent delivery from independent items.
type Observer interface {
	Observe(event Event)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(event Event)

// Observe implements Observer.
func (observerFunc ObserverFunc) Observe(event Event) {
	observerFunc(event)
}

// Observers fans a single event out to several observers, serializing delivery.
type Observers struct {
	mutex     sync.Mutex
	observers []Observer
}

// NewObservers builds a fan-out that skips nil observers.
func NewObservers(observers ...Observer) *Observers {
	retained := make([]Observer, 0, len(observers))
	for _, observer := range observers {
		if observer == nil {
			continue
		}
		retained = append(retained, observer)
	}
	return &Observers{observers: retained}
}

// Observe implements Observer.
func (fanOut *Observers) Observe(event Event) {
	if fanOut == nil {
		return
	}
	fanOut.mutex.Lock()
	defer fanOut.mutex.Unlock()
	for _, observer := range fanOut.observers {
		observer.Observe(event)
	}
}

// Recorder stores every observed event in delivery order.
type Recorder struct {
	mutex    sync.Mutex
	recorded []Event
}

// Observe implements Observer.
func (recorder *Recorder) Observe(event Event) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.recorded = append(recorder.recorded, event)
}

// Events returns a copy of the recorded events in delivery order.
func (recorder *Recorder) Events() []Event {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return append([]Event(nil), recorder.recorded...)
}

// OfKind returns recorded events matching kind.
func (recorder *Recorder) OfKind(kind Kind) []Event {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	matching := make([]Event, 0)
	for _, event := range recorder.recorded {
		if event.Kind == kind {
			matching = append(matching, event)
		}
	}
	return matching
}
