package migrate

import (
	"github.com/temirov/simmigrate/internal/auth"
	"github.com/temirov/simmigrate/internal/batch"
	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/mutation"
)

// State names a step of the migration state machine.
type State string

// Migration states.
const (
	StateAwaitingAuth       State = State("awaiting_auth")
	StateResolvingSims      State = State("resolving_sims")
	StateResolvingEndpoints State = State("resolving_endpoints")
	StateReleasingEndpoints State = State("releasing_endpoints")
	StateReassigningOrg     State = State("reassigning_org")
	StateDone               State = State("done")
	StateStalled            State = State("stalled")
)

// Terminal reports whether no further transition can occur.
func (state State) Terminal() bool {
	return state == StateDone || state == StateStalled
}

// transition is a message that can move the state machine forward.
type transition interface {
	transitionMessage()
}

type authenticated struct {
	result auth.Result
}

type simsResolved struct {
	tally *batch.Tally[string, emnify.Sim]
	err   error
}

type endpointsResolved struct {
	tally *batch.Tally[string, emnify.Endpoint]
	err   error
}

type endpointsReleased struct {
	tally *batch.Tally[string, mutation.Result]
	err   error
}

type simsReassigned struct {
	tally *batch.Tally[string, mutation.Result]
	err   error
}

func (authenticated) transitionMessage()     {}
func (simsResolved) transitionMessage()      {}
func (endpointsResolved) transitionMessage() {}
func (endpointsReleased) transitionMessage() {}
func (simsReassigned) transitionMessage()    {}
