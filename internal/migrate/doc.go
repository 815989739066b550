// Package migrate moves SIMs between EMnify organizations.
//
// The Orchestrator runs a state machine over five dependent stages: SIM lookup
// by IMSI, endpoint lookup by SIM, endpoint release, and organization
// reassignment, all gated on the master and enterprise authentications.
// CommandBuilder exposes the orchestrator as the migrate Cobra command.
package migrate
