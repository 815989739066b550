// Package auth obtains bearer tokens for the master and enterprise
// identities. Both identities authenticate concurrently and report their
// outcomes independently, so one failing never blocks the other.
package auth
