// Package emnify implements the handful of EMnify REST calls the SIM
// migration needs. Every call returns typed errors so callers can classify
// transport, status, and decoding failures per item.
package emnify
