// Package batch provides the fan-out, barrier, and per-item accounting shared
// by every pipeline stage. A stage completes only once each of its input keys
// has exactly one terminal outcome.
package batch
