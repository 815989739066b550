// Package events defines the progress events a migration run emits and the
// Observer contract used by console, logging, and metrics sinks.
package events
