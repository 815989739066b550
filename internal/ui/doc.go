// Package ui provides helpers for formatting human-readable console output.
//
// The helpers translate migration events into concise messages so that every
// failed item stays actionable for operators while detailed telemetry
// continues to flow through structured loggers.
package ui
