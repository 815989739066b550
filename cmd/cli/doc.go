// Package cli constructs the simmigrate command-line interface, wiring the
// Cobra command hierarchy, the layered configuration loader, and structured
// logging. Execute builds a fresh application and runs it against os.Args.
package cli
