// Package mutation applies the endpoint release and SIM reassignment requests,
// or renders them as previews when the run is a dry run.
package mutation
