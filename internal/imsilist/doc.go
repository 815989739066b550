// Package imsilist gathers the IMSIs a run operates on from repeated flag
// values and comma- or newline-delimited files.
package imsilist
