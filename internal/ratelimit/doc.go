// Package ratelimit caps outbound request throughput for the whole process.
//
// Limiter grants dispatch slots in submission order so that at most
// RequestsPerWindow requests start inside any sliding window. Transport applies
// the limiter to an http.Client so every stage shares the same ceiling.
package ratelimit
