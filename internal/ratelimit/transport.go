package ratelimit

import (
	"net/http"
)

// Transport delays every outbound request until the shared limiter grants a slot.
type Transport struct {
	Limiter *Limiter
	Next    http.RoundTripper
}

// NewTransport wraps next with limiter. A nil next falls back to http.DefaultTransport.
func NewTransport(limiter *Limiter, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{Limiter: limiter, Next: next}
}

// RoundTrip implements http.RoundTripper.
func (transport *Transport) RoundTrip(request *http.Request) (*http.Response, error) {
	if transport.Limiter != nil {
		if waitError := transport.Limiter.Wait(request.Context()); waitError != nil {
			return nil, waitError
		}
	}
	return transport.Next.RoundTrip(request)
}
