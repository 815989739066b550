// Package testsupport provides an in-process EMnify API double for command tests.
package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	apiPrefixConstant          = "/api/v1"
	authenticatePathConstant   = apiPrefixConstant + "/authenticate"
	simCollectionPathConstant  = apiPrefixConstant + "/sim"
	endpointCollectionConstant = apiPrefixConstant + "/endpoint"
	bearerPrefixConstant       = "Bearer "
	imsiQueryPrefixConstant    = "imsi:"
	simQueryPrefixConstant     = "sim:"
)

// SimRecord is a SIM as served by the fake API.
type SimRecord struct {
	ID    int64  `json:"id"`
	ICCID string `json:"iccid,omitempty"`
}

// EndpointRecord is an endpoint as served by the fake API.
type EndpointRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// RecordedRequest captures one request received by the fake API.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          string
}

// FakeEMnify serves the subset of the EMnify API the migration uses.
type FakeEMnify struct {
	Server *httptest.Server

	// BearerTokens maps application tokens to the bearer tokens returned by /authenticate.
	BearerTokens map[string]string
	// MasterBearer authorizes lookups and SIM reassignment.
	MasterBearer string
	// EnterpriseBearer authorizes endpoint release.
	EnterpriseBearer string
	SimsByIMSI       map[string][]SimRecord
	EndpointsBySim   map[string][]EndpointRecord
	// ReleaseStatus overrides the 204 answer for specific endpoint ids.
	ReleaseStatus map[string]int
	// ReassignStatus overrides the 200 answer for specific SIM ids.
	ReassignStatus map[string]int

	mutex    sync.Mutex
	requests []RecordedRequest
}

// NewFakeEMnify starts the fake API and stops it when the test ends.
func NewFakeEMnify(testInstance testing.TB) *FakeEMnify {
	fake := &FakeEMnify{
		BearerTokens:   map[string]string{},
		SimsByIMSI:     map[string][]SimRecord{},
		EndpointsBySim: map[string][]EndpointRecord{},
		ReleaseStatus:  map[string]int{},
		ReassignStatus: map[string]int{},
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	testInstance.Cleanup(fake.Server.Close)
	return fake
}

// BaseURL returns the API root to configure the client with.
func (fake *FakeEMnify) BaseURL() string {
	return fake.Server.URL + apiPrefixConstant
}

// Requests returns every recorded request in arrival order.
func (fake *FakeEMnify) Requests() []RecordedRequest {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return append([]RecordedRequest(nil), fake.requests...)
}

// Mutations returns the recorded PATCH requests.
func (fake *FakeEMnify) Mutations() []RecordedRequest {
	mutations := make([]RecordedRequest, 0)
	for _, request := range fake.Requests() {
		if request.Method == http.MethodPatch {
			mutations = append(mutations, request)
		}
	}
	return mutations
}

func (fake *FakeEMnify) serve(writer http.ResponseWriter, request *http.Request) {
	body, _ := io.ReadAll(request.Body)
	fake.mutex.Lock()
	fake.requests = append(fake.requests, RecordedRequest{
		Method:        request.Method,
		Path:          request.URL.Path,
		Query:         request.URL.RawQuery,
		Authorization: request.Header.Get("Authorization"),
		Body:          string(body),
	})
	fake.mutex.Unlock()

	path := request.URL.Path
	switch {
	case request.Method == http.MethodPost && path == authenticatePathConstant:
		fake.authenticate(writer, body)
	case request.Method == http.MethodGet && path == simCollectionPathConstant:
		if !fake.authorized(writer, request, fake.MasterBearer) {
			return
		}
		imsi := strings.TrimPrefix(request.URL.Query().Get("q"), imsiQueryPrefixConstant)
		writeJSON(writer, http.StatusOK, nonNil(fake.SimsByIMSI[imsi]))
	case request.Method == http.MethodGet && path == endpointCollectionConstant:
		if !fake.authorized(writer, request, fake.MasterBearer) {
			return
		}
		simID := strings.TrimPrefix(request.URL.Query().Get("q"), simQueryPrefixConstant)
		writeJSON(writer, http.StatusOK, nonNil(fake.EndpointsBySim[simID]))
	case request.Method == http.MethodPatch && strings.HasPrefix(path, endpointCollectionConstant+"/"):
		if !fake.authorized(writer, request, fake.EnterpriseBearer) {
			return
		}
		endpointID := strings.TrimPrefix(path, endpointCollectionConstant+"/")
		writer.WriteHeader(statusOrDefault(fake.ReleaseStatus, endpointID, http.StatusNoContent))
	case request.Method == http.MethodPatch && strings.HasPrefix(path, simCollectionPathConstant+"/"):
		if !fake.authorized(writer, request, fake.MasterBearer) {
			return
		}
		simID := strings.TrimPrefix(path, simCollectionPathConstant+"/")
		writeJSON(writer, statusOrDefault(fake.ReassignStatus, simID, http.StatusOK), map[string]string{})
	default:
		writer.WriteHeader(http.StatusNotFound)
	}
}

func (fake *FakeEMnify) authenticate(writer http.ResponseWriter, body []byte) {
	var payload struct {
		ApplicationToken string `json:"application_token"`
	}
	if json.Unmarshal(body, &payload) != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	bearerToken, known := fake.BearerTokens[payload.ApplicationToken]
	if !known {
		writeJSON(writer, http.StatusUnauthorized, map[string]string{"error_token": "invalid application token"})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{"auth_token": bearerToken})
}

func (fake *FakeEMnify) authorized(writer http.ResponseWriter, request *http.Request, expectedBearer string) bool {
	if request.Header.Get("Authorization") == bearerPrefixConstant+expectedBearer {
		return true
	}
	writer.WriteHeader(http.StatusUnauthorized)
	return false
}

func statusOrDefault(overrides map[string]int, key string, fallback int) int {
	if status, exists := overrides[key]; exists {
		return status
	}
	return fallback
}

func nonNil[T any](records []T) []T {
	if records == nil {
		return []T{}
	}
	return records
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
