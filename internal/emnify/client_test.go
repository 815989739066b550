package emnify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/simmigrate/internal/emnify"
)

const (
	testBearerTokenConstant      = "bearer-123"
	testApplicationTokenConstant = "application-abc"
)

type capturedRequest struct {
	method        string
	path          string
	query         map[string]string
	authorization string
	body          map[string]any
}

func newCapturingServer(testInstance *testing.T, statusCode int, responseBody string, captured *capturedRequest) *httptest.Server {
	testInstance.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		captured.method = request.Method
		captured.path = request.URL.Path
		captured.query = map[string]string{}
		for key := range request.URL.Query() {
			captured.query[key] = request.URL.Query().Get(key)
		}
		captured.authorization = request.Header.Get("Authorization")
		rawBody, _ := io.ReadAll(request.Body)
		if len(rawBody) > 0 {
			captured.body = map[string]any{}
			_ = json.Unmarshal(rawBody, &captured.body)
		}
		responseWriter.WriteHeader(statusCode)
		_, _ = io.WriteString(responseWriter, responseBody)
	}))
	testInstance.Cleanup(server.Close)
	return server
}

func newTestClient(testInstance *testing.T, server *httptest.Server) *emnify.Client {
	testInstance.Helper()
	client, creationError := emnify.NewClient(server.Client(), server.URL+"/api/v1/")
	require.NoError(testInstance, creationError)
	return client
}

func TestNewClientValidation(testInstance *testing.T) {
	_, missingClientError := emnify.NewClient(nil, "")
	require.ErrorIs(testInstance, missingClientError, emnify.ErrHTTPClientNotConfigured)

	_, relativeURLError := emnify.NewClient(http.DefaultClient, "not-a-url")
	require.Error(testInstance, relativeURLError)

	client, defaultError := emnify.NewClient(http.DefaultClient, "  ")
	require.NoError(testInstance, defaultError)
	require.NotNil(testInstance, client)
}

func TestAuthenticate(testInstance *testing.T) {
	testCases := []struct {
		name          string
		statusCode    int
		responseBody  string
		expectedToken string
		assertError   func(testInstance *testing.T, err error)
	}{
		{
			name:          "success",
			statusCode:    http.StatusOK,
			responseBody:  `{"auth_token":"bearer-xyz"}`,
			expectedToken: "bearer-xyz",
		},
		{
			name:         "rejected",
			statusCode:   http.StatusUnauthorized,
			responseBody: `{"error_code":401}`,
			assertError: func(testInstance *testing.T, err error) {
				var statusError emnify.UnexpectedStatusError
				require.ErrorAs(testInstance, err, &statusError)
				require.Equal(testInstance, http.StatusUnauthorized, statusError.StatusCode)
				require.Equal(testInstance, emnify.OperationAuthenticate, statusError.Operation)
			},
		},
		{
			name:         "missing_token",
			statusCode:   http.StatusOK,
			responseBody: `{}`,
			assertError: func(testInstance *testing.T, err error) {
				var decodingError emnify.ResponseDecodingError
				require.ErrorAs(testInstance, err, &decodingError)
			},
		},
		{
			name:         "malformed_body",
			statusCode:   http.StatusOK,
			responseBody: `not json`,
			assertError: func(testInstance *testing.T, err error) {
				var decodingError emnify.ResponseDecodingError
				require.ErrorAs(testInstance, err, &decodingError)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			captured := &capturedRequest{}
			server := newCapturingServer(testInstance, testCase.statusCode, testCase.responseBody, captured)
			client := newTestClient(testInstance, server)

			token, authenticationError := client.Authenticate(context.Background(), testApplicationTokenConstant)

			require.Equal(testInstance, http.MethodPost, captured.method)
			require.Equal(testInstance, "/api/v1/authenticate", captured.path)
			require.Equal(testInstance, testApplicationTokenConstant, captured.body["application_token"])
			require.Empty(testInstance, captured.authorization)

			if testCase.assertError != nil {
				require.Error(testInstance, authenticationError)
				testCase.assertError(testInstance, authenticationError)
				return
			}
			require.NoError(testInstance, authenticationError)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestAuthenticateRequiresToken(testInstance *testing.T) {
	client, creationError := emnify.NewClient(http.DefaultClient, "")
	require.NoError(testInstance, creationError)

	_, authenticationError := client.Authenticate(context.Background(), "   ")
	var inputError emnify.InvalidInputError
	require.ErrorAs(testInstance, authenticationError, &inputError)
}

func TestListSimsByIMSI(testInstance *testing.T) {
	captured := &capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusOK, `[{"id":1001,"iccid":"8988"},{"id":"1002"}]`, captured)
	client := newTestClient(testInstance, server)

	sims, listError := client.ListSimsByIMSI(context.Background(), testBearerTokenConstant, "295050000000001")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []emnify.Sim{{ID: "1001", ICCID: "8988"}, {ID: "1002"}}, sims)

	require.Equal(testInstance, http.MethodGet, captured.method)
	require.Equal(testInstance, "/api/v1/sim", captured.path)
	require.Equal(testInstance, map[string]string{"page": "1", "per_page": "2", "q": "imsi:295050000000001"}, captured.query)
	require.Equal(testInstance, "Bearer "+testBearerTokenConstant, captured.authorization)
}

func TestListEndpointsBySim(testInstance *testing.T) {
	captured := &capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusOK, `[]`, captured)
	client := newTestClient(testInstance, server)

	endpoints, listError := client.ListEndpointsBySim(context.Background(), testBearerTokenConstant, "1001")
	require.NoError(testInstance, listError)
	require.Empty(testInstance, endpoints)
	require.Equal(testInstance, "/api/v1/endpoint", captured.path)
	require.Equal(testInstance, "sim:1001", captured.query["q"])
}

func TestListOperationsRejectNonOKStatus(testInstance *testing.T) {
	captured := &capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusNotFound, `{"message":"missing"}`, captured)
	client := newTestClient(testInstance, server)

	_, listError := client.ListEndpointsBySim(context.Background(), testBearerTokenConstant, "1001")
	require.Equal(testInstance, http.StatusNotFound, emnify.StatusCode(listError))
	require.Contains(testInstance, listError.Error(), "missing")
}

func TestListOperationsRequireBearerToken(testInstance *testing.T) {
	captured := &capturedRequest{}
	server := newCapturingServer(testInstance, http.StatusOK, `[]`, captured)
	client := newTestClient(testInstance, server)

	_, listError := client.ListSimsByIMSI(context.Background(), "", "295050000000001")
	var inputError emnify.InvalidInputError
	require.ErrorAs(testInstance, listError, &inputError)
	require.Empty(testInstance, captured.method)
}

func TestReleaseEndpoint(testInstance *testing.T) {
	testCases := []struct {
		name        string
		statusCode  int
		expectError bool
	}{
		{name: "no_content", statusCode: http.StatusNoContent},
		{name: "ok_is_not_success", statusCode: http.StatusOK, expectError: true},
		{name: "server_error", statusCode: http.StatusInternalServerError, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			captured := &capturedRequest{}
			server := newCapturingServer(testInstance, testCase.statusCode, "", captured)
			client := newTestClient(testInstance, server)

			releaseError := client.ReleaseEndpoint(context.Background(), testBearerTokenConstant, "77")

			require.Equal(testInstance, http.MethodPatch, captured.method)
			require.Equal(testInstance, "/api/v1/endpoint/77", captured.path)
			require.Equal(testInstance, map[string]any{"sim": map[string]any{"id": nil}}, captured.body)

			if testCase.expectError {
				require.Equal(testInstance, testCase.statusCode, emnify.StatusCode(releaseError))
				return
			}
			require.NoError(testInstance, releaseError)
		})
	}
}

func TestReassignSimOrganization(testInstance *testing.T) {
	testCases := []struct {
		name               string
		organizationID     string
		statusCode         int
		expectedWireValue  any
		expectedStatusCode int
	}{
		{name: "numeric_organization", organizationID: "4242", statusCode: http.StatusOK, expectedWireValue: float64(4242)},
		{name: "leading_zeros_are_canonicalized", organizationID: "007", statusCode: http.StatusOK, expectedWireValue: float64(7)},
		{name: "explicit_sign_is_canonicalized", organizationID: "+5", statusCode: http.StatusOK, expectedWireValue: float64(5)},
		{name: "negative_organization", organizationID: "-12", statusCode: http.StatusOK, expectedWireValue: float64(-12)},
		{name: "textual_organization", organizationID: "org-a", statusCode: http.StatusOK, expectedWireValue: "org-a"},
		{name: "no_content_is_not_success", organizationID: "4242", statusCode: http.StatusNoContent, expectedWireValue: float64(4242), expectedStatusCode: http.StatusNoContent},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			captured := &capturedRequest{}
			server := newCapturingServer(testInstance, testCase.statusCode, `{}`, captured)
			client := newTestClient(testInstance, server)

			reassignError := client.ReassignSimOrganization(context.Background(), testBearerTokenConstant, "1001", testCase.organizationID)

			require.Equal(testInstance, http.MethodPatch, captured.method)
			require.Equal(testInstance, "/api/v1/sim/1001", captured.path)
			require.Equal(testInstance, map[string]any{"customer_org": map[string]any{"id": testCase.expectedWireValue}}, captured.body)

			if testCase.expectedStatusCode != 0 {
				require.Equal(testInstance, testCase.expectedStatusCode, emnify.StatusCode(reassignError))
				return
			}
			require.NoError(testInstance, reassignError)
		})
	}
}

type failingHTTPClient struct{}

func (failingHTTPClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTransportFailuresAreTyped(testInstance *testing.T) {
	client, creationError := emnify.NewClient(failingHTTPClient{}, "")
	require.NoError(testInstance, creationError)

	releaseError := client.ReleaseEndpoint(context.Background(), testBearerTokenConstant, "77")
	var transportError emnify.TransportError
	require.ErrorAs(testInstance, releaseError, &transportError)
	require.Equal(testInstance, emnify.OperationReleaseEndpoint, transportError.Operation)
	require.Zero(testInstance, emnify.StatusCode(releaseError))
}
