package emnify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the public EMnify REST API root.
	DefaultBaseURL = "https://cdn.emnify.net/api/v1"

	authenticatePathConstant        = "authenticate"
	simPathConstant                 = "sim"
	endpointPathConstant            = "endpoint"
	pageQueryParameterConstant      = "page"
	perPageQueryParameterConstant   = "per_page"
	searchQueryParameterConstant    = "q"
	firstPageValueConstant          = "1"
	lookupPageSizeValueConstant     = "2"
	imsiSearchTemplateConstant      = "imsi:%s"
	simSearchTemplateConstant       = "sim:%s"
	authorizationHeaderConstant     = "Authorization"
	bearerTemplateConstant          = "Bearer %s"
	contentTypeHeaderConstant       = "Content-Type"
	acceptHeaderConstant            = "Accept"
	jsonContentTypeConstant         = "application/json"
	applicationTokenFieldConstant   = "application_token"
	imsiFieldConstant               = "imsi"
	simIdentifierFieldConstant      = "sim_id"
	endpointIdentifierFieldConstant = "endpoint_id"
	organizationFieldConstant       = "organization_id"
	bearerTokenFieldConstant        = "bearer_token"
	maximumErrorBodyBytesConstant   = 512
	missingAuthTokenMessageConstant = "response did not contain auth_token"
)

// HTTPClient performs HTTP requests.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// ResourceID is an EMnify identifier. The API returns numeric ids; strings are accepted too.
type ResourceID string

// UnmarshalJSON accepts both JSON numbers and JSON strings.
func (identifier *ResourceID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*identifier = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var textValue string
		if unmarshalError := json.Unmarshal(trimmed, &textValue); unmarshalError != nil {
			return unmarshalError
		}
		*identifier = ResourceID(textValue)
		return nil
	}
	var numericValue json.Number
	if unmarshalError := json.Unmarshal(trimmed, &numericValue); unmarshalError != nil {
		return unmarshalError
	}
	*identifier = ResourceID(numericValue.String())
	return nil
}

// Sim is the subset of the SIM resource the migration needs.
type Sim struct {
	ID    ResourceID `json:"id"`
	ICCID string     `json:"iccid,omitempty"`
}

// Endpoint is the subset of the endpoint resource the migration needs.
type Endpoint struct {
	ID   ResourceID `json:"id"`
	Name string     `json:"name,omitempty"`
}

// Client issues EMnify REST calls over a single HTTP client.
type Client struct {
	baseURL    *url.URL
	httpClient HTTPClient
}

// NewClient constructs a client rooted at baseURL. An empty baseURL selects DefaultBaseURL.
func NewClient(httpClient HTTPClient, baseURL string) (*Client, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientNotConfigured
	}

	trimmedBaseURL := strings.TrimSpace(baseURL)
	if len(trimmedBaseURL) == 0 {
		trimmedBaseURL = DefaultBaseURL
	}

	parsedBaseURL, parseError := url.Parse(strings.TrimRight(trimmedBaseURL, "/"))
	if parseError != nil {
		return nil, fmt.Errorf(baseURLInvalidTemplateConstant, trimmedBaseURL, parseError)
	}
	if len(parsedBaseURL.Scheme) == 0 || len(parsedBaseURL.Host) == 0 {
		return nil, fmt.Errorf(baseURLInvalidTemplateConstant, trimmedBaseURL, errors.New("scheme and host required"))
	}

	return &Client{baseURL: parsedBaseURL, httpClient: httpClient}, nil
}

// Authenticate exchanges an application token for a bearer token.
func (client *Client) Authenticate(executionContext context.Context, applicationToken string) (string, error) {
	trimmedToken := strings.TrimSpace(applicationToken)
	if len(trimmedToken) == 0 {
		return "", InvalidInputError{FieldName: applicationTokenFieldConstant, Message: requiredValueMessageConstant}
	}

	payload := map[string]string{applicationTokenFieldConstant: trimmedToken}

	var response struct {
		AuthToken string `json:"auth_token"`
	}

	requestError := client.exchange(executionContext, exchange{
		operation:      OperationAuthenticate,
		method:         http.MethodPost,
		path:           []string{authenticatePathConstant},
		payload:        payload,
		expectedStatus: http.StatusOK,
		response:       &response,
	})
	if requestError != nil {
		return "", requestError
	}

	if len(strings.TrimSpace(response.AuthToken)) == 0 {
		return "", ResponseDecodingError{Operation: OperationAuthenticate, Cause: errors.New(missingAuthTokenMessageConstant)}
	}

	return response.AuthToken, nil
}

// ListSimsByIMSI returns at most two SIMs matching imsi, enough to detect ambiguity.
func (client *Client) ListSimsByIMSI(executionContext context.Context, bearerToken string, imsi string) ([]Sim, error) {
	trimmedIMSI := strings.TrimSpace(imsi)
	if len(trimmedIMSI) == 0 {
		return nil, InvalidInputError{FieldName: imsiFieldConstant, Message: requiredValueMessageConstant}
	}

	var sims []Sim
	requestError := client.exchange(executionContext, exchange{
		operation:      OperationListSimsByIMSI,
		method:         http.MethodGet,
		path:           []string{simPathConstant},
		query:          lookupQuery(fmt.Sprintf(imsiSearchTemplateConstant, trimmedIMSI)),
		bearerToken:    bearerToken,
		expectedStatus: http.StatusOK,
		response:       &sims,
	})
	if requestError != nil {
		return nil, requestError
	}
	return sims, nil
}

// ListEndpointsBySim returns at most two endpoints attached to simID.
func (client *Client) ListEndpointsBySim(executionContext context.Context, bearerToken string, simID string) ([]Endpoint, error) {
	trimmedSimID := strings.TrimSpace(simID)
	if len(trimmedSimID) == 0 {
		return nil, InvalidInputError{FieldName: simIdentifierFieldConstant, Message: requiredValueMessageConstant}
	}

	var endpoints []Endpoint
	requestError := client.exchange(executionContext, exchange{
		operation:      OperationListEndpointsBySim,
		method:         http.MethodGet,
		path:           []string{endpointPathConstant},
		query:          lookupQuery(fmt.Sprintf(simSearchTemplateConstant, trimmedSimID)),
		bearerToken:    bearerToken,
		expectedStatus: http.StatusOK,
		response:       &endpoints,
	})
	if requestError != nil {
		return nil, requestError
	}
	return endpoints, nil
}

// ReleaseEndpoint detaches the SIM from endpointID. The API answers 204 on success.
func (client *Client) ReleaseEndpoint(executionContext context.Context, bearerToken string, endpointID string) error {
	trimmedEndpointID := strings.TrimSpace(endpointID)
	if len(trimmedEndpointID) == 0 {
		return InvalidInputError{FieldName: endpointIdentifierFieldConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		Sim struct {
			ID *string `json:"id"`
		} `json:"sim"`
	}{}

	return client.exchange(executionContext, exchange{
		operation:      OperationReleaseEndpoint,
		method:         http.MethodPatch,
		path:           []string{endpointPathConstant, trimmedEndpointID},
		payload:        payload,
		bearerToken:    bearerToken,
		expectedStatus: http.StatusNoContent,
	})
}

// ReassignSimOrganization moves simID into organizationID. The API answers 200 on success.
func (client *Client) ReassignSimOrganization(executionContext context.Context, bearerToken string, simID string, organizationID string) error {
	trimmedSimID := strings.TrimSpace(simID)
	if len(trimmedSimID) == 0 {
		return InvalidInputError{FieldName: simIdentifierFieldConstant, Message: requiredValueMessageConstant}
	}
	trimmedOrganizationID := strings.TrimSpace(organizationID)
	if len(trimmedOrganizationID) == 0 {
		return InvalidInputError{FieldName: organizationFieldConstant, Message: requiredValueMessageConstant}
	}

	payload := struct {
		CustomerOrganization struct {
			ID any `json:"id"`
		} `json:"customer_org"`
	}{}
	payload.CustomerOrganization.ID = organizationReference(trimmedOrganizationID)

	return client.exchange(executionContext, exchange{
		operation:      OperationReassignSimOrganization,
		method:         http.MethodPatch,
		path:           []string{simPathConstant, trimmedSimID},
		payload:        payload,
		bearerToken:    bearerToken,
		expectedStatus: http.StatusOK,
	})
}

type exchange struct {
	operation      OperationName
	method         string
	path           []string
	query          url.Values
	payload        any
	bearerToken    string
	expectedStatus int
	response       any
}

func (client *Client) exchange(executionContext context.Context, details exchange) error {
	if details.bearerToken == "" && details.operation != OperationAuthenticate {
		return InvalidInputError{FieldName: bearerTokenFieldConstant, Message: requiredValueMessageConstant}
	}

	requestURL := client.baseURL.JoinPath(details.path...)
	if len(details.query) > 0 {
		requestURL.RawQuery = details.query.Encode()
	}

	var requestBody io.Reader
	if details.payload != nil {
		encodedPayload, encodingError := json.Marshal(details.payload)
		if encodingError != nil {
			return fmt.Errorf("%s payload encoding failed: %w", details.operation, encodingError)
		}
		requestBody = bytes.NewReader(encodedPayload)
	}

	request, requestError := http.NewRequestWithContext(executionContext, details.method, requestURL.String(), requestBody)
	if requestError != nil {
		return TransportError{Operation: details.operation, Cause: requestError}
	}
	request.Header.Set(acceptHeaderConstant, jsonContentTypeConstant)
	if requestBody != nil {
		request.Header.Set(contentTypeHeaderConstant, jsonContentTypeConstant)
	}
	if len(details.bearerToken) > 0 {
		request.Header.Set(authorizationHeaderConstant, fmt.Sprintf(bearerTemplateConstant, details.bearerToken))
	}

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return TransportError{Operation: details.operation, Cause: responseError}
	}
	defer response.Body.Close()

	responseBody, readError := io.ReadAll(response.Body)
	if readError != nil {
		return TransportError{Operation: details.operation, Cause: readError}
	}

	if response.StatusCode != details.expectedStatus {
		return UnexpectedStatusError{
			Operation:      details.operation,
			StatusCode:     response.StatusCode,
			ExpectedStatus: details.expectedStatus,
			Body:           truncateBody(responseBody),
		}
	}

	if details.response == nil {
		return nil
	}

	if decodingError := json.Unmarshal(responseBody, details.response); decodingError != nil {
		return ResponseDecodingError{Operation: details.operation, Cause: decodingError}
	}
	return nil
}

func lookupQuery(searchExpression string) url.Values {
	query := url.Values{}
	query.Set(pageQueryParameterConstant, firstPageValueConstant)
	query.Set(perPageQueryParameterConstant, lookupPageSizeValueConstant)
	query.Set(searchQueryParameterConstant, searchExpression)
	return query
}

// organizationReference keeps numeric organization ids numeric on the wire,
// in canonical decimal form so "007" and "+5" encode as 7 and 5.
func organizationReference(organizationID string) any {
	if parsed, parseError := strconv.ParseInt(organizationID, 10, 64); parseError == nil {
		return json.Number(strconv.FormatInt(parsed, 10))
	}
	return organizationID
}

func truncateBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maximumErrorBodyBytesConstant {
		return trimmed[:maximumErrorBodyBytesConstant]
	}
	return trimmed
}
