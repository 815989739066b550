package auth

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/events"
)

const (
	identityLogFieldConstant               = "identity"
	statusCodeLogFieldConstant             = "status_code"
	authenticationSucceededMessageConstant = "authentication succeeded"
	authenticationFailedMessageConstant    = "authentication failed"
)

// Authenticator exchanges an application token for a bearer token.
type Authenticator interface {
	Authenticate(executionContext context.Context, applicationToken string) (string, error)
}

// Credential is the application token for one identity, or the reason it is unavailable.
type Credential struct {
	ApplicationToken string
	SourceError      error
}

// Credentials pairs the master and enterprise application tokens.
type Credentials struct {
	Master     Credential
	Enterprise Credential
}

// Result is the terminal authentication outcome for one identity.
type Result struct {
	Identity events.Identity
	Token    string
	Err      error
}

// DualAuthenticator authenticates the master and enterprise identities independently.
type DualAuthenticator struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewDualAuthenticator constructs a DualAuthenticator.
func NewDualAuthenticator(authenticator Authenticator, logger *zap.Logger) (*DualAuthenticator, error) {
	if authenticator == nil {
		return nil, ErrAuthenticatorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DualAuthenticator{authenticator: authenticator, logger: logger}, nil
}

// Start launches both authentications and returns a channel that yields exactly
// two results, in completion order, and is then closed.
func (dualAuthenticator *DualAuthenticator) Start(executionContext context.Context, credentials Credentials) <-chan Result {
	results := make(chan Result, 2)

	var waitGroup sync.WaitGroup
	for _, pending := range []struct {
		identity   events.Identity
		credential Credential
	}{
		{identity: events.IdentityMaster, credential: credentials.Master},
		{identity: events.IdentityEnterprise, credential: credentials.Enterprise},
	} {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			results <- dualAuthenticator.authenticate(executionContext, pending.identity, pending.credential)
		}()
	}

	go func() {
		waitGroup.Wait()
		close(results)
	}()

	return results
}

func (dualAuthenticator *DualAuthenticator) authenticate(executionContext context.Context, identity events.Identity, credential Credential) Result {
	applicationToken := strings.TrimSpace(credential.ApplicationToken)
	if len(applicationToken) == 0 {
		return Result{Identity: identity, Err: ConfigurationError{Identity: identity, Cause: credential.SourceError}}
	}

	bearerToken, authenticationError := dualAuthenticator.authenticator.Authenticate(executionContext, applicationToken)
	if authenticationError != nil {
		dualAuthenticator.logger.Warn(
			authenticationFailedMessageConstant,
			zap.String(identityLogFieldConstant, string(identity)),
			zap.Int(statusCodeLogFieldConstant, emnify.StatusCode(authenticationError)),
			zap.Error(authenticationError),
		)
		return Result{Identity: identity, Err: AuthenticationError{Identity: identity, Cause: authenticationError}}
	}

	dualAuthenticator.logger.Debug(authenticationSucceededMessageConstant, zap.String(identityLogFieldConstant, string(identity)))
	return Result{Identity: identity, Token: bearerToken}
}
