package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	tokenSourceSeparatorConstant            = ":"
	environmentTokenSourcePrefixConstant    = "env"
	fileTokenSourcePrefixConstant           = "file"
	tokenSourceMissingErrorMessageConstant  = "no application token or token source provided"
	environmentNameMissingMessageConstant   = "environment variable name must be provided"
	filePathMissingMessageConstant          = "token file path must be provided"
	environmentTokenMissingTemplateConstant = "environment variable %s is not set"
	fileReadErrorTemplateConstant           = "unable to read token file %s: %w"
	fileTokenEmptyTemplateConstant          = "token file %s is empty"
	unsupportedTokenSourceTemplateConstant  = "unsupported token source type %q"
)

// ErrTokenSourceMissing indicates neither an explicit token nor a source was configured.
var ErrTokenSourceMissing = errors.New(tokenSourceMissingErrorMessageConstant)

// TokenSourceType enumerates where an application token is read from.
type TokenSourceType string

// Token source types.
const (
	TokenSourceTypeEnvironment TokenSourceType = TokenSourceType(environmentTokenSourcePrefixConstant)
	TokenSourceTypeFile        TokenSourceType = TokenSourceType(fileTokenSourcePrefixConstant)
)

// TokenSource locates an application token.
type TokenSource struct {
	Type      TokenSourceType
	Reference string
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// ParseTokenSource interprets `env:NAME`, `file:/path`, or a bare environment variable name.
func ParseTokenSource(sourceValue string) (TokenSource, error) {
	trimmedValue := strings.TrimSpace(sourceValue)
	if len(trimmedValue) == 0 {
		return TokenSource{}, ErrTokenSourceMissing
	}

	components := strings.SplitN(trimmedValue, tokenSourceSeparatorConstant, 2)
	if len(components) == 1 {
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: trimmedValue}, nil
	}

	sourceType := strings.ToLower(strings.TrimSpace(components[0]))
	reference := strings.TrimSpace(components[1])

	switch TokenSourceType(sourceType) {
	case TokenSourceTypeEnvironment:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(environmentNameMissingMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeEnvironment, Reference: reference}, nil
	case TokenSourceTypeFile:
		if len(reference) == 0 {
			return TokenSource{}, errors.New(filePathMissingMessageConstant)
		}
		return TokenSource{Type: TokenSourceTypeFile, Reference: reference}, nil
	default:
		return TokenSource{}, fmt.Errorf(unsupportedTokenSourceTemplateConstant, sourceType)
	}
}

// TokenResolver reads application tokens from explicit values or token sources.
type TokenResolver struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
}

// NewTokenResolver creates a resolver; nil dependencies fall back to the process environment and filesystem.
func NewTokenResolver(environmentLookup EnvironmentLookup, fileReader FileReader) *TokenResolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	return &TokenResolver{environmentLookup: environmentLookup, fileReader: fileReader}
}

// Resolve returns a Credential. An explicit token wins over the source; failures are
// carried in Credential.SourceError so only the affected identity is blocked.
func (resolver *TokenResolver) Resolve(explicitToken string, sourceValue string) Credential {
	trimmedExplicitToken := strings.TrimSpace(explicitToken)
	if len(trimmedExplicitToken) > 0 {
		return Credential{ApplicationToken: trimmedExplicitToken}
	}

	source, parseError := ParseTokenSource(sourceValue)
	if parseError != nil {
		return Credential{SourceError: parseError}
	}

	token, resolveError := resolver.read(source)
	if resolveError != nil {
		return Credential{SourceError: resolveError}
	}
	return Credential{ApplicationToken: token}
}

func (resolver *TokenResolver) read(source TokenSource) (string, error) {
	switch source.Type {
	case TokenSourceTypeEnvironment:
		value, found := resolver.environmentLookup(source.Reference)
		trimmedValue := strings.TrimSpace(value)
		if !found || len(trimmedValue) == 0 {
			return "", fmt.Errorf(environmentTokenMissingTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	case TokenSourceTypeFile:
		contents, readError := resolver.fileReader(source.Reference)
		if readError != nil {
			return "", fmt.Errorf(fileReadErrorTemplateConstant, source.Reference, readError)
		}
		trimmedValue := strings.TrimSpace(string(contents))
		if len(trimmedValue) == 0 {
			return "", fmt.Errorf(fileTokenEmptyTemplateConstant, source.Reference)
		}
		return trimmedValue, nil
	default:
		return "", fmt.Errorf(unsupportedTokenSourceTemplateConstant, source.Type)
	}
}
