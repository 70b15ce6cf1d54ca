package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider supplies OAuth token sources for Google API clients.
type TokenProvider interface {
	// TokenSourceForAccount returns a token source for account.
	TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error)

	// HasTokenForAccount reports whether a token exists for account.
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens stored on disk by SaveTokenForAccount.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a new file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// TokenSourceForAccount reads the token file of account.
func (p *FileTokenProvider) TokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", GetAuthenticationErrorMessage(account), err)
	}
	return ts, nil
}

// HasTokenForAccount checks if a token file exists for account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// StaticTokenProvider serves one fixed token for every account.
type StaticTokenProvider struct {
	Token *oauth2.Token
}

// TokenSourceForAccount returns a source that always yields the fixed token.
func (p StaticTokenProvider) TokenSourceForAccount(_ context.Context, _ string) (oauth2.TokenSource, error) {
	if p.Token == nil {
		return nil, ErrNoToken
	}
	return oauth2.StaticTokenSource(p.Token), nil
}

// HasTokenForAccount reports whether a token is set.
func (p StaticTokenProvider) HasTokenForAccount(string) bool {
	return p.Token != nil
}
