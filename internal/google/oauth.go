package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/timeslotseeker/internal/logging"
)

// DefaultAccount is the account name used when none is given.
const DefaultAccount = "default"

// Environment variables read by GetOAuthConfig and TokenDir.
const (
	EnvCredentialsFile = "GOOGLE_CREDENTIALS_FILE"
	EnvClientID        = "GOOGLE_CLIENT_ID"
	EnvClientSecret    = "GOOGLE_CLIENT_SECRET"
	EnvRedirectURL     = "GOOGLE_REDIRECT_URL"
	EnvTokenDir        = "TIMESLOT_TOKEN_DIR"
)

// ErrNoCredentials is returned when no OAuth client is configured.
var ErrNoCredentials = errors.New("no Google OAuth client configured")

// ErrNoToken is returned when an account has no stored token.
var ErrNoToken = errors.New("no Google OAuth token stored")

var accountNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName restricts account names to characters that are safe in
// a file name.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if !accountNameRe.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphens and underscores are allowed", account)
	}
	return nil
}

// GetOAuthConfig returns the OAuth2 client configuration.
//
// A client secrets file named by GOOGLE_CREDENTIALS_FILE (the credentials.json
// downloaded from the Google Cloud console) takes precedence; otherwise
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are used.
func GetOAuthConfig() (*oauth2.Config, error) {
	if path := os.Getenv(EnvCredentialsFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		conf, err := google.ConfigFromJSON(data, CalendarScopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		if redirect := os.Getenv(EnvRedirectURL); redirect != "" {
			conf.RedirectURL = redirect
		}
		return conf, nil
	}

	clientID := os.Getenv(EnvClientID)
	clientSecret := os.Getenv(EnvClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: set %s or both %s and %s", ErrNoCredentials, EnvCredentialsFile, EnvClientID, EnvClientSecret)
	}

	redirect := os.Getenv(EnvRedirectURL)
	if redirect == "" {
		redirect = "http://localhost"
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       CalendarScopes,
	}, nil
}

// TokenDir returns the directory holding stored tokens: TIMESLOT_TOKEN_DIR
// when set, otherwise <user cache dir>/timeslotseeker.
func TokenDir() string {
	if dir := os.Getenv(EnvTokenDir); dir != "" {
		return dir
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = os.TempDir()
	}
	return filepath.Join(cache, "timeslotseeker")
}

func getTokenFilePath(account string) string {
	return filepath.Join(TokenDir(), "google-"+account+".token")
}

// HasTokenForAccount reports whether a token file exists for account.
func HasTokenForAccount(account string) bool {
	if validateAccountName(account) != nil {
		return false
	}
	_, err := os.Stat(getTokenFilePath(account))
	return err == nil
}

// HasToken reports whether a token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount(DefaultAccount)
}

// GetAuthURL returns the consent URL for account. Offline access is requested
// so a refresh token is issued.
func GetAuthURL(account string) (string, error) {
	if err := validateAccountName(account); err != nil {
		return "", err
	}
	conf, err := GetOAuthConfig()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(account, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// SaveTokenForAccount exchanges an authorization code and stores the token.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}
	conf, err := GetOAuthConfig()
	if err != nil {
		return err
	}

	tok, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if err := writeToken(account, tok); err != nil {
		return err
	}

	slog.Info("stored Google OAuth token", logging.Operation("google.save_token"), slog.String("account", account))
	return nil
}

func writeToken(account string, tok *oauth2.Token) error {
	path := getTokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func readToken(account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for account %s", ErrNoToken, account)
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file for account %s: %w", account, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("invalid token file for account %s: no access or refresh token", account)
	}
	return &tok, nil
}

// persistingTokenSource writes refreshed tokens back to the account's file.
type persistingTokenSource struct {
	account string
	base    oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if err := writeToken(p.account, tok); err != nil {
			slog.Warn("failed to persist refreshed token",
				slog.String("account", p.account),
				logging.Err(err))
		}
	}
	return tok, nil
}

// GetTokenSourceForAccount returns a token source for the stored token of
// account. Refreshed tokens are written back to disk.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	tok, err := readToken(account)
	if err != nil {
		return nil, err
	}
	conf, err := GetOAuthConfig()
	if err != nil {
		return nil, err
	}

	return oauth2.ReuseTokenSource(tok, &persistingTokenSource{
		account: account,
		base:    conf.TokenSource(ctx, tok),
		last:    tok.AccessToken,
	}), nil
}

// GetAuthenticationErrorMessage explains how to authorize account.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("Google OAuth token for account %q is missing or invalid. "+
		"Run 'timeslotseeker auth --account %s' to complete the OAuth flow.", account, account)
}
