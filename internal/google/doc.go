// Package google provides OAuth2 configuration and token storage for the
// Google Calendar free/busy lookup.
//
// The OAuth client comes from a credentials.json file or from environment
// variables; tokens are stored per account as JSON files under TokenDir. The
// TokenProvider interface lets tests and other callers substitute their own
// token source.
package google
