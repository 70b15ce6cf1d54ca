package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/timeslotseeker/internal/google"
)

func isolateGoogleEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(google.EnvTokenDir, dir)
	t.Setenv(google.EnvCredentialsFile, "")
	t.Setenv(google.EnvClientID, "")
	t.Setenv(google.EnvClientSecret, "")
	return dir
}

func TestRunAuth_NoCredentials(t *testing.T) {
	isolateGoogleEnv(t)

	var out bytes.Buffer
	err := runAuth(context.Background(), strings.NewReader("code\n"), &out, google.DefaultAccount, false)
	require.ErrorIs(t, err, google.ErrNoCredentials)
}

func TestRunAuth_TokenAlreadyStored(t *testing.T) {
	dir := isolateGoogleEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "google-work.token"), []byte(`{"access_token":"x"}`), 0o600))

	var out bytes.Buffer
	err := runAuth(context.Background(), strings.NewReader(""), &out, "work", false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "already stored")
}

func TestRunAuth_EmptyCode(t *testing.T) {
	isolateGoogleEnv(t)
	t.Setenv(google.EnvClientID, "client-id")
	t.Setenv(google.EnvClientSecret, "client-secret")

	var out bytes.Buffer
	err := runAuth(context.Background(), strings.NewReader("\n"), &out, google.DefaultAccount, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no authorization code entered")
	assert.Contains(t, out.String(), "https://accounts.google.com/")
}

func TestRunAuth_InvalidAccount(t *testing.T) {
	isolateGoogleEnv(t)
	t.Setenv(google.EnvClientID, "client-id")
	t.Setenv(google.EnvClientSecret, "client-secret")

	var out bytes.Buffer
	err := runAuth(context.Background(), strings.NewReader("code\n"), &out, "../evil", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account name")
}
