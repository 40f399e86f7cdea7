package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlearena/store"
)

func seedAccounts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	st, err := store.OpenFile(path)
	require.NoError(t, err)
	acc := store.NewAccount("alice", "$2a$10$hash", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	acc.Gold = 42
	require.NoError(t, st.Create(context.Background(), acc))
	require.NoError(t, st.Create(context.Background(), store.NewAccount("bob", "$2a$10$other", time.Now())))
	require.NoError(t, st.Close())
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAccountsShowHidesPasswordHash(t *testing.T) {
	path := seedAccounts(t)

	out, err := runRoot(t, "--store", "file", "--accounts-file", path, "accounts", "show", "alice")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "", got["password"])
	assert.EqualValues(t, 42, got["gold"])
	assert.EqualValues(t, 1, got["level"])
}

func TestAccountsShowUnknownUser(t *testing.T) {
	path := seedAccounts(t)

	_, err := runRoot(t, "--store", "file", "--accounts-file", path, "accounts", "show", "nobody")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestAccountsList(t *testing.T) {
	path := seedAccounts(t)

	out, err := runRoot(t, "--store", "file", "--accounts-file", path, "accounts", "list")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "USERNAME")
	assert.Contains(t, string(lines[1]), "alice")
	assert.Contains(t, string(lines[1]), "42")
	assert.NotContains(t, out, "$2a$10$hash")
	assert.Contains(t, string(lines[2]), "bob")
}
