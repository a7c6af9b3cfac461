package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netguard/internal/auth"
)

func userConfig(t *testing.T) (cfgPath, usersPath string) {
	t.Helper()
	dir := t.TempDir()
	usersPath = filepath.Join(dir, "users.json")
	cfgPath = writeConfig(t, `
state_dir  = "`+dir+`"
users_file = "users.json"
`)
	return cfgPath, usersPath
}

func TestRunUser_Lifecycle(t *testing.T) {
	cfgPath, usersPath := userConfig(t)
	var out bytes.Buffer

	require.NoError(t, runUser([]string{"add", "-c", cfgPath, "alice"}, strings.NewReader("s3cret-pass\n"), &out))
	require.NoError(t, runUser([]string{"add", "-c", cfgPath, "-password", "another-pass", "bob"}, nil, &out))

	store, err := auth.NewStore(usersPath)
	require.NoError(t, err)
	assert.NoError(t, store.Authenticate("alice", "s3cret-pass"))
	assert.NoError(t, store.Authenticate("bob", "another-pass"))

	out.Reset()
	require.NoError(t, runUser([]string{"list", "-c", cfgPath}, nil, &out))
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "bob")

	require.NoError(t, runUser([]string{"passwd", "-c", cfgPath, "alice"}, strings.NewReader("changed-pass\n"), &out))
	require.NoError(t, runUser([]string{"del", "-c", cfgPath, "bob"}, nil, &out))

	require.NoError(t, store.Reload())
	assert.NoError(t, store.Authenticate("alice", "changed-pass"))
	assert.Error(t, store.Authenticate("bob", "another-pass"))
}

func TestRunUser_Errors(t *testing.T) {
	cfgPath, _ := userConfig(t)
	var out bytes.Buffer

	assert.Error(t, runUser(nil, nil, &out))
	assert.Error(t, runUser([]string{"frobnicate", "-c", cfgPath}, nil, &out))
	assert.Error(t, runUser([]string{"add", "-c", cfgPath}, nil, &out), "missing name")
	assert.Error(t, runUser([]string{"add", "-c", cfgPath, "carol"}, strings.NewReader("\n"), &out), "empty password")

	require.NoError(t, runUser([]string{"add", "-c", cfgPath, "-password", "long-enough", "carol"}, nil, &out))
	err := runUser([]string{"add", "-c", cfgPath, "-password", "long-enough", "carol"}, nil, &out)
	assert.ErrorIs(t, err, auth.ErrUserExists)

	err = runUser([]string{"del", "-c", cfgPath, "nobody"}, nil, &out)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
