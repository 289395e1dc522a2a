package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverlaysAppEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENT_TEST_A=base\nAGENT_TEST_B=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.ci"), []byte("AGENT_TEST_B=ci\n"), 0o600))

	t.Chdir(dir)
	t.Setenv("APP_ENV", "ci")
	t.Setenv("AGENT_TEST_A", "")
	t.Setenv("AGENT_TEST_B", "")
	os.Unsetenv("AGENT_TEST_A")
	os.Unsetenv("AGENT_TEST_B")

	appEnv, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ci", appEnv)
	assert.Equal(t, "base", os.Getenv("AGENT_TEST_A"))
	assert.Equal(t, "ci", os.Getenv("AGENT_TEST_B"))
}

func TestLoad_NoFiles(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "")

	appEnv, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", appEnv)
}
