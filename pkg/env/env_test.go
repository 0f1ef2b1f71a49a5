package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetString(t *testing.T) {
	t.Setenv("SIGNALING_TEST_STRING", "value")

	assert.Equal(t, "value", GetString("SIGNALING_TEST_STRING", "default"))
	assert.Equal(t, "default", GetString("SIGNALING_TEST_UNSET", "default"))
}

func TestGetStringFromFile(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secret, []byte("from-file\n"), 0o600))

	t.Setenv("SIGNALING_TEST_SECRET", "from-env")
	assert.Equal(t, "from-env", GetStringFromFile("SIGNALING_TEST_SECRET", ""))

	t.Setenv("SIGNALING_TEST_SECRET_FILE", secret)
	assert.Equal(t, "from-file", GetStringFromFile("SIGNALING_TEST_SECRET", ""))
}

func TestGetStringFromFile_MissingFileFallsBack(t *testing.T) {
	t.Setenv("SIGNALING_TEST_SECRET", "from-env")
	t.Setenv("SIGNALING_TEST_SECRET_FILE", filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, "from-env", GetStringFromFile("SIGNALING_TEST_SECRET", ""))
}

func TestGetInt(t *testing.T) {
	t.Setenv("SIGNALING_TEST_INT", "42")
	t.Setenv("SIGNALING_TEST_BAD_INT", "forty-two")

	assert.Equal(t, 42, GetInt("SIGNALING_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("SIGNALING_TEST_BAD_INT", 1))
	assert.Equal(t, 1, GetInt("SIGNALING_TEST_UNSET", 1))
}

func TestGetDuration(t *testing.T) {
	t.Setenv("SIGNALING_TEST_DURATION", "90s")

	assert.Equal(t, 90*time.Second, GetDuration("SIGNALING_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetDuration("SIGNALING_TEST_UNSET", time.Second))
}

func TestGetSlice(t *testing.T) {
	t.Setenv("SIGNALING_TEST_SLICE", "http://a.test, ,http://b.test")

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, GetSlice("SIGNALING_TEST_SLICE", nil))
	assert.Equal(t, []string{"x"}, GetSlice("SIGNALING_TEST_UNSET", []string{"x"}))
}
