package unittest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ExpectPanic fails the test unless the calling function panics with the
// given message. It must be deferred.
func ExpectPanic(expectedMsg string, t *testing.T) {
	if r := recover(); r != nil {
		var msg string
		switch v := r.(type) {
		case error:
			msg = v.Error()
		case string:
			msg = v
		}
		if msg != expectedMsg {
			t.Errorf("expected panic %q, got %q", expectedMsg, msg)
		}
		return
	}
	t.Errorf("Expected to panic with `%s`, but did not panic", expectedMsg)
}

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "airdrop-testing-temp-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// WriteFile writes content into a file named `name` inside dir and returns its path.
func WriteFile(t testing.TB, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
