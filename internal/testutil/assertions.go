package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that a log line at level contains every fragment.
// level is the slog text level, e.g. "WARN".
func AssertLogged(t *testing.T, logs *SafeBuffer, level string, fragments ...string) {
	t.Helper()
	for _, line := range strings.Split(logs.String(), "\n") {
		if !strings.Contains(line, "level="+level) {
			continue
		}
		if containsAll(line, fragments) {
			return
		}
	}
	require.Failf(t, "log line not found", "no %s line contains %q in:\n%s", level, fragments, logs.String())
}

// AssertNotLogged checks that no line at level contains every fragment.
func AssertNotLogged(t *testing.T, logs *SafeBuffer, level string, fragments ...string) {
	t.Helper()
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "level="+level) && containsAll(line, fragments) {
			require.Failf(t, "unexpected log line", "%s", line)
		}
	}
}

func containsAll(line string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(line, f) {
			return false
		}
	}
	return true
}
