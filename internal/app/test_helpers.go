package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/traitgraph/internal/hcl_adapter"
	"github.com/specialistvlad/traitgraph/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. The app logs
// at debug level into the returned buffer and is closed with the test.
func SetupAppTest(t *testing.T, cfg Config) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	testApp := NewApp(logBuffer, &cfg, hcl_adapter.NewConverter())

	t.Cleanup(func() {
		if err := testApp.Close(); err != nil {
			t.Errorf("closing app: %v", err)
		}
		if os.Getenv("TRAITGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
