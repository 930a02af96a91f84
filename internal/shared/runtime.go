package shared

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv switches the process into test mode when set to "1" or "true":
// binaries exit before touching Redis or Postgres and password hashing uses
// the cheapest bcrypt cost.
const TestModeEnv = "GLOWDESK_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether test mode is on. The environment is read once.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(TestModeEnv))) {
	case "1", "true":
		testMode.Store(true)
	default:
		testMode.Store(false)
	}
}
