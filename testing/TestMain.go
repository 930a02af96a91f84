// Package testing is blank-imported by tests that build services or the
// router, so they run in test mode with a CSRF secret present.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/glowdesk/glowdesk/internal/shared"
)

func init() {
	setEnv()
}

func setEnv() {
	if os.Getenv(shared.TestModeEnv) == "" {
		_ = os.Setenv(shared.TestModeEnv, "1")
	}
	if os.Getenv("CSRF_SECRET") == "" {
		_ = os.Setenv("CSRF_SECRET", "test-csrf-secret")
	}
	shared.RefreshTestMode()
}

// TestMain is for packages that delegate their own TestMain here.
func TestMain(m *stdtesting.M) {
	setEnv()
	os.Exit(m.Run())
}
