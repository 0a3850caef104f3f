// Package testutil gates tests that need external services.
package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv opts into integration tests when set to a non-empty value.
const IntegrationEnv = "PROVIDERDESK_INTEGRATION"

// RequireIntegration skips t in -short mode, and in CI unless
// PROVIDERDESK_INTEGRATION is set. Locally the test runs and is expected to
// skip itself if its container cannot start.
func RequireIntegration(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("CI") != "" && os.Getenv(IntegrationEnv) == "" {
		t.Skipf("skipping integration test in CI (set %s=1 to run)", IntegrationEnv)
	}
}
