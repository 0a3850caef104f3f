package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimburion/providerdesk/pkg/dashboard"
	"github.com/nimburion/providerdesk/pkg/mutation"
	"github.com/nimburion/providerdesk/pkg/sandbox"
)

const testToken = "cli-secret"

func newSandbox(t *testing.T) string {
	t.Helper()
	store, err := sandbox.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv, err := sandbox.NewServer(store, sandbox.DashboardResources(), sandbox.Config{Token: testToken}, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes one command line against baseURL. The env prefix is unique
// so the caller's environment never leaks into the test.
func run(t *testing.T, baseURL string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(Options{EnvPrefix: "PROVIDERDESK_CLI_TEST", Stdout: &stdout, Stderr: &stderr})
	if baseURL != "" {
		args = append(args, "--api-url", baseURL, "--token", testToken, "--log-level", "error")
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestEntitiesCommand(t *testing.T) {
	res := run(t, "", "entities")
	require.NoError(t, res.err)
	for _, name := range []string{"accommodations", "bookings", "categories", "events", "products", "rooms", "stores", "subcategories"} {
		require.Contains(t, res.stdout, name)
	}
}

func TestRecordLifecycle(t *testing.T) {
	url := newSandbox(t)

	res := run(t, url, "create", "accommodations", "-f", "name=Lake House", "-f", "category_id=4", "-f", "price=120")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "Accommodation created.")

	res = run(t, url, "list", "accommodations")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "Lake House")
	require.Contains(t, res.stdout, "1 results")

	res = run(t, url, "list", "accommodations", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	var listed struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &listed))
	require.Len(t, listed.Data, 1)
	id := listed.Data[0].ID
	require.NotEmpty(t, id)

	res = run(t, url, "update", "accommodations", id, "-f", "name=Lake Lodge", "-f", "category_id=4", "-f", "price=150")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "updated.")

	res = run(t, url, "list", "accommodations", "--search", "lodge")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "Lake Lodge")

	res = run(t, url, "delete", "accommodations", id)
	require.Error(t, res.err)
	require.ErrorIs(t, res.err, mutation.ErrConfirmationRequired)
	require.Contains(t, res.err.Error(), "cannot be undone")

	res = run(t, url, "delete", "accommodations", id, "--yes")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "deleted.")

	res = run(t, url, "list", "accommodations")
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "No accommodations match the current filters.")
}

func TestList_CheckImagesFallsBackAfterRetries(t *testing.T) {
	url := newSandbox(t)
	thumb := filepath.Join(t.TempDir(), "lake.png")
	require.NoError(t, os.WriteFile(thumb, []byte("\x89PNG fake image"), 0o600))

	res := run(t, url, "create", "accommodations", "-f", "name=Lake House", "-f", "category_id=4", "-f", "price=120", "--file", "thumbnail="+thumb)
	require.NoError(t, res.err, res.stderr)

	res = run(t, url, "list", "accommodations", "--check-images", "--media-url", url)
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, url+"/media/")
	require.NotContains(t, res.stdout, dashboard.PlaceholderImage)

	var heads atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)

	res = run(t, url, "list", "accommodations", "--check-images", "--media-url", broken.URL)
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, dashboard.PlaceholderImage)
	require.NotContains(t, res.stdout, broken.URL)
	// One initial load plus the default single retry.
	require.Equal(t, int32(2), heads.Load())

	res = run(t, url, "list", "accommodations", "--images", "--media-url", broken.URL)
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, broken.URL+"/media/")
}

func TestCreate_ValidationErrorsListFields(t *testing.T) {
	url := newSandbox(t)

	res := run(t, url, "create", "accommodations", "-f", "name=Lake House")
	require.Error(t, res.err)
	var verr *mutation.ValidationError
	require.True(t, errors.As(res.err, &verr))
	require.Contains(t, res.err.Error(), "Please fix the highlighted fields.")
	require.Contains(t, res.stderr, "price:")
}

func TestList_WrongTokenIsReported(t *testing.T) {
	url := newSandbox(t)

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(Options{EnvPrefix: "PROVIDERDESK_CLI_TEST", Stdout: &stdout, Stderr: &stderr})
	root.SetArgs([]string{"list", "rooms", "--api-url", url, "--token", "wrong", "--log-level", "error"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Could not load rooms.")
}

func TestList_RejectsMalformedFilter(t *testing.T) {
	res := run(t, "", "list", "rooms", "--filter", "status")
	require.Error(t, res.err)
	require.Contains(t, res.err.Error(), "--filter expects name=value")
}

func TestUnknownEntity(t *testing.T) {
	res := run(t, "", "list", "villas")
	require.Error(t, res.err)
	require.Contains(t, res.err.Error(), `unknown entity "villas"`)
}

func TestConfigShow_MasksToken(t *testing.T) {
	res := run(t, "", "config", "show", "--token", "super-secret", "--scope", "partner")
	require.NoError(t, res.err)
	require.NotContains(t, res.stdout, "super-secret")
	require.Contains(t, res.stdout, "***")
	require.Contains(t, res.stdout, "scope: partner")
	require.Contains(t, res.stdout, "base_url:")
}

func TestConfigValidate_RejectsBadURL(t *testing.T) {
	res := run(t, "", "config", "validate", "--api-url", "not a url")
	require.Error(t, res.err)
	require.Contains(t, res.err.Error(), "config validation failed")
}

func TestVersionCommand(t *testing.T) {
	res := run(t, "", "version", "--json")
	require.NoError(t, res.err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	require.Equal(t, "providerdesk", info["name"])

	res = run(t, "", "version")
	require.NoError(t, res.err)
	require.True(t, strings.HasPrefix(res.stdout, "Name:"))
}

func TestSandboxMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sandbox.db")

	res := run(t, "", "sandbox", "migrate", "status", "--db", db)
	require.NoError(t, res.err, res.stderr)
	require.Equal(t, 2, strings.Count(res.stdout, "pending"), res.stdout)

	res = run(t, "", "sandbox", "migrate", "up", "--db", db)
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "records")
	require.Equal(t, 2, strings.Count(res.stdout, "applied"), res.stdout)

	res = run(t, "", "sandbox", "migrate", "down", "1", "--db", db)
	require.NoError(t, res.err, res.stderr)
	require.Contains(t, res.stdout, "media")
	require.Equal(t, 1, strings.Count(res.stdout, "pending"), res.stdout)

	res = run(t, "", "sandbox", "migrate", "sideways", "--db", db)
	require.Error(t, res.err)
}

func TestConfigSchema(t *testing.T) {
	res := run(t, "", "config", "schema")
	require.NoError(t, res.err)
	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &schema))
	for _, section := range []string{"api", "cache", "sandbox", "locale"} {
		require.Contains(t, schema.Properties, section)
	}
}
