//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/pkg/client"
)

// TestAuth_UnauthenticatedRead tests that read endpoints work without authentication
func TestAuth_UnauthenticatedRead(t *testing.T) {
	c := newClient(testCtx.TestServer, "")
	ctx := context.Background()

	_, err := c.Versions(ctx)
	require.NoError(t, err)

	_, err = c.ListRuns(ctx, client.ListRunsOptions{})
	require.NoError(t, err)
}

// TestAuth_UnauthenticatedWriteRejected tests that triggering runs requires a key
func TestAuth_UnauthenticatedWriteRejected(t *testing.T) {
	ctx := context.Background()

	_, err := newClient(testCtx.TestServer, "").TriggerRun(ctx, "")
	assertHTTPError(t, err, "UNAUTHORIZED")

	_, err = newClient(testCtx.TestServer, "dd_key_wrong").TriggerRun(ctx, "")
	assertHTTPError(t, err, "UNAUTHORIZED")
}

// TestAuth_WhoAmI tests key validation used by the CLI login
func TestAuth_WhoAmI(t *testing.T) {
	ctx := context.Background()

	id, err := newClient(testCtx.TestServer, testCtx.APIKey).WhoAmI(ctx)
	require.NoError(t, err)
	assert.True(t, id.AuthRequired)
	assert.Len(t, id.KeyID, 12)

	_, err = newClient(testCtx.TestServer, "dd_key_wrong").WhoAmI(ctx)
	assert.True(t, client.IsUnauthorized(err))
}
