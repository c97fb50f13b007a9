//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/pkg/client"
)

// TestRuns_Lifecycle triggers a passing and a failing run and reads them back
func TestRuns_Lifecycle(t *testing.T) {
	c := newClient(testCtx.TestServer, testCtx.APIKey)
	ctx := context.Background()

	var passedID, failedID string

	t.Run("latest version passes", func(t *testing.T) {
		run, err := c.TriggerRun(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "1.3.0", run.Version)
		assert.True(t, run.Passed)
		assert.Equal(t, "api", run.TriggeredBy)
		assert.Len(t, run.Chains, len(testCtx.Overrides))
		for _, chain := range run.Chains {
			assert.Equal(t, "passed", chain.Status, chain.Name)
			for _, ct := range chain.Contracts {
				assert.NotEmpty(t, ct.CodeHash, ct.Name)
			}
		}
		passedID = run.ID
	})

	t.Run("older version fails on overridden contract", func(t *testing.T) {
		run, err := c.TriggerRun(ctx, "1.0.0")
		require.NoError(t, err)
		assert.False(t, run.Passed)
		assert.Equal(t, 2, run.ChainsFailed)
		assert.Equal(t, 2, run.ContractsFailed)

		for _, chain := range run.Chains {
			if chain.ChainID != 11155111 {
				continue
			}
			assert.Equal(t, "failed", chain.Status)
			for _, ct := range chain.Contracts {
				if ct.Name == "HybridDeleGatorImpl" {
					assert.Equal(t, "failed", ct.Status)
					assert.Contains(t, ct.Error, "not deployed")
				} else {
					assert.Equal(t, "passed", ct.Status)
				}
			}
		}
		failedID = run.ID
	})

	t.Run("get run", func(t *testing.T) {
		require.NotEmpty(t, passedID)
		run, err := c.GetRun(ctx, passedID)
		require.NoError(t, err)
		assert.Equal(t, passedID, run.ID)
		assert.NotEmpty(t, run.Chains)
	})

	t.Run("latest run per version", func(t *testing.T) {
		run, err := c.LatestRun(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, failedID, run.ID)

		run, err = c.LatestRun(ctx, "1.3.0")
		require.NoError(t, err)
		assert.Equal(t, passedID, run.ID)
	})

	t.Run("list with filters", func(t *testing.T) {
		failed := false
		resp, err := c.ListRuns(ctx, client.ListRunsOptions{Version: "1.0.0", Passed: &failed})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Data)
		for _, r := range resp.Data {
			assert.Equal(t, "1.0.0", r.Version)
			assert.False(t, r.Passed)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := c.ListRuns(ctx, client.ListRunsOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, first.Data, 1)
		require.True(t, first.Pagination.HasMore)

		second, err := c.ListRuns(ctx, client.ListRunsOptions{Limit: 1, Cursor: first.Pagination.NextCursor})
		require.NoError(t, err)
		require.Len(t, second.Data, 1)
		assert.NotEqual(t, first.Data[0].ID, second.Data[0].ID)
	})
}

// TestRuns_Errors tests run lookups and triggers that cannot succeed
func TestRuns_Errors(t *testing.T) {
	c := newClient(testCtx.TestServer, testCtx.APIKey)
	ctx := context.Background()

	_, err := c.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, client.IsNotFound(err))

	_, err = c.GetRun(ctx, "not-a-uuid")
	assert.True(t, client.IsNotFound(err))

	_, err = c.TriggerRun(ctx, "9.9.9")
	assertHTTPError(t, err, "INVALID_REQUEST")

	_, err = c.ListRuns(ctx, client.ListRunsOptions{Cursor: "garbage"})
	assertHTTPError(t, err, "INVALID_REQUEST")
}
