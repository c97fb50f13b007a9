package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(version string, passed bool, started time.Time) *Run {
	run := &Run{
		Version:     version,
		Passed:      passed,
		TriggeredBy: "cli",
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		Chains: []ChainRun{
			{
				ChainID:    1,
				Name:       "Ethereum",
				RPCURL:     "https://eth.merkle.io",
				Status:     "passed",
				DurationMS: 1200,
				Contracts: []ContractRun{
					{Name: "EntryPoint", Address: "0x0000000071727De22E5E9d8BAf0edAc6f37da032", Status: "passed", CodeSize: 16035, CodeHash: "0xabc"},
					{Name: "SimpleFactory", Address: "0x69Aa2f9fe1572F1B640E1bbc512f5c3a734fc77c", Status: "passed", CodeSize: 1200, CodeHash: "0xdef"},
				},
			},
			{
				ChainID:    11155111,
				Name:       "Sepolia",
				Status:     "failed",
				Error:      "chain id mismatch: expected 11155111, got 5",
				DurationMS: 300,
				Contracts: []ContractRun{
					{Name: "EntryPoint", Address: "0x0000000071727De22E5E9d8BAf0edAc6f37da032", Status: "skipped"},
				},
			},
		},
	}
	if !passed {
		run.ChainsFailed = 1
	}
	return run
}

// testRunStore exercises a Store implementation; shared by the SQLite test and
// the Postgres integration test.
func testRunStore(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations must be idempotent")
	require.NoError(t, store.Ping(ctx))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := sampleRun("1.3.0", false, base)
	require.NoError(t, store.RecordRun(ctx, first))
	require.NotEmpty(t, first.ID)

	t.Run("GetRun", func(t *testing.T) {
		got, err := store.GetRun(ctx, first.ID)
		require.NoError(t, err)

		assert.Equal(t, "1.3.0", got.Version)
		assert.False(t, got.Passed)
		assert.Equal(t, "cli", got.TriggeredBy)
		assert.Equal(t, 1, got.ChainsFailed)
		assert.True(t, base.Equal(got.StartedAt))
		assert.True(t, base.Add(3*time.Second).Equal(got.FinishedAt))

		require.Len(t, got.Chains, 2)
		assert.Equal(t, uint64(1), got.Chains[0].ChainID)
		assert.Equal(t, "https://eth.merkle.io", got.Chains[0].RPCURL)
		require.Len(t, got.Chains[0].Contracts, 2)
		assert.Equal(t, "EntryPoint", got.Chains[0].Contracts[0].Name)
		assert.Equal(t, 16035, got.Chains[0].Contracts[0].CodeSize)
		assert.Equal(t, "0xabc", got.Chains[0].Contracts[0].CodeHash)

		assert.Equal(t, uint64(11155111), got.Chains[1].ChainID)
		assert.Contains(t, got.Chains[1].Error, "mismatch")
		assert.Equal(t, "skipped", got.Chains[1].Contracts[0].Status)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		_, err := store.GetRun(ctx, GenerateID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateRun", func(t *testing.T) {
		dup := sampleRun("1.3.0", true, base)
		dup.ID = first.ID
		assert.ErrorIs(t, store.RecordRun(ctx, dup), ErrRunExists)
	})

	second := sampleRun("1.3.0", true, base.Add(time.Hour))
	require.NoError(t, store.RecordRun(ctx, second))
	third := sampleRun("1.1.0", true, base.Add(2*time.Hour))
	require.NoError(t, store.RecordRun(ctx, third))

	t.Run("LatestRun", func(t *testing.T) {
		latest, err := store.LatestRun(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, third.ID, latest.ID)
		assert.Len(t, latest.Chains, 2)

		latest, err = store.LatestRun(ctx, "1.3.0")
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		_, err = store.LatestRun(ctx, "0.1.0")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		page, err := store.ListRuns(ctx, RunFilter{}, PaginationParams{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		assert.True(t, page.HasMore)
		assert.Equal(t, third.ID, page.Data[0].ID)
		assert.Equal(t, second.ID, page.Data[1].ID)
		assert.Empty(t, page.Data[0].Chains)

		next, err := store.ListRuns(ctx, RunFilter{}, PaginationParams{Limit: 2, Cursor: page.NextCursor})
		require.NoError(t, err)
		require.Len(t, next.Data, 1)
		assert.False(t, next.HasMore)
		assert.Equal(t, first.ID, next.Data[0].ID)
	})

	t.Run("ListRunsFiltered", func(t *testing.T) {
		passed := true
		page, err := store.ListRuns(ctx, RunFilter{Version: "1.3.0", Passed: &passed}, PaginationParams{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, second.ID, page.Data[0].ID)

		_, err = store.ListRuns(ctx, RunFilter{}, PaginationParams{Cursor: "abc"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}
