package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/logging"
	"github.com/pendergraft/delegation-deployments/internal/storage"
)

var entryPoint = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

// fakeValidator returns a canned report
type fakeValidator struct {
	mu      sync.Mutex
	calls   []string
	passed  bool
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeValidator) Run(ctx context.Context, version string) (*checker.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, version)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if version == "" {
		version = "1.3.0"
	}

	hash := common.HexToHash("0x01")
	contract := checker.ContractResult{
		Name:     "EntryPoint",
		Address:  entryPoint,
		Status:   checker.StatusPassed,
		CodeSize: 100,
		CodeHash: &hash,
	}
	chain := checker.ChainResult{
		ChainID:   1,
		Name:      "Ethereum",
		Status:    checker.StatusPassed,
		Contracts: []checker.ContractResult{contract},
		Duration:  1500 * time.Millisecond,
	}
	if !f.passed {
		chain.Status = checker.StatusFailed
		chain.Contracts[0].Status = checker.StatusFailed
		chain.Contracts[0].Error = "no code at address"
		chain.Contracts[0].Err = checker.ErrMissingCode
		chain.Contracts[0].CodeHash = nil
		chain.Contracts[0].CodeSize = 0
	}

	rep := &checker.Report{
		Version:    version,
		StartedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 12, 0, 2, 0, time.UTC),
		Chains:     []checker.ChainResult{chain},
	}
	rep.Passed = rep.Verdict()
	return rep, nil
}

// mockStore implements RunStore in memory
type mockStore struct {
	mu        sync.Mutex
	runs      []*storage.Run
	recordErr error
	latestHit int
}

func (m *mockStore) RecordRun(ctx context.Context, run *storage.Run) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = storage.GenerateID()
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockStore) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockStore) ListRuns(ctx context.Context, filter storage.RunFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Run], error) {
	if pagination.Cursor == "bad" {
		return nil, storage.ErrInvalidCursor
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Run
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := *m.runs[i]
		if filter.Version != "" && r.Version != filter.Version {
			continue
		}
		if filter.Passed != nil && r.Passed != *filter.Passed {
			continue
		}
		r.Chains = nil
		out = append(out, r)
	}
	return &storage.PaginatedResult[storage.Run]{Data: out}, nil
}

func (m *mockStore) LatestRun(ctx context.Context, version string) (*storage.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestHit++
	for i := len(m.runs) - 1; i >= 0; i-- {
		if version == "" || m.runs[i].Version == version {
			return m.runs[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func TestTrigger(t *testing.T) {
	store := &mockStore{}
	validator := &fakeValidator{passed: true}
	svc := NewService(validator, store, WithLogger(logging.Discard()))

	run, err := svc.Trigger(context.Background(), "", TriggerAPI)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "1.3.0", run.Version)
	assert.True(t, run.Passed)
	assert.Equal(t, TriggerAPI, run.TriggeredBy)
	require.Len(t, run.Chains, 1)
	assert.Equal(t, int64(1500), run.Chains[0].DurationMS)
	require.Len(t, run.Chains[0].Contracts, 1)
	assert.Equal(t, entryPoint.Hex(), run.Chains[0].Contracts[0].Address)
	assert.Equal(t, common.HexToHash("0x01").Hex(), run.Chains[0].Contracts[0].CodeHash)

	require.Len(t, store.runs, 1)
	assert.Equal(t, []string{""}, validator.calls)
}

func TestTriggerFailedRun(t *testing.T) {
	store := &mockStore{}
	svc := NewService(&fakeValidator{passed: false}, store)

	run, err := svc.Trigger(context.Background(), "v1.3.0", TriggerCLI)
	require.NoError(t, err)

	assert.False(t, run.Passed)
	assert.Equal(t, 1, run.ChainsFailed)
	assert.Equal(t, 1, run.ContractsFailed)
	assert.Equal(t, "no code at address", run.Chains[0].Contracts[0].Error)
	assert.Empty(t, run.Chains[0].Contracts[0].CodeHash)
}

func TestTriggerErrors(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		validator *fakeValidator
		store     *mockStore
		wantErr   error
	}{
		{
			name:      "invalid version",
			version:   "1.x",
			validator: &fakeValidator{},
			store:     &mockStore{},
			wantErr:   ErrInvalidVersion,
		},
		{
			name:      "configuration error",
			version:   "9.9.9",
			validator: &fakeValidator{err: fmt.Errorf("%w: version not found", checker.ErrConfiguration)},
			store:     &mockStore{},
			wantErr:   ErrInvalidRequest,
		},
		{
			name:      "store error",
			validator: &fakeValidator{passed: true},
			store:     &mockStore{recordErr: errors.New("disk full")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.validator, tt.store)
			_, err := svc.Trigger(context.Background(), tt.version, TriggerAPI)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTriggerInProgress(t *testing.T) {
	validator := &fakeValidator{passed: true, block: make(chan struct{}), started: make(chan struct{})}
	svc := NewService(validator, &mockStore{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Trigger(context.Background(), "", TriggerAPI)
		done <- err
	}()

	<-validator.started
	_, err := svc.Trigger(context.Background(), "", TriggerAPI)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(validator.block)
	require.NoError(t, <-done)
}

func TestGet(t *testing.T) {
	store := &mockStore{}
	svc := NewService(&fakeValidator{passed: true}, store)

	run, err := svc.Trigger(context.Background(), "", TriggerAPI)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Len(t, got.Chains, 1)

	_, err = svc.Get(context.Background(), storage.GenerateID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store := &mockStore{}
	svc := NewService(&fakeValidator{passed: true}, store)

	_, err := svc.Trigger(context.Background(), "1.1.0", TriggerAPI)
	require.NoError(t, err)
	_, err = svc.Trigger(context.Background(), "1.3.0", TriggerAPI)
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{}, PaginationParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Runs, 2)
	assert.Equal(t, "1.3.0", result.Runs[0].Version)
	assert.Empty(t, result.Runs[0].Chains)

	result, err = svc.List(context.Background(), ListFilter{Version: "v1.1.0"}, PaginationParams{})
	require.NoError(t, err)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "1.1.0", result.Runs[0].Version)

	_, err = svc.List(context.Background(), ListFilter{}, PaginationParams{Cursor: "bad"})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestLatestCache(t *testing.T) {
	store := &mockStore{}
	svc := NewService(&fakeValidator{passed: true}, store, WithCache(time.Minute))
	ctx := context.Background()

	_, err := svc.Latest(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := svc.Trigger(ctx, "", TriggerAPI)
	require.NoError(t, err)

	got, err := svc.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	hits := store.latestHit

	got, err = svc.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, hits, store.latestHit, "second lookup must be served from cache")

	second, err := svc.Trigger(ctx, "", TriggerAPI)
	require.NoError(t, err)

	got, err = svc.Latest(ctx, "1.3.0")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = svc.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "trigger must invalidate the cached latest run")
}

func TestLoggingMiddleware(t *testing.T) {
	svc := LoggingMiddleware(logging.Discard())(NewService(&fakeValidator{passed: true}, &mockStore{}))

	run, err := svc.Trigger(context.Background(), "", TriggerAPI)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	_, err = svc.Latest(context.Background(), "")
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListFilter{}, PaginationParams{})
	require.NoError(t, err)
	assert.Len(t, result.Runs, 1)
}

func TestSchedulerTriggers(t *testing.T) {
	store := &mockStore{}
	validator := &fakeValidator{passed: true}
	sched := NewScheduler(NewService(validator, store), 10*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.runs) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	store.mu.Lock()
	assert.Equal(t, TriggerSchedule, store.runs[0].TriggeredBy)
	store.mu.Unlock()
}

func TestSchedulerDisabled(t *testing.T) {
	sched := NewScheduler(NewService(&fakeValidator{}, &mockStore{}), 0, logging.Discard())
	sched.Start(context.Background())
}
