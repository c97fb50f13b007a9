package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/logging"
)

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	store, err := NewSQLiteStore(dbPath, logging.Discard())
	require.NoError(t, err)
	defer store.Close()

	testRunStore(t, store)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "mysql"}, logging.Discard())
	require.Error(t, err)
}
