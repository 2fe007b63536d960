// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/model"
	"github.com/ppiankov/adveritas/internal/store"
)

// New returns a migrated store backed by a private in-memory SQLite database
func New(tb testing.TB) *store.Store {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := store.Open(model.DatabaseConfig{Driver: "sqlite", DSN: dsn}, logger.Nop())
	if err != nil {
		tb.Fatalf("failed to open test store: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	return s
}
