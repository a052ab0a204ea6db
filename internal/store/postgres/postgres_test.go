package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/supahealth/supahealth/internal/store"
	"github.com/supahealth/supahealth/internal/store/storetest"
)

// Runs the shared compliance suite against a real Postgres when
// SUPAHEALTH_TEST_POSTGRES_DSN points at one. Skipped otherwise.
func TestPostgresStoreCompliance(t *testing.T) {
	dsn := os.Getenv("SUPAHEALTH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SUPAHEALTH_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(context.Background(), dsn)
		if err != nil {
			t.Fatalf("open postgres store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
