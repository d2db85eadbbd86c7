package sqlitestore

import (
	"context"
	"fmt"
	"net/url"
	"testing"
)

// setupTestDB creates a named shared in-memory database. Writer and reader
// share it through cache=shared; the name is derived from t.Name() so
// parallel tests stay isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// WAL mode does not apply to in-memory databases.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)
	db, err := open(dsn, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// setupStore returns an unlocked store over a fresh database.
func setupStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := New(setupTestDB(t), opts)
	if err := s.Unlock(context.Background(), []byte("correct horse")); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	return s
}
