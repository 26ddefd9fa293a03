package sqlite

import (
	"testing"
	"time"

	"github.com/dukerupert/smartcart/internal/store"
	"github.com/dukerupert/smartcart/internal/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) store.Store {
		s, err := Open(":memory:", WithClock(now))
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		return s
	})
}

func TestStoreFileDatabase(t *testing.T) {
	path := t.TempDir() + "/smartcart.db"
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	u, err := s.CreateUser(t.Context(), "Alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	s.Close()

	// Reopening runs migrations again and must keep existing rows.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetUserByID(t.Context(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got == nil || got.Email != "alice@example.com" {
		t.Errorf("GetUserByID = %+v", got)
	}
}
