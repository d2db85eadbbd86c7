package credential

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/benaskins/credvault/internal/keychain"
)

func TestSecretRoundTrip(t *testing.T) {
	store := keychain.NewMemoryStore()
	ctx := context.Background()
	id := ServiceIdentity{Service: "svc", Account: "alice"}

	s, err := CreateAndStoreService(ctx, store, id, &Options{Password: "s1"})
	if err != nil {
		t.Fatalf("CreateAndStoreService: %v", err)
	}

	s.SetPassword("s2")
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	fresh, _, _ := LookupService(ctx, store, id, "")
	pw, err := fresh.Password(ctx)
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if pw != "s2" {
		t.Errorf("expected s2, got %q", pw)
	}
}

func TestSecretFormsAgree(t *testing.T) {
	ctx := context.Background()
	s, _ := NewService(keychain.NewMemoryStore(), ServiceIdentity{Service: "svc", Account: "bob"}, nil)

	s.SetPassword("héllo")
	data, err := s.PasswordData(ctx)
	if err != nil {
		t.Fatalf("PasswordData: %v", err)
	}
	if !bytes.Equal(data, []byte("héllo")) {
		t.Errorf("expected UTF-8 bytes, got %x", data)
	}

	s.SetPasswordData([]byte("bytes"))
	pw, err := s.Password(ctx)
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	if pw != "bytes" {
		t.Errorf("expected 'bytes', got %q", pw)
	}
}

func TestPasswordRejectsInvalidUTF8(t *testing.T) {
	store := keychain.NewMemoryStore()
	ctx := context.Background()
	id := ServiceIdentity{Service: "svc", Account: "carol"}
	raw := []byte{0xff, 0xfe, 0x00}

	if _, err := CreateAndStoreService(ctx, store, id, &Options{PasswordData: raw}); err != nil {
		t.Fatalf("CreateAndStoreService: %v", err)
	}
	s, _, _ := LookupService(ctx, store, id, "")

	_, err := s.Password(ctx)
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected invalid field, got %v", err)
	}

	data, err := s.PasswordData(ctx)
	if err != nil {
		t.Fatalf("PasswordData: %v", err)
	}
	if !bytes.Equal(data, raw) {
		t.Errorf("expected raw bytes %x, got %x", raw, data)
	}
}

func TestPasswordDataIsCopied(t *testing.T) {
	ctx := context.Background()
	s, _ := NewService(keychain.NewMemoryStore(), ServiceIdentity{Service: "svc", Account: "dave"}, nil)

	in := []byte("secret")
	s.SetPasswordData(in)
	in[0] = 'X'

	out, _ := s.PasswordData(ctx)
	out[1] = 'Y'

	again, _ := s.PasswordData(ctx)
	if string(again) != "secret" {
		t.Errorf("expected internal copy untouched, got %q", again)
	}
}

func TestEmptyPasswordIsStaged(t *testing.T) {
	store := keychain.NewMemoryStore()
	ctx := context.Background()
	id := ServiceIdentity{Service: "svc", Account: "erin"}

	s, _ := CreateAndStoreService(ctx, store, id, &Options{Password: "pw"})
	s.SetPassword("")
	if !s.HasUncommittedChanges() {
		t.Fatal("expected empty password to be a staged change")
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	fresh, _, _ := LookupService(ctx, store, id, "")
	pw, _ := fresh.Password(ctx)
	if pw != "" {
		t.Errorf("expected empty password, got %q", pw)
	}
}

func TestPasswordReadIsLazy(t *testing.T) {
	counting, mem := newCountingStore()
	ctx := context.Background()
	id := ServiceIdentity{Service: "svc", Account: "frank"}

	CreateAndStoreService(ctx, mem, id, &Options{Password: "pw"})
	s, _, _ := LookupService(ctx, counting, id, "")
	before := counting.calls.Load()

	s.Password(ctx)
	s.Password(ctx)
	s.PasswordData(ctx)
	if got := counting.calls.Load() - before; got != 1 {
		t.Errorf("expected one secret fetch, got %d", got)
	}
}

func TestOptionsValidation(t *testing.T) {
	store := keychain.NewMemoryStore()
	id := ServiceIdentity{Service: "svc", Account: "grace"}

	if _, err := NewService(store, id, &Options{Password: "a", PasswordData: []byte("b")}); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected invalid field for disagreeing forms, got %v", err)
	}
	if _, err := NewService(store, id, &Options{Password: "a", PasswordData: []byte("a")}); err != nil {
		t.Errorf("expected matching forms to be accepted, got %v", err)
	}
	if _, err := NewService(store, id, &Options{Accessible: keychain.Accessibility(99)}); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected invalid field for unknown accessibility, got %v", err)
	}

	s, _ := NewService(store, id, nil)
	if err := s.SetAccessible(keychain.Accessibility(-1)); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected invalid field from SetAccessible, got %v", err)
	}
	if s.Accessible() != keychain.AccessibleDefault {
		t.Error("expected rejected policy not to be staged")
	}
}
