package auth_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"quiz-desk/internal/auth"
	"quiz-desk/internal/domain"
	"quiz-desk/internal/infra/memory"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	manager := auth.NewManager(memory.NewCredentialStore(), nil)

	if err := manager.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := manager.Authenticate(ctx, "alice", "secret1")
	if err != nil || !ok {
		t.Fatalf("expected valid login, got ok=%v err=%v", ok, err)
	}
	ok, err = manager.Authenticate(ctx, "alice", "secret2")
	if err != nil || ok {
		t.Fatalf("expected wrong password to fail, got ok=%v err=%v", ok, err)
	}
	ok, err = manager.Authenticate(ctx, "bob", "secret1")
	if err != nil || ok {
		t.Fatalf("expected unknown user to fail, got ok=%v err=%v", ok, err)
	}

	if err := manager.Login(ctx, "alice", "nope123"); !errors.Is(err, domain.ErrAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestRegisterSaltsEachCredential(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialStore()
	manager := auth.NewManager(store, nil)

	if err := manager.Register(ctx, "alice", "same1pass"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := manager.Register(ctx, "bob", "same1pass"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	a, _ := store.GetCredential(ctx, "alice")
	b, _ := store.GetCredential(ctx, "bob")
	if len(a.Salt) != auth.SaltSize || len(a.Key) != auth.KeySize {
		t.Fatalf("unexpected salt/key sizes %d/%d", len(a.Salt), len(a.Key))
	}
	if bytes.Equal(a.Salt, b.Salt) || bytes.Equal(a.Key, b.Key) {
		t.Fatalf("expected distinct salts and keys for the same password")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	manager := auth.NewManager(memory.NewCredentialStore(), nil)

	if err := manager.Register(ctx, "alice", "abc123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := manager.Register(ctx, " alice ", "xyz789"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}

	for _, pw := range []string{"ab1", "abcdefg", "1234567"} {
		err := manager.Register(ctx, "carol", pw)
		if !errors.Is(err, domain.ErrWeakPassword) || !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("password %q: expected weak password, got %v", pw, err)
		}
	}
	if err := manager.Register(ctx, "  ", "abc123"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank username, got %v", err)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, auth.SaltSize)
	if !bytes.Equal(auth.DeriveKey("pw1abc", salt), auth.DeriveKey("pw1abc", salt)) {
		t.Fatalf("expected same key for same salt")
	}
	if bytes.Equal(auth.DeriveKey("pw1abc", salt), auth.DeriveKey("pw1abd", salt)) {
		t.Fatalf("expected different keys for different passwords")
	}
}
