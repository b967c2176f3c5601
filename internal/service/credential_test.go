package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"log/slog"
	"os"

	"github.com/sakif/data-analyzer/internal/apperror"
)

// fakeSealer prefixes instead of encrypting — the real cipher has its own
// tests in the auth package.
type fakeSealer struct{}

func (fakeSealer) Seal(plaintext string) ([]byte, error) {
	return []byte("sealed:" + plaintext), nil
}

func (fakeSealer) Unseal(sealed []byte) (string, error) {
	return strings.TrimPrefix(string(sealed), "sealed:"), nil
}

// fakeValidator returns a fixed verdict and remembers what it was asked.
type fakeValidator struct {
	valid   bool
	lastKey string
}

func (f *fakeValidator) ValidateKey(_ context.Context, apiKey string) bool {
	f.lastKey = apiKey
	return f.valid
}

func newTestCredentialService(t *testing.T, valid bool) (*CredentialService, *mockCredentialRepo, *fakeValidator) {
	t.Helper()
	repo := newMockCredentialRepo()
	validator := &fakeValidator{valid: valid}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewCredentialService(repo, fakeSealer{}, validator, logger)
	return svc, repo, validator
}

func TestCredentialSave_ValidKeyIsSealedAndStored(t *testing.T) {
	svc, repo, validator := newTestCredentialService(t, true)

	if err := svc.Save(context.Background(), "local", "AIzaSy-test"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if validator.lastKey != "AIzaSy-test" {
		t.Errorf("validator checked %q, want the candidate key", validator.lastKey)
	}
	stored, ok := repo.sealed["local"]
	if !ok {
		t.Fatal("Save() did not store a credential")
	}
	// The repo must only ever see the sealed form.
	if string(stored) != "sealed:AIzaSy-test" {
		t.Errorf("stored %q, want the sealed form", stored)
	}
}

func TestCredentialSave_RejectedKeyIsNotStored(t *testing.T) {
	svc, repo, _ := newTestCredentialService(t, false)

	err := svc.Save(context.Background(), "local", "dead-key")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Save() error = %v, want validation error", err)
	}
	if len(repo.sealed) != 0 {
		t.Error("a rejected key must not be stored")
	}
}

func TestCredentialSave_EmptyKey(t *testing.T) {
	svc, _, validator := newTestCredentialService(t, true)

	err := svc.Save(context.Background(), "local", "   ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Save() error = %v, want validation error", err)
	}
	if validator.lastKey != "" {
		t.Error("an empty key must not reach the backend check")
	}
}

func TestCredentialStatus(t *testing.T) {
	svc, _, _ := newTestCredentialService(t, true)
	ctx := context.Background()

	has, err := svc.Status(ctx, "local")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if has {
		t.Error("Status() = true before any key was saved")
	}

	if err := svc.Save(ctx, "local", "AIzaSy-test"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	has, err = svc.Status(ctx, "local")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !has {
		t.Error("Status() = false after saving a key")
	}
}

func TestCredentialDelete(t *testing.T) {
	svc, _, _ := newTestCredentialService(t, true)
	ctx := context.Background()

	if err := svc.Save(ctx, "local", "AIzaSy-test"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := svc.Delete(ctx, "local"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	has, err := svc.Status(ctx, "local")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if has {
		t.Error("Status() = true after deleting the key")
	}
}
