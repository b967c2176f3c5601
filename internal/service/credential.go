package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/data-analyzer/internal/apperror"
	"github.com/sakif/data-analyzer/internal/repository"
)

// CredentialSealer is the two-way cipher the credential flow needs.
// Implemented by *auth.KeyCrypt.
type CredentialSealer interface {
	Seal(plaintext string) ([]byte, error)
	Unseal(sealed []byte) (string, error)
}

// KeyValidator checks a candidate API key against the AI backend.
// Implemented by *generator.Generator; tests substitute a canned answer.
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) bool
}

// CredentialService manages the per-user AI API key: validate against the
// live backend, seal, store, report status. The plaintext key exists only
// inside a request — it is never logged and never stored unsealed.
type CredentialService struct {
	repo      repository.CredentialRepository
	sealer    CredentialSealer
	validator KeyValidator
	logger    *slog.Logger
}

// NewCredentialService creates a CredentialService.
func NewCredentialService(
	repo repository.CredentialRepository,
	sealer CredentialSealer,
	validator KeyValidator,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		repo:      repo,
		sealer:    sealer,
		validator: validator,
		logger:    logger,
	}
}

// Save validates a candidate key against the backend, then seals and stores
// it, replacing any previous key for the user.
//
// The live check happens BEFORE anything is stored: saving a dead key and
// finding out at analysis time is the worst version of this flow, which is
// exactly how the endpoint behaves without the check.
func (s *CredentialService) Save(ctx context.Context, userID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperror.ValidationFailed("apiKey", "API key is required")
	}

	if !s.validator.ValidateKey(ctx, apiKey) {
		return apperror.ValidationFailed("apiKey", "API key was rejected by the AI backend")
	}

	sealed, err := s.sealer.Seal(apiKey)
	if err != nil {
		return fmt.Errorf("service/credential: sealing key: %w", err)
	}

	if err := s.repo.SaveCredential(ctx, userID, sealed); err != nil {
		s.logger.Error("failed to save credential", slog.String("error", err.Error()))
		return fmt.Errorf("service/credential: saving key: %w", err)
	}

	s.logger.Info("credential saved", slog.String("userID", userID))
	return nil
}

// Status reports whether the user has a key on file. The key itself never
// leaves the server.
func (s *CredentialService) Status(ctx context.Context, userID string) (bool, error) {
	_, err := s.repo.GetCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/credential: checking key: %w", err)
	}
	return true, nil
}

// Delete removes the user's stored key.
func (s *CredentialService) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCredential(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("credential deleted", slog.String("userID", userID))
	return nil
}
