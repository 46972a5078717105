package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"user-api/internal/domain/idempotency"
	interfaces "user-api/internal/interfaces/infrastructure"
	"user-api/pkg/logger"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
)

var (
	// ErrIdempotencyKeyReused is returned when a key is replayed with a different request
	ErrIdempotencyKeyReused = errors.New("idempotency key already used with different request data")

	// ErrIdempotencyRequestInProgress is returned while another request holds the key
	ErrIdempotencyRequestInProgress = errors.New("a request with this idempotency key is still being processed")
)

// StoredResponse is the part of a response replayed for duplicate requests
type StoredResponse struct {
	StatusCode  int
	ContentType string
	Location    string
	Body        []byte
}

type IdempotencyService struct {
	idempotencyRepo interfaces.IdempotencyRepository
	ttl             time.Duration
	now             func() time.Time
}

func NewIdempotencyService(idempotencyRepo interfaces.IdempotencyRepository, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyService{
		idempotencyRepo: idempotencyRepo,
		ttl:             ttl,
		now:             time.Now,
	}
}

// CheckDuplicateRequest returns the stored key when the same request was
// already processed under key. Otherwise the key is reserved for the caller,
// who must then store the response or release the key. A reused key with a
// different request yields ErrIdempotencyKeyReused.
func (s *IdempotencyService) CheckDuplicateRequest(ctx context.Context, key, scope string, requestBody []byte) (*idempotency.IdempotencyKey, bool, error) {
	if key == "" {
		return nil, false, nil
	}

	requestHash := s.generateRequestHash(scope, requestBody)
	for attempt := 0; attempt < 2; attempt++ {
		existingKey, err := s.idempotencyRepo.GetByKey(ctx, key)
		switch {
		case errors.Is(err, interfaces.ErrIdempotencyKeyNotFound):
			reserved, err := s.reserve(ctx, key, requestHash)
			if err != nil {
				return nil, false, err
			}
			if reserved {
				return nil, false, nil
			}
			// another request reserved it first; inspect its entry
			continue
		case err != nil:
			logger.Error("Failed to check idempotency key: %v", err)
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}

		if existingKey.IsExpired() {
			if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
				logger.Warn("Failed to delete expired idempotency key %s: %v", key, err)
			}
			continue
		}

		if existingKey.RequestHash != requestHash {
			logger.Warn("Idempotency key %s used with different request data", key)
			return nil, false, ErrIdempotencyKeyReused
		}

		if existingKey.InProgress() {
			return nil, false, ErrIdempotencyRequestInProgress
		}

		logger.Info("Duplicate request detected for idempotency key: %s", key)
		return existingKey, true, nil
	}

	return nil, false, ErrIdempotencyRequestInProgress
}

func (s *IdempotencyService) reserve(ctx context.Context, key, requestHash string) (bool, error) {
	now := s.now()
	reserved, err := s.idempotencyRepo.Reserve(ctx, &idempotency.IdempotencyKey{
		Key:         key,
		RequestHash: requestHash,
		ProcessedAt: now,
		ExpiresAt:   now.Add(s.ttl),
	})
	if err != nil {
		logger.Error("Failed to reserve idempotency key %s: %v", key, err)
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return reserved, nil
}

// ReleaseRequest drops the reservation of a request that produced no
// response worth replaying, so the client may retry with the same key
func (s *IdempotencyService) ReleaseRequest(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	if err := s.idempotencyRepo.Delete(ctx, key); err != nil {
		logger.Error("Failed to release idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// StoreProcessedRequest remembers resp under key
func (s *IdempotencyService) StoreProcessedRequest(ctx context.Context, key, scope string, requestBody []byte, resp StoredResponse) error {
	if key == "" {
		return nil
	}

	now := s.now()
	idempotencyKey := &idempotency.IdempotencyKey{
		Key:          key,
		RequestHash:  s.generateRequestHash(scope, requestBody),
		StatusCode:   resp.StatusCode,
		ContentType:  resp.ContentType,
		Location:     resp.Location,
		ResponseBody: resp.Body,
		ProcessedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
	}

	if err := s.idempotencyRepo.Create(ctx, idempotencyKey); err != nil {
		logger.Error("Failed to store idempotency key %s: %v", key, err)
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}

	logger.Info("Stored idempotency key: %s", key)
	return nil
}

func (s *IdempotencyService) generateRequestHash(scope string, requestBody []byte) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write(requestBody)
	return hex.EncodeToString(h.Sum(nil))
}
