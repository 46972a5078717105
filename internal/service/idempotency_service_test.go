package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"user-api/internal/infrastructure/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestIdempotencyService(t *testing.T) *IdempotencyService {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewIdempotencyService(repository.NewRedisIdempotencyRepository(client, time.Hour), time.Hour)
}

func TestIdempotencyService_ReplaysSameRequest(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)
	body := []byte(`{"login":"neo"}`)

	_, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
	if err != nil || dup {
		t.Fatalf("Expected fresh key, got dup=%v err=%v", dup, err)
	}

	resp := StoredResponse{StatusCode: 201, ContentType: "application/json", Location: "http://x/api/users/1", Body: []byte(`"1"`)}
	if err := svc.StoreProcessedRequest(ctx, "key-1", "POST /api/users", body, resp); err != nil {
		t.Fatalf("Failed to store request: %v", err)
	}

	stored, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !dup {
		t.Fatal("Expected duplicate to be detected")
	}
	if stored.StatusCode != 201 || stored.Location != resp.Location || string(stored.ResponseBody) != `"1"` {
		t.Errorf("Unexpected stored response: %+v", stored)
	}
}

func TestIdempotencyService_RejectsDifferentRequest(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)

	resp := StoredResponse{StatusCode: 201}
	if err := svc.StoreProcessedRequest(ctx, "key-1", "POST /api/users", []byte(`{"login":"neo"}`), resp); err != nil {
		t.Fatalf("Failed to store request: %v", err)
	}

	_, _, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", []byte(`{"login":"trinity"}`))
	if !errors.Is(err, ErrIdempotencyKeyReused) {
		t.Fatalf("Expected ErrIdempotencyKeyReused, got %v", err)
	}
}

func TestIdempotencyService_EmptyKeyIsIgnored(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)

	if err := svc.StoreProcessedRequest(ctx, "", "scope", nil, StoredResponse{}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, dup, err := svc.CheckDuplicateRequest(ctx, "", "scope", nil)
	if err != nil || dup {
		t.Fatalf("Expected empty key to be ignored, got dup=%v err=%v", dup, err)
	}
}

func TestIdempotencyService_ReservesKeyWhileProcessing(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)
	body := []byte(`{"login":"neo"}`)

	_, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
	if err != nil || dup {
		t.Fatalf("Expected fresh key, got dup=%v err=%v", dup, err)
	}

	_, _, err = svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
	if !errors.Is(err, ErrIdempotencyRequestInProgress) {
		t.Fatalf("Expected ErrIdempotencyRequestInProgress, got %v", err)
	}

	_, _, err = svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", []byte(`{"login":"trinity"}`))
	if !errors.Is(err, ErrIdempotencyKeyReused) {
		t.Fatalf("Expected ErrIdempotencyKeyReused, got %v", err)
	}
}

func TestIdempotencyService_ReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)
	body := []byte(`{"login":"neo"}`)

	if _, _, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := svc.ReleaseRequest(ctx, "key-1"); err != nil {
		t.Fatalf("Failed to release key: %v", err)
	}

	_, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
	if err != nil || dup {
		t.Fatalf("Expected key to be reserved again, got dup=%v err=%v", dup, err)
	}
}

func TestIdempotencyService_ConcurrentFirstRequests(t *testing.T) {
	ctx := context.Background()
	svc := newTestIdempotencyService(t)
	body := []byte(`{"login":"neo"}`)

	const callers = 10
	var wg sync.WaitGroup
	var owners, busy int32

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup, err := svc.CheckDuplicateRequest(ctx, "key-1", "POST /api/users", body)
			switch {
			case err == nil && !dup:
				atomic.AddInt32(&owners, 1)
			case errors.Is(err, ErrIdempotencyRequestInProgress):
				atomic.AddInt32(&busy, 1)
			default:
				t.Errorf("Unexpected result dup=%v err=%v", dup, err)
			}
		}()
	}
	wg.Wait()

	if owners != 1 || busy != callers-1 {
		t.Fatalf("Expected exactly one owner, got owners=%d busy=%d", owners, busy)
	}
}
