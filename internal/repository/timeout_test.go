package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkashifaslam/go-api-template/internal/domain"
)

type blockingRepo struct {
	ProfileRepository
}

func (blockingRepo) GetProfileByID(ctx context.Context, _ string) (*domain.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeoutBoundsCalls(t *testing.T) {
	repo := WithTimeout(blockingRepo{}, 20*time.Millisecond)

	start := time.Now()
	_, err := repo.GetProfileByID(context.Background(), "p-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call was not bounded: %s", elapsed)
	}
}

func TestWithTimeoutDisabled(t *testing.T) {
	inner := blockingRepo{}
	if got := WithTimeout(inner, 0); got != ProfileRepository(inner) {
		t.Fatalf("expected repository returned unchanged")
	}
}
