package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/clubline/clubline-backend/pkg/logger"
)

type fakeStuckClaimCounter struct {
	count int64
	err   error
	calls int
}

func (f *fakeStuckClaimCounter) CountStuckClaims(ctx context.Context) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func TestStuckClaimsJobReportsCount(t *testing.T) {
	counter := &fakeStuckClaimCounter{count: 3}
	job, err := NewStuckClaimsJob(StuckClaimsJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Claims: counter,
	})
	if err != nil {
		t.Fatalf("NewStuckClaimsJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counter.calls != 1 {
		t.Fatalf("expected one count query, got %d", counter.calls)
	}
}

func TestStuckClaimsJobPropagatesError(t *testing.T) {
	counter := &fakeStuckClaimCounter{err: errors.New("boom")}
	job, err := NewStuckClaimsJob(StuckClaimsJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Claims: counter,
	})
	if err != nil {
		t.Fatalf("NewStuckClaimsJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
