package inbound

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryClaimStore_RefusesHeldAndCompletedKeys(t *testing.T) {
	store := NewInMemoryClaimStore()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	claimID, ok, err := store.Claim(ctx, "mail:m-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first claim accepted, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := store.Claim(ctx, "mail:m-1", time.Minute); ok {
		t.Fatalf("expected held key refused")
	}
	if err := store.Complete(ctx, claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "mail:m-1", time.Minute); ok {
		t.Fatalf("expected completed key refused inside its window")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Claim(ctx, "mail:m-1", time.Minute); !ok {
		t.Fatalf("expected key claimable after window")
	}
}

func TestInMemoryClaimStore_ReleaseAllowsReclaim(t *testing.T) {
	store := NewInMemoryClaimStore()
	ctx := context.Background()

	claimID, ok, err := store.Claim(ctx, "mail:m-2", time.Minute)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, claimID, errors.New("transient")); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := store.Claim(ctx, "mail:m-2", time.Minute); !ok {
		t.Fatalf("expected released key claimable")
	}
	if got := store.Attempts("mail:m-2"); got != 2 {
		t.Fatalf("expected two attempts, got %d", got)
	}
}

func TestInMemoryClaimStore_RejectsBlankInput(t *testing.T) {
	store := NewInMemoryClaimStore()
	if _, _, err := store.Claim(context.Background(), " ", time.Minute); err == nil {
		t.Fatalf("expected blank key rejected")
	}
	if err := store.Complete(context.Background(), ""); err == nil {
		t.Fatalf("expected blank claim id rejected")
	}
	if err := store.Complete(context.Background(), "claim_unknown"); err != nil {
		t.Fatalf("expected unknown claim ignored, got %v", err)
	}
}
