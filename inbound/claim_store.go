package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultClaimTTL = 10 * time.Minute

// ClaimStore guards a mail message against being processed twice when the
// mail trigger redelivers it.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Release(ctx context.Context, claimID string, cause error) error
}

type claimState string

const (
	claimHeld     claimState = "held"
	claimReleased claimState = "released"
	claimDone     claimState = "done"
)

type claimRecord struct {
	state     claimState
	claimID   string
	attempts  int
	ttl       time.Duration
	expiresAt time.Time
	lastError string
}

type InMemoryClaimStore struct {
	mu      sync.Mutex
	records map[string]claimRecord
	owners  map[string]string
	seq     int
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		records: map[string]claimRecord{},
		owners:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Claim takes the key. A key that is held or done inside its lease is
// refused; a released or expired key can be claimed again.
func (s *InMemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: claim key is required", nil)
	}
	if lease <= 0 {
		lease = defaultClaimTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)

	record, exists := s.records[key]
	if exists && record.state != claimReleased && now.Before(record.expiresAt) {
		return "", false, nil
	}
	if exists && record.claimID != "" {
		delete(s.owners, record.claimID)
	}

	s.seq++
	claimID := fmt.Sprintf("claim_%d", s.seq)
	record.state = claimHeld
	record.claimID = claimID
	record.attempts++
	record.ttl = lease
	record.expiresAt = now.Add(lease)
	s.records[key] = record
	s.owners[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	return s.settle(claimID, claimDone, nil)
}

func (s *InMemoryClaimStore) Release(_ context.Context, claimID string, cause error) error {
	return s.settle(claimID, claimReleased, cause)
}

// Attempts reports how many times key has been claimed.
func (s *InMemoryClaimStore) Attempts(key string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[strings.TrimSpace(key)].attempts
}

func (s *InMemoryClaimStore) settle(claimID string, state claimState, cause error) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.owners[claimID]
	if !ok {
		return nil
	}
	delete(s.owners, claimID)
	record, exists := s.records[key]
	if !exists || record.claimID != claimID || record.state != claimHeld {
		return nil
	}
	record.state = state
	record.claimID = ""
	if cause != nil {
		record.lastError = cause.Error()
	}
	if state == claimDone {
		record.expiresAt = s.now().Add(record.ttl)
	}
	s.records[key] = record
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) sweepLocked(now time.Time) {
	for key, record := range s.records {
		if record.state == claimDone && !now.Before(record.expiresAt) {
			delete(s.records, key)
		}
	}
}
