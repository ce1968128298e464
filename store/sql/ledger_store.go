package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-noticast/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DispatchLedgerStore records every publish attempt made during a fan-out.
type DispatchLedgerStore struct {
	repo repository.Repository[*dispatchAttemptRecord]
}

func NewDispatchLedgerStore(db *bun.DB) (*DispatchLedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*dispatchAttemptRecord](db, dispatchAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid dispatch attempt repository wiring: %w", err)
		}
	}
	return &DispatchLedgerStore{repo: repo}, nil
}

func (s *DispatchLedgerStore) RecordAttempt(ctx context.Context, attempt core.PublishAttempt) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: dispatch ledger store is not configured")
	}
	if strings.TrimSpace(attempt.DispatchID) == "" {
		return fmt.Errorf("sqlstore: dispatch id is required")
	}
	if strings.TrimSpace(attempt.Channel) == "" {
		return fmt.Errorf("sqlstore: channel is required")
	}
	status := attempt.Status
	if status == "" {
		status = core.PublishStatusSent
	}
	record := &dispatchAttemptRecord{
		ID:         uuid.NewString(),
		DispatchID: strings.TrimSpace(attempt.DispatchID),
		Channel:    strings.TrimSpace(attempt.Channel),
		Broadcast:  attempt.Broadcast,
		Status:     string(status),
		Error:      strings.TrimSpace(attempt.Error),
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// ListByDispatch returns the attempts of one dispatch in the order they were
// recorded.
func (s *DispatchLedgerStore) ListByDispatch(ctx context.Context, dispatchID string) ([]core.PublishAttempt, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: dispatch ledger store is not configured")
	}
	dispatchID = strings.TrimSpace(dispatchID)
	if dispatchID == "" {
		return nil, fmt.Errorf("sqlstore: dispatch id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("dispatch_id", "=", dispatchID),
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("broadcast DESC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.PublishAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, core.PublishAttempt{
			DispatchID: record.DispatchID,
			Channel:    record.Channel,
			Broadcast:  record.Broadcast,
			Status:     core.PublishStatus(record.Status),
			Error:      record.Error,
		})
	}
	return out, nil
}
