package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-noticast/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrorReport is a persisted telemetry report.
type ErrorReport struct {
	ID        string
	System    string
	Target    string
	Message   string
	Error     string
	TextCode  string
	Tags      map[string]string
	Extra     map[string]any
	CreatedAt time.Time
}

type ErrorReportStore struct {
	repo repository.Repository[*errorReportRecord]
	Now  func() time.Time
}

func NewErrorReportStore(db *bun.DB) (*ErrorReportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*errorReportRecord](db, errorReportHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid error report repository wiring: %w", err)
		}
	}
	return &ErrorReportStore{repo: repo, Now: time.Now}, nil
}

// Save persists a report. The system, target and message columns are lifted
// from the report tags so reports can be filtered without JSON operators.
func (s *ErrorReportStore) Save(ctx context.Context, report core.TelemetryReport) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: error report store is not configured")
	}
	if report.Err == nil {
		return fmt.Errorf("sqlstore: report error is required")
	}
	tags := copyStringMap(report.Tags)
	record := &errorReportRecord{
		ID:        uuid.NewString(),
		System:    strings.TrimSpace(tags["system"]),
		Target:    strings.TrimSpace(tags["target"]),
		Message:   tags["message"],
		Error:     report.Err.Error(),
		TextCode:  textCodeOf(report.Err),
		Tags:      tags,
		Extra:     copyAnyMap(report.Extra),
		CreatedAt: s.now(),
	}
	_, err := s.repo.Create(ctx, record)
	return err
}

// List returns the newest reports first. An empty system lists all systems.
func (s *ErrorReportStore) List(ctx context.Context, system string, limit int) ([]ErrorReport, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: error report store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	var (
		records []*errorReportRecord
		err     error
	)
	system = strings.TrimSpace(system)
	if system == "" {
		records, _, err = s.repo.List(ctx,
			repository.OrderBy("created_at DESC"),
			repository.SelectPaginate(limit, 0),
		)
	} else {
		records, _, err = s.repo.List(ctx,
			repository.SelectBy("system", "=", system),
			repository.OrderBy("created_at DESC"),
			repository.SelectPaginate(limit, 0),
		)
	}
	if err != nil {
		return nil, err
	}
	out := make([]ErrorReport, 0, len(records))
	for _, record := range records {
		out = append(out, ErrorReport{
			ID:        record.ID,
			System:    record.System,
			Target:    record.Target,
			Message:   record.Message,
			Error:     record.Error,
			TextCode:  record.TextCode,
			Tags:      copyStringMap(record.Tags),
			Extra:     copyAnyMap(record.Extra),
			CreatedAt: record.CreatedAt,
		})
	}
	return out, nil
}

func (s *ErrorReportStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func textCodeOf(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode
	}
	return ""
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
