package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// Directory rows are keyed by arn, which is not a uuid. SetID is a no-op so
// the repository never replaces the caller's identifier.
func groupHandlers() repository.ModelHandlers[*groupRecord] {
	return repository.ModelHandlers[*groupRecord]{
		NewRecord: func() *groupRecord {
			return &groupRecord{}
		},
		GetID: func(record *groupRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ARN)
		},
		SetID: func(*groupRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "arn"
		},
		GetIdentifierValue: func(record *groupRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ARN)
		},
	}
}

func deviceHandlers() repository.ModelHandlers[*deviceRecord] {
	return repository.ModelHandlers[*deviceRecord]{
		NewRecord: func() *deviceRecord {
			return &deviceRecord{}
		},
		GetID: func(record *deviceRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ARN)
		},
		SetID: func(*deviceRecord, uuid.UUID) {},
		GetIdentifier: func() string {
			return "arn"
		},
		GetIdentifierValue: func(record *deviceRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ARN)
		},
	}
}

func errorReportHandlers() repository.ModelHandlers[*errorReportRecord] {
	return repository.ModelHandlers[*errorReportRecord]{
		NewRecord: func() *errorReportRecord {
			return &errorReportRecord{}
		},
		GetID: func(record *errorReportRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *errorReportRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *errorReportRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func dispatchAttemptHandlers() repository.ModelHandlers[*dispatchAttemptRecord] {
	return repository.ModelHandlers[*dispatchAttemptRecord]{
		NewRecord: func() *dispatchAttemptRecord {
			return &dispatchAttemptRecord{}
		},
		GetID: func(record *dispatchAttemptRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *dispatchAttemptRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *dispatchAttemptRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
