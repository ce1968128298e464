package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type groupRecord struct {
	bun.BaseModel `bun:"table:noticast_groups,alias:ng"`

	ARN       string    `bun:"arn,pk"`
	Label     string    `bun:"label,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type deviceRecord struct {
	bun.BaseModel `bun:"table:noticast_devices,alias:nd"`

	ARN       string    `bun:"arn,pk"`
	GroupARN  string    `bun:"group_arn,nullzero"`
	Label     string    `bun:"label,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type errorReportRecord struct {
	bun.BaseModel `bun:"table:noticast_error_reports,alias:ner"`

	ID        string            `bun:"id,pk"`
	System    string            `bun:"system,notnull"`
	Target    string            `bun:"target,notnull"`
	Message   string            `bun:"message,notnull"`
	Error     string            `bun:"error,notnull"`
	TextCode  string            `bun:"text_code,notnull"`
	Tags      map[string]string `bun:"tags,type:jsonb,notnull"`
	Extra     map[string]any    `bun:"extra,type:jsonb,notnull"`
	CreatedAt time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type dispatchAttemptRecord struct {
	bun.BaseModel `bun:"table:noticast_dispatch_attempts,alias:nda"`

	ID         string    `bun:"id,pk"`
	DispatchID string    `bun:"dispatch_id,notnull"`
	Channel    string    `bun:"channel,notnull"`
	Broadcast  bool      `bun:"broadcast,notnull"`
	Status     string    `bun:"status,notnull"`
	Error      string    `bun:"error,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
