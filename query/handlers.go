package query

import (
	"context"

	"github.com/goliatone/go-noticast/core"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
)

type ErrorReportReader interface {
	List(ctx context.Context, system string, limit int) ([]sqlstore.ErrorReport, error)
}

type DispatchAttemptReader interface {
	ListByDispatch(ctx context.Context, dispatchID string) ([]core.PublishAttempt, error)
}

type ResolveTargetQuery struct {
	resolver core.TargetResolver
}

func NewResolveTargetQuery(resolver core.TargetResolver) *ResolveTargetQuery {
	return &ResolveTargetQuery{resolver: resolver}
}

func (q *ResolveTargetQuery) Query(ctx context.Context, msg ResolveTargetMessage) (core.ResolvedTarget, error) {
	if q == nil || q.resolver == nil {
		return core.ResolvedTarget{}, queryDependencyError("query: target resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ResolvedTarget{}, err
	}
	return q.resolver.Resolve(ctx, msg.Identifier)
}

type ListErrorReportsQuery struct {
	reader ErrorReportReader
}

func NewListErrorReportsQuery(reader ErrorReportReader) *ListErrorReportsQuery {
	return &ListErrorReportsQuery{reader: reader}
}

func (q *ListErrorReportsQuery) Query(ctx context.Context, msg ListErrorReportsMessage) ([]sqlstore.ErrorReport, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: error report reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.List(ctx, msg.System, msg.Limit)
}

type ListDispatchAttemptsQuery struct {
	reader DispatchAttemptReader
}

func NewListDispatchAttemptsQuery(reader DispatchAttemptReader) *ListDispatchAttemptsQuery {
	return &ListDispatchAttemptsQuery{reader: reader}
}

func (q *ListDispatchAttemptsQuery) Query(
	ctx context.Context,
	msg ListDispatchAttemptsMessage,
) ([]core.PublishAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: dispatch attempt reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListByDispatch(ctx, msg.DispatchID)
}
