package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-noticast/core"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
)

var (
	_ gocmd.Querier[ResolveTargetMessage, core.ResolvedTarget]          = (*ResolveTargetQuery)(nil)
	_ gocmd.Querier[ListErrorReportsMessage, []sqlstore.ErrorReport]    = (*ListErrorReportsQuery)(nil)
	_ gocmd.Querier[ListDispatchAttemptsMessage, []core.PublishAttempt] = (*ListDispatchAttemptsQuery)(nil)

	_ ErrorReportReader     = (*sqlstore.ErrorReportStore)(nil)
	_ DispatchAttemptReader = (*sqlstore.DispatchLedgerStore)(nil)
)
