package sqlstore

import "github.com/goliatone/go-noticast/core"

var (
	_ core.EndpointDirectory = (*DirectoryStore)(nil)
	_ core.DispatchLedger    = (*DispatchLedgerStore)(nil)
)
