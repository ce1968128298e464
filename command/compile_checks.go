package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DispatchMessage]    = (*DispatchCommand)(nil)
	_ gocmd.Commander[ProcessMailMessage] = (*ProcessMailCommand)(nil)
)
