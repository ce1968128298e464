// Package commands implements the noticast CLI: the HTTP server, one-off
// dispatch and mail processing, migrations and directory maintenance.
package commands
