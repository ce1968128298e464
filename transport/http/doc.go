// Package httptransport exposes the dispatch, mail and signed asset endpoints
// over a fiber app.
package httptransport
