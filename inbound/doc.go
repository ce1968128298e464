// Package inbound decodes the events that reach noticast and turns them into
// dispatch calls.
//
// Synchronous requests carry a JSON body and expect an envelope back. Mail
// events carry a subject and recipient lists and are processed per target,
// with failures reported instead of returned.
package inbound
