// Package core holds the dispatch domain: target resolution, the publish gate
// and the fan-out orchestrator. Storage, speech, transport and inbound
// adapters depend on this package; core depends on none of them.
package core
