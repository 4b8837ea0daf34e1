// Package tracer provides a lightweight tracing abstraction for the issuance saga.
//
// The saga emits one parent span per attempt with a child span per stage
// (verify, lookup, mint, confirm, persist). Stages that fail end their span
// with the error so traces show where an attempt stopped.
//
// Implementations:
//   - NoopTracer: zero overhead, the default
//   - OTelTracer: OpenTelemetry adapter for production
//   - Recorder: captures spans in memory for assertions in tests
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanIssue   = "badge.issue"
	SpanVerify  = "badge.verify"
	SpanLookup  = "badge.catalog_lookup"
	SpanMint    = "badge.mint"
	SpanConfirm = "badge.confirm"
	SpanPersist = "badge.persist"
	SpanRepair  = "badge.repair"
)

// Attribute keys.
const (
	AttrAttemptID = "attempt_id"
	AttrCluster   = "cluster"
	AttrTxHash    = "tx_hash"
	AttrTokenID   = "token_id"
	AttrOutcome   = "outcome"
	AttrReason    = "reason"
)

// Event names.
const (
	EventStateChanged   = "state.changed"
	EventURIMismatch    = "token_uri.mismatch"
	EventDuplicateBadge = "badge.duplicate"
)
