package go5250

import "github.com/fieldexit/go5250/internal/dispatch"

// Diagnostic is one structured observability record: enough context to
// reconstruct what the data stream looked like when something went
// wrong, without a packet capture.
type Diagnostic = dispatch.Diagnostic

// DiagnosticKind labels what a Diagnostic records.
type DiagnosticKind = dispatch.Kind

const (
	KindMalformedOrder    = dispatch.KindMalformedOrder
	KindUnmappable        = dispatch.KindUnmappable
	KindHostError         = dispatch.KindHostError
	KindUnlockTimeout     = dispatch.KindUnlockTimeout
	KindNegotiationFailed = dispatch.KindNegotiationFailed
)

// DiagnosticSink receives diagnostics as they are produced. Most run
// on the session's receive goroutine and must return quickly; a nil
// sink drops everything.
type DiagnosticSink = dispatch.Sink
