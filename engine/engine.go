package engine

import "context"

// Engine is the operation surface of the external SQL engine.
//
// Every method is synchronous and runs to completion; there are no
// suspension points and no cancellation beyond what the context carries
// into instantiation. A returned error means the boundary itself failed
// (allocation, marshalling, a guest trap, result decoding); an engine-level
// failure such as a syntax error is reported through the result's Fault and
// is not a Go error.
type Engine interface {
	// ParseProtobuf parses SQL text into a protobuf-encoded parse tree.
	ParseProtobuf(ctx context.Context, sql string) (*ParseResult, error)

	// DeparseProtobuf renders a protobuf-encoded parse tree back to SQL.
	// The payload must be structurally valid; the engine has undefined
	// behavior on arbitrary bytes and callers are expected to pre-validate.
	DeparseProtobuf(ctx context.Context, tree []byte) (*DeparseResult, error)

	// Scan lexes SQL text into a protobuf-encoded token stream.
	Scan(ctx context.Context, sql string) (*ScanResult, error)

	// Fingerprint computes the stable identifier of a query's shape.
	Fingerprint(ctx context.Context, sql string) (*FingerprintResult, error)

	// Normalize replaces literals in SQL text with placeholders.
	Normalize(ctx context.Context, sql string) (*NormalizeResult, error)
}

// Fault is a failure reported by the engine itself.
// Cursor is the engine's own convention: 1-indexed byte position into the
// query text, 0 when the engine has no location. Callers surfacing a fault
// are responsible for converting to a zero-indexed position.
type Fault struct {
	Message string
	Cursor  int32
}

// ParseResult holds either an encoded parse tree or a Fault.
type ParseResult struct {
	Fault *Fault
	Tree  []byte
}

// DeparseResult holds either reconstructed SQL text or a Fault.
type DeparseResult struct {
	Fault *Fault
	Query string
}

// ScanResult holds either an encoded token stream or a Fault.
type ScanResult struct {
	Fault  *Fault
	Tokens []byte
}

// FingerprintResult holds a query-shape fingerprint or a Fault.
// Text is the engine's canonical string form of the fingerprint; it is
// identical for queries differing only in literal values.
type FingerprintResult struct {
	Fault       *Fault
	Text        string
	Fingerprint uint64
}

// NormalizeResult holds either normalized SQL text or a Fault.
type NormalizeResult struct {
	Fault *Fault
	Query string
}
