// Package facade exposes the five SQL transformation operations (parse,
// deparse, scan, fingerprint, normalize) over an Engine, enforcing the call
// boundary: argument validation before any engine work, structural
// pre-validation of deparse payloads, and a uniform result shape with a
// classified error taxonomy.
//
// Each call is self-contained and strictly linear: validate, marshal, invoke
// the engine, encode the result. The facade holds no mutable state between
// calls and is safe for concurrent use.
package facade

import (
	"context"

	"go.uber.org/zap"

	"github.com/pgbridge/pgbridge/engine"
)

// Default input ceilings. Engine stack depth and parse time grow with input
// size, so bounding inputs bounds worst-case resource use.
const (
	DefaultMaxSQLBytes  = 16 << 20
	DefaultMaxTreeBytes = 32 << 20
)

// Limits configures the per-operation-class input ceilings.
// Zero fields fall back to the defaults.
type Limits struct {
	// MaxSQLBytes caps SQL text inputs (parse, scan, fingerprint, normalize).
	MaxSQLBytes int
	// MaxTreeBytes caps the encoded parse-tree input to deparse.
	MaxTreeBytes int
}

// Handler is the uniform calling convention of every operation: exactly one
// []byte argument is expected; anything else is rejected before the engine
// is touched.
type Handler func(ctx context.Context, args ...any) Result

// Operation describes one registered operation.
type Operation struct {
	Handler Handler
	Name    string
	// CPUBound marks operations whose wall-clock time grows with input
	// size, so a host scheduler can keep them off latency-sensitive
	// workers. All five query operations are CPU bound.
	CPUBound bool
}

// Facade dispatches the five query operations over an engine.
type Facade struct {
	engine engine.Engine
	trees  TreeValidator
	log    *zap.Logger
	ops    []Operation
	limits Limits
}

// Option configures a Facade.
type Option func(*Facade)

// WithLimits overrides the default input ceilings.
func WithLimits(l Limits) Option {
	return func(f *Facade) {
		if l.MaxSQLBytes > 0 {
			f.limits.MaxSQLBytes = l.MaxSQLBytes
		}
		if l.MaxTreeBytes > 0 {
			f.limits.MaxTreeBytes = l.MaxTreeBytes
		}
	}
}

// WithTreeValidator replaces the structural validator applied to deparse
// payloads before they reach the engine.
func WithTreeValidator(v TreeValidator) Option {
	return func(f *Facade) {
		if v != nil {
			f.trees = v
		}
	}
}

// WithLogger sets the facade logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.log = l
		}
	}
}

// New builds a Facade and its operation registry. The registry is fixed at
// construction; nothing is registered through package-level side effects.
func New(eng engine.Engine, opts ...Option) *Facade {
	f := &Facade{
		engine: eng,
		trees:  NewTreeValidator(),
		log:    zap.NewNop(),
		limits: Limits{
			MaxSQLBytes:  DefaultMaxSQLBytes,
			MaxTreeBytes: DefaultMaxTreeBytes,
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	f.ops = []Operation{
		{Name: "parse", CPUBound: true, Handler: f.Parse},
		{Name: "deparse", CPUBound: true, Handler: f.Deparse},
		{Name: "scan", CPUBound: true, Handler: f.Scan},
		{Name: "fingerprint", CPUBound: true, Handler: f.Fingerprint},
		{Name: "normalize", CPUBound: true, Handler: f.Normalize},
	}
	return f
}

// Operations returns the registered operations in dispatch order.
func (f *Facade) Operations() []Operation {
	out := make([]Operation, len(f.ops))
	copy(out, f.ops)
	return out
}

// Operation looks up a registered operation by name.
func (f *Facade) Operation(name string) (Operation, bool) {
	for _, op := range f.ops {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}
