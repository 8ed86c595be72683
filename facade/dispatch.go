package facade

import (
	"context"

	"go.uber.org/zap"

	"github.com/pgbridge/pgbridge/errors"
)

// Parse parses SQL text into a protobuf-encoded parse tree.
// Engine syntax errors carry a zero-indexed cursor position.
func (f *Facade) Parse(ctx context.Context, args ...any) Result {
	sql, verr := validateArgs(args, f.limits.MaxSQLBytes)
	if verr != nil {
		return fail(verr)
	}

	res, err := f.engine.ParseProtobuf(ctx, string(sql))
	if err != nil {
		return fail(classify(err))
	}
	if res.Fault != nil {
		return fail(errors.Syntax(res.Fault.Message, zeroIndex(res.Fault.Cursor)))
	}

	f.log.Debug("parse",
		zap.Int("sql_bytes", len(sql)),
		zap.Int("tree_bytes", len(res.Tree)))
	return Result{Payload: res.Tree}
}

// Deparse renders a protobuf-encoded parse tree back to SQL text.
// The payload is structurally validated first; the engine is never invoked
// on bytes the validator rejects.
func (f *Facade) Deparse(ctx context.Context, args ...any) Result {
	tree, verr := validateArgs(args, f.limits.MaxTreeBytes)
	if verr != nil {
		return fail(verr)
	}
	if err := f.trees.Validate(tree); err != nil {
		return fail(errors.MalformedPayload(err))
	}

	res, err := f.engine.DeparseProtobuf(ctx, tree)
	if err != nil {
		return fail(classify(err))
	}
	if res.Fault != nil {
		return fail(errors.Engine(res.Fault.Message))
	}

	f.log.Debug("deparse",
		zap.Int("tree_bytes", len(tree)),
		zap.Int("sql_bytes", len(res.Query)))
	return Result{Text: res.Query}
}

// Scan lexes SQL text into a protobuf-encoded token stream.
// Engine lexer errors carry a zero-indexed cursor position.
func (f *Facade) Scan(ctx context.Context, args ...any) Result {
	sql, verr := validateArgs(args, f.limits.MaxSQLBytes)
	if verr != nil {
		return fail(verr)
	}

	res, err := f.engine.Scan(ctx, string(sql))
	if err != nil {
		return fail(classify(err))
	}
	if res.Fault != nil {
		return fail(errors.Syntax(res.Fault.Message, zeroIndex(res.Fault.Cursor)))
	}

	f.log.Debug("scan",
		zap.Int("sql_bytes", len(sql)),
		zap.Int("token_bytes", len(res.Tokens)))
	return Result{Payload: res.Tokens}
}

// Fingerprint computes the stable 64-bit identifier and canonical text of a
// query's shape, independent of literal values.
func (f *Facade) Fingerprint(ctx context.Context, args ...any) Result {
	sql, verr := validateArgs(args, f.limits.MaxSQLBytes)
	if verr != nil {
		return fail(verr)
	}

	res, err := f.engine.Fingerprint(ctx, string(sql))
	if err != nil {
		return fail(classify(err))
	}
	if res.Fault != nil {
		return fail(errors.Engine(res.Fault.Message))
	}

	f.log.Debug("fingerprint",
		zap.Int("sql_bytes", len(sql)),
		zap.Uint64("fingerprint", res.Fingerprint))
	return Result{Fingerprint: &Fingerprint{Value: res.Fingerprint, Text: res.Text}}
}

// Normalize replaces literal values in SQL text with numbered placeholders.
func (f *Facade) Normalize(ctx context.Context, args ...any) Result {
	sql, verr := validateArgs(args, f.limits.MaxSQLBytes)
	if verr != nil {
		return fail(verr)
	}

	res, err := f.engine.Normalize(ctx, string(sql))
	if err != nil {
		return fail(classify(err))
	}
	if res.Fault != nil {
		return fail(errors.Engine(res.Fault.Message))
	}

	f.log.Debug("normalize",
		zap.Int("sql_bytes", len(sql)),
		zap.Int("normalized_bytes", len(res.Query)))
	return Result{Text: res.Query}
}
