package facade

import "github.com/pgbridge/pgbridge/errors"

// Result is the uniform success/error shape every operation returns.
// Exactly one of Payload, Text, Fingerprint, or Err is populated.
//
// Payload carries binary output (parse, scan) at its exact engine-reported
// length, embedded nulls included. Text carries engine-produced strings
// (deparse, normalize); these are measured to the first null terminator, so
// embedded nulls do not survive in text results.
type Result struct {
	Err         *errors.Error
	Fingerprint *Fingerprint
	Text        string
	Payload     []byte
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fingerprint is a stable identifier for a query's shape, independent of
// literal values. Text is the canonical string form; queries that differ
// only in literals produce identical values for both fields.
type Fingerprint struct {
	Text  string
	Value uint64
}

func fail(err *errors.Error) Result {
	return Result{Err: err}
}

// zeroIndex converts the engine's 1-indexed cursor to the surfaced
// zero-indexed convention; an engine cursor of 0 (no location) becomes -1.
func zeroIndex(cursor int32) int32 {
	return cursor - 1
}

// classify maps an engine-boundary Go error into the structured taxonomy,
// passing through errors that are already classified.
func classify(err error) *errors.Error {
	if e, ok := errors.AsError(err); ok {
		return e
	}
	return errors.Wrap(errors.PhaseEngine, errors.KindEngine, err, "engine call failed")
}
