// Package engine adapts a libpg_query-style SQL engine compiled to a core
// WebAssembly module, executed under wazero.
//
// The engine is an opaque collaborator: it owns the SQL grammar and the
// protobuf wire format of parse trees and token streams. This package owns
// the call boundary: writing query text into guest linear memory as
// null-terminated strings, decoding the engine's result structs out of
// linear memory, and releasing every guest-allocated result through the
// guest's paired free export on every exit path.
//
// A call never shares state with another call. Each invocation runs against
// a dedicated guest instance drawn from a bounded free list, so the engine
// as a whole is safe for concurrent use even though a single WASM instance
// is not.
package engine
