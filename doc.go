// Package pgbridge exposes PostgreSQL query parsing, deparsing, lexing,
// fingerprinting and normalization by hosting a libpg_query-style engine
// compiled to WebAssembly.
//
// The engine owns the SQL grammar; this library owns the call boundary:
// validating untrusted input before it reaches the engine, marshalling
// buffers into guest linear memory, releasing every guest-allocated result
// exactly once, and mapping engine failures into one inspectable error shape.
//
// # Architecture Overview
//
//	pgbridge/        Root package with Memory and Allocator interfaces
//	├── facade/      The five query operations and their dispatch registry
//	├── engine/      wazero-backed engine adapter (guest ABI, marshalling)
//	├── errors/      Structured error taxonomy for all failure classes
//	└── cmd/         Command line driver with an interactive inspector
//
// # Quick Start
//
//	wasmBytes, _ := os.ReadFile("pg_query.wasm")
//	eng, err := engine.New(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	f := facade.New(eng)
//	res := f.Normalize(ctx, []byte("SELECT 1"))
//	fmt.Println(res.Text) // "SELECT $1"
//
// # Concurrency
//
// A Facade and an engine are safe for concurrent use. Each in-flight call
// runs against its own guest instance; no state is shared between calls and
// nothing persists after a call returns.
//
// # Memory Model
//
// WASM linear memory only grows. Freed guest allocations stay mapped and are
// reused by the guest allocator within an instance; the engine recycles
// instances through a bounded pool to keep memory in check.
package pgbridge
