package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/pgbridge/pgbridge/errors"
)

const defaultPoolSize = 4

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps guest memory per instance in 64KB pages.
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// PoolSize caps the number of idle guest instances kept for reuse.
	// 0 means defaultPoolSize. Concurrency is not limited by the pool;
	// extra concurrent calls instantiate and discard.
	PoolSize int
}

// WazeroEngine implements Engine over a core WASM engine binary.
// It is safe for concurrent use.
type WazeroEngine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	idle     chan *guestInstance
}

// New compiles the engine binary and prepares the instance pool.
func New(ctx context.Context, wasmBytes []byte, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile engine module: %w", err)
	}

	pool := defaultPoolSize
	if cfg != nil && cfg.PoolSize > 0 {
		pool = cfg.PoolSize
	}

	e := &WazeroEngine{
		runtime:  rt,
		compiled: compiled,
		idle:     make(chan *guestInstance, pool),
	}

	// Instantiate once up front so a binary with a wrong export surface
	// fails at construction, not on the first query.
	inst, err := e.instantiate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	e.idle <- inst

	return e, nil
}

// Close releases all idle instances and the underlying runtime.
// In-flight calls must complete first.
func (e *WazeroEngine) Close(ctx context.Context) error {
	for {
		select {
		case inst := <-e.idle:
			inst.close(ctx)
		default:
			return e.runtime.Close(ctx)
		}
	}
}

// caller is the subset of api.Function the adapter invokes.
type caller interface {
	CallWithStack(ctx context.Context, stack []uint64) error
}

// guestModule is the lifecycle surface of an instantiated engine module.
type guestModule interface {
	Close(ctx context.Context) error
	IsClosed() bool
}

// guestInstance is one instantiation of the engine module. Not safe for
// concurrent use; ownership passes to a single call via acquire.
// broken marks an instance whose call failed; a guest trap closes the
// module, so such an instance cannot serve another call.
type guestInstance struct {
	module guestModule
	mem    memory
	alloc  *guestAllocator
	calls  map[string]caller
	stack  []uint64
	broken bool
}

func (g *guestInstance) close(ctx context.Context) {
	if err := g.module.Close(ctx); err != nil {
		Logger().Warn("close guest instance", zap.Error(err))
	}
}

func (e *WazeroEngine) instantiate(ctx context.Context) (*guestInstance, error) {
	// Anonymous name so concurrent instantiations never collide.
	module, err := e.runtime.InstantiateModule(ctx, e.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiate engine module: %w", err)
	}

	mem := module.Memory()
	if mem == nil {
		module.Close(ctx)
		return nil, fmt.Errorf("engine module exports no memory")
	}

	calls := make(map[string]caller, len(requiredExports))
	var missing []string
	for _, name := range requiredExports {
		fn := module.ExportedFunction(name)
		if fn == nil {
			missing = append(missing, name)
			continue
		}
		calls[name] = fn
	}
	if len(missing) > 0 {
		module.Close(ctx)
		return nil, fmt.Errorf("engine module missing exports: %s", strings.Join(missing, ", "))
	}

	stack := make([]uint64, 8)
	return &guestInstance{
		module: module,
		mem:    &guestMemory{mem: mem},
		alloc: &guestAllocator{
			allocFn: calls[guestMalloc],
			freeFn:  calls[guestFree],
			stack:   stack,
		},
		calls: calls,
		stack: stack,
	}, nil
}

// acquire hands out an idle instance or creates a fresh one.
func (e *WazeroEngine) acquire(ctx context.Context) (*guestInstance, error) {
	select {
	case inst := <-e.idle:
		inst.alloc.setContext(ctx)
		return inst, nil
	default:
	}
	inst, err := e.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	inst.alloc.setContext(ctx)
	return inst, nil
}

// release returns a healthy instance to the pool, or discards it when the
// pool is full. An instance whose call failed, or whose module is closed
// (a guest trap closes it), fails every later call and is never re-pooled.
func (e *WazeroEngine) release(ctx context.Context, inst *guestInstance) {
	inst.alloc.setContext(nil)
	if inst.broken || inst.module.IsClosed() {
		inst.close(ctx)
		return
	}
	select {
	case e.idle <- inst:
	default:
		inst.close(ctx)
	}
}

// writeCString copies s into guest memory as a null-terminated string.
// The caller owns the returned pointer and must Free it.
func (g *guestInstance) writeCString(s string) (uint32, error) {
	if uint64(len(s)) >= math.MaxUint32-1 {
		return 0, errors.AllocationFailed(uint64(len(s))+1, nil)
	}

	n := uint32(len(s)) + 1
	ptr, err := g.alloc.Alloc(n)
	if err != nil {
		return 0, errors.AllocationFailed(uint64(n), err)
	}

	buf := make([]byte, n)
	copy(buf, s)
	if err := g.mem.Write(ptr, buf); err != nil {
		g.alloc.Free(ptr)
		return 0, errors.Wrap(errors.PhaseMarshal, errors.KindAllocation, err, "write query string")
	}
	return ptr, nil
}

// writeBytes copies b into guest memory without a terminator.
// A zero-length input still allocates one byte so the pointer is non-null.
func (g *guestInstance) writeBytes(b []byte) (uint32, error) {
	if uint64(len(b)) >= math.MaxUint32 {
		return 0, errors.AllocationFailed(uint64(len(b)), nil)
	}

	n := uint32(len(b))
	if n == 0 {
		n = 1
	}
	ptr, err := g.alloc.Alloc(n)
	if err != nil {
		return 0, errors.AllocationFailed(uint64(n), err)
	}

	if len(b) > 0 {
		if err := g.mem.Write(ptr, b); err != nil {
			g.alloc.Free(ptr)
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindAllocation, err, "write payload")
		}
	}
	return ptr, nil
}

// invoke calls a guest export with the instance's reusable stack.
// A failed call marks the instance broken so release discards it.
func (g *guestInstance) invoke(ctx context.Context, name string, args ...uint64) error {
	copy(g.stack, args)
	if err := g.calls[name].CallWithStack(ctx, g.stack[:len(args)]); err != nil {
		g.broken = true
		return errors.Wrap(errors.PhaseEngine, errors.KindEngine, err, name)
	}
	return nil
}

// freeResult releases a guest result struct's internal buffers through its
// paired free export. Runs on every path once the operation export returned.
func (g *guestInstance) freeResult(ctx context.Context, name string, ret uint32) {
	g.stack[0] = uint64(ret)
	if err := g.calls[name].CallWithStack(ctx, g.stack[:1]); err != nil {
		g.broken = true
		Logger().Warn("free engine result failed",
			zap.String("export", name),
			zap.Error(err))
	}
}

func (e *WazeroEngine) ParseProtobuf(ctx context.Context, sql string) (*ParseResult, error) {
	inst, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, inst)

	text, err := inst.writeCString(sql)
	if err != nil {
		return nil, err
	}
	defer inst.alloc.Free(text)

	ret, err := inst.alloc.Alloc(parseResultSize)
	if err != nil {
		return nil, errors.AllocationFailed(parseResultSize, err)
	}
	defer inst.alloc.Free(ret)

	if err := inst.invoke(ctx, fnParseProtobuf, uint64(ret), uint64(text)); err != nil {
		return nil, err
	}
	defer inst.freeResult(ctx, fnFreeParseResult, ret)

	fault, err := readFault(inst.mem, ret, parseErrorOff)
	if err != nil {
		return nil, errors.Encoding("decode parse result", err)
	}
	if fault != nil {
		return &ParseResult{Fault: fault}, nil
	}

	tree, err := readBlob(inst.mem, ret+parseTreeOff)
	if err != nil {
		return nil, errors.Encoding("copy parse tree", err)
	}
	return &ParseResult{Tree: tree}, nil
}

func (e *WazeroEngine) DeparseProtobuf(ctx context.Context, tree []byte) (*DeparseResult, error) {
	inst, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, inst)

	data, err := inst.writeBytes(tree)
	if err != nil {
		return nil, err
	}
	defer inst.alloc.Free(data)

	ret, err := inst.alloc.Alloc(deparseResultSize)
	if err != nil {
		return nil, errors.AllocationFailed(deparseResultSize, err)
	}
	defer inst.alloc.Free(ret)

	if err := inst.invoke(ctx, fnDeparseProtobuf, uint64(ret), uint64(data), uint64(len(tree))); err != nil {
		return nil, err
	}
	defer inst.freeResult(ctx, fnFreeDeparseResult, ret)

	fault, err := readFault(inst.mem, ret, deparseErrorOff)
	if err != nil {
		return nil, errors.Encoding("decode deparse result", err)
	}
	if fault != nil {
		return &DeparseResult{Fault: fault}, nil
	}

	queryPtr, err := inst.mem.ReadU32(ret + deparseQueryOff)
	if err != nil {
		return nil, errors.Encoding("read deparse query pointer", err)
	}
	query, err := readCString(inst.mem, queryPtr)
	if err != nil {
		return nil, errors.Encoding("copy deparsed query", err)
	}
	return &DeparseResult{Query: query}, nil
}

func (e *WazeroEngine) Scan(ctx context.Context, sql string) (*ScanResult, error) {
	inst, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, inst)

	text, err := inst.writeCString(sql)
	if err != nil {
		return nil, err
	}
	defer inst.alloc.Free(text)

	ret, err := inst.alloc.Alloc(scanResultSize)
	if err != nil {
		return nil, errors.AllocationFailed(scanResultSize, err)
	}
	defer inst.alloc.Free(ret)

	if err := inst.invoke(ctx, fnScan, uint64(ret), uint64(text)); err != nil {
		return nil, err
	}
	defer inst.freeResult(ctx, fnFreeScanResult, ret)

	fault, err := readFault(inst.mem, ret, scanErrorOff)
	if err != nil {
		return nil, errors.Encoding("decode scan result", err)
	}
	if fault != nil {
		return &ScanResult{Fault: fault}, nil
	}

	tokens, err := readBlob(inst.mem, ret+scanTokensOff)
	if err != nil {
		return nil, errors.Encoding("copy token stream", err)
	}
	return &ScanResult{Tokens: tokens}, nil
}

func (e *WazeroEngine) Fingerprint(ctx context.Context, sql string) (*FingerprintResult, error) {
	inst, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, inst)

	text, err := inst.writeCString(sql)
	if err != nil {
		return nil, err
	}
	defer inst.alloc.Free(text)

	ret, err := inst.alloc.Alloc(fingerprintResultSize)
	if err != nil {
		return nil, errors.AllocationFailed(fingerprintResultSize, err)
	}
	defer inst.alloc.Free(ret)

	if err := inst.invoke(ctx, fnFingerprint, uint64(ret), uint64(text)); err != nil {
		return nil, err
	}
	defer inst.freeResult(ctx, fnFreeFingerprintResult, ret)

	fault, err := readFault(inst.mem, ret, fingerprintErrorOff)
	if err != nil {
		return nil, errors.Encoding("decode fingerprint result", err)
	}
	if fault != nil {
		return &FingerprintResult{Fault: fault}, nil
	}

	value, err := inst.mem.ReadU64(ret + fingerprintValueOff)
	if err != nil {
		return nil, errors.Encoding("read fingerprint value", err)
	}
	strPtr, err := inst.mem.ReadU32(ret + fingerprintTextOff)
	if err != nil {
		return nil, errors.Encoding("read fingerprint string pointer", err)
	}
	str, err := readCString(inst.mem, strPtr)
	if err != nil {
		return nil, errors.Encoding("copy fingerprint string", err)
	}
	return &FingerprintResult{Fingerprint: value, Text: str}, nil
}

func (e *WazeroEngine) Normalize(ctx context.Context, sql string) (*NormalizeResult, error) {
	inst, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, inst)

	text, err := inst.writeCString(sql)
	if err != nil {
		return nil, err
	}
	defer inst.alloc.Free(text)

	ret, err := inst.alloc.Alloc(normalizeResultSize)
	if err != nil {
		return nil, errors.AllocationFailed(normalizeResultSize, err)
	}
	defer inst.alloc.Free(ret)

	if err := inst.invoke(ctx, fnNormalize, uint64(ret), uint64(text)); err != nil {
		return nil, err
	}
	defer inst.freeResult(ctx, fnFreeNormalizeResult, ret)

	fault, err := readFault(inst.mem, ret, normalizeErrorOff)
	if err != nil {
		return nil, errors.Encoding("decode normalize result", err)
	}
	if fault != nil {
		return &NormalizeResult{Fault: fault}, nil
	}

	queryPtr, err := inst.mem.ReadU32(ret + normalizeQueryOff)
	if err != nil {
		return nil, errors.Encoding("read normalized query pointer", err)
	}
	query, err := readCString(inst.mem, queryPtr)
	if err != nil {
		return nil, errors.Encoding("copy normalized query", err)
	}
	return &NormalizeResult{Query: query}, nil
}

// Compile-time check that WazeroEngine implements Engine
var _ Engine = (*WazeroEngine)(nil)
