package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/pgbridge/pgbridge"
)

// guestMemory wraps wazero linear memory to implement pgbridge.Memory.
// Reads return views into guest memory; callers copy before the next call.
type guestMemory struct {
	mem api.Memory
}

func (m *guestMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *guestMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *guestMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *guestMemory) Size() uint32 {
	return m.mem.Size()
}

// guestAllocator drives the guest's malloc/free exports.
// It is owned by exactly one in-flight call; setContext pins the call's
// context for Free, which the pgbridge.Allocator contract keeps context-free.
type guestAllocator struct {
	allocFn caller
	freeFn  caller
	ctx     context.Context
	stack   []uint64
}

func (a *guestAllocator) setContext(ctx context.Context) {
	a.ctx = ctx
}

func (a *guestAllocator) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

func (a *guestAllocator) Alloc(size uint32) (uint32, error) {
	a.stack[0] = uint64(size)
	if err := a.allocFn.CallWithStack(a.context(), a.stack[:1]); err != nil {
		return 0, err
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 {
		return 0, fmt.Errorf("guest malloc returned null for %d bytes", size)
	}
	return ptr, nil
}

func (a *guestAllocator) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	a.stack[0] = uint64(ptr)
	if err := a.freeFn.CallWithStack(a.context(), a.stack[:1]); err != nil {
		Logger().Warn("guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// Compile-time checks against the root interfaces
var _ pgbridge.Memory = (*guestMemory)(nil)
var _ pgbridge.MemorySizer = (*guestMemory)(nil)
var _ pgbridge.Allocator = (*guestAllocator)(nil)
