package pgbridge

// Memory represents the engine's linear memory as seen by the host.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside the engine's linear memory.
// Free must tolerate a zero pointer.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}
