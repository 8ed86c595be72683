package engine

import (
	"bytes"
	"fmt"

	"github.com/pgbridge/pgbridge"
)

// Result struct layouts for a wasm32 little-endian guest. Offsets mirror the
// engine's C API structs; pointers and size_t are 4 bytes.
const (
	// PgQueryError: message, funcname, filename, lineno, cursorpos, context
	faultMessageOff = 0
	faultCursorOff  = 16

	// PgQueryProtobuf: {len, data}
	blobLenOff  = 0
	blobDataOff = 4

	// PgQueryProtobufParseResult: {parse_tree, stderr_buffer, error}
	parseResultSize = 16
	parseTreeOff    = 0
	parseErrorOff   = 12

	// PgQueryDeparseResult: {query, error}
	deparseResultSize = 8
	deparseQueryOff   = 0
	deparseErrorOff   = 4

	// PgQueryScanResult: {pbuf, stderr_buffer, error}
	scanResultSize = 16
	scanTokensOff  = 0
	scanErrorOff   = 12

	// PgQueryFingerprintResult: {fingerprint, fingerprint_str, stderr_buffer, error}
	fingerprintResultSize = 24
	fingerprintValueOff   = 0
	fingerprintTextOff    = 8
	fingerprintErrorOff   = 16

	// PgQueryNormalizeResult: {normalized_query, error}
	normalizeResultSize = 8
	normalizeQueryOff   = 0
	normalizeErrorOff   = 4
)

// memory is what the layout readers need from guest linear memory.
type memory interface {
	pgbridge.Memory
	pgbridge.MemorySizer
}

// readFault decodes the error struct referenced at resultPtr+errOff.
// A null error pointer means the call succeeded and yields (nil, nil).
func readFault(mem memory, resultPtr, errOff uint32) (*Fault, error) {
	errPtr, err := mem.ReadU32(resultPtr + errOff)
	if err != nil {
		return nil, fmt.Errorf("read error pointer: %w", err)
	}
	if errPtr == 0 {
		return nil, nil
	}

	msgPtr, err := mem.ReadU32(errPtr + faultMessageOff)
	if err != nil {
		return nil, fmt.Errorf("read error message pointer: %w", err)
	}
	cursor, err := mem.ReadU32(errPtr + faultCursorOff)
	if err != nil {
		return nil, fmt.Errorf("read error cursor: %w", err)
	}

	var msg string
	if msgPtr != 0 {
		msg, err = readCString(mem, msgPtr)
		if err != nil {
			return nil, fmt.Errorf("read error message: %w", err)
		}
	}

	return &Fault{Message: msg, Cursor: int32(cursor)}, nil
}

// readBlob copies a length-prefixed guest buffer {len, data} located at base.
// The copy preserves the exact reported length, including embedded nulls.
func readBlob(mem memory, base uint32) ([]byte, error) {
	n, err := mem.ReadU32(base + blobLenOff)
	if err != nil {
		return nil, fmt.Errorf("read blob length: %w", err)
	}
	ptr, err := mem.ReadU32(base + blobDataOff)
	if err != nil {
		return nil, fmt.Errorf("read blob pointer: %w", err)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if ptr == 0 {
		return nil, fmt.Errorf("null blob pointer with length %d", n)
	}

	view, err := mem.Read(ptr, n)
	if err != nil {
		return nil, fmt.Errorf("read blob bytes: %w", err)
	}
	out := make([]byte, n)
	copy(out, view)
	return out, nil
}

const cstrChunk = 4096

// readCString copies a null-terminated guest string, measured to the first
// null byte. Text results therefore cannot carry embedded nulls.
func readCString(mem memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("null string pointer")
	}
	size := mem.Size()
	if ptr >= size {
		return "", fmt.Errorf("string pointer 0x%x beyond memory size %d", ptr, size)
	}

	var out []byte
	for off := ptr; off < size; {
		n := uint32(cstrChunk)
		if size-off < n {
			n = size - off
		}
		view, err := mem.Read(off, n)
		if err != nil {
			return "", err
		}
		if i := bytes.IndexByte(view, 0); i >= 0 {
			return string(append(out, view[:i]...)), nil
		}
		out = append(out, view...)
		off += n
	}
	return "", fmt.Errorf("unterminated string at 0x%x", ptr)
}
