package engine

// Guest export names for the engine ABI.
// Consolidates every name the adapter resolves so a mismatched engine build
// fails loudly at instantiation, not mid-call.
//
// Calling convention: each operation export takes a host-allocated return
// area as its first argument and writes its result struct there. Every
// result struct has a paired free export that releases the struct's internal
// buffers; the return area itself is host-owned and released through
// guestFree.
const (
	guestMalloc = "malloc"
	guestFree   = "free"

	fnParseProtobuf         = "pg_query_parse_protobuf"
	fnFreeParseResult       = "pg_query_free_protobuf_parse_result"
	fnDeparseProtobuf       = "pg_query_deparse_protobuf"
	fnFreeDeparseResult     = "pg_query_free_deparse_result"
	fnScan                  = "pg_query_scan"
	fnFreeScanResult        = "pg_query_free_scan_result"
	fnFingerprint           = "pg_query_fingerprint"
	fnFreeFingerprintResult = "pg_query_free_fingerprint_result"
	fnNormalize             = "pg_query_normalize"
	fnFreeNormalizeResult   = "pg_query_free_normalize_result"
)

// requiredExports lists every export an engine binary must provide.
var requiredExports = []string{
	guestMalloc,
	guestFree,
	fnParseProtobuf,
	fnFreeParseResult,
	fnDeparseProtobuf,
	fnFreeDeparseResult,
	fnScan,
	fnFreeScanResult,
	fnFingerprint,
	fnFreeFingerprintResult,
	fnNormalize,
	fnFreeNormalizeResult,
}
