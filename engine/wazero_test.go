package engine

import (
	"context"
	"os"
	"sync"
	"testing"
)

// loadEngine builds a real engine from testdata/pg_query.wasm.
// The binary is a build artifact, not checked in; tests that need it skip
// when it is absent.
func loadEngine(t *testing.T, ctx context.Context) *WazeroEngine {
	t.Helper()

	wasmBytes, err := os.ReadFile("testdata/pg_query.wasm")
	if err != nil {
		t.Skipf("engine binary not available: %v", err)
	}

	eng, err := New(ctx, wasmBytes, nil)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })
	return eng
}

func TestParseRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := loadEngine(t, ctx)

	parsed, err := eng.ParseProtobuf(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Fault != nil {
		t.Fatalf("parse fault: %+v", parsed.Fault)
	}
	if len(parsed.Tree) == 0 {
		t.Fatal("empty parse tree")
	}

	deparsed, err := eng.DeparseProtobuf(ctx, parsed.Tree)
	if err != nil {
		t.Fatalf("deparse: %v", err)
	}
	if deparsed.Fault != nil {
		t.Fatalf("deparse fault: %+v", deparsed.Fault)
	}
	if deparsed.Query != "SELECT 1" {
		t.Errorf("deparse = %q, want %q", deparsed.Query, "SELECT 1")
	}

	// Parse of the deparsed text must yield an equivalent tree.
	again, err := eng.ParseProtobuf(ctx, deparsed.Query)
	if err != nil || again.Fault != nil {
		t.Fatalf("reparse: %v / %+v", err, again.Fault)
	}
	if string(again.Tree) != string(parsed.Tree) {
		t.Error("reparse produced a different tree")
	}
}

func TestParseReportsSyntaxError(t *testing.T) {
	ctx := context.Background()
	eng := loadEngine(t, ctx)

	parsed, err := eng.ParseProtobuf(ctx, "SELECT FROM")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Fault == nil {
		t.Fatal("expected fault for malformed SQL")
	}
	if parsed.Fault.Cursor != 8 {
		t.Errorf("cursor = %d, want engine-reported 8", parsed.Fault.Cursor)
	}
}

func TestNormalizeReplacesLiterals(t *testing.T) {
	ctx := context.Background()
	eng := loadEngine(t, ctx)

	res, err := eng.Normalize(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Fault != nil {
		t.Fatalf("normalize fault: %+v", res.Fault)
	}
	if res.Query != "SELECT $1" {
		t.Errorf("normalized = %q, want %q", res.Query, "SELECT $1")
	}
}

func TestFingerprintIgnoresLiterals(t *testing.T) {
	ctx := context.Background()
	eng := loadEngine(t, ctx)

	a, err := eng.Fingerprint(ctx, "SELECT 1")
	if err != nil || a.Fault != nil {
		t.Fatalf("fingerprint: %v / %+v", err, a.Fault)
	}
	b, err := eng.Fingerprint(ctx, "SELECT 2")
	if err != nil || b.Fault != nil {
		t.Fatalf("fingerprint: %v / %+v", err, b.Fault)
	}
	if a.Fingerprint != b.Fingerprint || a.Text != b.Text {
		t.Errorf("fingerprints differ: %x/%s vs %x/%s", a.Fingerprint, a.Text, b.Fingerprint, b.Text)
	}
}

func TestConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	eng := loadEngine(t, ctx)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Scan(ctx, "SELECT a, b FROM t WHERE c = 1")
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			if res.Fault != nil || len(res.Tokens) == 0 {
				t.Errorf("scan result: %+v", res)
			}
		}()
	}
	wg.Wait()
}
