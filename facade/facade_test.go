package facade

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/pgbridge/pgbridge/engine"
	"github.com/pgbridge/pgbridge/errors"
)

// fakeEngine records invocations and returns canned results.
type fakeEngine struct {
	calls []string

	parseResult       *engine.ParseResult
	deparseResult     *engine.DeparseResult
	scanResult        *engine.ScanResult
	fingerprintResult *engine.FingerprintResult
	normalizeResult   *engine.NormalizeResult
	err               error
}

func (e *fakeEngine) ParseProtobuf(ctx context.Context, sql string) (*engine.ParseResult, error) {
	e.calls = append(e.calls, "parse:"+sql)
	return e.parseResult, e.err
}

func (e *fakeEngine) DeparseProtobuf(ctx context.Context, tree []byte) (*engine.DeparseResult, error) {
	e.calls = append(e.calls, fmt.Sprintf("deparse:%d", len(tree)))
	return e.deparseResult, e.err
}

func (e *fakeEngine) Scan(ctx context.Context, sql string) (*engine.ScanResult, error) {
	e.calls = append(e.calls, "scan:"+sql)
	return e.scanResult, e.err
}

func (e *fakeEngine) Fingerprint(ctx context.Context, sql string) (*engine.FingerprintResult, error) {
	e.calls = append(e.calls, "fingerprint:"+sql)
	return e.fingerprintResult, e.err
}

func (e *fakeEngine) Normalize(ctx context.Context, sql string) (*engine.NormalizeResult, error) {
	e.calls = append(e.calls, "normalize:"+sql)
	return e.normalizeResult, e.err
}

func wantKind(t *testing.T, res Result, kind errors.Kind) *errors.Error {
	t.Helper()
	if res.OK() {
		t.Fatalf("expected %s error, got success", kind)
	}
	if res.Err.Kind != kind {
		t.Fatalf("error kind = %s, want %s", res.Err.Kind, kind)
	}
	return res.Err
}

func TestParseSuccess(t *testing.T) {
	ctx := context.Background()
	tree := []byte{0x0a, 0x00, 0x12}
	eng := &fakeEngine{parseResult: &engine.ParseResult{Tree: tree}}

	res := New(eng).Parse(ctx, []byte("SELECT 1"))
	if !res.OK() {
		t.Fatalf("parse failed: %v", res.Err)
	}
	if !bytes.Equal(res.Payload, tree) {
		t.Errorf("payload = %x, want %x", res.Payload, tree)
	}
	if len(eng.calls) != 1 || eng.calls[0] != "parse:SELECT 1" {
		t.Errorf("engine calls = %v", eng.calls)
	}
}

func TestParseSyntaxErrorCursor(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{parseResult: &engine.ParseResult{
		Fault: &engine.Fault{Message: `syntax error at or near "FROM"`, Cursor: 8},
	}}

	res := New(eng).Parse(ctx, []byte("SELECT FROM"))
	err := wantKind(t, res, errors.KindSyntax)
	if err.Cursor != 7 {
		t.Errorf("cursor = %d, want 7 (zero-indexed)", err.Cursor)
	}
}

func TestScanErrorWithoutLocation(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{scanResult: &engine.ScanResult{
		Fault: &engine.Fault{Message: "unterminated quoted string", Cursor: 0},
	}}

	res := New(eng).Scan(ctx, []byte(`SELECT '`))
	err := wantKind(t, res, errors.KindSyntax)
	if err.Cursor != -1 {
		t.Errorf("cursor = %d, want -1 for no location", err.Cursor)
	}
}

func TestBoundaryRejectionsSkipEngine(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(f *Facade) Result
		kind errors.Kind
	}{
		{
			name: "no arguments",
			call: func(f *Facade) Result { return f.Parse(ctx) },
			kind: errors.KindInvalidArity,
		},
		{
			name: "two arguments",
			call: func(f *Facade) Result { return f.Normalize(ctx, []byte("a"), []byte("b")) },
			kind: errors.KindInvalidArity,
		},
		{
			name: "string argument",
			call: func(f *Facade) Result { return f.Scan(ctx, "SELECT 1") },
			kind: errors.KindInvalidArgument,
		},
		{
			name: "nil argument",
			call: func(f *Facade) Result { return f.Fingerprint(ctx, nil) },
			kind: errors.KindInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			res := tt.call(New(eng))
			wantKind(t, res, tt.kind)
			if len(eng.calls) != 0 {
				t.Errorf("engine invoked on boundary rejection: %v", eng.calls)
			}
		})
	}
}

func TestInputTooLarge(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	f := New(eng, WithLimits(Limits{MaxSQLBytes: 8, MaxTreeBytes: 4}))

	res := f.Parse(ctx, []byte("SELECT pg_sleep(1)"))
	wantKind(t, res, errors.KindInputTooLarge)

	res = f.Deparse(ctx, []byte{1, 2, 3, 4, 5})
	wantKind(t, res, errors.KindInputTooLarge)

	if len(eng.calls) != 0 {
		t.Errorf("engine invoked on oversized input: %v", eng.calls)
	}
}

func TestDeparseSuccess(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{deparseResult: &engine.DeparseResult{Query: "SELECT 1"}}

	res := New(eng).Deparse(ctx, validParsePayload(t))
	if !res.OK() {
		t.Fatalf("deparse failed: %v", res.Err)
	}
	if res.Text != "SELECT 1" {
		t.Errorf("text = %q, want %q", res.Text, "SELECT 1")
	}
	if len(eng.calls) != 1 {
		t.Errorf("engine calls = %v", eng.calls)
	}
}

func TestDeparseMalformedPayloadSkipsEngine(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{deparseResult: &engine.DeparseResult{Query: "unreachable"}}

	res := New(eng).Deparse(ctx, []byte{0xff, 0xff, 0xff})
	wantKind(t, res, errors.KindMalformedPayload)
	if len(eng.calls) != 0 {
		t.Errorf("engine invoked on malformed payload: %v", eng.calls)
	}
}

func TestDeparseFuzzedInputsNeverCrash(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{deparseResult: &engine.DeparseResult{Query: "SELECT 1"}}
	f := New(eng)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 10000; i++ {
		buf := make([]byte, rng.Intn(256))
		rng.Read(buf)
		before := len(eng.calls)
		res := f.Deparse(ctx, buf)
		if res.OK() {
			continue // coincidentally well-formed bytes; the engine re-parses
		}
		if res.Err.Kind != errors.KindMalformedPayload {
			t.Fatalf("input %x: kind = %s, want %s", buf, res.Err.Kind, errors.KindMalformedPayload)
		}
		if len(eng.calls) != before {
			t.Fatalf("engine invoked on rejected payload %x", buf)
		}
	}
}

func TestInjectedValidatorGatesDeparse(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{deparseResult: &engine.DeparseResult{Query: "unreachable"}}
	f := New(eng, WithTreeValidator(rejectAll{}))

	res := f.Deparse(ctx, validParsePayload(t))
	wantKind(t, res, errors.KindMalformedPayload)
	if len(eng.calls) != 0 {
		t.Error("deparse reached the engine despite validator rejection")
	}
}

type rejectAll struct{}

func (rejectAll) Validate([]byte) error { return fmt.Errorf("injected") }

func TestFingerprintStableAcrossLiterals(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{fingerprintResult: &engine.FingerprintResult{
		Fingerprint: 0x50fde20626009aba,
		Text:        "50fde20626009aba",
	}}
	f := New(eng)

	a := f.Fingerprint(ctx, []byte("SELECT 1"))
	b := f.Fingerprint(ctx, []byte("SELECT 2"))
	if !a.OK() || !b.OK() {
		t.Fatalf("fingerprint failed: %v, %v", a.Err, b.Err)
	}
	if a.Fingerprint.Value != b.Fingerprint.Value || a.Fingerprint.Text != b.Fingerprint.Text {
		t.Errorf("fingerprints differ: %+v vs %+v", a.Fingerprint, b.Fingerprint)
	}
}

func TestNormalizeSuccess(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{normalizeResult: &engine.NormalizeResult{Query: "SELECT $1"}}

	res := New(eng).Normalize(ctx, []byte("SELECT 1"))
	if !res.OK() {
		t.Fatalf("normalize failed: %v", res.Err)
	}
	if res.Text != "SELECT $1" {
		t.Errorf("text = %q, want %q", res.Text, "SELECT $1")
	}
}

func TestPlainEngineFault(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{normalizeResult: &engine.NormalizeResult{
		Fault: &engine.Fault{Message: "cannot normalize"},
	}}

	res := New(eng).Normalize(ctx, []byte("SELECT 1"))
	err := wantKind(t, res, errors.KindEngine)
	if err.Detail != "cannot normalize" {
		t.Errorf("detail = %q", err.Detail)
	}
}

func TestClassifiedEngineErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{err: errors.AllocationFailed(64, nil)}

	res := New(eng).Parse(ctx, []byte("SELECT 1"))
	wantKind(t, res, errors.KindAllocation)
}

func TestUnclassifiedEngineErrorsBecomeEngineKind(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{err: fmt.Errorf("guest trap: unreachable")}

	res := New(eng).Parse(ctx, []byte("SELECT 1"))
	err := wantKind(t, res, errors.KindEngine)
	if err.Cause == nil {
		t.Error("cause not preserved")
	}
}

func TestOperationRegistry(t *testing.T) {
	f := New(&fakeEngine{})

	ops := f.Operations()
	want := []string{"parse", "deparse", "scan", "fingerprint", "normalize"}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d", len(ops), len(want))
	}
	for i, name := range want {
		if ops[i].Name != name {
			t.Errorf("ops[%d] = %s, want %s", i, ops[i].Name, name)
		}
		if !ops[i].CPUBound {
			t.Errorf("%s not marked CPU bound", name)
		}
		if ops[i].Handler == nil {
			t.Errorf("%s has no handler", name)
		}
	}

	if _, ok := f.Operation("deparse"); !ok {
		t.Error("deparse not found by name")
	}
	if _, ok := f.Operation("explain"); ok {
		t.Error("unexpected operation found")
	}
}

func TestDispatchThroughRegistry(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{normalizeResult: &engine.NormalizeResult{Query: "SELECT $1"}}
	f := New(eng)

	op, ok := f.Operation("normalize")
	if !ok {
		t.Fatal("normalize not registered")
	}
	res := op.Handler(ctx, []byte("SELECT 1"))
	if !res.OK() || res.Text != "SELECT $1" {
		t.Errorf("registry dispatch: %+v", res)
	}
}
