package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pgbridge/pgbridge/engine"
	"github.com/pgbridge/pgbridge/facade"
)

func main() {
	var (
		enginePath  = flag.String("engine", "", "Path to the engine wasm binary")
		opName      = flag.String("op", "", "Operation: parse, deparse, scan, fingerprint, normalize")
		sqlArg      = flag.String("sql", "", "SQL text input (default: read stdin)")
		inFile      = flag.String("in", "", "Read the input from a file instead")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *enginePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pgbridge -engine <pg_query.wasm> -op <name> [-sql text | -in file]")
		fmt.Fprintln(os.Stderr, "       pgbridge -engine <pg_query.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	wasmBytes, err := os.ReadFile(*enginePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	eng, err := engine.New(ctx, wasmBytes, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close(ctx)

	f := facade.New(eng)

	if *interactive {
		if err := runInteractive(f, *enginePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	op, ok := f.Operation(*opName)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown operation %q\n", *opName)
		os.Exit(1)
	}

	input, err := readInput(*sqlArg, *inFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	res := op.Handler(ctx, input)
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", res.Err)
		os.Exit(1)
	}

	switch {
	case res.Fingerprint != nil:
		fmt.Printf("%016x %s\n", res.Fingerprint.Value, res.Fingerprint.Text)
	case res.Payload != nil:
		os.Stdout.Write(res.Payload)
	default:
		fmt.Println(res.Text)
	}
}

func readInput(sql, file string) ([]byte, error) {
	switch {
	case sql != "":
		return []byte(sql), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return io.ReadAll(os.Stdin)
	}
}
