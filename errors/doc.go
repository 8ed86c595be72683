// Package errors provides the structured error types returned across the
// query call boundary.
//
// Errors are categorized by Phase (where in a call the failure occurred) and
// Kind (failure class). Every failure a caller can observe is one of the
// Kind constants; no class is ever coerced into another, so callers can
// branch on Kind alone:
//
//	res := f.Parse(ctx, sql)
//	if e, ok := errors.AsError(res.Err); ok && e.Kind == errors.KindSyntax {
//		fmt.Printf("%s at byte %d\n", e.Detail, e.Cursor)
//	}
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
