package facade

import "github.com/pgbridge/pgbridge/errors"

// validateArgs checks call arity, argument type, and size ceiling, in that
// order. Pure inspection: no allocation, no engine work. The returned buffer
// is the caller's; it is only borrowed for the duration of the call.
func validateArgs(args []any, max int) ([]byte, *errors.Error) {
	if len(args) != 1 {
		return nil, errors.InvalidArity(len(args))
	}
	buf, ok := args[0].([]byte)
	if !ok {
		return nil, errors.InvalidArgument(args[0])
	}
	if len(buf) > max {
		return nil, errors.InputTooLarge(len(buf), max)
	}
	return buf, nil
}
