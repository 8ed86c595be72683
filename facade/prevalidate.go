package facade

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// TreeValidator proves an encoded parse-tree payload structurally well-formed
// before it may be handed to the engine's deparse entry point, which has
// undefined behavior on arbitrary bytes. The engine re-parses the raw bytes
// authoritatively; whatever a validator decodes is discarded.
type TreeValidator interface {
	Validate(payload []byte) error
}

// Parse-result schema positions. The top two levels are closed: the result
// message carries a version and the statement list, each statement wraps one
// node plus its source location and length. Below that the node space is
// schema-open and only wire soundness is checked.
const (
	fieldVersion       = 1
	fieldStatements    = 2
	fieldStatementNode = 1
	fieldStatementLoc  = 2
	fieldStatementLen  = 3
)

// NewTreeValidator returns the default wire-format validator.
func NewTreeValidator() TreeValidator {
	return wireValidator{}
}

type wireValidator struct{}

func (wireValidator) Validate(payload []byte) error {
	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldVersion:
			if typ != protowire.VarintType {
				return fmt.Errorf("version field has wire type %d, want varint", typ)
			}
			_, n = protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("invalid version: %v", protowire.ParseError(n))
			}
			b = b[n:]

		case fieldStatements:
			if typ != protowire.BytesType {
				return fmt.Errorf("statement field has wire type %d, want length-delimited", typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("invalid statement: %v", protowire.ParseError(n))
			}
			b = b[n:]
			if err := validateStatement(v); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown parse result field %d", num)
		}
	}
	return nil
}

func validateStatement(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid statement tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldStatementNode:
			if typ != protowire.BytesType {
				return fmt.Errorf("statement node has wire type %d, want length-delimited", typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("invalid statement node: %v", protowire.ParseError(n))
			}
			b = b[n:]
			if err := validateNode(v); err != nil {
				return err
			}

		case fieldStatementLoc, fieldStatementLen:
			if typ != protowire.VarintType {
				return fmt.Errorf("statement field %d has wire type %d, want varint", num, typ)
			}
			_, n = protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("invalid statement field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]

		default:
			return fmt.Errorf("unknown statement field %d", num)
		}
	}
	return nil
}

// validateNode checks wire soundness of node content: every field must have
// a valid tag, a known wire type, an in-bounds length, and balanced groups.
// Length-delimited values are left opaque; without the full descriptor set a
// nested message cannot be told apart from a string.
func validateNode(b []byte) error {
	for len(b) > 0 {
		_, _, n := protowire.ConsumeField(b)
		if n < 0 {
			return fmt.Errorf("malformed node field: %v", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
