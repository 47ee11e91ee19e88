// Package subscription implements Subscriptions and MonitoredItems (spec
// §4.H): the publishing cycle, keep-alive, and event ContentFilter
// evaluation.
package subscription

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterOperator enumerates the ContentFilter operators named in spec
// §4.H (OfType/And/Or/Not/Equals/GreaterThan/LessThan/Like/Between/
// InList/IsNull).
type FilterOperator int

const (
	OpEquals FilterOperator = iota
	OpGreaterThan
	OpLessThan
	OpGreaterThanOrEqual
	OpLessThanOrEqual
	OpLike
	OpNot
	OpBetween
	OpInList
	OpAnd
	OpOr
	OpIsNull
	OpOfType
)

// ContentFilterElement is one clause; Operands are either literal
// values or references to other elements by index (the OPC UA
// FilterOperand union), flattened here into expr-lang source fragments
// built by compileElement.
type ContentFilterElement struct {
	Operator FilterOperator
	Operands []Operand
}

// Operand is either a literal value, a SimpleAttributeOperand path into
// the event fields bag, or an index into another filter element.
type Operand struct {
	Literal      any
	FieldPath    string // e.g. "Severity", "Message" — keys into the event's field map
	ElementIndex int
	IsElementRef bool
}

// ContentFilter is an ordered list of elements; element 0 is the
// filter's root (mirrors the OPC UA wire encoding, where elements can
// reference each other only by later index never creating cycles).
type ContentFilter struct {
	Elements []ContentFilterElement
}

// CompiledFilter is a ContentFilter compiled once into an expr-lang
// program per element, evaluated against an event's field bag on every
// notification. Compiling once and evaluating many times amortizes
// expr's parse/compile cost across a subscription's lifetime (spec
// §4.H: filters are evaluated per-event, potentially very frequently).
type CompiledFilter struct {
	programs []*vm.Program
}

// Compile builds a CompiledFilter from f. Grounded on SPEC_FULL.md's
// domain-stack wiring: expr-lang/expr (github.com/expr-lang/expr)
// evaluates the boolean/comparison expression tree instead of a
// hand-rolled recursive-descent evaluator, the same way the teacher's
// stack reaches for a library wherever the pack supplies one for a
// concern.
func Compile(f ContentFilter) (*CompiledFilter, error) {
	cf := &CompiledFilter{programs: make([]*vm.Program, len(f.Elements))}
	for i, el := range f.Elements {
		src, err := compileElement(f, el)
		if err != nil {
			return nil, fmt.Errorf("subscription: compile filter element %d: %w", i, err)
		}
		prog, err := expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("subscription: expr compile element %d (%q): %w", i, src, err)
		}
		cf.programs[i] = prog
	}
	return cf, nil
}

// compileElement lowers one ContentFilterElement into an expr-lang
// boolean expression string over a field bag named `event`.
func compileElement(f ContentFilter, el ContentFilterElement) (string, error) {
	operand := func(o Operand) (string, error) {
		switch {
		case o.IsElementRef:
			if o.ElementIndex < 0 || o.ElementIndex >= len(f.Elements) {
				return "", fmt.Errorf("element reference %d out of range", o.ElementIndex)
			}
			return compileElement(f, f.Elements[o.ElementIndex])
		case o.FieldPath != "":
			return fmt.Sprintf("event[%q]", o.FieldPath), nil
		default:
			return fmt.Sprintf("%#v", o.Literal), nil
		}
	}

	binary := func(sym string) (string, error) {
		if len(el.Operands) != 2 {
			return "", fmt.Errorf("operator requires exactly 2 operands, got %d", len(el.Operands))
		}
		lhs, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		rhs, err := operand(el.Operands[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", lhs, sym, rhs), nil
	}

	switch el.Operator {
	case OpEquals:
		return binary("==")
	case OpGreaterThan:
		return binary(">")
	case OpLessThan:
		return binary("<")
	case OpGreaterThanOrEqual:
		return binary(">=")
	case OpLessThanOrEqual:
		return binary("<=")
	case OpAnd:
		return binary("&&")
	case OpOr:
		return binary("||")
	case OpNot:
		if len(el.Operands) != 1 {
			return "", fmt.Errorf("Not requires exactly 1 operand")
		}
		inner, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("!(%s)", inner), nil
	case OpIsNull:
		if len(el.Operands) != 1 {
			return "", fmt.Errorf("IsNull requires exactly 1 operand")
		}
		inner, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s == nil)", inner), nil
	case OpLike:
		lhs, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		rhs, err := operand(el.Operands[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s contains %s)", lhs, rhs), nil
	case OpBetween:
		if len(el.Operands) != 3 {
			return "", fmt.Errorf("Between requires exactly 3 operands")
		}
		v, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		lo, err := operand(el.Operands[1])
		if err != nil {
			return "", err
		}
		hi, err := operand(el.Operands[2])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s >= %s && %s <= %s)", v, lo, v, hi), nil
	case OpInList:
		if len(el.Operands) < 2 {
			return "", fmt.Errorf("InList requires at least 2 operands")
		}
		v, err := operand(el.Operands[0])
		if err != nil {
			return "", err
		}
		src := fmt.Sprintf("(%s in [", v)
		for i, o := range el.Operands[1:] {
			if i > 0 {
				src += ", "
			}
			part, err := operand(o)
			if err != nil {
				return "", err
			}
			src += part
		}
		return src + "])", nil
	case OpOfType:
		if len(el.Operands) != 1 {
			return "", fmt.Errorf("OfType requires exactly 1 operand")
		}
		return fmt.Sprintf(`(event["EventTypeName"] == %#v)`, el.Operands[0].Literal), nil
	default:
		return "", fmt.Errorf("unsupported filter operator %d", el.Operator)
	}
}

// Eval runs the root element (index 0) against one event's field bag
// and reports whether the event passes the filter.
func (c *CompiledFilter) Eval(event map[string]any) (bool, error) {
	if len(c.programs) == 0 {
		return true, nil
	}
	out, err := expr.Run(c.programs[0], map[string]any{"event": event})
	if err != nil {
		return false, fmt.Errorf("subscription: eval filter: %w", err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("subscription: filter did not evaluate to bool, got %T", out)
	}
	return b, nil
}
