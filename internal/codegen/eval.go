package codegen

import (
	"fmt"
	"os"
	"strconv"

	"sysyc/internal/ast"
	"sysyc/internal/symtab"
	"sysyc/internal/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Value is the result of lowering one expression subtree: the operand text to reference it by, its type, and,
// when the subtree folds to a compile-time constant, that constant's value. A Value with IsConst set carries no
// emitted IR of its own; Operand is then the decimal text of ConstValue, suitable for direct inlining wherever
// an operand is expected (spec.md §4.5.7's constant-folding rule).
type Value struct {
	Operand    string
	Type       *types.Type
	IsConst    bool
	ConstValue int32
}

// ---------------------
// ----- functions -----
// ---------------------

// evalExpression lowers the expression rooted at n, emitting IR to sink for any part that does not fold to a
// compile-time constant. It is the single algorithm spec.md §4.4 and §4.5.7 both describe: a constant evaluator
// is this function used where the grammar guarantees every leaf folds (array dimensions, const initializers),
// and a lowering visitor is this function used where it may not (ordinary expressions). DESIGN.md records the
// decision to unify the two rather than port IRBuilder.cpp's two near-duplicate procedures.
func evalExpression(n *ast.Node, st *symtab.SymTab, sink *Sink) (Value, error) {
	switch n.Typ {
	case ast.INT_LITERAL:
		v, err := parseIntLiteral(n.Data.(string))
		if err != nil {
			return Value{}, err
		}
		return Value{Operand: strconv.FormatInt(int64(v), 10), Type: types.Int(), IsConst: true, ConstValue: v}, nil

	case ast.LVAL:
		return evalLval(n, st, sink)

	case ast.UNARY_EXPR:
		return evalUnary(n, st, sink)

	case ast.BINARY_EXPR:
		return evalBinary(n, st, sink)

	case ast.CALL_EXPR:
		return evalCall(n, st, sink)

	default:
		return Value{}, fmt.Errorf("line %d: not an expression: %s", n.Line, n.Type())
	}
}

// evalLval reads the current value of an lvalue. A bare reference to a scalar constant inlines its folded
// value directly; a bare reference to an array decays to a pointer to its first element, for passing to a
// sylib function expecting int*. An indexed reference to a constant array folds to the element's constant
// value when every index is itself constant; otherwise (and for any indexed variable) the element address is
// computed with genIndexAddr and loaded.
func evalLval(n *ast.Node, st *symtab.SymTab, sink *Sink) (Value, error) {
	name := n.Data.(string)
	sym := st.Lookup(name)
	if sym == nil {
		return Value{}, fmt.Errorf("line %d: undeclared identifier %q", n.Line, name)
	}

	if len(n.Children) == 0 {
		if sym.IsConst && sym.Type.IsInt() {
			return constValue(sym.ScalarConst), nil
		}
		if sym.Type.IsArray() {
			gep := sink.FreshTemp()
			sink.Emit(fmt.Sprintf("  %s = getelementptr %s, %s* %s, i32 0, i32 0\n",
				gep, sym.Type.String(), sym.Type.String(), sym.Operand()))
			return Value{Operand: gep, Type: types.Pointer(sym.Type.Elem)}, nil
		}
		t := sym.Storage()
		tmp := sink.FreshTemp()
		sink.Emit(fmt.Sprintf("  %s = load %s, %s* %s\n", tmp, t.String(), t.String(), sym.Operand()))
		return Value{Operand: tmp, Type: t}, nil
	}

	if sym.IsConst {
		if idx, ok := constIndex(n.Children, st); ok {
			flat := flatIndex(idx, sym.Type.Dims)
			if flat >= 0 && flat < len(sym.ArrayConsts) {
				return constValue(sym.ArrayConsts[flat]), nil
			}
		}
	}
	addr, err := genIndexAddr(n, st, sink, sym)
	if err != nil {
		return Value{}, err
	}
	tmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = load i32, i32* %s\n", tmp, addr))
	return Value{Operand: tmp, Type: types.Int()}, nil
}

// evalUnary lowers "+x", "-x" and "!x". A constant operand folds per spec.md §4.4's scalar rules; otherwise the
// corresponding instruction is emitted.
func evalUnary(n *ast.Node, st *symtab.SymTab, sink *Sink) (Value, error) {
	operand, err := evalExpression(n.Children[0], st, sink)
	if err != nil {
		return Value{}, err
	}
	op := n.Data.(string)

	if operand.IsConst {
		var v int32
		switch op {
		case "+":
			v = operand.ConstValue
		case "-":
			v = -operand.ConstValue
		case "!":
			v = boolToInt(operand.ConstValue == 0)
		}
		return constValue(v), nil
	}

	switch op {
	case "+":
		return operand, nil
	case "-":
		tmp := sink.FreshTemp()
		sink.Emit(fmt.Sprintf("  %s = sub i32 0, %s\n", tmp, operand.Operand))
		return Value{Operand: tmp, Type: types.Int()}, nil
	case "!":
		cmp := sink.FreshTemp()
		sink.Emit(fmt.Sprintf("  %s = icmp eq i32 %s, 0\n", cmp, operand.Operand))
		tmp := sink.FreshTemp()
		sink.Emit(fmt.Sprintf("  %s = zext i1 %s to i32\n", tmp, cmp))
		return Value{Operand: tmp, Type: types.Int()}, nil
	}
	return Value{}, fmt.Errorf("line %d: unknown unary operator %q", n.Line, op)
}

// evalBinary lowers every binary operator SysY defines. Both operands are evaluated first (left to right); if
// both fold to constants the whole expression folds too and nothing is emitted, matching spec.md §4.5.7's
// uniform constant-folding rule. && and || never short-circuit (DESIGN.md open-question decision): both sides
// are always evaluated/emitted.
func evalBinary(n *ast.Node, st *symtab.SymTab, sink *Sink) (Value, error) {
	lhs, err := evalExpression(n.Children[0], st, sink)
	if err != nil {
		return Value{}, err
	}
	rhs, err := evalExpression(n.Children[1], st, sink)
	if err != nil {
		return Value{}, err
	}
	op := n.Data.(string)

	if lhs.IsConst && rhs.IsConst {
		v, err := foldBinary(op, lhs.ConstValue, rhs.ConstValue)
		if err != nil {
			return Value{}, fmt.Errorf("line %d: %v", n.Line, err)
		}
		return constValue(v), nil
	}

	switch op {
	case "+", "-", "*", "/", "%":
		return emitArith(sink, op, lhs.Operand, rhs.Operand)
	case "<", ">", "<=", ">=", "==", "!=":
		return emitCompare(sink, op, lhs.Operand, rhs.Operand)
	case "&&", "||":
		return emitLogical(sink, op, lhs.Operand, rhs.Operand)
	}
	return Value{}, fmt.Errorf("line %d: unknown binary operator %q", n.Line, op)
}

// foldBinary implements the scalar constant arithmetic of spec.md §4.4: multiplicative ops truncate toward zero
// with a remainder that takes the sign of the dividend (Go's / and % already do this for int32), additive ops
// wrap at the 32-bit boundary (also native to int32 arithmetic), relational/equality ops produce 0 or 1, and &&/||
// are evaluated without short-circuiting since both operands were already folded above.
func foldBinary(op string, l, r int32) (int32, error) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, fmt.Errorf("division by zero in constant expression")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, fmt.Errorf("division by zero in constant expression")
		}
		return l % r, nil
	case "<":
		return boolToInt(l < r), nil
	case ">":
		return boolToInt(l > r), nil
	case "<=":
		return boolToInt(l <= r), nil
	case ">=":
		return boolToInt(l >= r), nil
	case "==":
		return boolToInt(l == r), nil
	case "!=":
		return boolToInt(l != r), nil
	case "&&":
		return boolToInt(l != 0 && r != 0), nil
	case "||":
		return boolToInt(l != 0 || r != 0), nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

// emitArith emits the instruction for a non-constant +,-,*,/,% expression.
func emitArith(sink *Sink, op, l, r string) (Value, error) {
	var instr string
	switch op {
	case "+":
		instr = "add"
	case "-":
		instr = "sub"
	case "*":
		instr = "mul"
	case "/":
		instr = "sdiv"
	case "%":
		instr = "srem"
	default:
		return Value{}, fmt.Errorf("unknown arithmetic operator %q", op)
	}
	tmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = %s i32 %s, %s\n", tmp, instr, l, r))
	return Value{Operand: tmp, Type: types.Int()}, nil
}

// emitCompare emits the icmp+zext pair for a non-constant relational/equality expression.
func emitCompare(sink *Sink, op, l, r string) (Value, error) {
	var cond string
	switch op {
	case "<":
		cond = "slt"
	case ">":
		cond = "sgt"
	case "<=":
		cond = "sle"
	case ">=":
		cond = "sge"
	case "==":
		cond = "eq"
	case "!=":
		cond = "ne"
	default:
		return Value{}, fmt.Errorf("unknown comparison operator %q", op)
	}
	cmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = icmp %s i32 %s, %s\n", cmp, cond, l, r))
	tmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = zext i1 %s to i32\n", tmp, cmp))
	return Value{Operand: tmp, Type: types.Int()}, nil
}

// emitLogical emits a non-short-circuiting && or ||: both operands are compared against zero, then combined with
// the corresponding bitwise instruction, matching DESIGN.md's replicated open-question decision.
func emitLogical(sink *Sink, op, l, r string) (Value, error) {
	lb := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = icmp ne i32 %s, 0\n", lb, l))
	rb := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = icmp ne i32 %s, 0\n", rb, r))

	var instr string
	switch op {
	case "&&":
		instr = "and"
	case "||":
		instr = "or"
	default:
		return Value{}, fmt.Errorf("unknown logical operator %q", op)
	}
	cmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = %s i1 %s, %s\n", cmp, instr, lb, rb))
	tmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = zext i1 %s to i32\n", tmp, cmp))
	return Value{Operand: tmp, Type: types.Int()}, nil
}

// evalCall lowers a function call. A call is never a compile-time constant; it always emits, even when every
// argument is itself constant (spec.md §4.5.7). A call to a name that is not a declared function is reported on
// stderr and yields an empty Value with no IR emitted; lowering continues.
func evalCall(n *ast.Node, st *symtab.SymTab, sink *Sink) (Value, error) {
	name := n.Data.(string)
	sym := st.Lookup(name)
	if sym == nil || !sym.Type.IsFunction() {
		fmt.Fprintf(os.Stderr, "line %d: call to undeclared function %q\n", n.Line, name)
		return Value{}, nil
	}
	args := make([]string, len(n.Children))
	for i1, e1 := range n.Children {
		v, err := evalExpression(e1, st, sink)
		if err != nil {
			return Value{}, err
		}
		args[i1] = "i32 " + v.Operand
	}
	ret := sym.Type.Ret
	call := fmt.Sprintf("call %s @%s(%s)", ret.String(), name, joinArgs(args))
	if ret.IsVoid() {
		sink.Emit("  " + call + "\n")
		return Value{Type: ret}, nil
	}
	tmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = %s\n", tmp, call))
	return Value{Operand: tmp, Type: ret}, nil
}

func joinArgs(args []string) string {
	s := ""
	for i1, e1 := range args {
		if i1 > 0 {
			s += ", "
		}
		s += e1
	}
	return s
}

// EvalConstInt folds n, which the grammar guarantees involves only integer literals and previously declared
// constants (array dimensions, const initializers), and returns its value. Matching IRBuilder.cpp's
// evaluateConstExp, a subtree that does not in fact fold falls back to 0 rather than erroring, since SysY
// guarantees well-formed input never reaches that case in practice.
func EvalConstInt(n *ast.Node, st *symtab.SymTab) int32 {
	v, err := evalExpression(n, st, NewSink())
	if err != nil || !v.IsConst {
		return 0
	}
	return v.ConstValue
}

// FlattenInit walks a brace-initializer tree (INIT_EXP/INIT_LIST) and flattens it into a row-major slice of
// length product(dims), following the unified brace-matching algorithm of spec.md §4.4: each nested INIT_LIST
// fills the next complete dimension-aligned run of slots from the position it starts at, trailing unfilled
// slots are zero, and a scalar element that does not fold to a constant contributes 0 (spec.md's rule applies
// uniformly whether init is a compile-time or a runtime initializer; in the compile-time case every element is
// guaranteed by the grammar to fold, so the fallback is never actually exercised there).
func FlattenInit(n *ast.Node, dims []int, st *symtab.SymTab, sink *Sink) ([]int32, error) {
	total := 1
	for _, d := range dims {
		total *= d
	}
	out := make([]int32, total)
	if n == nil {
		return out, nil
	}
	_, err := flattenInto(n, dims, st, sink, out, 0)
	return out, err
}

// productOf returns the product of dims, or 1 for an empty list (the size of a single scalar slot).
func productOf(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}

// flattenInto fills out starting at position pos, returning the position just past what it filled.
func flattenInto(n *ast.Node, dims []int, st *symtab.SymTab, sink *Sink, out []int32, pos int) (int, error) {
	switch n.Typ {
	case ast.INIT_EXP:
		if pos >= len(out) {
			return pos, nil
		}
		v, err := evalExpression(n.Children[0], st, sink)
		if err != nil {
			return pos, err
		}
		if v.IsConst {
			out[pos] = v.ConstValue
		}
		return pos + 1, nil

	case ast.INIT_LIST:
		span := productOf(dims)
		if span == 0 {
			return pos, nil
		}
		// Each child occupies exactly one declared slot: childSpan is the full size of a row (one level in)
		// for a multi-dimensional array, or 1 for a flat list of scalars. The cursor always advances by the
		// FULL childSpan after a child, regardless of how many elements that child actually supplied — this is
		// the brace-matching realignment rule: a partially filled nested list still consumes its whole row,
		// so the next sibling starts at the next row boundary rather than immediately after the last element
		// written.
		var childDims []int
		if len(dims) > 1 {
			childDims = dims[1:]
		}
		childSpan := productOf(childDims)
		cur := pos
		for _, child := range n.Children {
			if _, err := flattenInto(child, childDims, st, sink, out, cur); err != nil {
				return cur, err
			}
			cur += childSpan
		}
		return pos + span, nil

	default:
		return pos, fmt.Errorf("line %d: not an initializer element: %s", n.Line, n.Type())
	}
}

// parseIntLiteral decodes a SysY integer literal: "0x"/"0X" prefix selects radix 16, a leading "0" followed by
// more digits selects radix 8, anything else is radix 10 — Go's own base-0 integer parsing, which applies the
// same C-style rules IRBuilder.cpp's visitNumber uses and additionally accepts "0b"/"0o" prefixes and "_" digit
// separators.
func parseIntLiteral(text string) (int32, error) {
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed integer literal %q: %v", text, err)
	}
	return int32(v), nil
}

// boolToInt renders a Go bool as the SysY 0/1 integer it corresponds to.
func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// constValue wraps a folded scalar into a Value with both Operand and ConstValue set consistently.
func constValue(v int32) Value {
	return Value{Operand: strconv.FormatInt(int64(v), 10), Type: types.Int(), IsConst: true, ConstValue: v}
}
