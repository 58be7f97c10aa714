package codegen

import (
	"testing"

	"sysyc/internal/ast"
	"sysyc/internal/symtab"
	"sysyc/internal/types"
)

// ----- helpers -----

func lit(text string) *ast.Node {
	return &ast.Node{Typ: ast.INT_LITERAL, Data: text}
}

func unary(op string, operand *ast.Node) *ast.Node {
	return &ast.Node{Typ: ast.UNARY_EXPR, Data: op, Children: []*ast.Node{operand}}
}

func binary(op string, l, r *ast.Node) *ast.Node {
	return &ast.Node{Typ: ast.BINARY_EXPR, Data: op, Children: []*ast.Node{l, r}}
}

// TestConstantFoldArithmetic verifies scalar constant folding of the five arithmetic operators, including
// 32-bit wraparound on addition and truncated-toward-zero division with a dividend-signed remainder.
func TestConstantFoldArithmetic(t *testing.T) {
	st := symtab.New()
	tests := []struct {
		name string
		n    *ast.Node
		want int32
	}{
		{"add", binary("+", lit("2"), lit("3")), 5},
		{"sub", binary("-", lit("2"), lit("3")), -1},
		{"mul", binary("*", lit("6"), lit("7")), 42},
		{"div-truncates-toward-zero", binary("/", lit("7"), lit("2")), 3},
		{"div-negative-truncates-toward-zero", binary("/", unary("-", lit("7")), lit("2")), -3},
		{"rem-sign-of-dividend", binary("%", unary("-", lit("7")), lit("2")), -1},
		{"add-wraps-at-32-bit", binary("+", lit("2147483647"), lit("1")), -2147483648},
	}
	for _, e1 := range tests {
		v, err := evalExpression(e1.n, st, NewSink())
		if err != nil {
			t.Fatalf("%s: evalExpression error: %v", e1.name, err)
		}
		if !v.IsConst {
			t.Fatalf("%s: IsConst = false, want true", e1.name)
		}
		if v.ConstValue != e1.want {
			t.Errorf("%s: ConstValue = %d, want %d", e1.name, v.ConstValue, e1.want)
		}
	}
}

// TestConstantFoldRelationalAndLogical verifies relational, equality, and non-short-circuiting logical folding.
func TestConstantFoldRelationalAndLogical(t *testing.T) {
	st := symtab.New()
	tests := []struct {
		name string
		n    *ast.Node
		want int32
	}{
		{"lt-true", binary("<", lit("1"), lit("2")), 1},
		{"lt-false", binary("<", lit("2"), lit("1")), 0},
		{"eq-true", binary("==", lit("5"), lit("5")), 1},
		{"and-both-true", binary("&&", lit("1"), lit("2")), 1},
		{"and-one-false", binary("&&", lit("0"), lit("2")), 0},
		{"or-both-false", binary("||", lit("0"), lit("0")), 0},
		{"not-zero", unary("!", lit("0")), 1},
		{"not-nonzero", unary("!", lit("3")), 0},
	}
	for _, e1 := range tests {
		v, err := evalExpression(e1.n, st, NewSink())
		if err != nil {
			t.Fatalf("%s: evalExpression error: %v", e1.name, err)
		}
		if v.ConstValue != e1.want {
			t.Errorf("%s: ConstValue = %d, want %d", e1.name, v.ConstValue, e1.want)
		}
	}
}

// TestConstantFoldUsesDeclaredConstant verifies a reference to a previously declared scalar constant folds
// through an identifier, not just through literals.
func TestConstantFoldUsesDeclaredConstant(t *testing.T) {
	st := symtab.New()
	st.Declare("N", &symtab.Symbol{Name: "N", Type: types.Int(), IsConst: true, ScalarConst: 10})

	n := binary("+", &ast.Node{Typ: ast.LVAL, Data: "N"}, lit("1"))
	v, err := evalExpression(n, st, NewSink())
	if err != nil {
		t.Fatalf("evalExpression error: %v", err)
	}
	if !v.IsConst || v.ConstValue != 11 {
		t.Errorf("ConstValue = %d (IsConst=%v), want 11 (true)", v.ConstValue, v.IsConst)
	}
}

// TestIntegerLiteralRadix verifies hexadecimal, octal, and decimal literal parsing.
func TestIntegerLiteralRadix(t *testing.T) {
	st := symtab.New()
	tests := []struct {
		text string
		want int32
	}{
		{"0x1A", 26},
		{"012", 10},
		{"0", 0},
		{"42", 42},
	}
	for _, e1 := range tests {
		v, err := evalExpression(lit(e1.text), st, NewSink())
		if err != nil {
			t.Fatalf("literal %q: evalExpression error: %v", e1.text, err)
		}
		if v.ConstValue != e1.want {
			t.Errorf("literal %q: ConstValue = %d, want %d", e1.text, v.ConstValue, e1.want)
		}
	}
}

// TestNonConstantEmitsArithmetic verifies that an expression involving a non-constant operand is not folded:
// it must emit IR and return a temporary operand rather than a decimal constant.
func TestNonConstantEmitsArithmetic(t *testing.T) {
	st := symtab.New()
	st.Declare("x", &symtab.Symbol{Name: "x", IRName: "%x.addr"})

	n := binary("+", &ast.Node{Typ: ast.LVAL, Data: "x"}, lit("1"))
	sink := NewSink()
	v, err := evalExpression(n, st, sink)
	if err != nil {
		t.Fatalf("evalExpression error: %v", err)
	}
	if v.IsConst {
		t.Fatalf("IsConst = true for an expression involving a non-constant variable")
	}
	if sink.body.Len() == 0 {
		t.Errorf("no IR was emitted for a non-constant expression")
	}
}

// ----- initializer flattening -----

func initExp(e *ast.Node) *ast.Node {
	return &ast.Node{Typ: ast.INIT_EXP, Children: []*ast.Node{e}}
}

func initList(children ...*ast.Node) *ast.Node {
	return &ast.Node{Typ: ast.INIT_LIST, Children: children}
}

// TestFlattenFlatInitializer verifies a fully specified one-dimensional initializer flattens in order.
func TestFlattenFlatInitializer(t *testing.T) {
	st := symtab.New()
	n := initList(initExp(lit("1")), initExp(lit("2")), initExp(lit("3")))
	got, err := FlattenInit(n, []int{3}, st, NewSink())
	if err != nil {
		t.Fatalf("FlattenInit error: %v", err)
	}
	want := []int32{1, 2, 3}
	assertInt32Slice(t, got, want)
}

// TestFlattenPartialInitializerZeroPads verifies that a shorter-than-declared initializer list pads the
// remaining trailing elements with zero.
func TestFlattenPartialInitializerZeroPads(t *testing.T) {
	st := symtab.New()
	n := initList(initExp(lit("1")), initExp(lit("2")))
	got, err := FlattenInit(n, []int{5}, st, NewSink())
	if err != nil {
		t.Fatalf("FlattenInit error: %v", err)
	}
	want := []int32{1, 2, 0, 0, 0}
	assertInt32Slice(t, got, want)
}

// TestFlattenNestedInitializerRealignsPerRow verifies the brace-matching rule: each nested INIT_LIST of a
// two-dimensional array fills its own row, so a partially filled row is zero-padded and the next nested list
// starts at the next row boundary.
func TestFlattenNestedInitializerRealignsPerRow(t *testing.T) {
	st := symtab.New()
	// int a[2][3] = {{1}, {2, 3}};  -- row 0 is {1,0,0}, row 1 is {2,3,0}
	n := initList(
		initList(initExp(lit("1"))),
		initList(initExp(lit("2")), initExp(lit("3"))),
	)
	got, err := FlattenInit(n, []int{2, 3}, st, NewSink())
	if err != nil {
		t.Fatalf("FlattenInit error: %v", err)
	}
	want := []int32{1, 0, 0, 2, 3, 0}
	assertInt32Slice(t, got, want)
}

// TestFlattenEmptyInitializerIsAllZero verifies that "= {}" yields an all-zero slice of the declared size.
func TestFlattenEmptyInitializerIsAllZero(t *testing.T) {
	st := symtab.New()
	n := initList()
	got, err := FlattenInit(n, []int{4}, st, NewSink())
	if err != nil {
		t.Fatalf("FlattenInit error: %v", err)
	}
	want := []int32{0, 0, 0, 0}
	assertInt32Slice(t, got, want)
}

func assertInt32Slice(t *testing.T, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (got=%v)", len(got), len(want), got)
	}
	for i1 := range want {
		if got[i1] != want[i1] {
			t.Errorf("[%d] = %d, want %d", i1, got[i1], want[i1])
		}
	}
}
