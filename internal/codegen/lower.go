package codegen

import (
	"fmt"
	"os"
	"strconv"

	"sysyc/internal/ast"
	"sysyc/internal/symtab"
	"sysyc/internal/types"
)

// ---------------------
// ----- functions -----
// ---------------------

// Lower drives the whole compilation: it builds a fresh symbol table, registers the sylib built-ins, walks the
// compilation unit, and renders the resulting two-stream Sink to a single LLVM-text string (spec.md §3, §6).
func Lower(prog *ast.Node) (string, error) {
	st := symtab.New()
	sink := NewSink()
	RegisterBuiltins(st, sink)
	if err := genProgram(prog, st, sink); err != nil {
		return "", err
	}
	return sink.Output(), nil
}

// genProgram lowers every top-level declaration and function definition, in source order.
func genProgram(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	for _, child := range n.Children {
		var err error
		switch child.Typ {
		case ast.CONST_DECL:
			err = genConstDecl(child, st, sink)
		case ast.VAR_DECL:
			err = genVarDecl(child, st, sink)
		case ast.FUNC_DEF:
			err = genFuncDef(child, st, sink)
		default:
			err = fmt.Errorf("line %d: unexpected top-level node %s", child.Line, child.Type())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ----- declarations -----

// genConstDecl lowers one "const" declaration group.
func genConstDecl(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	for _, def := range n.Children {
		if err := genConstDef(def, st, sink); err != nil {
			return err
		}
	}
	return nil
}

// genConstDef folds a single constant's initializer and records it in the symbol table. A scalar constant is
// substituted inline wherever it is read, at every scope; in the global scope it is also emitted as a
// "constant" global, while a local scalar constant gets no storage. An array constant still needs addressable
// storage, since its elements may be read with a non-constant index at run time; that storage is emitted as a
// global "constant" or a local alloca+store sequence depending on scope.
func genConstDef(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	name := n.Data.(string)
	dims := evalDims(n.Children[0], st)
	initNode := n.Children[1]

	if len(dims) == 0 {
		val := EvalConstInt(initNode.Children[0], st)
		if st.IsGlobal() {
			irName := "@" + name
			sink.EmitHeader(fmt.Sprintf("%s = dso_local constant i32 %d\n", irName, val))
		}
		st.Declare(name, &symtab.Symbol{Name: name, Type: types.Int(), IsConst: true, ScalarConst: val})
		return nil
	}

	arrType := types.Array(types.Int(), dims)
	values, err := FlattenInit(initNode, dims, st, sink)
	if err != nil {
		return err
	}

	if st.IsGlobal() {
		irName := "@" + name
		sink.EmitHeader(fmt.Sprintf("%s = dso_local constant %s\n", irName, renderArrayLiteral(dims, values)))
		st.Declare(name, &symtab.Symbol{Name: name, Type: arrType, IsConst: true, ArrayConsts: values, IRName: irName})
		return nil
	}

	irName := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = alloca %s\n", irName, arrType.String()))
	storeArrayElements(sink, arrType, irName, values)
	st.Declare(name, &symtab.Symbol{Name: name, Type: arrType, IsConst: true, ArrayConsts: values, IRName: irName})
	return nil
}

// genVarDecl lowers one "int"/"void" variable declaration group.
func genVarDecl(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	for _, def := range n.Children {
		if err := genVarDef(def, st, sink); err != nil {
			return err
		}
	}
	return nil
}

// genVarDef lowers a single variable definition, dispatching on whether it is scalar or an array.
func genVarDef(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	name := n.Data.(string)
	dims := evalDims(n.Children[0], st)
	var initNode *ast.Node
	if len(n.Children) > 1 {
		initNode = n.Children[1]
	}
	if len(dims) == 0 {
		return genScalarVarDef(name, initNode, st, sink)
	}
	return genArrayVarDef(name, dims, initNode, st, sink)
}

// genScalarVarDef lowers a scalar "int x[ = expr];" definition: a global gets "global i32" storage initialized
// to its folded value (0 if absent, per spec.md's grammar guaranteeing global initializers are constant); a
// local gets an alloca, optionally followed by a store of its (possibly non-constant) initializer expression.
func genScalarVarDef(name string, initNode *ast.Node, st *symtab.SymTab, sink *Sink) error {
	if st.IsGlobal() {
		var val int32
		if initNode != nil {
			val = EvalConstInt(initNode.Children[0], st)
		}
		irName := "@" + name
		sink.EmitHeader(fmt.Sprintf("%s = dso_local global i32 %d\n", irName, val))
		st.Declare(name, &symtab.Symbol{Name: name, Type: types.Int(), IRName: irName})
		return nil
	}

	addr := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = alloca i32\n", addr))
	st.Declare(name, &symtab.Symbol{Name: name, Type: types.Int(), IRName: addr})
	if initNode != nil {
		v, err := evalExpression(initNode.Children[0], st, sink)
		if err != nil {
			return err
		}
		sink.Emit(fmt.Sprintf("  store i32 %s, i32* %s\n", v.Operand, addr))
	}
	return nil
}

// genArrayVarDef lowers an array "int a[N][M][ = {...}];" definition, following the same global/local split as
// genScalarVarDef, with element storage driven by FlattenInit.
func genArrayVarDef(name string, dims []int, initNode *ast.Node, st *symtab.SymTab, sink *Sink) error {
	arrType := types.Array(types.Int(), dims)

	if st.IsGlobal() {
		values := make([]int32, arrType.TotalElements())
		if initNode != nil {
			var err error
			values, err = FlattenInit(initNode, dims, st, sink)
			if err != nil {
				return err
			}
		}
		irName := "@" + name
		sink.EmitHeader(fmt.Sprintf("%s = dso_local global %s\n", irName, renderArrayLiteral(dims, values)))
		st.Declare(name, &symtab.Symbol{Name: name, Type: arrType, IRName: irName})
		return nil
	}

	irName := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = alloca %s\n", irName, arrType.String()))
	st.Declare(name, &symtab.Symbol{Name: name, Type: arrType, IRName: irName})
	if initNode != nil {
		values, err := FlattenInit(initNode, dims, st, sink)
		if err != nil {
			return err
		}
		storeArrayElements(sink, arrType, irName, values)
	}
	return nil
}

// evalDims folds a DIM_LIST's constant-expression children into concrete dimension sizes.
func evalDims(n *ast.Node, st *symtab.SymTab) []int {
	dims := make([]int, len(n.Children))
	for i1, e1 := range n.Children {
		dims[i1] = int(EvalConstInt(e1, st))
	}
	return dims
}

// ----- functions -----

// genFuncDef lowers one function definition: header, parameter promotion to stack storage (spec.md §5: every
// parameter is scalar int), the body, and an unconditional fallback terminator appended after the body, since
// a SysY function is not required to return on every path.
func genFuncDef(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	name := n.Data.(string)
	retType := types.Void()
	if n.Children[0].Data.(string) == "int" {
		retType = types.Int()
	}
	params := n.Children[1].Children
	body := n.Children[2]

	paramTypes := make([]*types.Type, len(params))
	for i1 := range params {
		paramTypes[i1] = types.Int()
	}
	st.Declare(name, &symtab.Symbol{Name: name, Type: types.Function(retType, paramTypes), IRName: "@" + name})

	paramNames := make([]string, len(params))
	for i1, p := range params {
		paramNames[i1] = fmt.Sprintf("%%%s.param", p.Data.(string))
	}
	sink.Emit(fmt.Sprintf("define dso_local %s @%s(%s) {\n", retType.String(), name, joinParamDecls(paramNames)))
	sink.Emit("entry:\n")

	st.Enter()
	for i1, p := range params {
		pname := p.Data.(string)
		addr := sink.FreshTemp()
		sink.Emit(fmt.Sprintf("  %s = alloca i32\n", addr))
		sink.Emit(fmt.Sprintf("  store i32 %s, i32* %s\n", paramNames[i1], addr))
		st.Declare(pname, &symtab.Symbol{Name: pname, Type: types.Int(), IRName: addr})
	}

	if err := genBlock(body, st, sink); err != nil {
		st.Exit()
		return err
	}
	st.Exit()

	if retType.IsVoid() {
		sink.Emit("  ret void\n")
	} else {
		sink.Emit("  ret i32 0\n")
	}
	sink.Emit("}\n\n")
	return nil
}

func joinParamDecls(names []string) string {
	s := ""
	for i1, e1 := range names {
		if i1 > 0 {
			s += ", "
		}
		s += "i32 " + e1
	}
	return s
}

// ----- statements -----

// genBlock lowers a brace-delimited statement list in its own nested lexical scope.
func genBlock(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	st.Enter()
	defer st.Exit()
	for _, stmt := range n.Children {
		if err := genStmt(stmt, st, sink); err != nil {
			return err
		}
	}
	return nil
}

// genStmt dispatches a single statement or local declaration to its lowering function.
func genStmt(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	switch n.Typ {
	case ast.CONST_DECL:
		return genConstDecl(n, st, sink)
	case ast.VAR_DECL:
		return genVarDecl(n, st, sink)
	case ast.BLOCK:
		return genBlock(n, st, sink)
	case ast.ASSIGN_STMT:
		return genAssign(n, st, sink)
	case ast.EXPR_STMT:
		if len(n.Children) == 0 {
			return nil
		}
		_, err := evalExpression(n.Children[0], st, sink)
		return err
	case ast.IF_STMT:
		return genIf(n, st, sink)
	case ast.WHILE_STMT:
		return genWhile(n, st, sink)
	case ast.BREAK_STMT:
		genBreak(sink)
		return nil
	case ast.CONTINUE_STMT:
		genContinue(sink)
		return nil
	case ast.RETURN_STMT:
		return genReturn(n, st, sink)
	default:
		return fmt.Errorf("line %d: unexpected statement node %s", n.Line, n.Type())
	}
}

// genAssign lowers "lval = expr;": a bare identifier stores directly through its address, an indexed lvalue
// first computes its element address with genIndexAddr. An undeclared target is reported on stderr and the
// statement is skipped without emitting anything; lowering continues.
func genAssign(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	lval := n.Children[0]
	name := lval.Data.(string)
	sym := st.Lookup(name)
	if sym == nil {
		fmt.Fprintf(os.Stderr, "line %d: undeclared identifier %q\n", lval.Line, name)
		return nil
	}

	var addr string
	if len(lval.Children) == 0 {
		addr = sym.Operand()
	} else {
		var err error
		addr, err = genIndexAddr(lval, st, sink, sym)
		if err != nil {
			return err
		}
	}

	v, err := evalExpression(n.Children[1], st, sink)
	if err != nil {
		return err
	}
	sink.Emit(fmt.Sprintf("  store i32 %s, i32* %s\n", v.Operand, addr))
	return nil
}

// genIf lowers "if (cond) then [else else]" with the standard two- or three-block branch shape.
func genIf(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	cond, err := evalExpression(n.Children[0], st, sink)
	if err != nil {
		return err
	}
	b := toBool(sink, cond)

	thenLabel := sink.FreshLabel()
	elseLabel := sink.FreshLabel()

	if len(n.Children) < 3 {
		sink.Emit(fmt.Sprintf("  br i1 %s, label %%label%d, label %%label%d\n", b, thenLabel, elseLabel))
		sink.EmitLabel(thenLabel)
		if err := genStmt(n.Children[1], st, sink); err != nil {
			return err
		}
		sink.Emit(fmt.Sprintf("  br label %%label%d\n", elseLabel))
		sink.EmitLabel(elseLabel)
		return nil
	}

	endLabel := sink.FreshLabel()
	sink.Emit(fmt.Sprintf("  br i1 %s, label %%label%d, label %%label%d\n", b, thenLabel, elseLabel))
	sink.EmitLabel(thenLabel)
	if err := genStmt(n.Children[1], st, sink); err != nil {
		return err
	}
	sink.Emit(fmt.Sprintf("  br label %%label%d\n", endLabel))
	sink.EmitLabel(elseLabel)
	if err := genStmt(n.Children[2], st, sink); err != nil {
		return err
	}
	sink.Emit(fmt.Sprintf("  br label %%label%d\n", endLabel))
	sink.EmitLabel(endLabel)
	return nil
}

// genWhile lowers "while (cond) body" as a condition block, a body block, and an end block, pushing the
// appropriate break/continue targets for the duration of lowering the body.
func genWhile(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	condLabel := sink.FreshLabel()
	bodyLabel := sink.FreshLabel()
	endLabel := sink.FreshLabel()

	sink.Emit(fmt.Sprintf("  br label %%label%d\n", condLabel))
	sink.EmitLabel(condLabel)
	cond, err := evalExpression(n.Children[0], st, sink)
	if err != nil {
		return err
	}
	b := toBool(sink, cond)
	sink.Emit(fmt.Sprintf("  br i1 %s, label %%label%d, label %%label%d\n", b, bodyLabel, endLabel))
	sink.EmitLabel(bodyLabel)

	sink.PushBreak(endLabel)
	sink.PushContinue(condLabel)
	err = genStmt(n.Children[1], st, sink)
	sink.PopContinue()
	sink.PopBreak()
	if err != nil {
		return err
	}

	sink.Emit(fmt.Sprintf("  br label %%label%d\n", condLabel))
	sink.EmitLabel(endLabel)
	return nil
}

// genBreak emits a branch to the innermost enclosing loop's end label. Outside any loop it emits nothing,
// matching DESIGN.md's replicated open-question decision (the sentinel noLabel is never branched to).
func genBreak(sink *Sink) {
	if label := sink.PeekBreak(); label != noLabel {
		sink.Emit(fmt.Sprintf("  br label %%label%d\n", label))
	}
}

// genContinue emits a branch to the innermost enclosing loop's condition label; outside any loop it emits
// nothing, mirroring genBreak.
func genContinue(sink *Sink) {
	if label := sink.PeekContinue(); label != noLabel {
		sink.Emit(fmt.Sprintf("  br label %%label%d\n", label))
	}
}

// genReturn lowers "return [expr];".
func genReturn(n *ast.Node, st *symtab.SymTab, sink *Sink) error {
	if len(n.Children) == 0 {
		sink.Emit("  ret void\n")
		return nil
	}
	v, err := evalExpression(n.Children[0], st, sink)
	if err != nil {
		return err
	}
	sink.Emit(fmt.Sprintf("  ret i32 %s\n", v.Operand))
	return nil
}

// toBool converts an i32 Value to the i1 operand a branch instruction needs, per SysY's "nonzero is true" rule.
func toBool(sink *Sink, v Value) string {
	cmp := sink.FreshTemp()
	sink.Emit(fmt.Sprintf("  %s = icmp ne i32 %s, 0\n", cmp, v.Operand))
	return cmp
}

// ----- array addressing -----

// genIndexAddr computes the element address of an indexed lvalue (or indexed read) via a single multi-index
// getelementptr, following spec.md §4.5.7's row-major decomposition.
func genIndexAddr(lval *ast.Node, st *symtab.SymTab, sink *Sink, sym *symtab.Symbol) (string, error) {
	arrType := sym.Type
	idxOperands := make([]string, len(lval.Children))
	for i1, c := range lval.Children {
		v, err := evalExpression(c, st, sink)
		if err != nil {
			return "", err
		}
		idxOperands[i1] = v.Operand
	}
	gep := sink.FreshTemp()
	s := fmt.Sprintf("  %s = getelementptr %s, %s* %s, i32 0", gep, arrType.String(), arrType.String(), sym.Operand())
	for _, op := range idxOperands {
		s += fmt.Sprintf(", i32 %s", op)
	}
	sink.Emit(s + "\n")
	return gep, nil
}

// storeArrayElements emits one getelementptr+store pair per element of a flattened initializer, in row-major
// order, addressing each element by its multi-dimensional index decomposed from the flat position.
func storeArrayElements(sink *Sink, arrType *types.Type, base string, values []int32) {
	for i1, v := range values {
		idx := multiIndex(i1, arrType.Dims)
		gep := sink.FreshTemp()
		s := fmt.Sprintf("  %s = getelementptr %s, %s* %s, i32 0", gep, arrType.String(), arrType.String(), base)
		for _, e1 := range idx {
			s += fmt.Sprintf(", i32 %d", e1)
		}
		sink.Emit(s + "\n")
		sink.Emit(fmt.Sprintf("  store i32 %d, i32* %s\n", v, gep))
	}
}

// multiIndex decomposes a row-major flat offset into one index per dimension.
func multiIndex(flat int, dims []int) []int {
	idx := make([]int, len(dims))
	for i1 := len(dims) - 1; i1 >= 0; i1-- {
		idx[i1] = flat % dims[i1]
		flat /= dims[i1]
	}
	return idx
}

// flatIndex is the inverse of multiIndex: it composes per-dimension indices into a row-major flat offset.
func flatIndex(idx []int, dims []int) int {
	flat := 0
	for i1, d := range dims {
		flat = flat*d + idx[i1]
	}
	return flat
}

// constIndex folds an index expression list to concrete integers, reporting ok=false if any index is not a
// compile-time constant.
func constIndex(children []*ast.Node, st *symtab.SymTab) ([]int, bool) {
	idx := make([]int, len(children))
	for i1, c := range children {
		v, err := evalExpression(c, st, NewSink())
		if err != nil || !v.IsConst {
			return nil, false
		}
		idx[i1] = int(v.ConstValue)
	}
	return idx, true
}

// renderArrayLiteral renders a flattened row-major value slice as the nested LLVM aggregate literal its shape
// requires, e.g. "[2 x [3 x i32]] [[3 x i32] [i32 1, i32 2, i32 3], [3 x i32] zeroinitializer]", collapsing
// an all-zero (sub-)array to "zeroinitializer".
func renderArrayLiteral(dims []int, values []int32) string {
	selfType := types.Array(types.Int(), dims).String()

	allZero := true
	for _, v := range values {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return selfType + " zeroinitializer"
	}

	if len(dims) == 1 {
		s := selfType + " ["
		for i1, v := range values {
			if i1 > 0 {
				s += ", "
			}
			s += "i32 " + strconv.FormatInt(int64(v), 10)
		}
		return s + "]"
	}

	stride := len(values) / dims[0]
	s := selfType + " ["
	for i1 := 0; i1 < dims[0]; i1++ {
		if i1 > 0 {
			s += ", "
		}
		s += renderArrayLiteral(dims[1:], values[i1*stride:(i1+1)*stride])
	}
	return s + "]"
}
