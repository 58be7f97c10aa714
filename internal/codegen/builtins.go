package codegen

import (
	"fmt"

	"sysyc/internal/symtab"
	"sysyc/internal/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// builtin describes one sylib runtime function: its declared name and signature.
type builtin struct {
	name     string
	ret      *types.Type
	params   []*types.Type
	variadic bool
}

// ---------------------
// ----- Constants -----
// ---------------------

// builtins lists the nine sylib functions every SysY program links against, per
// _examples/original_source's IRBuilder::addBuiltInFunctions(). getarray/putarray take an int32* pointer rather
// than a sized array, since sylib passes array arguments by decayed pointer.
var builtins = []builtin{
	{name: "getint", ret: types.Int(), params: nil},
	{name: "getch", ret: types.Int(), params: nil},
	{name: "getarray", ret: types.Int(), params: []*types.Type{types.Pointer(types.Int())}},
	{name: "putint", ret: types.Void(), params: []*types.Type{types.Int()}},
	{name: "putch", ret: types.Void(), params: []*types.Type{types.Int()}},
	{name: "putarray", ret: types.Void(), params: []*types.Type{types.Int(), types.Pointer(types.Int())}},
	{name: "putf", ret: types.Void(), params: nil, variadic: true},
	{name: "starttime", ret: types.Void(), params: nil},
	{name: "stoptime", ret: types.Void(), params: nil},
}

// ---------------------
// ----- functions -----
// ---------------------

// RegisterBuiltins declares every sylib function in st's global scope and emits its "declare" line to the
// header stream, so that ordinary call lowering (evalCall) finds them exactly like a user-defined function.
func RegisterBuiltins(st *symtab.SymTab, sink *Sink) {
	for _, b := range builtins {
		st.Declare(b.name, &symtab.Symbol{
			Name:   b.name,
			Type:   types.Function(b.ret, b.params),
			IRName: "@" + b.name,
		})
		sink.EmitHeader(fmt.Sprintf("declare %s @%s(%s)\n", b.ret.String(), b.name, paramList(b)))
	}
}

// paramList renders a builtin's parameter list, appending a trailing "..." for putf's variadic format-string
// call, matching sylib's C declaration "void putf(char*, ...)".
func paramList(b builtin) string {
	s := ""
	if b.name == "putf" {
		s = "i8*"
	}
	for _, p := range b.params {
		if s != "" {
			s += ", "
		}
		s += p.String()
	}
	if b.variadic {
		if s != "" {
			s += ", "
		}
		s += "..."
	}
	return s
}
