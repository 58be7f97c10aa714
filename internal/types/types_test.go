package types

import "testing"

// TestScalarStrings verifies the textual rendering of the non-composite type variants.
func TestScalarStrings(t *testing.T) {
	tests := []struct {
		typ  *Type
		want string
	}{
		{Int(), "i32"},
		{Void(), "void"},
		{Pointer(Int()), "i32*"},
		{Pointer(Pointer(Int())), "i32**"},
	}
	for _, e1 := range tests {
		if got := e1.typ.String(); got != e1.want {
			t.Errorf("String() = %q, want %q", got, e1.want)
		}
	}
}

// TestArrayString verifies that array dimensions render right-to-left as nested "[N x ...]".
func TestArrayString(t *testing.T) {
	tests := []struct {
		dims []int
		want string
	}{
		{[]int{4}, "[4 x i32]"},
		{[]int{3, 2}, "[3 x [2 x i32]]"},
		{[]int{2, 3, 4}, "[2 x [3 x [4 x i32]]]"},
	}
	for _, e1 := range tests {
		a1 := Array(Int(), e1.dims)
		if got := a1.String(); got != e1.want {
			t.Errorf("Array(%v).String() = %q, want %q", e1.dims, got, e1.want)
		}
	}
}

// TestFunctionString verifies function signature rendering, including the zero-parameter case.
func TestFunctionString(t *testing.T) {
	f1 := Function(Int(), nil)
	if got, want := f1.String(), "i32 ()"; got != want {
		t.Errorf("Function(i32, nil).String() = %q, want %q", got, want)
	}

	f2 := Function(Void(), []*Type{Int(), Pointer(Int())})
	if got, want := f2.String(), "void (i32, i32*)"; got != want {
		t.Errorf("Function(void, [i32, i32*]).String() = %q, want %q", got, want)
	}
}

// TestTotalElements verifies the dimension product used to size flattened initializer slices.
func TestTotalElements(t *testing.T) {
	tests := []struct {
		dims []int
		want int
	}{
		{[]int{4}, 4},
		{[]int{3, 2}, 6},
		{[]int{2, 3, 4}, 24},
	}
	for _, e1 := range tests {
		if got := Array(Int(), e1.dims).TotalElements(); got != e1.want {
			t.Errorf("Array(%v).TotalElements() = %d, want %d", e1.dims, got, e1.want)
		}
	}
	if got := Int().TotalElements(); got != 1 {
		t.Errorf("Int().TotalElements() = %d, want 1", got)
	}
}

// TestArrayIndependentDims verifies that Array copies its dims slice rather than aliasing the caller's backing
// array, so later mutation of the caller's slice cannot corrupt the Type.
func TestArrayIndependentDims(t *testing.T) {
	dims := []int{2, 3}
	a1 := Array(Int(), dims)
	dims[0] = 99
	if got, want := a1.String(), "[2 x [3 x i32]]"; got != want {
		t.Errorf("Array.String() = %q after caller mutation, want %q", got, want)
	}
}
