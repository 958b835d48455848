package quantity

import (
	"testing"

	"github.com/astroseed/gosph/internal/geometry"
	"github.com/astroseed/gosph/internal/mathx"
)

func TestMakeFillsValuesAndZeroesDerivatives(t *testing.T) {
	q := Make(OrderSecond, 3.5, 4)
	if q.Kind() != KindScalar || q.Order() != OrderSecond || q.Len() != 4 {
		t.Fatalf("unexpected shape: kind %v order %v len %d", q.Kind(), q.Order(), q.Len())
	}
	vals, err := Values[float64](q)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vals {
		if v != 3.5 {
			t.Errorf("value[%d] = %g, want 3.5", i, v)
		}
	}
	dts, err := Dts[float64](q)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range dts {
		if v != 0 {
			t.Errorf("dt[%d] = %g, want 0", i, v)
		}
	}
}

func TestDerivativeAccessRespectsOrder(t *testing.T) {
	q := Make(OrderZero, 1.0, 2)
	if _, err := q.Dt(); err == nil {
		t.Error("Dt on a zero-order quantity should fail")
	}
	if _, err := q.D2t(); err == nil {
		t.Error("D2t on a zero-order quantity should fail")
	}
	first := Make(OrderFirst, 1.0, 2)
	if _, err := first.Dt(); err != nil {
		t.Errorf("Dt on a first-order quantity failed: %v", err)
	}
	if _, err := first.D2t(); err == nil {
		t.Error("D2t on a first-order quantity should fail")
	}
}

func TestSetOrderGrowsOnly(t *testing.T) {
	q := Make(OrderFirst, 2.0, 3)
	if err := q.SetOrder(OrderSecond); err != nil {
		t.Fatal(err)
	}
	if q.Order() != OrderSecond {
		t.Fatalf("order = %v, want second", q.Order())
	}
	d2, err := D2ts[float64](q)
	if err != nil {
		t.Fatal(err)
	}
	if len(d2) != 3 {
		t.Fatalf("second derivative has %d elements, want 3", len(d2))
	}
	if err := q.SetOrder(OrderZero); err == nil {
		t.Error("lowering the order should fail")
	}
}

func TestClonePlaceholders(t *testing.T) {
	q := Make(OrderSecond, 1.0, 5)

	all := q.Clone(AllBuffers)
	for d := 0; d <= 2; d++ {
		b, _ := all.Buffer(d)
		if b.Len() != 5 {
			t.Errorf("AllBuffers clone buffer %d has length %d", d, b.Len())
		}
	}

	top := q.Clone(HighestDerivatives)
	for d := 0; d <= 2; d++ {
		b, _ := top.Buffer(d)
		want := 0
		if d == 2 {
			want = 5
		}
		if b.Len() != want {
			t.Errorf("HighestDerivatives clone buffer %d has length %d, want %d", d, b.Len(), want)
		}
	}

	state := q.Clone(StateValues)
	for d := 0; d <= 2; d++ {
		b, _ := state.Buffer(d)
		want := 5
		if d == 2 {
			want = 0
		}
		if b.Len() != want {
			t.Errorf("StateValues clone buffer %d has length %d, want %d", d, b.Len(), want)
		}
	}
}

func TestZeroOrderStateValueSelection(t *testing.T) {
	q := Make(OrderZero, 7.0, 2)
	state := q.Clone(StateValues)
	if state.Value().Len() != 2 {
		t.Error("zero-order quantities contribute their values to StateValues")
	}
	top := q.Clone(HighestDerivatives)
	if top.Value().Len() != 0 {
		t.Error("zero-order quantities contribute nothing to HighestDerivatives")
	}
}

func TestSwapSelection(t *testing.T) {
	a := FromValues(OrderFirst, []float64{1, 2})
	b := FromValues(OrderFirst, []float64{3, 4})
	ad, _ := Dts[float64](a)
	ad[0], ad[1] = 10, 20

	if err := a.Swap(b, HighestDerivatives); err != nil {
		t.Fatal(err)
	}
	av, _ := Values[float64](a)
	if av[0] != 1 || av[1] != 2 {
		t.Error("value buffers must not move under HighestDerivatives")
	}
	bd, _ := Dts[float64](b)
	if bd[0] != 10 || bd[1] != 20 {
		t.Error("derivative buffers did not swap")
	}
}

func TestSwapRejectsMismatch(t *testing.T) {
	a := Make(OrderFirst, 1.0, 2)
	b := Make[int64](OrderFirst, 0, 2)
	if err := a.Swap(b, AllBuffers); err == nil {
		t.Error("swapping different kinds should fail")
	}
	c := Make(OrderSecond, 1.0, 2)
	if err := a.Swap(c, AllBuffers); err == nil {
		t.Error("swapping different orders should fail")
	}
}

func TestClampZeroesSaturatedDerivatives(t *testing.T) {
	q := FromValues(OrderFirst, []float64{-1, 3, 10})
	dts, _ := Dts[float64](q)
	dts[0], dts[1], dts[2] = 5, 5, 5

	q.Clamp(0, 3, mathx.NewInterval(0, 5))

	vals, _ := Values[float64](q)
	if vals[0] != 0 || vals[1] != 3 || vals[2] != 5 {
		t.Errorf("values = %v, want [0 3 5]", vals)
	}
	if dts[0] != 0 || dts[1] != 5 || dts[2] != 0 {
		t.Errorf("derivatives = %v, want [0 5 0]", dts)
	}
}

func TestClampVectorComponents(t *testing.T) {
	q := FromValues(OrderFirst, []geometry.Vector{{2, -2, 0, 0.5}})
	dts, _ := Dts[geometry.Vector](q)
	dts[0] = geometry.Vector{1, 1, 1, 1}

	q.Clamp(0, 1, mathx.NewInterval(-1, 1))

	vals, _ := Values[geometry.Vector](q)
	if vals[0] != (geometry.Vector{1, -1, 0, 0.5}) {
		t.Errorf("clamped vector = %v", vals[0])
	}
	// only the saturated lanes lose their derivative
	if dts[0] != (geometry.Vector{0, 0, 1, 1}) {
		t.Errorf("derivative after clamp = %v", dts[0])
	}
}

func TestAXPY(t *testing.T) {
	y := FromValues(OrderZero, []float64{1, 2, 3}).Value()
	x := FromValues(OrderZero, []float64{10, 10, 10}).Value()
	if err := y.AXPY(0.5, x); err != nil {
		t.Fatal(err)
	}
	got, _ := Data[float64](y)
	if got[0] != 6 || got[1] != 7 || got[2] != 8 {
		t.Errorf("AXPY result = %v", got)
	}

	short := FromValues(OrderZero, []float64{1}).Value()
	if err := y.AXPY(1, short); err == nil {
		t.Error("AXPY with mismatched lengths should fail")
	}
	ints := Make[int64](OrderZero, 0, 3).Value()
	if err := ints.AXPY(1, ints); err == nil {
		t.Error("AXPY on index buffers should fail")
	}
}

func TestFloatsViewAliasesElements(t *testing.T) {
	q := FromValues(OrderZero, []geometry.Vector{{1, 2, 3, 4}, {5, 6, 7, 8}})
	flat := q.Value().Floats()
	if len(flat) != 8 {
		t.Fatalf("flat view has %d components, want 8", len(flat))
	}
	flat[5] = 60
	vals, _ := Values[geometry.Vector](q)
	if vals[1][geometry.Y] != 60 {
		t.Error("flat view does not alias the element storage")
	}
}

func TestBufferRemoveAndInsertCopies(t *testing.T) {
	b := FromValues(OrderZero, []float64{0, 1, 2, 3, 4}).Value()
	b.Remove([]int{1, 3})
	got, _ := Data[float64](b)
	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 4 {
		t.Fatalf("after remove: %v", got)
	}
	b.InsertCopies(1, []int{0, 2})
	got, _ = Data[float64](b)
	want := []float64{0, 0, 2, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after insert: %v, want %v", got, want)
		}
	}
}
