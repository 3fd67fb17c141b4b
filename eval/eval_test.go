package eval

import (
	"testing"

	"github.com/onejit/onejit/ir"
)

func TestBinaryIntWraparound(t *testing.T) {
	x := Int(ir.Int8, 127)
	y := Int(ir.Int8, 1)
	got, ok := Binary(ir.Add2, x, y)
	if !ok {
		t.Fatal("expected fold to succeed")
	}
	if got.Int64() != -128 {
		t.Fatalf("Int64() = %d, want -128 (two's-complement wraparound)", got.Int64())
	}
}

func TestBinaryDivideByZeroFails(t *testing.T) {
	x := Int(ir.Int32, 10)
	y := Int(ir.Int32, 0)
	if _, ok := Binary(ir.Quo, x, y); ok {
		t.Fatal("expected divide-by-zero to not fold")
	}
	if _, ok := Binary(ir.Rem, x, y); ok {
		t.Fatal("expected remainder-by-zero to not fold")
	}
}

func TestBinaryShiftMasksCount(t *testing.T) {
	x := Int(ir.Int8, 1)
	y := Int(ir.Int8, 8) // masked to 0 for an 8-bit kind
	got, _ := Binary(ir.Shl, x, y)
	if got.Int64() != 1 {
		t.Fatalf("Int64() = %d, want 1 (shift count masked mod width)", got.Int64())
	}
}

func TestBinaryUnsignedShiftRight(t *testing.T) {
	x := Int(ir.Uint8, -1) // all bits set, masked to 0xFF
	y := Int(ir.Uint8, 4)
	got, _ := Binary(ir.Shr, x, y)
	if got.Int64() != 0x0F {
		t.Fatalf("Int64() = %#x, want 0x0f", got.Int64())
	}
}

func TestBinaryComparison(t *testing.T) {
	a := Int(ir.Int32, 3)
	b := Int(ir.Int32, 5)
	if got, _ := Binary(ir.Lss, a, b); got.Int64() != 1 {
		t.Fatal("expected 3 < 5 to be true")
	}
	if got, _ := Binary(ir.Geq, a, b); got.Int64() != 0 {
		t.Fatal("expected 3 >= 5 to be false")
	}
}

func TestBinaryFloat(t *testing.T) {
	a := Float(ir.Float64, 1.5)
	b := Float(ir.Float64, 2.25)
	got, ok := Binary(ir.Add2, a, b)
	if !ok || got.Float64() != 3.75 {
		t.Fatalf("Float64() = %v, want 3.75", got.Float64())
	}
}

func TestUnaryNeg(t *testing.T) {
	x := Int(ir.Int32, 5)
	got, ok := Unary(ir.Int32, ir.Neg1, x)
	if !ok || got.Int64() != -5 {
		t.Fatalf("Unary Neg1 = %d, want -5", got.Int64())
	}
}

func TestUnaryNot(t *testing.T) {
	zero := Int(ir.Bool, 0)
	got, _ := Unary(ir.Bool, ir.Not1, zero)
	if got.Int64() != 1 {
		t.Fatal("expected !0 to be 1")
	}
}

func TestUnaryCastConversions(t *testing.T) {
	got, ok := Unary(ir.Int8, ir.Cast, Int(ir.Int32, 0x1FF))
	if !ok || got.Int64() != -1 {
		t.Fatalf("Cast int32->int8 of 0x1ff = %d, want -1 (truncation)", got.Int64())
	}
	got, ok = Unary(ir.Float64, ir.Cast, Int(ir.Int32, 3))
	if !ok || got.Float64() != 3.0 {
		t.Fatalf("Cast int32->float64 of 3 = %v, want 3.0", got.Float64())
	}
	got, ok = Unary(ir.Int32, ir.Cast, Float(ir.Float64, 2.75))
	if !ok || got.Int64() != 2 {
		t.Fatalf("Cast float64->int32 of 2.75 = %d, want 2 (truncation toward zero)", got.Int64())
	}
}

func TestUnaryBitcopyReinterprets(t *testing.T) {
	got, ok := Unary(ir.Uint64, ir.Bitcopy, Float(ir.Float64, 1.0))
	if !ok || got.Bits != 0x3FF0000000000000 {
		t.Fatalf("Bitcopy float64->uint64 of 1.0 = %#x, want 0x3ff0000000000000", got.Bits)
	}
	if _, ok := Unary(ir.Uint32, ir.Bitcopy, Float(ir.Float64, 1.0)); ok {
		t.Fatal("expected a width-mismatched Bitcopy to not fold")
	}
}
