package codebuf

import "testing"

func TestAppendAt(t *testing.T) {
	b := New()
	o1 := b.Append(10)
	o2 := b.Append(20)
	if o1 != 0 || o2 != 1 {
		t.Fatalf("unexpected offsets %d %d", o1, o2)
	}
	if b.At(o1) != 10 || b.At(o2) != 20 {
		t.Fatal("At returned wrong values")
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
}

func TestAppendItems(t *testing.T) {
	b := New()
	off := b.AppendItems(1, 2, 3)
	if off != 0 || b.Len() != 3 {
		t.Fatalf("unexpected state off=%d len=%d", off, b.Len())
	}
	for i, want := range []uint32{1, 2, 3} {
		if got := b.At(off + i); got != want {
			t.Fatalf("At(%d) = %d, want %d", off+i, got, want)
		}
	}
}

func TestPatch(t *testing.T) {
	b := New()
	off := b.Append(0)
	b.Patch(off, 42)
	if got := b.At(off); got != 42 {
		t.Fatalf("At(off) = %d, want 42", got)
	}
}

func TestTruncate(t *testing.T) {
	b := New()
	b.Append(1)
	mark := b.Len()
	b.Append(2)
	b.Append(3)
	b.Truncate(mark)
	if b.Len() != mark {
		t.Fatalf("Len() = %d, want %d", b.Len(), mark)
	}
}

// After a failed append, Len() must equal the pre-append length.
func TestPoisonPreservesLength(t *testing.T) {
	b := NewLimited(3)
	b.Append(1)
	b.Append(2)
	b.Append(3)
	preLen := b.Len()
	if off := b.Append(4); off != -1 {
		t.Fatalf("expected Append to fail once limit is reached, got offset %d", off)
	}
	if b.Len() != preLen {
		t.Fatalf("Len() = %d after failed append, want unchanged %d", b.Len(), preLen)
	}
	if !b.Poisoned() {
		t.Fatal("expected buffer to be poisoned after failed append")
	}
	// Reads of already-written offsets remain valid even when poisoned.
	if b.At(0) != 1 {
		t.Fatal("At should still work on previously-written offsets after poisoning")
	}
}

func TestPoisonedAppendItemsRollsBack(t *testing.T) {
	b := NewLimited(4)
	b.Append(1)
	b.Append(2)
	preLen := b.Len()
	if off := b.AppendItems(3, 4, 5); off != -1 {
		t.Fatalf("expected AppendItems to fail, got offset %d", off)
	}
	if b.Len() != preLen {
		t.Fatalf("Len() = %d after failed AppendItems, want unchanged %d", b.Len(), preLen)
	}
}

func TestResetClearsPoison(t *testing.T) {
	b := NewLimited(1)
	b.Append(1)
	b.Append(2)
	if !b.Poisoned() {
		t.Fatal("expected poisoned buffer")
	}
	b.Reset()
	if b.Poisoned() || b.Len() != 0 {
		t.Fatal("expected Reset to clear poison and length")
	}
}
