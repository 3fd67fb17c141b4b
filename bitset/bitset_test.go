package bitset

import "testing"

func TestSetGet(t *testing.T) {
	s := New(130)
	if s.Get(0) || s.Get(129) {
		t.Fatal("expected all-clear after New")
	}
	s.Set(0, true)
	s.Set(64, true)
	s.Set(129, true)
	if !s.Get(0) || !s.Get(64) || !s.Get(129) {
		t.Fatal("expected bits set")
	}
	if s.Get(1) || s.Get(63) || s.Get(128) {
		t.Fatal("unexpected bit set")
	}
	s.Set(64, false)
	if s.Get(64) {
		t.Fatal("expected bit cleared")
	}
}

func TestFill(t *testing.T) {
	s := New(10)
	s.Fill(true)
	for i := 0; i < 10; i++ {
		if !s.Get(i) {
			t.Fatalf("bit %d expected set after Fill(true)", i)
		}
	}
	s.Fill(false)
	for i := 0; i < 10; i++ {
		if s.Get(i) {
			t.Fatalf("bit %d expected clear after Fill(false)", i)
		}
	}
}

func TestFind(t *testing.T) {
	s := New(20)
	s.Set(5, true)
	s.Set(15, true)
	if got := s.Find(true, 0, 20); got != 5 {
		t.Fatalf("Find(true) = %d, want 5", got)
	}
	if got := s.Find(true, 6, 20); got != 15 {
		t.Fatalf("Find(true, 6, ..) = %d, want 15", got)
	}
	if got := s.Find(true, 16, 20); got != NoPos {
		t.Fatalf("Find(true, 16, ..) = %d, want NoPos", got)
	}
}

func TestResetReusesBacking(t *testing.T) {
	s := New(200)
	s.Set(100, true)
	s.Reset(200)
	if s.Get(100) {
		t.Fatal("expected Reset to clear bits")
	}
}

func TestCloneIndependent(t *testing.T) {
	s := New(10)
	s.Set(3, true)
	c := s.Clone()
	c.Set(3, false)
	if !s.Get(3) {
		t.Fatal("mutating clone affected original")
	}
	if c.Get(3) {
		t.Fatal("clone did not apply mutation")
	}
}
