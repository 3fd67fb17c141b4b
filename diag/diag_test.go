package diag

import "testing"

func TestSinkAccumulatesInOrder(t *testing.T) {
	var s Sink
	if s.HasErrors() {
		t.Fatal("expected empty sink to report no errors")
	}
	s.Add(MalformedInput, NodeRef(3), "bad cast")
	s.Add(EncodingError, NoNode, "displacement out of range")
	if !s.HasErrors() {
		t.Fatal("expected HasErrors after Add")
	}
	got := s.Errors()
	if len(got) != 2 {
		t.Fatalf("len(Errors()) = %d, want 2", len(got))
	}
	if got[0].Kind != MalformedInput || got[0].Node != 3 || got[0].Msg != "bad cast" {
		t.Fatalf("unexpected first error: %+v", got[0])
	}
	if got[1].Kind != EncodingError || got[1].Node != NoNode {
		t.Fatalf("unexpected second error: %+v", got[1])
	}
}

func TestSinkReset(t *testing.T) {
	var s Sink
	s.Add(OutOfMemory, NoNode, "buffer exhausted")
	s.Reset()
	if s.HasErrors() {
		t.Fatal("expected Reset to clear errors")
	}
	if len(s.Errors()) != 0 {
		t.Fatal("expected Errors() empty after Reset")
	}
}
