package pool

import "testing"

func TestPool_ReusesBeforeAllocating(t *testing.T) {
	p := New(2)
	b := p.Get()
	if s := p.Stats(); s.Misses != 1 || s.Hits != 0 {
		t.Fatalf("expected one miss, got %+v", s)
	}
	b.B = append(b.B, 1, 2, 3)
	p.Put(b)

	b2 := p.Get()
	if s := p.Stats(); s.Hits != 1 {
		t.Fatalf("expected a hit on reuse, got %+v", s)
	}
	if len(b2.B) != 0 {
		t.Fatalf("expected reused buffer reset to length 0, got %d", len(b2.B))
	}
}

func TestPool_NeverExceedsCapacity(t *testing.T) {
	p := New(1)
	a, b := p.Get(), p.Get()
	p.Put(a)
	p.Put(b) // second Put should be discarded, not grow the pool past capacity
	if n := p.Size(); n != 1 {
		t.Fatalf("expected pool size capped at 1, got %d", n)
	}
}

func TestPool_UnboundedWhenCapacityZero(t *testing.T) {
	p := New(0)
	bufs := make([]*Buffer, 10)
	for i := range bufs {
		bufs[i] = p.Get()
	}
	for _, b := range bufs {
		p.Put(b)
	}
	if n := p.Size(); n != 10 {
		t.Fatalf("expected all 10 buffers retained, got %d", n)
	}
}

func TestBuffer_GrowPreservesContent(t *testing.T) {
	b := &Buffer{B: make([]byte, 0, 4)}
	b.B = append(b.B, 1, 2, 3, 4)
	b.Grow(100)
	if cap(b.B) < 104 {
		t.Fatalf("expected capacity grown to at least 104, got %d", cap(b.B))
	}
	if len(b.B) != 4 || b.B[0] != 1 || b.B[3] != 4 {
		t.Fatalf("grow must preserve existing content, got %v", b.B)
	}
}
