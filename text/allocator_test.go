package text

import "testing"

func overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestShelfAllocatorNoOverlap(t *testing.T) {
	a := NewShelfAllocator(64, 64, 1)
	sizes := [][2]int{{10, 12}, {20, 8}, {5, 5}, {30, 12}, {16, 16}, {7, 3}, {40, 10}}
	var got []Rect
	for _, s := range sizes {
		r, ok := a.Allocate(s[0], s[1])
		if !ok {
			t.Fatalf("Allocate(%d,%d) failed", s[0], s[1])
		}
		if r.X+r.W > 64 || r.Y+r.H > 64 {
			t.Fatalf("%v outside 64x64", r)
		}
		for _, prev := range got {
			if overlaps(r, prev) {
				t.Fatalf("%v overlaps %v", r, prev)
			}
		}
		got = append(got, r)
	}
	if a.Count() != len(sizes) {
		t.Errorf("Count = %d, want %d", a.Count(), len(sizes))
	}
	if u := a.Utilization(); u <= 0 || u > 1 {
		t.Errorf("Utilization = %v", u)
	}
}

func TestShelfAllocatorFull(t *testing.T) {
	a := NewShelfAllocator(16, 16, 0)
	for i := 0; i < 4; i++ {
		if _, ok := a.Allocate(8, 8); !ok {
			t.Fatalf("allocation %d failed", i)
		}
	}
	if _, ok := a.Allocate(8, 8); ok {
		t.Fatal("allocation succeeded in a full area")
	}
	if _, ok := a.Allocate(0, 4); ok {
		t.Error("zero-width allocation succeeded")
	}
	if _, ok := a.Allocate(17, 1); ok {
		t.Error("oversized allocation succeeded")
	}
}

func TestShelfAllocatorGrowPreservesRects(t *testing.T) {
	a := NewShelfAllocator(16, 16, 0)
	first, _ := a.Allocate(16, 16)
	if _, ok := a.Allocate(4, 4); ok {
		t.Fatal("expected full allocator")
	}

	a.Grow(32, 32)
	if w, h := a.Size(); w != 32 || h != 32 {
		t.Fatalf("Size = %dx%d, want 32x32", w, h)
	}
	next, ok := a.Allocate(4, 4)
	if !ok {
		t.Fatal("allocation after Grow failed")
	}
	if overlaps(first, next) {
		t.Errorf("%v overlaps pre-growth %v", next, first)
	}
	if first != (Rect{0, 0, 16, 16}) {
		t.Errorf("pre-growth rect changed: %v", first)
	}

	a.Grow(8, 8)
	if w, _ := a.Size(); w != 32 {
		t.Error("Grow shrank the area")
	}
}
