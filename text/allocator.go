package text

import "fmt"

// Rect is a pixel rectangle inside an atlas.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// shelf is a horizontal strip of the atlas.
type shelf struct {
	y      int // top edge
	height int // tallest item so far, padding included
	nextX  int // next free x
}

// ShelfAllocator packs rectangles into horizontal shelves.
//
// Each rectangle goes on the first shelf with room for it, or on a new
// shelf below the last one. Allocated rectangles never move; Grow only
// enlarges the free area, so growing an atlas preserves every rectangle
// handed out before.
//
// ShelfAllocator is not safe for concurrent use.
type ShelfAllocator struct {
	width   int
	height  int
	padding int
	shelves []*shelf

	allocCount int
	usedArea   int
}

// NewShelfAllocator creates an allocator for a width x height area with
// padding pixels between neighbors.
func NewShelfAllocator(width, height, padding int) *ShelfAllocator {
	if padding < 0 {
		padding = 0
	}
	return &ShelfAllocator{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]*shelf, 0, 16),
	}
}

// Allocate reserves a w x h rectangle. It reports false when the area is
// full.
func (a *ShelfAllocator) Allocate(w, h int) (Rect, bool) {
	if w <= 0 || h <= 0 {
		return Rect{}, false
	}
	pw, ph := w+a.padding, h+a.padding
	if pw > a.width || ph > a.height {
		return Rect{}, false
	}

	for _, s := range a.shelves {
		if s.nextX+pw > a.width {
			continue
		}
		// A shelf cannot get taller once it holds items.
		if ph > s.height && s.nextX > 0 {
			continue
		}
		return a.place(s, w, h, pw, ph), true
	}

	y := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		y = last.y + last.height
	}
	if y+ph > a.height {
		return Rect{}, false
	}
	s := &shelf{y: y}
	a.shelves = append(a.shelves, s)
	return a.place(s, w, h, pw, ph), true
}

func (a *ShelfAllocator) place(s *shelf, w, h, pw, ph int) Rect {
	r := Rect{X: s.nextX, Y: s.y, W: w, H: h}
	s.nextX += pw
	if ph > s.height {
		s.height = ph
	}
	a.allocCount++
	a.usedArea += w * h
	return r
}

// Grow enlarges the area. Sizes smaller than the current ones are ignored.
func (a *ShelfAllocator) Grow(width, height int) {
	if width > a.width {
		a.width = width
	}
	if height > a.height {
		a.height = height
	}
}

// Size returns the area dimensions.
func (a *ShelfAllocator) Size() (width, height int) {
	return a.width, a.height
}

// Count returns the number of allocated rectangles.
func (a *ShelfAllocator) Count() int {
	return a.allocCount
}

// Utilization returns the fraction of the area covered by rectangles.
func (a *ShelfAllocator) Utilization() float64 {
	total := a.width * a.height
	if total == 0 {
		return 0
	}
	return float64(a.usedArea) / float64(total)
}
