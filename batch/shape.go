package batch

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/gfx/render"
)

// DefaultCircleSegments is the tessellation of circles with no explicit
// segment count.
const DefaultCircleSegments = 20

// Shape is a closed set of geometry descriptors. Every shape tessellates to
// triangles through the single emitter Builder.Emit.
type Shape interface {
	tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16)
}

// Rect is an axis-aligned filled rectangle.
type Rect struct {
	X, Y, W, H float32
	Color      render.Color
}

// Quad is a textured rectangle, optionally rotated around an origin
// relative to (X, Y). Sprites and glyphs are quads.
type Quad struct {
	X, Y, W, H     float32
	U0, V0, U1, V1 float32
	// Rotation is in radians, clockwise in a y-down space.
	Rotation         float32
	OriginX, OriginY float32
	Color            render.Color
}

// Circle is a filled circle approximated by a triangle fan.
type Circle struct {
	X, Y, Radius float32
	Segments     int
	Color        render.Color
}

// Ring is a circle or regular polygon outline of the given thickness.
type Ring struct {
	X, Y, Radius float32
	Sides        int
	Rotation     float32 // radians
	Thickness    float32
	Color        render.Color
}

// Polygon is a filled regular polygon.
type Polygon struct {
	X, Y, Radius float32
	Sides        int
	Rotation     float32 // radians
	Color        render.Color
}

// Line is a segment drawn as a quad of the given thickness.
type Line struct {
	X1, Y1, X2, Y2 float32
	Thickness      float32
	Color          render.Color
}

// Triangle is a filled triangle.
type Triangle struct {
	X1, Y1, X2, Y2, X3, Y3 float32
	Color                  render.Color
}

// Mesh is caller-built geometry with indices local to Vertices.
type Mesh struct {
	Vertices []render.Vertex
	Indices  []uint16
}

// Append tessellates s onto v and i. Indices of s are rebased onto len(v),
// so several shapes can be combined into one Mesh.
func Append(v []render.Vertex, i []uint16, s Shape) ([]render.Vertex, []uint16) {
	return s.tessellate(v, i)
}

var quadIndices = [6]uint16{0, 1, 2, 2, 3, 0}

func vertex(x, y, u, v float32, c render.Color) render.Vertex {
	return render.Vertex{X: x, Y: y, U: u, V: v, R: c.R, G: c.G, B: c.B, A: c.A}
}

func appendQuad(v []render.Vertex, i []uint16, corners [4][2]float32, uv [4][2]float32, c render.Color) ([]render.Vertex, []uint16) {
	base := uint16(len(v))
	for k := range corners {
		v = append(v, vertex(corners[k][0], corners[k][1], uv[k][0], uv[k][1], c))
	}
	for _, q := range quadIndices {
		i = append(i, base+q)
	}
	return v, i
}

func (r Rect) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	return appendQuad(v, i,
		[4][2]float32{{r.X, r.Y}, {r.X + r.W, r.Y}, {r.X + r.W, r.Y + r.H}, {r.X, r.Y + r.H}},
		[4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		r.Color)
}

func (q Quad) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	corners := [4][2]float32{{0, 0}, {q.W, 0}, {q.W, q.H}, {0, q.H}}
	sin, cos := float32(0), float32(1)
	if q.Rotation != 0 {
		sin, cos = math32.Sincos(q.Rotation)
	}
	for k := range corners {
		x, y := corners[k][0]-q.OriginX, corners[k][1]-q.OriginY
		corners[k][0] = q.X + q.OriginX + x*cos - y*sin
		corners[k][1] = q.Y + q.OriginY + x*sin + y*cos
	}
	return appendQuad(v, i, corners,
		[4][2]float32{{q.U0, q.V0}, {q.U1, q.V0}, {q.U1, q.V1}, {q.U0, q.V1}},
		q.Color)
}

func (c Circle) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	n := c.Segments
	if n < 3 {
		n = DefaultCircleSegments
	}
	return fan(v, i, c.X, c.Y, c.Radius, n, 0, c.Color)
}

func (p Polygon) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	n := p.Sides
	if n < 3 {
		n = 3
	}
	return fan(v, i, p.X, p.Y, p.Radius, n, p.Rotation, p.Color)
}

// fan emits a center vertex and n rim vertices.
func fan(v []render.Vertex, i []uint16, cx, cy, r float32, n int, rot float32, c render.Color) ([]render.Vertex, []uint16) {
	base := uint16(len(v))
	v = append(v, vertex(cx, cy, 0.5, 0.5, c))
	for k := 0; k < n; k++ {
		sin, cos := math32.Sincos(rot + 2*math32.Pi*float32(k)/float32(n))
		v = append(v, vertex(cx+r*cos, cy+r*sin, 0.5+cos/2, 0.5+sin/2, c))
	}
	for k := 0; k < n; k++ {
		next := (k + 1) % n
		i = append(i, base, base+1+uint16(k), base+1+uint16(next))
	}
	return v, i
}

func (r Ring) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	n := r.Sides
	if n < 3 {
		n = DefaultCircleSegments
	}
	inner := r.Radius - r.Thickness
	if inner < 0 {
		inner = 0
	}
	base := uint16(len(v))
	for k := 0; k < n; k++ {
		sin, cos := math32.Sincos(r.Rotation + 2*math32.Pi*float32(k)/float32(n))
		v = append(v,
			vertex(r.X+r.Radius*cos, r.Y+r.Radius*sin, 0, 0, r.Color),
			vertex(r.X+inner*cos, r.Y+inner*sin, 0, 0, r.Color))
	}
	for k := 0; k < n; k++ {
		o0, i0 := base+uint16(2*k), base+uint16(2*k+1)
		next := (k + 1) % n
		o1, i1 := base+uint16(2*next), base+uint16(2*next+1)
		i = append(i, o0, o1, i1, i1, i0, o0)
	}
	return v, i
}

func (l Line) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	dx, dy := l.X2-l.X1, l.Y2-l.Y1
	length := math32.Hypot(dx, dy)
	if length == 0 {
		return v, i
	}
	half := l.Thickness / 2
	nx, ny := -dy/length*half, dx/length*half
	return appendQuad(v, i,
		[4][2]float32{{l.X1 + nx, l.Y1 + ny}, {l.X2 + nx, l.Y2 + ny}, {l.X2 - nx, l.Y2 - ny}, {l.X1 - nx, l.Y1 - ny}},
		[4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		l.Color)
}

func (t Triangle) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	base := uint16(len(v))
	v = append(v,
		vertex(t.X1, t.Y1, 0, 0, t.Color),
		vertex(t.X2, t.Y2, 1, 0, t.Color),
		vertex(t.X3, t.Y3, 0.5, 1, t.Color))
	return v, append(i, base, base+1, base+2)
}

func (m Mesh) tessellate(v []render.Vertex, i []uint16) ([]render.Vertex, []uint16) {
	base := uint16(len(v))
	v = append(v, m.Vertices...)
	for _, idx := range m.Indices {
		i = append(i, base+idx)
	}
	return v, i
}
