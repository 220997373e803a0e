package scene

import "github.com/gogpu/gfx/render"

// Cube returns an axis-aligned cube mesh of edge size centered on the
// origin, one color per vertex, with each face textured [0,1]x[0,1].
func Cube(size float32, c render.Color) Mesh {
	h := size / 2
	// Each face: normal axis, sign, and two tangent axes.
	faces := [6]struct {
		axis, u, v int
		sign       float32
	}{
		{0, 2, 1, 1}, {0, 2, 1, -1},
		{1, 0, 2, 1}, {1, 0, 2, -1},
		{2, 0, 1, 1}, {2, 0, 1, -1},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	m := Mesh{
		Vertices: make([]render.Vertex, 0, 24),
		Indices:  make([]uint16, 0, 36),
	}
	for _, f := range faces {
		base := uint16(len(m.Vertices))
		for _, k := range corners {
			var p [3]float32
			p[f.axis] = f.sign * h
			p[f.u] = k[0] * h
			p[f.v] = k[1] * h
			v := render.Vertex{X: p[0], Y: p[1], Z: p[2], U: (k[0] + 1) / 2, V: (1 - k[1]) / 2}
			v.SetColor(c)
			m.Vertices = append(m.Vertices, v)
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return m
}

// Quad returns a w by h rectangle in the XY plane centered on the origin.
func Quad(w, h float32, c render.Color) Mesh {
	x, y := w/2, h/2
	vs := []render.Vertex{
		{X: -x, Y: -y, U: 0, V: 1},
		{X: x, Y: -y, U: 1, V: 1},
		{X: x, Y: y, U: 1, V: 0},
		{X: -x, Y: y, U: 0, V: 0},
	}
	for i := range vs {
		vs[i].SetColor(c)
	}
	return Mesh{Vertices: vs, Indices: []uint16{0, 1, 2, 2, 3, 0}}
}
