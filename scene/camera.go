package scene

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/gfx/render"
)

// Projection selects the camera projection.
type Projection uint8

const (
	// Perspective uses Fovy, ZNear and ZFar.
	Perspective Projection = iota
	// Orthographic uses OrthoHeight, ZNear and ZFar.
	Orthographic
)

// Vec3 is a point or direction.
type Vec3 [3]float32

// Camera positions the viewer of a Scene.
type Camera struct {
	Position Vec3
	Target   Vec3
	Up       Vec3

	Projection Projection
	// Fovy is the vertical field of view in radians.
	Fovy float32
	// OrthoHeight is the height of the orthographic view volume.
	OrthoHeight float32
	ZNear, ZFar float32

	// Aspect is width/height. Zero derives it from the render target.
	Aspect float32

	// DepthEnabled turns on depth testing and writing for the scene.
	DepthEnabled bool

	// ClearColor, when set, clears the target before the scene draws. The
	// depth buffer is cleared too when DepthEnabled is set.
	ClearColor *render.Color
}

// DefaultCamera looks at the origin from +Z with a 45 degree field of view.
func DefaultCamera() Camera {
	return Camera{
		Position:     Vec3{0, 0, 5},
		Up:           Vec3{0, 1, 0},
		Fovy:         math32.Pi / 4,
		OrthoHeight:  2,
		ZNear:        0.1,
		ZFar:         100,
		DepthEnabled: true,
	}
}

// View returns the world-to-camera matrix.
func (c Camera) View() render.Mat4 {
	up := c.Up
	if up == (Vec3{}) {
		up = Vec3{0, 1, 0}
	}
	return LookAt(c.Position, c.Target, up)
}

// ProjectionMatrix returns the camera-to-clip matrix for the given target
// aspect ratio. c.Aspect overrides aspect when non-zero.
func (c Camera) ProjectionMatrix(aspect float32) render.Mat4 {
	if c.Aspect != 0 {
		aspect = c.Aspect
	}
	if aspect == 0 {
		aspect = 1
	}
	if c.Projection == Orthographic {
		h := c.OrthoHeight / 2
		return render.Ortho(-h*aspect, h*aspect, -h, h, c.ZNear, c.ZFar)
	}
	return PerspectiveMatrix(c.Fovy, aspect, c.ZNear, c.ZFar)
}

// PerspectiveMatrix returns a right-handed perspective projection with depth
// mapped to [0, 1].
func PerspectiveMatrix(fovy, aspect, near, far float32) render.Mat4 {
	f := 1 / math32.Tan(fovy/2)
	nf := near - far
	return render.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far / nf, -1,
		0, 0, near * far / nf, 0,
	}
}

// LookAt returns a right-handed view matrix.
func LookAt(eye, target, up Vec3) render.Mat4 {
	f := normalize(sub(target, eye))
	s := normalize(cross(f, up))
	u := cross(s, f)
	return render.Mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-dot(s, eye), -dot(u, eye), dot(f, eye), 1,
	}
}

// RotateY returns a rotation of angle radians about the Y axis.
func RotateY(angle float32) render.Mat4 {
	sin, cos := math32.Sincos(angle)
	m := render.Identity()
	m[0], m[2] = cos, -sin
	m[8], m[10] = sin, cos
	return m
}

func sub(a, b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func dot(a, b Vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v Vec3) Vec3 {
	l := math32.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return Vec3{v[0] / l, v[1] / l, v[2] / l}
}
