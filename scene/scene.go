package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/texture"
)

// Scene errors.
var (
	// ErrSceneClosed is returned when a closed scene is used.
	ErrSceneClosed = errors.New("scene: scene is closed")

	// ErrUnknownModel is returned for a ModelRef not in the scene.
	ErrUnknownModel = errors.New("scene: unknown model")

	// ErrEmptyMesh is returned when a model holds a mesh without triangles.
	ErrEmptyMesh = errors.New("scene: mesh has no triangles")
)

// Mesh is indexed triangle geometry with an optional texture.
type Mesh struct {
	Vertices []render.Vertex
	Indices  []uint16
	Texture  *texture.Handle
	Blend    render.BlendMode
}

// Model is a set of meshes drawn with one transform.
type Model struct {
	Meshes []Mesh
}

// ModelRef identifies a model instance inside a Scene.
type ModelRef uint64

type gpuMesh struct {
	vb, ib render.BufferID
	count  int
	state  render.PipelineState
}

type instance struct {
	ref       ModelRef
	model     *Model
	transform render.Mat4
	meshes    []gpuMesh // nil until first Draw
}

// Scene holds model instances and draws them with a camera.
//
// Models are drawn in the order they were added. Mesh data is uploaded on
// the first Draw after AddModel and reused afterwards, so a Model must not
// be mutated once added; remove and add it again instead.
//
// A Scene is safe for concurrent use.
type Scene struct {
	gpu *render.Handle

	mu        sync.Mutex
	instances []*instance
	nextRef   ModelRef
	garbage   []render.BufferID // buffers of removed models, freed on Draw or Close
	closed    bool
	onClose   func(*Scene)
}

// Option configures a Scene.
type Option func(*Scene)

// OnClose registers fn to run once when the scene is closed.
func OnClose(fn func(*Scene)) Option {
	return func(s *Scene) {
		s.onClose = fn
	}
}

// New creates an empty scene bound to the shared GPU handle.
func New(gpu *render.Handle, opts ...Option) *Scene {
	s := &Scene{gpu: gpu}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddModel adds an instance of m with the identity transform. Each mesh is
// retained so its texture outlives the instance.
func (s *Scene) AddModel(m *Model) (ModelRef, error) {
	if m == nil {
		return 0, &render.ResourceError{Op: "add", Resource: "model", Err: ErrUnknownModel}
	}
	for i, mesh := range m.Meshes {
		if len(mesh.Indices) < 3 {
			return 0, &render.ResourceError{Op: "add", Resource: fmt.Sprintf("mesh %d", i), Err: ErrEmptyMesh}
		}
		for _, idx := range mesh.Indices {
			if int(idx) >= len(mesh.Vertices) {
				return 0, &render.ResourceError{Op: "add", Resource: fmt.Sprintf("mesh %d", i), Err: fmt.Errorf("index %d out of range", idx)}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSceneClosed
	}
	for i, mesh := range m.Meshes {
		if mesh.Texture == nil {
			continue
		}
		if _, err := mesh.Texture.Retain(); err != nil {
			releaseTextures(m.Meshes[:i])
			return 0, &render.ResourceError{Op: "add", Resource: fmt.Sprintf("mesh %d texture", i), Err: err}
		}
	}
	s.nextRef++
	s.instances = append(s.instances, &instance{ref: s.nextRef, model: m, transform: render.Identity()})
	return s.nextRef, nil
}

// RemoveModel removes the instance. Its GPU buffers are freed on the next
// Draw or Close.
func (s *Scene) RemoveModel(ref ModelRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inst := range s.instances {
		if inst.ref != ref {
			continue
		}
		s.instances = append(s.instances[:i], s.instances[i+1:]...)
		for _, gm := range inst.meshes {
			s.garbage = append(s.garbage, gm.vb, gm.ib)
		}
		releaseTextures(inst.model.Meshes)
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownModel, ref)
}

// SetTransform sets the model-to-world matrix of the instance.
func (s *Scene) SetTransform(ref ModelRef, m render.Mat4) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ref == ref {
			inst.transform = m
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownModel, ref)
}

// Len returns the number of model instances.
func (s *Scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// Draw submits every model instance, in the order they were added, viewed
// through cam. The GPU handle is held for the whole call.
func (s *Scene) Draw(cam Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSceneClosed
	}

	sess, err := s.gpu.Lock()
	if err != nil {
		return err
	}
	defer sess.Unlock()
	be := sess.Backend()

	s.collect(be)

	if cam.ClearColor != nil {
		var depth *float32
		if cam.DepthEnabled {
			one := float32(1)
			depth = &one
		}
		if err := be.Clear(cam.ClearColor, depth, nil); err != nil {
			return err
		}
	}

	w, h := be.TargetSize()
	var aspect float32
	if h > 0 {
		aspect = float32(w) / float32(h)
	}
	viewProj := cam.ProjectionMatrix(aspect).Mul(cam.View())
	depth := cam.DepthEnabled && be.Capabilities().DepthBuffer

	draws := 0
	for _, inst := range s.instances {
		if inst.meshes == nil {
			if err := inst.upload(be); err != nil {
				return err
			}
		}
		if err := be.SetUniforms(render.Uniforms{Transform: viewProj.Mul(inst.transform)}); err != nil {
			return err
		}
		for _, gm := range inst.meshes {
			state := gm.state
			state.DepthTest, state.DepthWrite = depth, depth
			if err := be.BindState(state); err != nil {
				return err
			}
			if err := be.Draw(gm.vb, gm.ib, 0, gm.count, 0); err != nil {
				return err
			}
			draws++
		}
	}
	if err := be.Flush(); err != nil {
		return err
	}
	logger.Get().Debug("scene: drawn", "models", len(s.instances), "draws", draws)
	return nil
}

// upload creates the GPU buffers of every mesh of the instance.
func (inst *instance) upload(be render.Backend) error {
	meshes := make([]gpuMesh, 0, len(inst.model.Meshes))
	fail := func(err error) error {
		for _, gm := range meshes {
			be.DestroyBuffer(gm.vb)
			be.DestroyBuffer(gm.ib)
		}
		return err
	}
	for _, m := range inst.model.Meshes {
		vdata := render.AppendVertices(nil, m.Vertices)
		idata := render.AppendIndices(nil, m.Indices)
		if len(idata)%4 != 0 {
			idata = append(idata, 0, 0)
		}
		vb, err := createBuffer(be, render.BufferVertex, vdata)
		if err != nil {
			return fail(err)
		}
		ib, err := createBuffer(be, render.BufferIndex, idata)
		if err != nil {
			be.DestroyBuffer(vb)
			return fail(err)
		}
		gm := gpuMesh{vb: vb, ib: ib, count: len(m.Indices), state: render.PipelineState{Blend: m.Blend}}
		if m.Texture != nil {
			gm.state.Texture = m.Texture.ID()
		}
		meshes = append(meshes, gm)
	}
	inst.meshes = meshes
	return nil
}

func createBuffer(be render.Backend, kind render.BufferKind, data []byte) (render.BufferID, error) {
	id, err := be.CreateBuffer(kind, len(data))
	if err != nil {
		return 0, &render.ResourceError{Op: "create", Resource: kind.String() + " buffer", Err: err}
	}
	if err := be.UpdateBuffer(id, data); err != nil {
		be.DestroyBuffer(id)
		return 0, &render.ResourceError{Op: "upload", Resource: kind.String() + " buffer", Err: err}
	}
	return id, nil
}

// collect frees buffers of removed models. Callers hold the session.
func (s *Scene) collect(be render.Backend) {
	for _, id := range s.garbage {
		be.DestroyBuffer(id)
	}
	s.garbage = s.garbage[:0]
}

func releaseTextures(meshes []Mesh) {
	for _, m := range meshes {
		if m.Texture == nil {
			continue
		}
		if err := m.Texture.Release(); err != nil {
			logger.Get().Warn("scene: texture release failed", "texture", m.Texture.ID(), "err", err)
		}
	}
}

// Close frees every GPU buffer of the scene and releases mesh textures.
// Close is idempotent.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.onClose != nil {
		defer s.onClose(s)
	}
	for _, inst := range s.instances {
		for _, gm := range inst.meshes {
			s.garbage = append(s.garbage, gm.vb, gm.ib)
		}
		releaseTextures(inst.model.Meshes)
	}
	s.instances = nil
	if len(s.garbage) == 0 {
		return
	}
	sess, err := s.gpu.Lock()
	if err != nil {
		s.garbage = nil
		return
	}
	defer sess.Unlock()
	s.collect(sess.Backend())
}
