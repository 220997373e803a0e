// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package canvas

import (
	"errors"
	"image/color"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/text"
	"github.com/gogpu/gfx/texture"
)

type fixture struct {
	gpu     *render.Handle
	backend *render.SoftwareBackend
	target  *render.PixmapTarget
	atlas   *text.AtlasStore
	font    *text.Font
}

func newFixture(t *testing.T, w, h int, cfg text.AtlasConfig) *fixture {
	t.Helper()
	target := render.NewPixmapTarget(w, h)
	backend := render.NewSoftwareBackend(target)
	gpu := render.NewHandle(backend)
	t.Cleanup(gpu.Release)
	f, err := text.ParseFont(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		gpu:     gpu,
		backend: backend,
		target:  target,
		atlas:   text.NewAtlasStore(gpu, cfg),
		font:    f,
	}
}

func (fx *fixture) canvas(opts ...Option) *Canvas {
	return New(fx.gpu, fx.atlas, append([]Option{WithFont(fx.font)}, opts...)...)
}

func mustDraw(t *testing.T, c *Canvas) {
	t.Helper()
	if err := c.Draw(); err != nil {
		t.Fatalf("Draw: %v", err)
	}
}

func TestClearThenDrawSubmitsNothing(t *testing.T) {
	fx := newFixture(t, 16, 16, text.AtlasConfig{})
	c := fx.canvas()
	_ = c.DrawRectangle(0, 0, 8, 8, render.Red)
	_ = c.DrawCircle(8, 8, 4, render.Blue)
	c.Clear()
	c.Clear()

	mustDraw(t, c)
	if st := fx.backend.Stats(); st.Draws != 0 || st.Binds != 0 {
		t.Errorf("stats after Clear+Draw = %+v", st)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestDrawIsIdempotent(t *testing.T) {
	fx := newFixture(t, 32, 32, text.AtlasConfig{})
	c := fx.canvas()
	_ = c.DrawRectangle(2, 2, 10, 10, render.Red)
	_ = c.DrawCircle(20, 20, 6, render.Green)
	_ = c.DrawLine(0, 31, 31, 0, 2, render.Blue)

	mustDraw(t, c)
	first := append([]byte(nil), fx.target.Image().Pix...)
	st1 := fx.backend.Stats()

	fx.target.Fill(color.Transparent)
	fx.backend.ResetStats()
	mustDraw(t, c)
	st2 := fx.backend.Stats()

	if string(first) != string(fx.target.Image().Pix) {
		t.Error("second Draw produced different pixels")
	}
	if st1.Draws != st2.Draws || st1.Binds != st2.Binds || st1.Triangles != st2.Triangles {
		t.Errorf("stats differ: %+v vs %+v", st1, st2)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after Draw, want batches kept", c.Len())
	}
}

func TestDrawBindsOnlyOnStateChange(t *testing.T) {
	fx := newFixture(t, 16, 16, text.AtlasConfig{})
	reg := texture.NewRegistry(fx.gpu)
	tex, err := reg.Register(make([]byte, 4*4*4), 4, 4)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                 string
		record               func(c *Canvas)
		wantDraws, wantBinds int
	}{
		{
			name: "one state",
			record: func(c *Canvas) {
				_ = c.DrawRectangle(0, 0, 1, 1, render.Red)
				_ = c.DrawRectangle(2, 2, 1, 1, render.Red)
			},
			wantDraws: 1, wantBinds: 1,
		},
		{
			name: "A B A",
			record: func(c *Canvas) {
				_ = c.DrawRectangle(0, 0, 1, 1, render.Red)
				_ = c.DrawTexture(tex, 0, 0, render.White)
				_ = c.DrawRectangle(2, 2, 1, 1, render.Red)
			},
			wantDraws: 3, wantBinds: 3,
		},
		{
			name: "split batch keeps state",
			record: func(c *Canvas) {
				for i := 0; i < batch.MaxVertices/4+1; i++ {
					_ = c.DrawRectangle(0, 0, 1, 1, render.Red)
				}
			},
			wantDraws: 2, wantBinds: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fx.canvas()
			defer c.Close()
			tt.record(c)
			fx.backend.ResetStats()
			mustDraw(t, c)
			st := fx.backend.Stats()
			if st.Draws != tt.wantDraws || st.Binds != tt.wantBinds {
				t.Errorf("draws=%d binds=%d, want %d %d", st.Draws, st.Binds, tt.wantDraws, tt.wantBinds)
			}
			if st.Flushes != 1 {
				t.Errorf("flushes = %d, want 1", st.Flushes)
			}
		})
	}
}

func TestCanvasesLayerInDrawOrder(t *testing.T) {
	tests := []struct {
		name       string
		blueOnTop  bool
		wantCenter color.RGBA
	}{
		{"red then blue", true, color.RGBA{0, 0, 255, 255}},
		{"blue then red", false, color.RGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, 20, 20, text.AtlasConfig{})
			red, blue := fx.canvas(), fx.canvas()
			_ = red.DrawRectangle(0, 0, 20, 20, render.Red)
			_ = blue.DrawRectangle(5, 5, 10, 10, render.Blue)

			if tt.blueOnTop {
				mustDraw(t, red)
				mustDraw(t, blue)
			} else {
				mustDraw(t, blue)
				mustDraw(t, red)
			}
			if got := fx.target.RGBAAt(10, 10); got != tt.wantCenter {
				t.Errorf("center = %v, want %v", got, tt.wantCenter)
			}
			if got := fx.target.RGBAAt(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
				t.Errorf("corner = %v, want red", got)
			}
		})
	}
}

func TestAdditiveCanvasAccumulates(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	fx.target.Fill(color.Black)
	c := fx.canvas()
	c.SetBlendMode(render.BlendAdditive)
	dim := render.Color{R: 0.25, A: 1}
	_ = c.DrawRectangle(0, 0, 8, 8, dim)

	mustDraw(t, c)
	mustDraw(t, c)
	got := fx.target.RGBAAt(4, 4)
	if got.R < 126 || got.R > 129 || got.G != 0 || got.B != 0 {
		t.Errorf("after two additive draws = %v, want R about 128", got)
	}
}

func TestDrawErrorKeepsBatches(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	c := fx.canvas()
	_ = c.DrawRectangle(0, 0, 4, 4, render.Red)
	_ = c.DrawCircle(4, 4, 2, render.Blue)
	before := c.Len()

	fx.gpu.Close()
	if err := c.Draw(); !errors.Is(err, render.ErrContextUnavailable) {
		t.Fatalf("got %v, want ErrContextUnavailable", err)
	}
	if c.Len() != before {
		t.Errorf("Len = %d after failed Draw, want %d", c.Len(), before)
	}
}

func TestCloseReleasesBuffers(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	c := fx.canvas()
	_ = c.DrawRectangle(0, 0, 4, 4, render.Red)
	mustDraw(t, c)
	if n := fx.backend.LiveBuffers(); n != 2 {
		t.Fatalf("live buffers after Draw = %d, want 2", n)
	}
	// A second draw reuses the same buffers.
	mustDraw(t, c)
	if n := fx.backend.LiveBuffers(); n != 2 {
		t.Errorf("live buffers after second Draw = %d, want 2", n)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if n := fx.backend.LiveBuffers(); n != 0 {
		t.Errorf("live buffers after Close = %d", n)
	}
	if err := c.Draw(); !errors.Is(err, ErrCanvasClosed) {
		t.Errorf("Draw after Close: %v", err)
	}
	if err := c.DrawRectangle(0, 0, 1, 1, render.Red); !errors.Is(err, ErrCanvasClosed) {
		t.Errorf("DrawRectangle after Close: %v", err)
	}
}

func TestDrawTextureHoldsReference(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	reg := texture.NewRegistry(fx.gpu)
	green := make([]byte, 2*2*4)
	for i := 0; i < len(green); i += 4 {
		green[i+1], green[i+3] = 255, 255
	}
	tex, err := reg.Register(green, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	c := fx.canvas()
	if err := c.DrawTextureEx(tex, 0, 0, render.White, TextureParams{DestW: 8, DestH: 8}); err != nil {
		t.Fatal(err)
	}
	if err := tex.Release(); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Fatalf("texture freed while the canvas still uses it")
	}

	mustDraw(t, c)
	if got := fx.target.RGBAAt(4, 4); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("pixel = %v, want green", got)
	}

	c.Clear()
	if reg.Len() != 0 {
		t.Errorf("texture not freed after Clear, %d live", reg.Len())
	}

	if err := c.DrawTexture(nil, 0, 0, render.White); !errors.Is(err, render.ErrResource) {
		t.Errorf("nil texture: %v", err)
	}
}

func TestRejectedMeshReleasesTexture(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	reg := texture.NewRegistry(fx.gpu)
	tex, err := reg.Register(make([]byte, 4), 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	c := fx.canvas()
	verts := []render.Vertex{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 4}}
	err = c.DrawMesh(verts, []uint16{0, 1, 7}, tex)
	if !errors.Is(err, batch.ErrIndexOutOfRange) {
		t.Fatalf("DrawMesh = %v, want ErrIndexOutOfRange", err)
	}
	if err := tex.Release(); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 0 {
		t.Errorf("rejected mesh kept its texture alive, %d live", reg.Len())
	}
}

func TestDrawTextControlAndMissingRunes(t *testing.T) {
	fx := newFixture(t, 200, 60, text.AtlasConfig{})
	for _, s := range []string{"a\tb", "smile \U0001F600", "\x01x"} {
		c := fx.canvas()
		if err := c.DrawText(s, 0, 40, 30, render.Black); err != nil {
			t.Errorf("DrawText(%q): %v", s, err)
			continue
		}
		if c.Len() != 1 {
			t.Errorf("DrawText(%q): %d batches, want 1", s, c.Len())
		}
		mustDraw(t, c)
		_ = c.Close()
	}
}

func TestRectangleAndTextBatches(t *testing.T) {
	fx := newFixture(t, 120, 60, text.AtlasConfig{})
	c := fx.canvas()
	if err := c.DrawRectangle(0, 0, 10, 10, render.Red); err != nil {
		t.Fatal(err)
	}
	if err := c.DrawText("HELLO", 10, 40, 24, render.Black); err != nil {
		t.Fatal(err)
	}

	batches := c.Batches()
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if batches[0].State.Texture != 0 {
		t.Error("rectangle batch is textured")
	}
	view, _ := fx.atlas.Atlas(fx.font)
	if batches[1].State.Texture != view.Texture {
		t.Errorf("text batch texture = %d, want atlas %d", batches[1].State.Texture, view.Texture)
	}

	mustDraw(t, c)
	var inked int
	for y := 10; y < 45; y++ {
		for x := 10; x < 110; x++ {
			if fx.target.RGBAAt(x, y).A > 0 {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Error("text left no pixels on the target")
	}
}

func TestDrawTextWithoutFont(t *testing.T) {
	fx := newFixture(t, 8, 8, text.AtlasConfig{})
	c := New(fx.gpu, fx.atlas)
	err := c.DrawText("x", 0, 0, 12, render.Black)
	if !errors.Is(err, render.ErrResource) || !errors.Is(err, ErrNoFont) {
		t.Errorf("got %v", err)
	}
}

func TestDrawAfterAtlasGrowth(t *testing.T) {
	fx := newFixture(t, 64, 64, text.AtlasConfig{InitialSize: 64, MaxSize: 1024})
	c := fx.canvas()
	if err := c.DrawText("HELLO", 0, 40, 30, render.Black); err != nil {
		t.Fatal(err)
	}
	growths := fx.atlas.Stats().Growths

	var ascii []rune
	for r := rune(33); r < 127; r++ {
		ascii = append(ascii, r)
	}
	if err := fx.atlas.Populate(fx.font, ascii, 40); err != nil {
		t.Fatal(err)
	}
	if fx.atlas.Stats().Growths == growths {
		t.Fatal("atlas did not grow")
	}

	// The recorded batch points at a destroyed texture until Draw remaps it.
	mustDraw(t, c)
	view, _ := fx.atlas.Atlas(fx.font)
	if got := c.Batches()[0].State.Texture; got != view.Texture {
		t.Errorf("batch texture = %d, want current atlas %d", got, view.Texture)
	}
	for _, v := range c.Batches()[0].Vertices {
		if v.U > 1 || v.V > 1 {
			t.Fatalf("uv (%v,%v) outside atlas", v.U, v.V)
		}
	}
}

func TestCameraOverride(t *testing.T) {
	fx := newFixture(t, 10, 10, text.AtlasConfig{})
	c := fx.canvas()
	id := render.Identity()
	c.SetCamera(&id)
	// Clip space covers the whole target under the identity camera.
	_ = c.DrawRectangle(-1, -1, 2, 2, render.Red)
	mustDraw(t, c)
	for _, p := range [][2]int{{0, 0}, {9, 9}, {5, 5}} {
		if got := fx.target.RGBAAt(p[0], p[1]); got != (color.RGBA{255, 0, 0, 255}) {
			t.Errorf("pixel %v = %v, want red", p, got)
		}
	}

	c.SetCamera(nil)
	c.Clear()
	fx.target.Fill(color.Transparent)
	_ = c.DrawRectangle(0, 0, 2, 2, render.Red)
	mustDraw(t, c)
	if got := fx.target.RGBAAt(5, 5); got.A != 0 {
		t.Errorf("pixel projection drew at (5,5): %v", got)
	}
}

func TestRectangleLinesLeaveInteriorEmpty(t *testing.T) {
	fx := newFixture(t, 20, 20, text.AtlasConfig{})
	c := fx.canvas()
	_ = c.DrawRectangleLines(2, 2, 16, 16, 2, render.Red)
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	mustDraw(t, c)
	if got := fx.target.RGBAAt(10, 10); got.A != 0 {
		t.Errorf("interior = %v, want empty", got)
	}
	if got := fx.target.RGBAAt(3, 10); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("left edge = %v, want red", got)
	}
}
