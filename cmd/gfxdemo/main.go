// Command gfxdemo renders layered canvases and a 3D scene on the CPU
// reference backend and saves the last frame as a PNG.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/chewxy/math32"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/canvas"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/scene"
)

func main() {
	var (
		width   = flag.Int("width", 800, "image width")
		height  = flag.Int("height", 600, "image height")
		frames  = flag.Int("frames", 30, "number of frames to render")
		output  = flag.String("output", "demo.png", "output file")
		config  = flag.String("config", "", "optional TOML configuration")
		workers = flag.Int("workers", runtime.NumCPU(), "rasterization goroutines")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		gfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := run(*width, *height, *frames, *workers, *output, *config); err != nil {
		log.Fatal(err)
	}
	log.Printf("Demo saved to %s (%dx%d)\n", *output, *width, *height)
}

func run(width, height, frames, workers int, output, config string) error {
	var opts []gfx.Option
	if config != "" {
		cfg, err := gfx.LoadConfigFile(config)
		if err != nil {
			return err
		}
		if opts, err = cfg.Options(); err != nil {
			return err
		}
	}

	target := render.NewPixmapTarget(width, height)
	backend := render.NewSoftwareBackend(target)
	backend.SetWorkers(workers)
	gpu := render.NewHandle(backend)
	defer gpu.Close()

	ctx, err := gfx.New(gpu, opts...)
	if err != nil {
		return err
	}
	defer ctx.Close()

	st, err := newStage(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < frames; i++ {
		if err := st.frame(float32(i) / 10); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, target.Image())
}

// stage shows the three canvas usages: a static background that is never
// cleared, an additive layer that keeps growing and a dynamic layer redrawn
// every frame. A spinning cube sits between the background and the layers.
type stage struct {
	ctx        *gfx.Context
	background *canvas.Canvas
	trail      *canvas.Canvas
	overlay    *canvas.Canvas
	scene      *scene.Scene
	cube       scene.ModelRef
	camera     scene.Camera
}

func newStage(ctx *gfx.Context) (*stage, error) {
	st := &stage{ctx: ctx, camera: scene.DefaultCamera()}
	st.camera.Position = scene.Vec3{2, 2, 4}

	var err error
	if st.background, err = ctx.NewCanvas(); err != nil {
		return nil, err
	}
	if st.trail, err = ctx.NewCanvas(); err != nil {
		return nil, err
	}
	if st.overlay, err = ctx.NewCanvas(canvas.WithCircleSegments(24)); err != nil {
		return nil, err
	}
	if st.scene, err = ctx.NewScene(); err != nil {
		return nil, err
	}

	if err := st.background.DrawRectangle(0, 0, 100, 100, gfx.Red); err != nil {
		return nil, err
	}
	if err := st.background.DrawText("HELLO WORLD", 300, 300, 30, gfx.Black); err != nil {
		return nil, err
	}

	st.cube, err = st.scene.AddModel(&scene.Model{Meshes: []scene.Mesh{scene.Cube(1, gfx.SkyBlue)}})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (st *stage) frame(t float32) error {
	depth := float32(1)
	if err := st.ctx.Clear(&gfx.White, &depth, nil); err != nil {
		return err
	}

	if err := st.scene.SetTransform(st.cube, scene.RotateY(t)); err != nil {
		return err
	}

	p1x, p1y := math32.Sin(t*0.1)*400+400, math32.Cos(t*0.1)*200+200
	if err := st.trail.DrawCircle(p1x, p1y, 10, gfx.Red); err != nil {
		return err
	}

	p2x, p2y := math32.Sin(t*3)*400+800, math32.Cos(t)*200+400
	st.overlay.Clear()
	if err := st.overlay.DrawCircle(p2x, p2y, 10, gfx.Blue); err != nil {
		return err
	}

	if err := st.background.Draw(); err != nil {
		return err
	}
	if err := st.scene.Draw(st.camera); err != nil {
		return err
	}
	if err := st.trail.Draw(); err != nil {
		return err
	}
	if err := st.overlay.Draw(); err != nil {
		return err
	}
	return st.ctx.Flush()
}
