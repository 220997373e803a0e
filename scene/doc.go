// Package scene draws 3D models through the shared GPU handle.
//
// A Scene is the 3D counterpart of a canvas: it holds model instances and
// submits all of them in one Draw call, in the order they were added, so
// scenes and canvases compose into one frame by the order their Draw
// methods are called:
//
//	s := scene.New(gpu)
//	ref, _ := s.AddModel(&scene.Model{Meshes: []scene.Mesh{scene.Cube(1, render.Red)}})
//	s.SetTransform(ref, scene.RotateY(angle))
//
//	cam := scene.DefaultCamera()
//	cam.ClearColor = &render.White
//	s.Draw(cam)
//	hud.Draw()
//
// Loading meshes from files and scene graphs are out of scope; a Model is
// plain vertex and index data.
package scene
