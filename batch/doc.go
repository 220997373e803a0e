// Package batch groups 2D geometry into draw batches.
//
// A Builder merges consecutive shapes that share a RenderState (texture,
// blend mode, shader) into one DrawBatch, so that a frame of many
// same-state primitives costs a single draw call. Merging only looks at
// the immediately preceding batch; z-order is submission order.
//
// Geometry is described by the closed Shape set (Rect, Quad, Circle, Ring,
// Polygon, Line, Triangle, Mesh) and appended through Builder.Emit:
//
//	b := batch.NewBuilder()
//	_ = b.Emit(batch.Rect{X: 0, Y: 0, W: 100, H: 100, Color: render.Red}, batch.RenderState{})
//	_ = b.Emit(batch.Circle{X: 50, Y: 50, Radius: 10, Color: render.Blue}, batch.RenderState{})
//	// b.Len() == 1
package batch
