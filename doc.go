// Package wld provides pixel buffers, renderers and presentation surfaces
// over interchangeable backends.
//
// # Overview
//
// A Context is bound to one backend: the software rasterizer, a DRM driver
// (Intel BLT, Nouveau 2D or plain dumb buffers) or a Wayland transport
// wrapping one of those. Applications allocate Buffers and Surfaces from the
// Context and draw into them with a Renderer, without knowing how the pixel
// memory is allocated or which command format reaches the GPU.
//
// # Quick Start
//
//	ctx := software.NewContext()
//	defer ctx.Destroy()
//
//	r, _ := ctx.CreateRenderer()
//	s, _ := ctx.CreateSurface(640, 480, wld.FormatXRGB8888, 0)
//
//	r.SetTargetSurface(s)
//	r.FillRectangle(0xff202020, 0, 0, 640, 480)
//	r.Flush()
//	s.Swap()
//
// # Buffers
//
// Buffers are reference counted. Backend resources are freed synchronously
// when the last reference is dropped, never by the garbage collector.
// Other modules attach capabilities to a buffer through exporters and
// destructors; this is how a kernel buffer gains a software image view or a
// compositor buffer object.
//
// # Surfaces
//
// A BufferedSurface rotates buffers through an asynchronous presenter.
// Each buffer accumulates all damage since it was last drawn, so a frame
// only needs to redraw the region Damage returns.
//
// # Threading
//
// All types are single-threaded. Release notifications from the presenter
// are polled, never delivered from another goroutine.
//
// # Logging
//
// wld is silent by default. See SetLogger.
package wld
