package wld

// Context is a factory bound to one backend. It owns the backend's device
// and allocator state and must outlive every buffer, renderer and surface
// it creates.
type Context interface {
	// CreateRenderer creates a renderer that draws into this backend's
	// buffers.
	CreateRenderer() (*Renderer, error)

	// CreateBuffer allocates a buffer. Flags may include FlagMap and
	// backend-specific flags.
	CreateBuffer(width, height int, format Format, flags Flags) (*Buffer, error)

	// ImportBuffer wraps a foreign handle of type t. Width, height, format
	// and pitch describe the existing memory and are preserved exactly.
	ImportBuffer(t ObjectType, obj Object, width, height int, format Format, pitch int) (*Buffer, error)

	// CreateSurface creates a multi-buffered surface of this backend's
	// buffers.
	CreateSurface(width, height int, format Format, flags Flags) (Surface, error)

	// Destroy releases the backend state.
	Destroy() error
}

// BufferAllocator is the part of a Context that a surface needs.
type BufferAllocator interface {
	CreateBuffer(width, height int, format Format, flags Flags) (*Buffer, error)
}
