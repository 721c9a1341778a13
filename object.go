package wld

import "fmt"

// ObjectType tags a backend-specific handle that a buffer can be exported
// to or imported from. The top byte identifies the backend that owns the
// tag, so independent backends never collide.
type ObjectType uint32

// Backend identifiers for the top byte of ObjectType.
const (
	BackendCore     ObjectType = 0x00 << 24
	BackendSoftware ObjectType = 0x01 << 24
	BackendDRM      ObjectType = 0x02 << 24
	BackendWayland  ObjectType = 0x03 << 24
	BackendPresent  ObjectType = 0x04 << 24
	BackendUser     ObjectType = 0xff << 24
)

// ObjectData is host memory holding pixel data, carried in Object.Data.
const ObjectData = BackendCore

// Backend returns the backend identifier of t.
func (t ObjectType) Backend() ObjectType {
	return t & (0xff << 24)
}

func (t ObjectType) String() string {
	return fmt.Sprintf("ObjectType(0x%08x)", uint32(t))
}

// Object carries a handle of some ObjectType. Which field is meaningful
// depends on the type: Data for host memory, Handle for kernel object
// handles, FD for file descriptors, Value for anything else.
type Object struct {
	Data   []byte
	Handle uint32
	FD     int
	Value  any
}
