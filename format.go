package wld

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is a pixel format identified by a little-endian four character
// code, matching the DRM and Wayland format codes.
type Format uint32

// Supported pixel formats. Both are 32 bits per pixel and stored as
// B, G, R, X/A bytes in memory.
const (
	FormatXRGB8888 Format = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatARGB8888 Format = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
)

// FourCC builds a Format from its four character code.
func FourCC(a, b, c, d byte) Format {
	return Format(a) | Format(b)<<8 | Format(c)<<16 | Format(d)<<24
}

// BytesPerPixel returns the pixel size of f, or 0 if f is unknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatXRGB8888, FormatARGB8888:
		return 4
	default:
		return 0
	}
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f.BytesPerPixel() != 0
}

// HasAlpha reports whether the fourth channel of f carries alpha.
func (f Format) HasAlpha() bool {
	return f == FormatARGB8888
}

// Pitch returns the tightly packed row size of a width-pixel row.
func (f Format) Pitch(width int) int {
	return width * f.BytesPerPixel()
}

// TextureFormat returns the GPU texture format with the same memory layout.
func (f Format) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatXRGB8888, FormatARGB8888:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// String returns the four character code, or a hex value if it is not
// printable.
func (f Format) String() string {
	b := [4]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("Format(0x%08x)", uint32(f))
		}
	}
	return string(b[:])
}

// Flags control buffer allocation. Backends define additional flags in the
// low 16 bits.
type Flags uint32

// FlagMap requests a buffer that can be mapped into host memory.
const FlagMap Flags = 1 << 16

// Capability describes what a renderer can do with a buffer.
type Capability uint32

// Renderer capabilities.
const (
	CapabilityRead Capability = 1 << iota
	CapabilityWrite
)
