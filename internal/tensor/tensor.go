// Package tensor builds the typed, shaped buffers exchanged with inference
// backends.
//
// A Tensor owns a flat byte buffer in native byte order together with its
// element type and shape. The buffer length always equals the product of the
// shape times the element size.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"
)

// DType is the element type of a tensor.
type DType int

const (
	// Invalid is the zero DType.
	Invalid DType = iota

	// Float32 is a 32-bit IEEE-754 float.
	Float32

	// Bool is a one-byte boolean (0 or 1).
	Bool

	// Uint8 is an unsigned byte.
	Uint8
)

// Size returns the element width in bytes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Bool, Uint8:
		return 1
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Bool:
		return "bool"
	case Uint8:
		return "uint8"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// ParseDType parses the textual form produced by String.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "float":
		return Float32, nil
	case "bool", "boolean":
		return Bool, nil
	case "uint8", "byte":
		return Uint8, nil
	default:
		return Invalid, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// Shape is an ordered list of tensor dimensions.
type Shape []int64

// NumElements returns the product of the dimensions.
func (s Shape) NumElements() int64 {
	if len(s) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports whether every dimension is positive.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d of %s is not positive", ErrShapeMismatch, i, s)
		}
	}
	return nil
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Info describes a tensor a model declares as input or output. Dynamic
// dimensions are reported as -1.
type Info struct {
	Name  string
	DType DType
	Shape Shape
}

// Tensor is a typed, shaped numeric buffer.
type Tensor struct {
	dtype DType
	shape Shape
	data  []byte
}

// NewFloat32 wraps values into a float32 tensor of the given shape. The
// returned tensor shares memory with values; callers must not mutate values
// while the tensor is in use.
func NewFloat32(values []float32, shape ...int64) (*Tensor, error) {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != int64(len(values)) {
		return nil, fmt.Errorf("%w: shape %s needs %d values, got %d",
			ErrShapeMismatch, s, s.NumElements(), len(values))
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(values))), len(values)*Float32.Size())
	return &Tensor{dtype: Float32, shape: s, data: data}, nil
}

// NewMask returns a [1, length] padding mask with every position set to
// "attend". dtype must be Bool or Uint8 and match what the consuming model
// declares for its mask input.
func NewMask(length int, dtype DType) (*Tensor, error) {
	if dtype != Bool && dtype != Uint8 {
		return nil, fmt.Errorf("%w: mask element type %s", ErrUnsupportedType, dtype)
	}
	s := Shape{1, int64(length)}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	data := make([]byte, length)
	for i := range data {
		data[i] = 1
	}
	return &Tensor{dtype: dtype, shape: s, data: data}, nil
}

// FromBytes builds a tensor over an existing buffer laid out in native byte
// order. The buffer is not copied.
func FromBytes(dtype DType, shape Shape, data []byte) (*Tensor, error) {
	if dtype.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dtype)
	}
	s := shape.Clone()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if want := s.NumElements() * int64(dtype.Size()); want != int64(len(data)) {
		return nil, fmt.Errorf("%w: shape %s of %s needs %d bytes, got %d",
			ErrShapeMismatch, s, dtype, want, len(data))
	}
	return &Tensor{dtype: dtype, shape: s, data: data}, nil
}

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() Shape { return t.shape.Clone() }

// Dim returns dimension i, or -1 when the tensor has fewer dimensions.
func (t *Tensor) Dim(i int) int64 {
	if i < 0 || i >= len(t.shape) {
		return -1
	}
	return t.shape[i]
}

// Len returns the number of elements.
func (t *Tensor) Len() int { return int(t.shape.NumElements()) }

// Bytes returns the raw buffer. It aliases the tensor's memory.
func (t *Tensor) Bytes() []byte { return t.data }

// Float32s reinterprets the buffer as float32 values in native byte order,
// preserving element order. The result is a copy.
func (t *Tensor) Float32s() ([]float32, error) {
	if t.dtype != Float32 {
		return nil, fmt.Errorf("%w: want float32, have %s", ErrUnsupportedType, t.dtype)
	}
	out := make([]float32, len(t.data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.NativeEndian.Uint32(t.data[i*4:]))
	}
	return out, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("tensor(%s%s)", t.dtype, t.shape)
}
