package tensor

import "errors"

// Error definitions for the tensor package.
var (
	ErrShapeMismatch   = errors.New("tensor: shape mismatch")
	ErrUnsupportedType = errors.New("tensor: unsupported element type")
)
