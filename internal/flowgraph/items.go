package flowgraph

import "fmt"

// Kind is the sample type carried by a port.
type Kind uint8

const (
	KindFloat   Kind = iota + 1 // float32
	KindComplex                 // complex64
	KindByte                    // uint8
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindByte:
		return "byte"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Size is the number of bytes per sample.
func (k Kind) Size() int {
	switch k {
	case KindFloat:
		return 4
	case KindComplex:
		return 8
	case KindByte:
		return 1
	}
	return 0
}

// Sample is the set of Go types a stream can carry.
type Sample interface {
	float32 | complex64 | byte
}

// KindOf returns the Kind for a sample type.
func KindOf[T Sample]() Kind {
	var zero T
	switch any(zero).(type) {
	case float32:
		return KindFloat
	case complex64:
		return KindComplex
	default:
		return KindByte
	}
}

// Items is a window of samples of a single kind, handed to and filled by
// blocks during Work.
type Items struct {
	kind Kind
	data any
}

// MakeItems wraps a typed slice.
func MakeItems[T Sample](s []T) Items {
	return Items{kind: KindOf[T](), data: s}
}

// NewItems allocates a window of n zero samples of the given kind.
func NewItems(k Kind, n int) Items {
	switch k {
	case KindFloat:
		return MakeItems(make([]float32, n))
	case KindComplex:
		return MakeItems(make([]complex64, n))
	case KindByte:
		return MakeItems(make([]byte, n))
	}
	panic(fmt.Sprintf("flowgraph: unknown kind %v", k))
}

// As returns the underlying slice. It panics if T does not match the kind.
func As[T Sample](it Items) []T {
	if it.data == nil {
		return nil
	}
	return it.data.([]T)
}

func (it Items) Kind() Kind { return it.kind }

// Float returns the samples of a KindFloat window.
func (it Items) Float() []float32 { return As[float32](it) }

// Complex returns the samples of a KindComplex window.
func (it Items) Complex() []complex64 { return As[complex64](it) }

// Bytes returns the samples of a KindByte window.
func (it Items) Bytes() []byte { return As[byte](it) }

// Len returns the number of samples in the window.
func (it Items) Len() int {
	switch s := it.data.(type) {
	case []float32:
		return len(s)
	case []complex64:
		return len(s)
	case []byte:
		return len(s)
	}
	return 0
}

// Slice returns it[lo:hi].
func (it Items) Slice(lo, hi int) Items {
	switch s := it.data.(type) {
	case []float32:
		return Items{kind: it.kind, data: s[lo:hi]}
	case []complex64:
		return Items{kind: it.kind, data: s[lo:hi]}
	case []byte:
		return Items{kind: it.kind, data: s[lo:hi]}
	}
	return it
}

// Copy copies min(dst.Len(), src.Len()) samples and returns the count. Both
// windows must be of the same kind.
func Copy(dst, src Items) int {
	switch s := src.data.(type) {
	case []float32:
		return copy(As[float32](dst), s)
	case []complex64:
		return copy(As[complex64](dst), s)
	case []byte:
		return copy(As[byte](dst), s)
	}
	return 0
}
