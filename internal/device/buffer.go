package device

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// Buffer is a region of device memory.
type Buffer struct {
	data  []byte
	freed bool
}

// Len is the buffer size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Float64s views the buffer as float64 values. Only kernels may use views.
func (b *Buffer) Float64s() []float64 {
	return arrow.Float64Traits.CastFromBytes(b.data)
}

// Int32s views the buffer as int32 values. Only kernels may use views.
func (b *Buffer) Int32s() []int32 {
	return arrow.Int32Traits.CastFromBytes(b.data)
}

// Float64Bytes reinterprets host float64s as bytes for copy calls.
func Float64Bytes(v []float64) []byte {
	return arrow.Float64Traits.CastToBytes(v)
}

// Int32Bytes reinterprets host int32s as bytes for copy calls.
func Int32Bytes(v []int32) []byte {
	return arrow.Int32Traits.CastToBytes(v)
}

// Float64Size and Int32Size are element widths in bytes.
const (
	Float64Size = arrow.Float64SizeBytes
	Int32Size   = arrow.Int32SizeBytes
)
