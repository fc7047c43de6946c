package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	err := New(ErrorTypeInput, "load_proteins", "directory is empty")
	assert.Equal(t, "[input] load_proteins: directory is empty", err.Error())

	cause := errors.New("permission denied")
	err = Wrap(cause, ErrorTypeDevice, "alloc", "device buffer allocation failed")
	assert.Contains(t, err.Error(), "[device] alloc: device buffer allocation failed")
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := New(ErrorTypePartition, "split", "bad worker count")
	err = err.WithContext("workers", 0).WithContext("total", 12)

	assert.Equal(t, 0, err.Context["workers"])
	assert.Equal(t, 12, err.Context["total"])
}

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, ErrorTypeInput, NewInputError("op", "msg").Type)
	assert.Equal(t, ErrorTypePartition, NewPartitionError("op", "msg").Type)
	assert.Equal(t, ErrorTypeDevice, NewDeviceError("op", "msg").Type)
	assert.Equal(t, ErrorTypeNetwork, NewNetworkError("op", "msg").Type)
	assert.Equal(t, ErrorTypeComputation, NewComputationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, NewConfigurationError("op", "msg").Type)
}

func TestErrorWrapping(t *testing.T) {
	originalErr := errors.New("original error")

	wrapped := WrapInputError(originalErr, "parse", "bad record")
	assert.Equal(t, ErrorTypeInput, wrapped.Type)
	assert.Equal(t, "parse", wrapped.Operation)
	assert.Equal(t, "bad record", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Unwrap())

	assert.Equal(t, ErrorTypePartition, WrapPartitionError(originalErr, "op", "msg").Type)
	assert.Equal(t, ErrorTypeDevice, WrapDeviceError(originalErr, "op", "msg").Type)
	assert.Equal(t, ErrorTypeNetwork, WrapNetworkError(originalErr, "op", "msg").Type)
	assert.Equal(t, ErrorTypeComputation, WrapComputationError(originalErr, "op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, WrapConfigurationError(originalErr, "op", "msg").Type)

	assert.Nil(t, Wrap(nil, ErrorTypeInput, "op", "msg"))
}

func TestTypeOf(t *testing.T) {
	base := NewDeviceError("copy", "host to device failed")
	outer := fmt.Errorf("accelerator run: %w", base)

	typ, ok := TypeOf(outer)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeDevice, typ)
	assert.True(t, typ.Fatal())

	_, ok = TypeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestFatalTypes(t *testing.T) {
	assert.True(t, ErrorTypeInput.Fatal())
	assert.True(t, ErrorTypePartition.Fatal())
	assert.True(t, ErrorTypeDevice.Fatal())
	assert.False(t, ErrorTypeNetwork.Fatal())
	assert.False(t, ErrorTypeConfiguration.Fatal())
}

func TestErrorsIsThroughStructuredError(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := WrapNetworkError(sentinel, "gather", "rank 2 failed")
	assert.True(t, errors.Is(err, sentinel))
}

func TestStackCaptured(t *testing.T) {
	err := NewComputationError("op", "msg")
	assert.NotEmpty(t, err.Stack)
}
