// Package device is the accelerator boundary: isolated device memory, explicit
// host<->device copies and kernel launches over a grid of lanes.
package device

import (
	"context"
	"errors"
)

var (
	// ErrDeviceNotAvailable is returned when the requested device kind is not built in.
	ErrDeviceNotAvailable = errors.New("device: requested device is not available")
	// ErrOutOfMemory is returned when an allocation exceeds the device memory limit.
	ErrOutOfMemory = errors.New("device: out of device memory")
	// ErrCopySize is returned when host and device extents differ.
	ErrCopySize = errors.New("device: copy size mismatch")
	// ErrBufferFreed is returned when a freed buffer is used.
	ErrBufferFreed = errors.New("device: buffer already freed")
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("device: closed")
	// ErrLaunch is returned when a launch configuration is rejected.
	ErrLaunch = errors.New("device: invalid launch configuration")
)

// Kernel is the code one lane runs. lane is in [0, lanes) of the launch.
type Kernel func(lane int)

// Info describes a device.
type Info struct {
	Name            string
	MemoryLimit     int64 // bytes; 0 means unlimited
	BlockSize       int   // lanes per block
	Multiprocessors int   // blocks resident at once
}

// Device is an accelerator with its own memory space. Host code only sees
// device memory through Buffer handles and the copy calls.
type Device interface {
	Info() Info
	// Alloc reserves bytes of device memory.
	Alloc(bytes int) (*Buffer, error)
	// Free returns a buffer's memory. Freeing twice is a no-op.
	Free(b *Buffer)
	// CopyToDevice copies src into dst; len(src) must equal dst.Len().
	CopyToDevice(dst *Buffer, src []byte) error
	// CopyToHost copies src into dst; len(dst) must equal src.Len().
	CopyToHost(dst []byte, src *Buffer) error
	// Launch runs kernel once per lane and returns when every lane finished.
	Launch(ctx context.Context, lanes int, kernel Kernel) error
	// Allocated is the number of live device bytes.
	Allocated() int64
	Close() error
}
