package core

import (
	"fmt"
	"strings"
)

// Backend selects the execution model used to fill the score grid.
type Backend string

const (
	// BackendSequential evaluates every cell on the calling goroutine in canonical order.
	BackendSequential Backend = "sequential"
	// BackendShared fans the grid out over a goroutine pool sharing process memory.
	BackendShared Backend = "shared"
	// BackendDistributed gives each rank of a process group one contiguous range.
	BackendDistributed Backend = "distributed"
	// BackendHybrid is distributed across ranks and shared-memory inside each rank.
	BackendHybrid Backend = "hybrid"
	// BackendAccelerator splits the grid between the CPU pool and a device.
	BackendAccelerator Backend = "accelerator"
)

// Backends lists every selectable backend in documentation order.
func Backends() []Backend {
	return []Backend{
		BackendSequential,
		BackendShared,
		BackendDistributed,
		BackendHybrid,
		BackendAccelerator,
	}
}

// ParseBackend resolves a user supplied backend name. Matching is case-insensitive.
func ParseBackend(s string) (Backend, error) {
	name := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, b := range Backends() {
		if b == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidBackend, s, backendList())
}

// Distributed reports whether the backend needs a process group.
func (b Backend) Distributed() bool {
	return b == BackendDistributed || b == BackendHybrid
}

func (b Backend) String() string { return string(b) }

func backendList() string {
	names := make([]string, 0, len(Backends()))
	for _, b := range Backends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

// Transport selects how ranks of a process group talk to each other.
type Transport string

const (
	// TransportLocal runs every rank as a goroutine inside one process.
	TransportLocal Transport = "local"
	// TransportFlight runs ranks as separate processes gathering over Arrow Flight.
	TransportFlight Transport = "flight"
)

// ParseTransport resolves a transport name.
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case TransportLocal:
		return TransportLocal, nil
	case TransportFlight:
		return TransportFlight, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransport, s)
	}
}
