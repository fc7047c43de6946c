// Package molecule holds the immutable molecule store consumed by every
// backend, and the flattening adapter that turns per-molecule atom lists into
// contiguous count/offset/coordinate arrays for isolated memory spaces.
package molecule
