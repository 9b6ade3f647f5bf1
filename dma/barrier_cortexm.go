//go:build tinygo && cortexm

package dma

import "device/arm"

// barrier orders memory accesses across this point. The engine accesses
// memory outside the CPU pipeline, so an explicit data memory barrier is
// required even on cache-coherent parts.
func barrier() {
	arm.Asm("dmb")
}
