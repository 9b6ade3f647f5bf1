// Package stm32l0 wires the generic dma package to the STM32L0x2 DMA1
// block: base addresses, register offsets and the request routing table
// from RM0376.
package stm32l0

// Memory map.
const (
	dma1Base uintptr = 0x4002_0000
	rccBase  uintptr = 0x4002_1000
)

// DMA1 register offsets. Channels are 1-based; per-channel registers sit
// at offCCR + chanStride*(ch-1) and so on.
const (
	offISR   uintptr = 0x00
	offIFCR  uintptr = 0x04
	offCCR   uintptr = 0x08
	offCNDTR uintptr = 0x0C
	offCPAR  uintptr = 0x10
	offCMAR  uintptr = 0x14
	offCSELR uintptr = 0xA8

	chanStride uintptr = 0x14
)

// RCC register offsets and the DMA bit (bit 0 in both AHB registers).
const (
	offAHBRSTR uintptr = 0x20
	offAHBENR  uintptr = 0x30

	ahbDMA uint32 = 1 << 0
)

func chanOff(base uintptr, ch int) uintptr {
	return base + chanStride*uintptr(ch-1)
}
