//go:build tinygo

package stm32l0

import (
	"runtime/volatile"
	"unsafe"

	"stm32dma-go/dma"
)

// New returns the driver for DMA1, backed by the memory-mapped block.
// Call once.
func New() *dma.DMA {
	return dma.New(mmioRegs{}, mmioClockReset{})
}

func reg(off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(dma1Base + off))
}

func rccReg(off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(rccBase + off))
}

type mmioRegs struct{}

var _ dma.Regs = mmioRegs{}

func (mmioRegs) Status() uint32         { return reg(offISR).Get() }
func (mmioRegs) ClearFlags(mask uint32) { reg(offIFCR).Set(mask) }
func (mmioRegs) Routing() uint32        { return reg(offCSELR).Get() }
func (mmioRegs) SetRouting(v uint32)    { reg(offCSELR).Set(v) }
func (mmioRegs) Control(ch int) uint32  { return reg(chanOff(offCCR, ch)).Get() }
func (mmioRegs) SetControl(ch int, v uint32) {
	reg(chanOff(offCCR, ch)).Set(v)
}
func (mmioRegs) SetPeripheralAddr(ch int, addr uint32) {
	reg(chanOff(offCPAR, ch)).Set(addr)
}
func (mmioRegs) SetMemoryAddr(ch int, addr uintptr) {
	reg(chanOff(offCMAR, ch)).Set(uint32(addr))
}
func (mmioRegs) SetCount(ch int, n uint16) {
	reg(chanOff(offCNDTR, ch)).Set(uint32(n))
}

type mmioClockReset struct{}

var _ dma.ClockReset = mmioClockReset{}

func (mmioClockReset) AssertReset()   { rccReg(offAHBRSTR).SetBits(ahbDMA) }
func (mmioClockReset) DeassertReset() { rccReg(offAHBRSTR).ClearBits(ahbDMA) }
func (mmioClockReset) EnableClock()   { rccReg(offAHBENR).SetBits(ahbDMA) }
