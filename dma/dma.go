// Package dma drives a multi-channel DMA engine: claim a channel, bind it
// to a peripheral target and a pinned buffer, start the transfer, and poll
// it to completion. Register layout follows the STM32L0-class DMA block
// (RM0376, chapter 11); access goes through the Regs interface so chip
// packages and the simulator can supply the actual block.
//
// The package uses no interrupts. Completion and errors are observed by
// polling the status flags the hardware writes.
package dma

// DMA is the entry point to the driver: the peripheral handle plus the
// channel set. Create exactly one per DMA block.
type DMA struct {
	Handle   Handle
	Channels Channels
}

// New resets the DMA block, enables its clock and returns the driver entry
// point. The ClockReset collaborator is not retained.
func New(regs Regs, cr ClockReset) *DMA {
	cr.AssertReset()
	cr.DeassertReset()
	cr.EnableClock()

	d := &DMA{Handle: Handle{regs: regs}}
	d.Channels.init()
	return d
}

// Handle owns the register block. Every register mutation in this package
// is parameterized by a *Handle, so there is a single authority for
// peripheral state. Handles must not be copied.
type Handle struct {
	regs Regs
}
