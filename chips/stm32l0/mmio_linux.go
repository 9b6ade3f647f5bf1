//go:build linux && !tinygo

package stm32l0

import (
	"stm32dma-go/chips/devmem"
	"stm32dma-go/dma"
)

// Open maps DMA1 and the RCC through /dev/mem and returns the driver.
// Both blocks sit on their own page. Close releases the mappings.
func Open() (*dma.DMA, func() error, error) {
	dw, err := devmem.Map(dma1Base, 0x1000)
	if err != nil {
		return nil, nil, err
	}
	rw, err := devmem.Map(rccBase, 0x1000)
	if err != nil {
		dw.Close()
		return nil, nil, err
	}
	closeAll := func() error {
		err := dw.Close()
		if rerr := rw.Close(); err == nil {
			err = rerr
		}
		return err
	}
	d := dma.New(&hostRegs{w: dw}, &hostClockReset{w: rw})
	return d, closeAll, nil
}

type hostRegs struct {
	w *devmem.Window
}

var _ dma.Regs = (*hostRegs)(nil)

func (r *hostRegs) Status() uint32         { return r.w.U32(offISR) }
func (r *hostRegs) ClearFlags(mask uint32) { r.w.SetU32(offIFCR, mask) }
func (r *hostRegs) Routing() uint32        { return r.w.U32(offCSELR) }
func (r *hostRegs) SetRouting(v uint32)    { r.w.SetU32(offCSELR, v) }
func (r *hostRegs) Control(ch int) uint32  { return r.w.U32(chanOff(offCCR, ch)) }
func (r *hostRegs) SetControl(ch int, v uint32) {
	r.w.SetU32(chanOff(offCCR, ch), v)
}
func (r *hostRegs) SetPeripheralAddr(ch int, addr uint32) {
	r.w.SetU32(chanOff(offCPAR, ch), addr)
}
func (r *hostRegs) SetMemoryAddr(ch int, addr uintptr) {
	r.w.SetU32(chanOff(offCMAR, ch), uint32(addr))
}
func (r *hostRegs) SetCount(ch int, n uint16) {
	r.w.SetU32(chanOff(offCNDTR, ch), uint32(n))
}

type hostClockReset struct {
	w *devmem.Window
}

var _ dma.ClockReset = (*hostClockReset)(nil)

func (c *hostClockReset) AssertReset()   { c.w.SetBits(offAHBRSTR, ahbDMA) }
func (c *hostClockReset) DeassertReset() { c.w.ClearBits(offAHBRSTR, ahbDMA) }
func (c *hostClockReset) EnableClock()   { c.w.SetBits(offAHBENR, ahbDMA) }
