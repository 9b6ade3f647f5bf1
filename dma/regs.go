package dma

// Regs is raw access to the DMA register block. One implementation exists
// per chip family (memory-mapped, see chips/); package sim provides a
// software model of the block for host tests and bring-up tools.
//
// ch arguments are 1-based, matching the reference manual numbering.
type Regs interface {
	// Peripheral-wide interrupt status (ISR) and flag clear (IFCR).
	Status() uint32
	ClearFlags(mask uint32)

	// Request routing selector (CSELR), one 4-bit field per channel.
	Routing() uint32
	SetRouting(v uint32)

	// Per-channel registers.
	Control(ch int) uint32
	SetControl(ch int, v uint32)
	SetPeripheralAddr(ch int, addr uint32)
	SetMemoryAddr(ch int, addr uintptr)
	SetCount(ch int, n uint16)
}

// ClockReset is the clock/reset collaborator for the DMA block. It is
// consumed exactly once, by New.
type ClockReset interface {
	AssertReset()
	DeassertReset()
	EnableClock()
}

// Channel control register (CCR) bit assignments. See RM0376, section 11.4.3.
const (
	ccrEN   uint32 = 1 << 0
	ccrTCIE uint32 = 1 << 1
	ccrHTIE uint32 = 1 << 2
	ccrTEIE uint32 = 1 << 3
	ccrDIR  uint32 = 1 << 4 // set: read from memory
	ccrCIRC uint32 = 1 << 5
	ccrPINC uint32 = 1 << 6
	ccrMINC uint32 = 1 << 7

	ccrPSIZEShift = 8
	ccrMSIZEShift = 10
	ccrPLShift    = 12

	ccrMEM2MEM uint32 = 1 << 14
)

// ISR/IFCR flags. Each channel occupies a 4-bit group.
const (
	flagGIF  uint32 = 1 << 0
	flagTCIF uint32 = 1 << 1
	flagHTIF uint32 = 1 << 2
	flagTEIF uint32 = 1 << 3
)

func flagMask(ch int, flag uint32) uint32 { return flag << (4 * uint(ch-1)) }
