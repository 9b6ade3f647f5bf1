// Package sim is a software model of the DMA block, implementing dma.Regs
// and dma.ClockReset for host tests and bring-up tools. It keeps the
// register file in ordinary memory, counts every write, and performs the
// programmed copy through the actual memory address, exactly as the
// hardware would.
package sim

import (
	"sync"
	"unsafe"

	"stm32dma-go/dma"
	"stm32dma-go/x/mathx"
)

// Control word bits, from the datasheet. The simulator decodes the raw
// words the driver writes; it deliberately does not share constants with
// the driver under test.
const (
	CtrlEN   uint32 = 1 << 0
	CtrlTCIE uint32 = 1 << 1
	CtrlHTIE uint32 = 1 << 2
	CtrlTEIE uint32 = 1 << 3
	CtrlDIR  uint32 = 1 << 4
	CtrlCIRC uint32 = 1 << 5
	CtrlPINC uint32 = 1 << 6
	CtrlMINC uint32 = 1 << 7
)

// IntEnableMask covers the three per-channel interrupt enables.
const IntEnableMask = CtrlTCIE | CtrlHTIE | CtrlTEIE

// Peripheral models one endpoint register. Bytes the engine delivers
// land in Sink; bytes the engine fetches are consumed from Source, with
// zero fill once Source runs dry.
type Peripheral struct {
	Sink   []byte
	Source []byte
}

// Sim is the simulated block. The zero value is not usable; call New.
type Sim struct {
	mu sync.Mutex

	isr   uint32
	cselr uint32
	ccr   [dma.NumChannels]uint32
	cndtr [dma.NumChannels]uint16
	cpar  [dma.NumChannels]uint32
	cmar  [dma.NumChannels]uintptr

	writes  int
	resets  int
	clockOn bool
	auto    bool

	periphs map[uint32]*Peripheral
}

func New() *Sim {
	return &Sim{periphs: map[uint32]*Peripheral{}}
}

var (
	_ dma.Regs       = (*Sim)(nil)
	_ dma.ClockReset = (*Sim)(nil)
)

// --- dma.ClockReset ---

func (s *Sim) AssertReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.isr, s.cselr = 0, 0
	for i := range s.ccr {
		s.ccr[i], s.cndtr[i], s.cpar[i], s.cmar[i] = 0, 0, 0, 0
	}
}

func (s *Sim) DeassertReset() {}

func (s *Sim) EnableClock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockOn = true
}

// --- dma.Regs ---

func (s *Sim) Status() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isr
}

func (s *Sim) ClearFlags(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.isr &^= mask
}

func (s *Sim) Routing() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cselr
}

func (s *Sim) SetRouting(v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.cselr = v
}

func (s *Sim) Control(ch int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ccr[ch-1]
}

func (s *Sim) SetControl(ch int, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	rising := v&CtrlEN != 0 && s.ccr[ch-1]&CtrlEN == 0
	s.ccr[ch-1] = v
	if rising && s.auto {
		s.complete(ch)
	}
}

func (s *Sim) SetPeripheralAddr(ch int, addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.cpar[ch-1] = addr
}

func (s *Sim) SetMemoryAddr(ch int, addr uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.cmar[ch-1] = addr
}

func (s *Sim) SetCount(ch int, n uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.cndtr[ch-1] = n
}

// --- hardware-side controls ---

// Connect attaches a peripheral model at a register address.
func (s *Sim) Connect(addr uint32, p *Peripheral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periphs[addr] = p
}

// SetAuto makes every channel complete as soon as it is enabled, for
// exercising busy-wait paths without a second goroutine.
func (s *Sim) SetAuto(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto = on
}

// Complete performs the programmed copy for channel ch and raises its
// completion flag. Nothing happens if the channel is not enabled.
func (s *Sim) Complete(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complete(ch)
}

// Fail raises the transfer-error flag for channel ch.
func (s *Sim) Fail(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isr |= teif(ch)
}

func (s *Sim) complete(ch int) {
	i := ch - 1
	ctl := s.ccr[i]
	if ctl&CtrlEN == 0 {
		return
	}

	word := 1 << ((ctl >> 10) & 0x3) // MSIZE
	n := int(s.cndtr[i]) * word
	if n > 0 && s.cmar[i] != 0 {
		mem := unsafe.Slice((*byte)(unsafe.Pointer(s.cmar[i])), n)
		p := s.periphs[s.cpar[i]]
		if ctl&CtrlDIR != 0 {
			// Memory to peripheral: deliver into the sink, if anything
			// is listening at that address.
			if p != nil {
				p.Sink = append(p.Sink, mem...)
			}
		} else {
			// Peripheral to memory: consume from the source, zero fill
			// past its end.
			var m int
			if p != nil {
				m = mathx.Min(len(p.Source), n)
				copy(mem, p.Source[:m])
				p.Source = p.Source[m:]
			}
			for j := m; j < n; j++ {
				mem[j] = 0
			}
		}
	}
	s.cndtr[i] = 0
	s.isr |= tcif(ch)
}

func tcif(ch int) uint32 { return 1 << (4*uint(ch-1) + 1) }
func teif(ch int) uint32 { return 1 << (4*uint(ch-1) + 3) }

// --- inspection for tests and the monitor ---

// Writes returns the number of register writes performed so far.
func (s *Sim) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ResetCycles returns how many times the block was reset.
func (s *Sim) ResetCycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// ClockEnabled reports whether the peripheral clock is on.
func (s *Sim) ClockEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockOn
}

// Enabled reports the channel-enable bit.
func (s *Sim) Enabled(ch int) bool { return s.Control(ch)&CtrlEN != 0 }

// CompleteFlag reports the channel's TCIF bit.
func (s *Sim) CompleteFlag(ch int) bool { return s.Status()&tcif(ch) != 0 }

// ErrorFlag reports the channel's TEIF bit.
func (s *Sim) ErrorFlag(ch int) bool { return s.Status()&teif(ch) != 0 }

// RequestFor returns the routing selector field for the channel.
func (s *Sim) RequestFor(ch int) uint8 {
	return uint8(s.Routing() >> (4 * uint(ch-1)) & 0xF)
}

// Count returns the transfer count register.
func (s *Sim) Count(ch int) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cndtr[ch-1]
}

// PeripheralAddr returns the peripheral address register.
func (s *Sim) PeripheralAddr(ch int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cpar[ch-1]
}

// MemoryAddr returns the memory address register.
func (s *Sim) MemoryAddr(ch int) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmar[ch-1]
}
