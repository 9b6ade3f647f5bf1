package dma

import (
	"math/bits"
	"sync"

	"stm32dma-go/errcode"
)

// NumChannels is the number of hardware channels in the block.
const NumChannels = 7

// Channel is one of the hardware transfer units. Each channel owns a
// register subset disjoint from every other channel's, so operating on
// distinct channels never interferes.
//
// Channel values live inside a Channels set and are handed out by Claim.
// A claimed channel belongs to at most one Transfer at a time; it becomes
// reusable when the transfer resolves and hands its resources back.
type Channel struct {
	num  int
	busy bool
}

// Num returns the 1-based channel number.
func (c *Channel) Num() int { return c.num }

// bind marks the channel as carried by a transfer. A second transfer built
// from the same channel would rewrite the live register set, so overlap is
// a programmer error.
func (c *Channel) bind() {
	if c.busy {
		panic("dma: channel already bound to an unresolved transfer")
	}
	c.busy = true
}

func (c *Channel) unbind() { c.busy = false }

// Channels tracks which channels are claimed, as a bitset.
type Channels struct {
	mu      sync.Mutex
	claimed uint8
	chans   [NumChannels]Channel
}

func (cs *Channels) init() {
	for i := range cs.chans {
		cs.chans[i].num = i + 1
	}
}

// Claim reserves channel num (1..NumChannels).
func (cs *Channels) Claim(num int) (*Channel, error) {
	if num < 1 || num > NumChannels {
		return nil, errcode.InvalidParams
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	bit := uint8(1) << uint(num-1)
	if cs.claimed&bit != 0 {
		return nil, errcode.ChannelInUse
	}
	cs.claimed |= bit
	return &cs.chans[num-1], nil
}

// ClaimAny reserves the lowest-numbered free channel.
func (cs *Channels) ClaimAny() (*Channel, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	n := bits.TrailingZeros8(^cs.claimed)
	if n >= NumChannels {
		return nil, errcode.NoFreeChannel
	}
	cs.claimed |= 1 << uint(n)
	return &cs.chans[n], nil
}

// Release returns a claimed channel to the free set.
func (cs *Channels) Release(c *Channel) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.claimed &^= 1 << uint(c.num-1)
}

// The methods below are the channel capability contract. They are normally
// exercised through Transfer, but are exported for callers that drive their
// own scheduling.

// SelectTarget programs the channel's request-line selector from the
// target's bound request id. Pairing a target with a channel it has no
// routing-table entry for is a programmer error.
func (c *Channel) SelectTarget(h *Handle, t Target) {
	if !t.RoutableOn(c.num) {
		panic("dma: target " + t.Name() + " not routable on channel")
	}
	shift := 4 * uint(c.num-1)
	v := h.regs.Routing()
	v = v&^(0xF<<shift) | uint32(t.Request())<<shift
	h.regs.SetRouting(v)
}

// SetPeripheralAddr programs the peripheral-side address register.
func (c *Channel) SetPeripheralAddr(h *Handle, addr uint32) {
	h.regs.SetPeripheralAddr(c.num, addr)
}

// SetMemoryAddr programs the memory-side address register.
func (c *Channel) SetMemoryAddr(h *Handle, addr uintptr) {
	h.regs.SetMemoryAddr(c.num, addr)
}

// SetTransferLen programs the transfer count register, in transfer units.
func (c *Channel) SetTransferLen(h *Handle, n uint16) {
	h.regs.SetCount(c.num, n)
}

// Configure writes the control register: peripheral-to-peripheral mode off,
// circular mode off, memory increment on, peripheral increment off, word
// size and priority from cfg, direction per dir, all interrupt enables
// clear. The enable bit is left clear; Start sets it.
func (c *Channel) Configure(h *Handle, dir Direction, cfg Config) {
	ctl := uint32(cfg.Word)<<ccrMSIZEShift |
		uint32(cfg.Word)<<ccrPSIZEShift |
		uint32(cfg.Priority)<<ccrPLShift |
		ccrMINC
	if dir == DirMemoryToPeripheral {
		ctl |= ccrDIR
	}
	h.regs.SetControl(c.num, ctl)
}

// Start sets the channel-enable bit, engaging the hardware.
func (c *Channel) Start(h *Handle) {
	h.regs.SetControl(c.num, h.regs.Control(c.num)|ccrEN)
}

// IsActive reports whether a transfer is still running. The first
// observation of hardware completion clears the completion flag and
// disables the channel; once the channel is disabled, IsActive keeps
// returning false until the next Start.
func (c *Channel) IsActive(h *Handle) bool {
	if h.regs.Control(c.num)&ccrEN == 0 {
		return false
	}
	if h.regs.Status()&flagMask(c.num, flagTCIF) != 0 {
		h.regs.ClearFlags(flagMask(c.num, flagTCIF))
		h.regs.SetControl(c.num, h.regs.Control(c.num)&^ccrEN)
		return false
	}
	return true
}

// ErrorOccurred reports whether the transfer-error flag is set, clearing
// it when observed.
func (c *Channel) ErrorOccurred(h *Handle) bool {
	if h.regs.Status()&flagMask(c.num, flagTEIF) != 0 {
		h.regs.ClearFlags(flagMask(c.num, flagTEIF))
		return true
	}
	return false
}

func (c *Channel) disable(h *Handle) {
	h.regs.SetControl(c.num, h.regs.Control(c.num)&^ccrEN)
}
