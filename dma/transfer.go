package dma

import "stm32dma-go/errcode"

// Direction of a transfer, fixed at construction.
type Direction uint8

const (
	DirPeripheralToMemory Direction = iota
	DirMemoryToPeripheral
)

// WordSize selects the width of one transfer unit on both the memory and
// the peripheral side.
type WordSize uint8

const (
	Word8 WordSize = iota
	Word16
	Word32
)

// Bytes returns the unit width in bytes.
func (w WordSize) Bytes() int { return 1 << w }

// Priority is the channel arbitration priority.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
)

// Config carries the tunable parts of the control register. The zero
// value matches the historical fixed configuration: 8-bit words, low
// priority.
type Config struct {
	Word     WordSize
	Priority Priority
}

// DefaultConfig returns the zero configuration, spelled out.
func DefaultConfig() Config {
	return Config{Word: Word8, Priority: PriorityLow}
}

// MaxTransferLen is the largest programmable transfer count, in transfer
// units (the count register is 16 bits wide).
const MaxTransferLen = 0xFFFF

// Resources is the {target, channel, buffer} triple a transfer is built
// from and hands back when it resolves, whatever the outcome. The channel
// and buffer are immediately reusable for a fresh transfer.
type Resources struct {
	Target  Target
	Channel *Channel
	Buffer  *Buffer
}

// Transfer is a configured transfer whose hardware has not been engaged
// yet. The only way forward is Start; there is no way to observe or
// resolve a transfer that was never started. Construction binds the
// channel; Wait hands it back together with the other resources.
type Transfer struct {
	h       *Handle
	res     Resources
	started bool
}

// MemoryToPeripheral prepares a transfer that reads the buffer into the
// peripheral register at address. The buffer must be readable for the
// whole transfer; see the Buffer pinning contract.
func MemoryToPeripheral(h *Handle, target Target, channel *Channel, buffer *Buffer, address uint32, cfg Config) *Transfer {
	return newTransfer(h, target, channel, buffer, address, DirMemoryToPeripheral, cfg)
}

// PeripheralToMemory prepares a transfer that writes peripheral data into
// the buffer. The buffer must be writable for the whole transfer: the
// hardware will store into it regardless of how the memory was declared.
func PeripheralToMemory(h *Handle, target Target, channel *Channel, buffer *Buffer, address uint32, cfg Config) *Transfer {
	return newTransfer(h, target, channel, buffer, address, DirPeripheralToMemory, cfg)
}

// Buffer length is validated before any register is touched; an oversized
// or misaligned buffer is a programmer error and panics with no hardware
// state created.
func newTransfer(h *Handle, target Target, channel *Channel, buffer *Buffer, address uint32, dir Direction, cfg Config) *Transfer {
	w := cfg.Word.Bytes()
	if buffer.Len()%w != 0 {
		panic("dma: buffer length not a multiple of the word size")
	}
	units := buffer.Len() / w
	if units > MaxTransferLen {
		panic("dma: buffer exceeds the transfer count register")
	}
	if !target.RoutableOn(channel.num) {
		panic("dma: target " + target.Name() + " not routable on channel")
	}
	channel.bind()

	channel.SelectTarget(h, target)
	channel.SetPeripheralAddr(h, address)
	channel.SetMemoryAddr(h, buffer.Addr())
	channel.SetTransferLen(h, uint16(units))
	channel.Configure(h, dir, cfg)

	return &Transfer{
		h:   h,
		res: Resources{Target: target, Channel: channel, Buffer: buffer},
	}
}

// Start engages the hardware and returns the started transfer. A full
// memory barrier before the enable bit guarantees that every software
// write into the buffer is visible to the engine before it runs.
//
// Start consumes the transfer; calling it twice panics.
func (t *Transfer) Start() *StartedTransfer {
	if t.started {
		panic("dma: transfer already started")
	}
	t.started = true

	barrier()
	t.res.Channel.Start(t.h)

	return &StartedTransfer{h: t.h, res: t.res}
}

// StartedTransfer is a transfer whose hardware is engaged. It resolves
// exactly once, through Wait; there is no path back to the ready state.
type StartedTransfer struct {
	h    *Handle
	res  Resources
	done bool
}

// IsActive is the non-blocking poll, for callers driving their own
// scheduling loop.
func (t *StartedTransfer) IsActive() bool {
	return t.res.Channel.IsActive(t.h)
}

// ErrorOccurred is the non-blocking error poll. The flag is cleared when
// observed.
func (t *StartedTransfer) ErrorOccurred() bool {
	return t.res.Channel.ErrorOccurred(t.h)
}

// Wait busy-polls until the hardware reports completion or error and
// returns the resources either way, with err set to
// errcode.TransferError on the error path. It returns immediately if the
// transfer has already finished.
//
// A full memory barrier after completion guarantees that subsequent reads
// of the buffer observe everything the engine wrote. The error flag is
// re-checked after the barrier: hardware may flag an error exactly at
// completion.
func (t *StartedTransfer) Wait() (Resources, error) {
	if t.done {
		panic("dma: transfer already resolved")
	}

	for t.IsActive() {
		if t.res.Channel.ErrorOccurred(t.h) {
			return t.fail()
		}
	}

	barrier()

	if t.res.Channel.ErrorOccurred(t.h) {
		return t.fail()
	}

	t.done = true
	t.res.Channel.unbind()
	return t.res, nil
}

// On error the in-flight transfer is void: disable the channel so it must
// be configured from scratch for any retry.
func (t *StartedTransfer) fail() (Resources, error) {
	t.res.Channel.disable(t.h)
	t.done = true
	t.res.Channel.unbind()
	return t.res, errcode.TransferError
}
