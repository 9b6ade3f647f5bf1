package dma

import "unsafe"

// Buffer is a byte sequence with a stable memory address, the unit of
// memory the engine reads or writes. While a started transfer references
// a Buffer, the caller must not resize, reslice or otherwise relocate the
// underlying storage, and must not touch its contents: the hardware owns
// the region until the transfer resolves.
type Buffer struct {
	p []byte
}

// NewBuffer allocates a zeroed n-byte buffer.
func NewBuffer(n int) *Buffer {
	return &Buffer{p: make([]byte, n)}
}

// BufferFor wraps an existing slice. The pinning contract above extends
// to the caller's slice: it must stay alive and unmoved for the duration
// of any started transfer using the buffer.
func BufferFor(p []byte) *Buffer {
	return &Buffer{p: p}
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int { return len(b.p) }

// Bytes returns the underlying storage.
func (b *Buffer) Bytes() []byte { return b.p }

// Addr returns the address of the first byte, or 0 for an empty buffer.
func (b *Buffer) Addr() uintptr {
	if len(b.p) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.p[0]))
}
