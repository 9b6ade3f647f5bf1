//go:build linux && !tinygo

// Package devmem maps physical register windows through /dev/mem, for
// bring-up on parts running Linux. Offsets must be 32-bit aligned.
package devmem

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is one mapped physical region.
type Window struct {
	fd  int
	mem []byte
}

// Map opens /dev/mem and maps size bytes at physical address phys.
// phys must be page aligned.
func Map(phys uintptr, size int) (*Window, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	mem, err := unix.Mmap(fd, int64(phys), size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Window{fd: fd, mem: mem}, nil
}

// Close unmaps the window.
func (w *Window) Close() error {
	err := unix.Munmap(w.mem)
	if cerr := unix.Close(w.fd); err == nil {
		err = cerr
	}
	w.mem = nil
	return err
}

// U32 loads the 32-bit register at off.
func (w *Window) U32(off uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&w.mem[off])))
}

// SetU32 stores the 32-bit register at off.
func (w *Window) SetU32(off uintptr, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&w.mem[off])), v)
}

// SetBits sets mask bits in the register at off.
func (w *Window) SetBits(off uintptr, mask uint32) {
	w.SetU32(off, w.U32(off)|mask)
}

// ClearBits clears mask bits in the register at off.
func (w *Window) ClearBits(off uintptr, mask uint32) {
	w.SetU32(off, w.U32(off)&^mask)
}
