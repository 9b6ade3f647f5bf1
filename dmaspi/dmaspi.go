// Package dmaspi feeds an SPI data register from DMA channels and exposes
// the result as a drivers.SPI. The SPI peripheral itself (clocking, pins,
// mode) is configured elsewhere; this package only owns the data path:
// one channel streams outbound bytes into the data register, a second one
// drains inbound bytes into memory.
package dmaspi

import (
	"tinygo.org/x/drivers"

	"stm32dma-go/dma"
	"stm32dma-go/errcode"
	"stm32dma-go/x/mathx"
)

// Params binds the adaptor to one SPI instance.
type Params struct {
	// DataRegister is the physical address of the SPI data register.
	DataRegister uint32
	// TX and RX are the routing-table targets for the instance's
	// transmit and receive request lines.
	TX, RX dma.Target
}

// SPI implements drivers.SPI over a pair of claimed channels.
type SPI struct {
	h    *dma.Handle
	txCh *dma.Channel
	rxCh *dma.Channel
	p    Params
	cfg  dma.Config // 8-bit words: SPI data register granularity
}

var _ drivers.SPI = (*SPI)(nil)

// New builds the adaptor. The channels stay claimed for the adaptor's
// lifetime. Channels the targets cannot route through are rejected.
func New(h *dma.Handle, txCh, rxCh *dma.Channel, p Params) (*SPI, error) {
	if !p.TX.RoutableOn(txCh.Num()) || !p.RX.RoutableOn(rxCh.Num()) {
		return nil, errcode.InvalidParams
	}
	return &SPI{h: h, txCh: txCh, rxCh: rxCh, p: p, cfg: dma.DefaultConfig()}, nil
}

// Tx runs one SPI transaction. With both w and r set the transaction is
// full duplex and the lengths must match; a nil r discards inbound bytes,
// a nil w clocks out whatever the peripheral idles with. Transactions
// longer than the transfer count register are split into chunks.
func (s *SPI) Tx(w, r []byte) error {
	switch {
	case w == nil && r == nil:
		return nil
	case r == nil:
		for len(w) > 0 {
			n := mathx.Min(len(w), dma.MaxTransferLen)
			if err := s.txChunk(w[:n]); err != nil {
				return err
			}
			w = w[n:]
		}
	case w == nil:
		for len(r) > 0 {
			n := mathx.Min(len(r), dma.MaxTransferLen)
			if err := s.rxChunk(r[:n]); err != nil {
				return err
			}
			r = r[n:]
		}
	case len(w) != len(r):
		return errcode.InvalidParams
	default:
		for len(w) > 0 {
			n := mathx.Min(len(w), dma.MaxTransferLen)
			if err := s.duplexChunk(w[:n], r[:n]); err != nil {
				return err
			}
			w, r = w[n:], r[n:]
		}
	}
	return nil
}

// Transfer shifts a single byte both ways.
func (s *SPI) Transfer(b byte) (byte, error) {
	w := [1]byte{b}
	var r [1]byte
	err := s.Tx(w[:], r[:])
	return r[0], err
}

func (s *SPI) txChunk(w []byte) error {
	t := dma.MemoryToPeripheral(s.h, s.p.TX, s.txCh,
		dma.BufferFor(w), s.p.DataRegister, s.cfg).Start()
	_, err := t.Wait()
	return wrap("dmaspi.tx", err)
}

func (s *SPI) rxChunk(r []byte) error {
	t := dma.PeripheralToMemory(s.h, s.p.RX, s.rxCh,
		dma.BufferFor(r), s.p.DataRegister, s.cfg).Start()
	_, err := t.Wait()
	return wrap("dmaspi.rx", err)
}

func (s *SPI) duplexChunk(w, r []byte) error {
	// Arm the receive side first so no inbound byte is dropped.
	rt := dma.PeripheralToMemory(s.h, s.p.RX, s.rxCh,
		dma.BufferFor(r), s.p.DataRegister, s.cfg).Start()
	tt := dma.MemoryToPeripheral(s.h, s.p.TX, s.txCh,
		dma.BufferFor(w), s.p.DataRegister, s.cfg).Start()

	_, terr := tt.Wait()
	_, rerr := rt.Wait()
	if terr != nil {
		return wrap("dmaspi.tx", terr)
	}
	return wrap("dmaspi.rx", rerr)
}

// wrap tags a transfer failure with the operation it interrupted, keeping
// the code extractable through errcode.Of.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
}
