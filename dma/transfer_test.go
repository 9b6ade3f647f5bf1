package dma_test

import (
	"bytes"
	"testing"

	"stm32dma-go/dma"
	"stm32dma-go/dma/sim"
	"stm32dma-go/errcode"
)

// A local stand-in for a chip routing table.
var (
	uartTX = dma.NewTarget("uart_tx", 4, 4, 7)
	uartRX = dma.NewTarget("uart_rx", 4, 5, 6)
)

const periphAddr = 0x4000_0000

func expectPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	f()
}

func TestConstructionProgramsChannel(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	buf := dma.NewBuffer(16)

	dma.MemoryToPeripheral(&d.Handle, uartTX, c, buf, periphAddr, dma.DefaultConfig())

	if got := s.RequestFor(4); got != 4 {
		t.Fatalf("routing selector = %d, want 4", got)
	}
	if got := s.PeripheralAddr(4); got != periphAddr {
		t.Fatalf("peripheral addr = %#x, want %#x", got, periphAddr)
	}
	if got := s.MemoryAddr(4); got != buf.Addr() {
		t.Fatalf("memory addr = %#x, want %#x", got, buf.Addr())
	}
	if got := s.Count(4); got != 16 {
		t.Fatalf("count = %d, want 16", got)
	}

	ctl := s.Control(4)
	if ctl&sim.CtrlEN != 0 {
		t.Fatal("channel enabled before Start")
	}
	if ctl&sim.CtrlMINC == 0 {
		t.Fatal("memory increment not enabled")
	}
	if ctl&(sim.CtrlPINC|sim.CtrlCIRC) != 0 {
		t.Fatal("peripheral increment / circular mode unexpectedly enabled")
	}
	if ctl&sim.CtrlDIR == 0 {
		t.Fatal("direction bit clear for memory-to-peripheral")
	}
	if ctl&sim.IntEnableMask != 0 {
		t.Fatal("interrupt enables set; this driver polls")
	}
}

func TestDirectionBitPeripheralToMemory(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(5)

	dma.PeripheralToMemory(&d.Handle, uartRX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig())

	if s.Control(5)&sim.CtrlDIR != 0 {
		t.Fatal("direction bit set for peripheral-to-memory")
	}
}

func TestBufferLengthLimit(t *testing.T) {
	d, s := newSimDMA(t)
	c4, _ := d.Channels.Claim(4)
	c7, _ := d.Channels.Claim(7)

	// Full range is programmable, including the empty buffer.
	dma.MemoryToPeripheral(&d.Handle, uartTX, c4, dma.NewBuffer(0), periphAddr, dma.DefaultConfig())
	dma.MemoryToPeripheral(&d.Handle, uartTX, c7, dma.NewBuffer(dma.MaxTransferLen), periphAddr, dma.DefaultConfig())
	if got := s.Count(7); got != dma.MaxTransferLen {
		t.Fatalf("count = %d, want %d", got, dma.MaxTransferLen)
	}

	// One past the register width aborts before touching any register.
	before := s.Writes()
	expectPanic(t, func() {
		dma.MemoryToPeripheral(&d.Handle, uartTX, c7, dma.NewBuffer(dma.MaxTransferLen+1), periphAddr, dma.DefaultConfig())
	})
	if got := s.Writes(); got != before {
		t.Fatalf("oversized buffer wrote %d registers", got-before)
	}
}

func TestWordSizeUnits(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	cfg := dma.Config{Word: dma.Word16}

	dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(8), periphAddr, cfg)
	if got := s.Count(4); got != 4 {
		t.Fatalf("count = %d 16-bit units, want 4", got)
	}

	expectPanic(t, func() {
		dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(7), periphAddr, cfg)
	})
}

func TestUnroutablePairPanics(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(2) // uartTX routes on 4 and 7 only

	before := s.Writes()
	expectPanic(t, func() {
		dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig())
	})
	if got := s.Writes(); got != before {
		t.Fatalf("unroutable pair wrote %d registers", got-before)
	}
}

func TestStartEngagesOnce(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)

	tr := dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig())
	tr.Start()
	if !s.Enabled(4) {
		t.Fatal("channel not enabled after Start")
	}
	expectPanic(t, func() { tr.Start() })
}

func TestIsActiveCompletionProtocol(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig()).Start()

	if !st.IsActive() {
		t.Fatal("IsActive = false while completion flag clear")
	}

	s.Complete(4)
	if st.IsActive() {
		t.Fatal("IsActive = true on first read of completion flag")
	}
	if s.CompleteFlag(4) {
		t.Fatal("completion flag not cleared by the observing read")
	}
	if s.Enabled(4) {
		t.Fatal("channel not disabled on completion")
	}

	// Idempotent from here until the next Start.
	if st.IsActive() {
		t.Fatal("IsActive = true after completion was observed")
	}
}

func TestWaitSuccessRoundTrip(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)

	p := &sim.Peripheral{}
	s.Connect(periphAddr, p)

	buf := dma.NewBuffer(16)
	for i := range buf.Bytes() {
		buf.Bytes()[i] = byte(i)
	}
	want := append([]byte(nil), buf.Bytes()...)

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, buf, periphAddr, dma.DefaultConfig()).Start()
	s.Complete(4)

	res, err := st.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Buffer != buf || res.Channel != c || res.Target.Name() != uartTX.Name() {
		t.Fatal("resources differ from the ones the transfer was built from")
	}
	if !bytes.Equal(res.Buffer.Bytes(), want) {
		t.Fatalf("buffer changed: %x", res.Buffer.Bytes())
	}
	if !bytes.Equal(p.Sink, want) {
		t.Fatalf("peripheral received %x, want %x", p.Sink, want)
	}
	if s.Enabled(4) || s.CompleteFlag(4) {
		t.Fatal("channel not quiesced after Wait")
	}

	expectPanic(t, func() { st.Wait() })
}

func TestWaitErrorPrecedence(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	s.Connect(periphAddr, &sim.Peripheral{})

	buf := dma.NewBuffer(16)
	for i := range buf.Bytes() {
		buf.Bytes()[i] = byte(i)
	}
	want := append([]byte(nil), buf.Bytes()...)

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, buf, periphAddr, dma.DefaultConfig()).Start()
	s.Fail(4)

	res, err := st.Wait()
	if err != errcode.TransferError {
		t.Fatalf("Wait = %v, want %v", err, errcode.TransferError)
	}
	if res.Buffer != buf || res.Channel != c {
		t.Fatal("failure did not hand back the original resources")
	}
	if !bytes.Equal(res.Buffer.Bytes(), want) {
		t.Fatalf("buffer changed on error path: %x", res.Buffer.Bytes())
	}
	if s.ErrorFlag(4) {
		t.Fatal("error flag not cleared when observed")
	}
	if s.Enabled(4) {
		t.Fatal("channel left enabled after a voided transfer")
	}

	// The voided transfer handed the channel back; it takes a new one.
	dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig())
}

func TestChannelCarriesOneTransferAtATime(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	s.Connect(periphAddr, &sim.Peripheral{})

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(8), periphAddr, dma.DefaultConfig()).Start()

	// A second transfer on the same channel would rewrite the live
	// register set, so constructing one fails loudly and touches nothing.
	before := s.Writes()
	expectPanic(t, func() {
		dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), 0x5000_0000, dma.DefaultConfig())
	})
	if got := s.Writes(); got != before {
		t.Fatalf("overlapping construction wrote %d registers", got-before)
	}
	if got := s.Count(4); got != 8 {
		t.Fatalf("count = %d, want 8", got)
	}
	if got := s.PeripheralAddr(4); got != periphAddr {
		t.Fatalf("peripheral addr = %#x, want %#x", got, periphAddr)
	}
	if !s.Enabled(4) {
		t.Fatal("running channel disabled by the attempted construction")
	}

	// Resolving the first transfer frees the channel for the next.
	s.Complete(4)
	if _, err := st.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig())
}

func TestErrorAtCompletionIsStillAnError(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	s.Connect(periphAddr, &sim.Peripheral{})

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(4), periphAddr, dma.DefaultConfig()).Start()

	// Hardware may raise both flags at once; the error must win.
	s.Complete(4)
	s.Fail(4)

	if _, err := st.Wait(); err != errcode.TransferError {
		t.Fatalf("Wait = %v, want %v", err, errcode.TransferError)
	}
}

func TestWaitPeripheralToMemory(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(5)

	src := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	s.Connect(periphAddr, &sim.Peripheral{Source: append([]byte(nil), src...)})

	buf := dma.NewBuffer(4)
	st := dma.PeripheralToMemory(&d.Handle, uartRX, c, buf, periphAddr, dma.DefaultConfig()).Start()
	s.Complete(5)

	res, err := st.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !bytes.Equal(res.Buffer.Bytes(), src) {
		t.Fatalf("buffer = %x, want %x", res.Buffer.Bytes(), src)
	}
}

func TestWaitBusyPollsToCompletion(t *testing.T) {
	d, s := newSimDMA(t)
	c, _ := d.Channels.Claim(4)
	s.Connect(periphAddr, &sim.Peripheral{})
	s.SetAuto(true)

	st := dma.MemoryToPeripheral(&d.Handle, uartTX, c, dma.NewBuffer(8), periphAddr, dma.DefaultConfig()).Start()
	if _, err := st.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
