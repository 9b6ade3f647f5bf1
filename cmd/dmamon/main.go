// cmd/dmamon/main.go
//
// Interactive monitor for the DMA driver against the simulated block.
// Useful for walking the transfer lifecycle by hand before touching real
// hardware:
//
//	> claim 4
//	> connect 0x40004404
//	> tx usart2_tx 4 48 65 6C 6C 6F
//	> complete 4
//	> wait 4
//	> sink 0x40004404
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"stm32dma-go/chips/stm32l0"
	"stm32dma-go/dma"
	"stm32dma-go/dma/sim"
	"stm32dma-go/x/conv"
)

type monitor struct {
	s       *sim.Sim
	d       *dma.DMA
	targets map[string]dma.Target
	periphs map[uint32]*sim.Peripheral

	claimed map[int]*dma.Channel
	pending map[int]*dma.StartedTransfer
}

func main() {
	s := sim.New()
	m := &monitor{
		s:       s,
		d:       dma.New(s, s),
		targets: map[string]dma.Target{},
		periphs: map[uint32]*sim.Peripheral{},
		claimed: map[int]*dma.Channel{},
		pending: map[int]*dma.StartedTransfer{},
	}
	for _, t := range stm32l0.Targets() {
		m.targets[t.Name()] = t
	}

	fmt.Println("dmamon: simulated STM32L0 DMA1 block; 'help' for commands")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		args, err := shlex.Split(in.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := m.run(args[0], args[1:]); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (m *monitor) run(cmd string, args []string) error {
	switch cmd {
	case "help":
		m.help()
	case "status":
		m.status()
	case "targets":
		for _, t := range stm32l0.Targets() {
			fmt.Printf("  %-11s req %d\n", t.Name(), t.Request())
		}
	case "auto":
		if len(args) != 1 {
			return fmt.Errorf("usage: auto on|off")
		}
		m.s.SetAuto(args[0] == "on")
	case "claim":
		return m.claim(args)
	case "release":
		ch, err := chanArg(args, 0)
		if err != nil {
			return err
		}
		c, ok := m.claimed[ch]
		if !ok {
			return fmt.Errorf("channel %d not claimed", ch)
		}
		if _, busy := m.pending[ch]; busy {
			return fmt.Errorf("channel %d has a transfer in flight", ch)
		}
		m.d.Channels.Release(c)
		delete(m.claimed, ch)
	case "connect":
		addr, err := u32Arg(args, 0)
		if err != nil {
			return err
		}
		p := &sim.Peripheral{}
		if len(args) > 1 {
			src, err := hexBytes(args[1:])
			if err != nil {
				return err
			}
			p.Source = src
		}
		m.s.Connect(addr, p)
		m.periphs[addr] = p
	case "tx", "rx":
		return m.transfer(cmd, args)
	case "complete":
		ch, err := chanArg(args, 0)
		if err != nil {
			return err
		}
		m.s.Complete(ch)
	case "fail":
		ch, err := chanArg(args, 0)
		if err != nil {
			return err
		}
		m.s.Fail(ch)
	case "wait":
		return m.wait(args)
	case "sink":
		addr, err := u32Arg(args, 0)
		if err != nil {
			return err
		}
		p := m.periphAt(addr)
		if p == nil {
			return fmt.Errorf("nothing connected at %#x", addr)
		}
		fmt.Printf("  %s\n", conv.AppendHexBytes(nil, p.Sink))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (m *monitor) help() {
	fmt.Print(`commands:
  status                      register and channel overview
  targets                     list routing-table targets
  auto on|off                 complete transfers on enable
  claim [n] / release n       channel ownership
  connect addr [src bytes]    attach a peripheral model
  tx target ch bytes...       start memory->peripheral transfer
  rx target ch len            start peripheral->memory transfer
  complete ch / fail ch       raise hardware flags
  wait ch                     resolve a started transfer
  sink addr                   dump bytes a peripheral received
  quit
`)
}

func (m *monitor) status() {
	for ch := 1; ch <= dma.NumChannels; ch++ {
		state := "free"
		if _, ok := m.claimed[ch]; ok {
			state = "claimed"
		}
		if _, ok := m.pending[ch]; ok {
			state = "started"
		}
		flags := ""
		if m.s.CompleteFlag(ch) {
			flags += " TC"
		}
		if m.s.ErrorFlag(ch) {
			flags += " TE"
		}
		if m.s.Enabled(ch) {
			flags += " EN"
		}
		fmt.Println(statusLine(ch, state, m.s.Control(ch), m.s.Count(ch), flags))
	}
}

// The two formatters need distinct buffers: both slices are materialized
// before Sprintf reads them.
func statusLine(ch int, state string, ctl uint32, cnt uint16, flags string) string {
	var cb [8]byte
	var nb [4]byte
	return fmt.Sprintf("  ch%d %-7s ctl %s cnt %s%s",
		ch, state, conv.U32Hex(cb[:], ctl), conv.U16Hex(nb[:], cnt), flags)
}

func (m *monitor) claim(args []string) error {
	var (
		c   *dma.Channel
		err error
	)
	if len(args) == 0 {
		c, err = m.d.Channels.ClaimAny()
	} else {
		var ch int
		ch, err = chanArg(args, 0)
		if err != nil {
			return err
		}
		c, err = m.d.Channels.Claim(ch)
	}
	if err != nil {
		return err
	}
	m.claimed[c.Num()] = c
	fmt.Printf("  claimed ch%d\n", c.Num())
	return nil
}

func (m *monitor) transfer(dir string, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s target ch %s", dir, map[string]string{"tx": "bytes...", "rx": "len"}[dir])
	}
	target, ok := m.targets[args[0]]
	if !ok {
		return fmt.Errorf("unknown target %q", args[0])
	}
	ch, err := chanArg(args, 1)
	if err != nil {
		return err
	}
	c, ok := m.claimed[ch]
	if !ok {
		return fmt.Errorf("claim channel %d first", ch)
	}
	if _, busy := m.pending[ch]; busy {
		return fmt.Errorf("channel %d already has a transfer in flight", ch)
	}

	addr, err := m.onlyPeriphAddr()
	if err != nil {
		return err
	}

	var buf *dma.Buffer
	if dir == "tx" {
		data, err := hexBytes(args[2:])
		if err != nil {
			return err
		}
		buf = dma.BufferFor(data)
	} else {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 || n > dma.MaxTransferLen {
			return fmt.Errorf("bad length %q", args[2])
		}
		buf = dma.NewBuffer(n)
	}

	var t *dma.Transfer
	if dir == "tx" {
		t = dma.MemoryToPeripheral(&m.d.Handle, target, c, buf, addr, dma.DefaultConfig())
	} else {
		t = dma.PeripheralToMemory(&m.d.Handle, target, c, buf, addr, dma.DefaultConfig())
	}
	m.pending[ch] = t.Start()
	fmt.Printf("  ch%d started (%d bytes)\n", ch, buf.Len())
	return nil
}

func (m *monitor) wait(args []string) error {
	ch, err := chanArg(args, 0)
	if err != nil {
		return err
	}
	st, ok := m.pending[ch]
	if !ok {
		return fmt.Errorf("no transfer in flight on channel %d", ch)
	}
	// Wait busy-polls; in the simulator nothing completes a transfer
	// behind our back, so refuse to spin until a flag is raised.
	if m.s.Enabled(ch) && !m.s.CompleteFlag(ch) && !m.s.ErrorFlag(ch) {
		return fmt.Errorf("channel %d still active; 'complete %d' or 'fail %d' first", ch, ch, ch)
	}
	delete(m.pending, ch)
	res, err := st.Wait()
	if err != nil {
		fmt.Printf("  ch%d failed: %v (resources returned)\n", ch, err)
		return nil
	}
	fmt.Printf("  ch%d done, buffer: %s\n", ch, conv.AppendHexBytes(nil, res.Buffer.Bytes()))
	return nil
}

// One connected peripheral keeps the tx/rx commands short; error out when
// the situation is ambiguous.
func (m *monitor) onlyPeriphAddr() (uint32, error) {
	if len(m.periphs) != 1 {
		return 0, fmt.Errorf("connect exactly one peripheral first (have %d)", len(m.periphs))
	}
	for addr := range m.periphs {
		return addr, nil
	}
	return 0, nil
}

func (m *monitor) periphAt(addr uint32) *sim.Peripheral {
	return m.periphs[addr]
}

func chanArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing channel number")
	}
	ch, err := strconv.Atoi(args[i])
	if err != nil || ch < 1 || ch > dma.NumChannels {
		return 0, fmt.Errorf("bad channel %q", args[i])
	}
	return ch, nil
}

func u32Arg(args []string, i int) (uint32, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing address")
	}
	v, err := strconv.ParseUint(args[i], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", args[i])
	}
	return uint32(v), nil
}

func hexBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		for _, f := range strings.Fields(a) {
			v, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad byte %q", f)
			}
			out = append(out, byte(v))
		}
	}
	return out, nil
}
