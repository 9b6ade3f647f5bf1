package dma

// Target identifies a peripheral endpoint and the DMA request line a
// channel must be told to route through. The set of legal
// (target, channel) pairs is closed and chip-specific; chip packages
// (see chips/) build their routing tables out of NewTarget values, so a
// Target is only ever constructed with a defined binding.
type Target struct {
	name  string
	req   uint8
	chans uint8 // bitmask of permitted channels, bit n-1 = channel n
}

// NewTarget describes a peripheral endpoint routed through request line
// req on the given channels. Intended for chip routing tables.
func NewTarget(name string, req uint8, channels ...int) Target {
	var mask uint8
	for _, ch := range channels {
		if ch < 1 || ch > NumChannels {
			panic("dma: target channel out of range")
		}
		mask |= 1 << uint(ch-1)
	}
	return Target{name: name, req: req, chans: mask}
}

// Name returns the endpoint name, e.g. "usart2_tx".
func (t Target) Name() string { return t.name }

// Request returns the request-line id programmed into the routing selector.
func (t Target) Request() uint8 { return t.req }

// RoutableOn reports whether the routing table binds this target to
// channel ch.
func (t Target) RoutableOn(ch int) bool {
	return ch >= 1 && ch <= NumChannels && t.chans&(1<<uint(ch-1)) != 0
}

func (t Target) String() string { return t.name }
