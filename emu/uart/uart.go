// Package uart implements the subset of the NS16550A register interface
// QEMU's "virt" machine exposes: a single-byte receive/transmit buffer,
// interrupt enable/identification, line control/status, and modem
// control/status registers, enough for a polled or interrupt-driven console.
package uart

import "sync"

const (
	offRBR = 0x0 // receive buffer (read) / transmit holding (write)
	offTHR = 0x0
	offDLL = 0x0 // divisor latch low, when LCR.DLAB set
	offIER = 0x1
	offDLM = 0x1 // divisor latch high, when LCR.DLAB set
	offISR = 0x2 // interrupt identification (read) / FIFO control (write)
	offFCR = 0x2
	offLCR = 0x3
	offMCR = 0x4
	offLSR = 0x5
	offMSR = 0x6
	offSCR = 0x7
)

const (
	lsrDataReady       = 1 << 0
	lsrTransmitterIdle = 1 << 5
	lsrTransmitterEmpty = 1 << 6

	ierRxAvailable = 1 << 0
	ierTxEmpty     = 1 << 1

	isrNoInterrupt  = 0x01
	isrTxEmpty      = 0x02
	isrRxAvailable  = 0x04
)

// UART is a single NS16550A channel. RX bytes are pushed in by the host
// (Push) and drained by the guest reading RBR; TX bytes written by the
// guest to THR are appended to an internal buffer a host can drain with
// TakeOutput, standing in for a real terminal or pty.
type UART struct {
	mu sync.Mutex

	rxFIFO []byte
	txOut  []byte

	ier byte
	lcr byte
	mcr byte
	scr byte
	dll byte
	dlm byte
}

func New() *UART { return &UART{} }

func (u *UART) Name() string { return "uart0" }

func (u *UART) Load(offset uint64, width int) (uint64, bool) {
	if width != 1 {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	switch offset {
	case offRBR:
		if u.lcr&0x80 != 0 {
			return uint64(u.dll), true
		}
		if len(u.rxFIFO) == 0 {
			return 0, true
		}
		b := u.rxFIFO[0]
		u.rxFIFO = u.rxFIFO[1:]
		return uint64(b), true
	case offIER:
		if u.lcr&0x80 != 0 {
			return uint64(u.dlm), true
		}
		return uint64(u.ier), true
	case offISR:
		return uint64(u.interruptID()), true
	case offLCR:
		return uint64(u.lcr), true
	case offMCR:
		return uint64(u.mcr), true
	case offLSR:
		return uint64(u.lineStatus()), true
	case offMSR:
		return 0, true
	case offSCR:
		return uint64(u.scr), true
	default:
		return 0, false
	}
}

func (u *UART) Store(offset uint64, width int, value uint64) bool {
	if width != 1 {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	b := byte(value)
	switch offset {
	case offTHR:
		if u.lcr&0x80 != 0 {
			u.dll = b
			return true
		}
		u.txOut = append(u.txOut, b)
		return true
	case offIER:
		if u.lcr&0x80 != 0 {
			u.dlm = b
			return true
		}
		u.ier = b & 0x0f
		return true
	case offFCR:
		return true // FIFO control accepted, not modeled
	case offLCR:
		u.lcr = b
		return true
	case offMCR:
		u.mcr = b
		return true
	case offSCR:
		u.scr = b
		return true
	default:
		return false
	}
}

func (u *UART) lineStatus() byte {
	s := byte(lsrTransmitterIdle | lsrTransmitterEmpty)
	if len(u.rxFIFO) > 0 {
		s |= lsrDataReady
	}
	return s
}

func (u *UART) interruptID() byte {
	if u.ier&ierRxAvailable != 0 && len(u.rxFIFO) > 0 {
		return isrRxAvailable
	}
	if u.ier&ierTxEmpty != 0 {
		return isrTxEmpty
	}
	return isrNoInterrupt
}

func (u *UART) Tick() {}

// IRQ reports whether this channel currently wants to interrupt the PLIC
// (device.UARTIRQ, source 10): RX data ready with RDA enabled, or THR
// empty with THRE enabled.
func (u *UART) IRQ() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.interruptID() != isrNoInterrupt
}

func (u *UART) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rxFIFO = nil
	u.txOut = nil
	u.ier, u.lcr, u.mcr, u.scr, u.dll, u.dlm = 0, 0, 0, 0, 0, 0
}

// Push appends bytes to the receive FIFO, as if typed at a connected
// terminal.
func (u *UART) Push(b ...byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rxFIFO = append(u.rxFIFO, b...)
}

// TakeOutput drains and returns everything written to THR so far.
func (u *UART) TakeOutput() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := u.txOut
	u.txOut = nil
	return out
}
