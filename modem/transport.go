package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/loragw/at"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

// Transport represents an established, bidirectional byte stream to a
// LoRaWAN radio module.
//
// A Transport is assumed to be already connected and ready for use. It
// provides the line-level primitives the transaction engine needs: raw
// writes, deadline-bounded line reads, a count of pending received
// bytes, and a way to throw pending input away before a fresh command.
// Typical implementations include serial ports and in-memory fakes used
// for testing.
type Transport interface {
	io.Writer

	// ReadLine returns the next received line with its CR/LF framing
	// stripped, waiting at most timeout for one to arrive. It returns
	// ErrReadTimeout when nothing arrived in time. Implementations may
	// return a partial line when the timeout expires mid-line, so that
	// unterminated output (the module's boot banner) cannot wedge the
	// stream.
	ReadLine(timeout time.Duration) (string, error)

	// Buffered reports the number of received bytes not yet consumed
	// by ReadLine.
	Buffered() (int, error)

	// DiscardInput drops all received-but-unread bytes.
	DiscardInput() error

	Close() error
}

// Dialer opens a Transport to a LoRaWAN radio module.
//
// Dialer abstracts how the module connection is created (for example,
// via a serial port or a test double) and is intended to be used during
// modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a module over a serial port using go.bug.st/serial.
//
// The zero Mode defaults to the module's factory framing, 115200 8N1.
type SerialDialer struct {
	PortName string
	Mode     *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("lora: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("lora: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: 115200,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.PortName, err)
	}
	return &serialTransport{port: port}, nil
}

// serialTransport adapts a serial.Port to the Transport contract. It
// accumulates port bytes in buf and hands out lines framed by
// at.Splitter.
type serialTransport struct {
	port serial.Port
	buf  []byte
}

func (t *serialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *serialTransport) ReadLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if line, ok := t.takeLine(); ok {
			return line, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if len(t.buf) > 0 {
				// Unterminated output. Flush it as a line rather than
				// letting it prefix whatever comes next.
				_, token, _ := at.Splitter(t.buf, true)
				t.buf = nil
				return string(token), nil
			}
			return "", ErrReadTimeout
		}

		if err := t.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("set read timeout: %w", err)
		}
		chunk := make([]byte, 256)
		n, err := t.port.Read(chunk)
		if err != nil {
			return "", fmt.Errorf("read port: %w", err)
		}
		t.buf = append(t.buf, chunk[:n]...)
	}
}

func (t *serialTransport) Buffered() (int, error) {
	// A zero read timeout makes Read return immediately with whatever
	// already arrived, so this pump never blocks.
	if err := t.port.SetReadTimeout(0); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}
	for {
		chunk := make([]byte, 256)
		n, err := t.port.Read(chunk)
		if err != nil {
			return 0, fmt.Errorf("read port: %w", err)
		}
		if n == 0 {
			return len(t.buf), nil
		}
		t.buf = append(t.buf, chunk[:n]...)
	}
}

func (t *serialTransport) DiscardInput() error {
	t.buf = t.buf[:0]
	return t.port.ResetInputBuffer()
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

// takeLine extracts the next complete line from buf.
func (t *serialTransport) takeLine() (string, bool) {
	advance, token, _ := at.Splitter(t.buf, false)
	if advance == 0 {
		return "", false
	}
	line := string(token)
	t.buf = t.buf[advance:]
	return line, true
}
