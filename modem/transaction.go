package modem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/loragw/at"
)

// begin opens a transaction: the previous error record is cleared, the
// command is remembered for error context, and stale input is discarded
// so an old reply cannot be matched against the new command.
func (m *Modem) begin(cmd string) error {
	if m.closed {
		return ErrAlreadyClosed
	}

	m.lastErr = nil
	m.lastCmd = cmd

	if err := m.transport.DiscardInput(); err != nil {
		return fmt.Errorf("discard stale input: %w", err)
	}
	return nil
}

// recordError notes a device-reported failure for LastError and returns
// the matching sentinel wrapped with the code.
func (m *Modem) recordError(kind string, code int) error {
	m.lastErr = &LastError{Command: m.lastCmd, Kind: kind, Code: code}

	var sentinel error
	switch kind {
	case at.KindSend:
		sentinel = ErrSendFailed
	case at.KindSent:
		sentinel = ErrSentFailed
	default:
		sentinel = ErrCommandFailed
	}
	return fmt.Errorf("%s %d: %w", kind, code, sentinel)
}

// inquire runs a read transaction: AT+<cmd>? goes out, then reply lines
// are polled under a single deadline until the terminal OK or an error
// marker arrives. Most commands answer with one +KEY:VALUE line,
// returned in value; the RSSI inquiry instead answers with a +CRSSI:
// header followed by one line per channel, returned in list.
func (m *Modem) inquire(cmd string) (value string, list []string, err error) {
	if err := m.begin(cmd); err != nil {
		return "", nil, err
	}

	wire := at.Inquire(cmd)
	if _, err := m.transport.Write(wire); err != nil {
		return "", nil, fmt.Errorf("write command %q: %w", cmd, err)
	}
	m.log.WithField("tx", strings.TrimSuffix(string(wire), at.CRLF)).Debug("inquire")

	var (
		haveValue bool
		inList    bool
	)
	deadline := time.Now().Add(m.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil, fmt.Errorf("%s: %w", cmd, ErrReceiveTimeout)
		}

		line, err := m.transport.ReadLine(remaining)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return "", nil, fmt.Errorf("read reply: %w", err)
		}
		m.log.WithField("rx", line).Debug("reply")

		switch r := at.Parse(line, inList); r.Type {
		case at.TypeEcho:
			// the module echoes the command before answering

		case at.TypeListStart:
			inList = true

		case at.TypeListItem:
			list = append(list, line)

		case at.TypeValue:
			// a later value line replaces an earlier one
			value = r.Value
			haveValue = true

		case at.TypeOK:
			if inList {
				return "", list, nil
			}
			if !haveValue {
				return "", nil, fmt.Errorf("%s: %w", cmd, ErrPatternMismatch)
			}
			return value, nil, nil

		case at.TypeError:
			return "", nil, m.recordError(r.ErrKind, r.ErrCode)

		default:
			m.log.WithField("rx", line).Debug("ignoring line during inquiry")
		}
	}
}

// inquireValue is inquire for the common single-value commands.
func (m *Modem) inquireValue(cmd string) (string, error) {
	value, _, err := m.inquire(cmd)
	return value, err
}

// inquireInt reads a single integer value.
func (m *Modem) inquireInt(cmd string) (int, error) {
	value, err := m.inquireValue(cmd)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: non-numeric reply %q: %w", cmd, value, ErrPatternMismatch)
	}
	return n, nil
}

// csvInts splits a comma separated reply value into exactly want
// integers.
func csvInts(cmd, value string, want int) ([]int, error) {
	parts := strings.Split(value, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("%s: expected %d fields in %q: %w", cmd, want, value, ErrPatternMismatch)
	}
	fields := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%s: non-numeric field %q: %w", cmd, p, ErrPatternMismatch)
		}
		fields[i] = n
	}
	return fields, nil
}

// setCmd runs a write transaction: AT+<cmd> goes out and reply lines
// are polled until the module accepts it (OK, or OK+SEND for uplinks)
// or rejects it.
func (m *Modem) setCmd(cmd string) error {
	if err := m.begin(cmd); err != nil {
		return err
	}

	wire := at.Set(cmd)
	if _, err := m.transport.Write(wire); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	m.log.WithField("tx", strings.TrimSuffix(string(wire), at.CRLF)).Debug("set")

	deadline := time.Now().Add(m.timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%s: %w", cmd, ErrReceiveTimeout)
		}

		line, err := m.transport.ReadLine(remaining)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return fmt.Errorf("read reply: %w", err)
		}
		m.log.WithField("rx", line).Debug("reply")

		switch r := at.Parse(line, false); {
		case r.Type == at.TypeOK:
			return nil

		case r.Type == at.TypeStatus && r.Event == at.EventSendAccepted:
			m.log.WithField("bytes", r.Payload).Debug("uplink accepted")
			return nil

		case r.Type == at.TypeError:
			return m.recordError(r.ErrKind, r.ErrCode)
		}
		// echoes, values and noise are not terminal for write commands
	}
}
