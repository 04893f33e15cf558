package modem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"i4.energy/across/loragw/at"
)

// DownlinkMessage is one downlink notification as pushed by the module:
// OK+RECV:<type>,<port>,<length>,<payload>.
type DownlinkMessage struct {
	MsgType int
	Port    int
	Length  int
	// Payload is the text after the third comma, verbatim. The module
	// reports hex here; it is not decoded or checked against Length.
	Payload string
}

// DownlinkHandler receives downlink notifications. It is invoked
// synchronously while events are drained and must not call back into
// the Modem.
type DownlinkHandler func(DownlinkMessage)

// SetDownlinkHandler installs the downlink notification handler and
// reports whether registration succeeded. A nil handler is rejected and
// leaves the current registration unchanged.
func (m *Modem) SetDownlinkHandler(h DownlinkHandler) bool {
	if h == nil {
		m.log.Warn("refusing to register nil downlink handler")
		return false
	}
	m.handler = h
	return true
}

// DownlinkReceived reports whether a downlink was dispatched since the
// last SendPayload.
func (m *Modem) DownlinkReceived() bool {
	return m.downlinkSeen
}

// CheckDownlink makes one non-blocking pass over buffered module
// output, dispatching any downlink notifications and updating join
// state from late status lines. Call it periodically for device classes
// that listen continuously.
func (m *Modem) CheckDownlink() error {
	return m.drainEvents()
}

// drainEvents reads every line currently buffered on the transport and
// acts on it. Send and sent failures terminate the drain with their
// mapped errors; everything else is handled in place.
func (m *Modem) drainEvents() error {
	if m.closed {
		return ErrAlreadyClosed
	}

	for {
		n, err := m.transport.Buffered()
		if err != nil {
			return fmt.Errorf("poll buffered input: %w", err)
		}
		if n == 0 {
			return nil
		}

		line, err := m.transport.ReadLine(m.timeout)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				return nil
			}
			return fmt.Errorf("read buffered line: %w", err)
		}

		if err := m.handleEvent(line); err != nil {
			return err
		}
	}
}

// handleEvent reacts to one unsolicited line.
func (m *Modem) handleEvent(line string) error {
	if line == "" {
		return nil
	}

	r := at.Parse(line, false)
	switch r.Type {
	case at.TypeStatus:
		switch r.Event {
		case at.EventJoined:
			m.joinState = Joined
			m.log.Info("network joined")
		case at.EventJoinFailed:
			m.joinState = JoinFailed
			m.log.Warn("network join failed")
		case at.EventSendAccepted:
			m.log.WithField("bytes", r.Payload).Debug("uplink accepted")
		case at.EventSentConfirmed:
			m.log.WithField("trials", r.Payload).Debug("uplink confirmed")
		case at.EventReceived:
			m.dispatchDownlink(r.Payload)
		}
		return nil

	case at.TypeError:
		if r.ErrKind == at.KindSend || r.ErrKind == at.KindSent {
			return m.recordError(r.ErrKind, r.ErrCode)
		}
	}

	m.log.WithField("rx", line).Warn("unhandled module output")
	return nil
}

// dispatchDownlink parses "type,port,length,payload" and hands it to
// the registered handler. The payload may itself contain commas, so
// only the first three are split on.
func (m *Modem) dispatchDownlink(fields string) {
	parts := strings.SplitN(fields, ",", 4)
	if len(parts) != 4 {
		m.log.WithField("fields", fields).Warn("malformed downlink notification")
		return
	}

	msgType, err1 := strconv.Atoi(parts[0])
	port, err2 := strconv.Atoi(parts[1])
	length, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		m.log.WithField("fields", fields).Warn("malformed downlink notification")
		return
	}

	msg := DownlinkMessage{
		MsgType: msgType,
		Port:    port,
		Length:  length,
		Payload: parts[3],
	}

	if m.handler == nil {
		m.log.WithFields(logrus.Fields{
			"port":   msg.Port,
			"length": msg.Length,
		}).Info("downlink received but no handler registered")
		return
	}

	m.downlinkSeen = true
	m.handler(msg)
}
