package modem

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReceivedPayload is a downlink pulled from the module's receive
// buffer.
type ReceivedPayload struct {
	Length  int
	Payload string
}

// SendPayload transmits text as an uplink frame. confirm 1 requests a
// confirmed uplink and nbTrials bounds the module's retransmissions.
//
// The payload goes on the wire hex encoded. After the module accepts
// the frame, events are drained for the RX1 delay plus the configured
// grace so delivery confirmations and piggybacked downlinks are
// processed before returning. A send or confirmation failure reported
// inside that window is returned, with its code available through
// LastError.
func (m *Modem) SendPayload(payload string, confirm, nbTrials int) error {
	if payload == "" {
		return ErrNoPayload
	}

	m.downlinkSeen = false

	encoded := hex.EncodeToString([]byte(payload))
	cmd := fmt.Sprintf("DTRX=%d,%d,%d,%s", confirm, nbTrials, len(encoded), encoded)
	if err := m.setCmd(cmd); err != nil {
		return err
	}

	rx1, err := m.GetRX1Delay()
	if err != nil {
		return fmt.Errorf("read RX1 delay for receive window: %w", err)
	}

	window := time.Duration(rx1)*time.Second + m.receiveGrace
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if err := m.drainEvents(); err != nil {
			return err
		}
		time.Sleep(m.pollInterval)
	}

	return nil
}

// ReceivePayload pulls the oldest pending downlink out of the module's
// receive buffer. It returns nil when nothing is pending.
func (m *Modem) ReceivePayload() (*ReceivedPayload, error) {
	value, err := m.inquireValue("DRX")
	if err != nil {
		return nil, err
	}
	if value == "0" {
		return nil, nil
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("DRX: unexpected reply %q: %w", value, ErrPatternMismatch)
	}
	length, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("DRX: non-numeric length %q: %w", parts[0], ErrPatternMismatch)
	}

	return &ReceivedPayload{Length: length, Payload: parts[1]}, nil
}
