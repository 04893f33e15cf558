package modem

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// expectedManufacturer is the identity a genuine ASR-based module
// reports to the CGMI inquiry.
const expectedManufacturer = "ASR"

// JoinMode selects how the module authenticates with the network.
type JoinMode int

const (
	OTAA JoinMode = 0 // over-the-air activation
	ABP  JoinMode = 1 // activation by personalization
)

func (jm JoinMode) String() string {
	switch jm {
	case OTAA:
		return "OTAA"
	case ABP:
		return "ABP"
	default:
		return fmt.Sprintf("JoinMode(%d)", int(jm))
	}
}

// Identity is the device identification read once at construction.
type Identity struct {
	Manufacturer  string
	ModelRevision string
	SerialNumber  string
}

// LastError describes the most recent failure the module reported on
// the wire. It is overwritten at the start of every transaction, not
// accumulated.
type LastError struct {
	// Command is the command text that provoked the error.
	Command string
	// Kind is the error marker, e.g. "+CME ERROR" or "ERR+SEND".
	Kind string
	// Code is the numeric code following the marker.
	Code int
}

// Modem drives an ASR6501-class LoRaWAN module over a textual AT
// command transport.
//
// A Modem is strictly single-threaded: it owns no locks, starts no
// goroutines, and all waiting is deadline-bounded polling. An embedding
// application with concurrent callers must serialize every call on one
// instance behind its own mutual-exclusion boundary. The downlink
// handler runs synchronously on the calling goroutine and must not call
// back into the Modem.
type Modem struct {
	// transport provides the physical connection to the module
	transport Transport
	// log receives wire traffic at debug and state changes at info
	log logrus.FieldLogger
	// closed indicates the modem has been shut down
	closed bool

	// timeout bounds each transaction's wait for a terminal reply
	timeout time.Duration
	// pollInterval is the sleep between polls while draining delayed results
	pollInterval time.Duration
	// receiveGrace extends the post-uplink drain window beyond the RX1 delay
	receiveGrace time.Duration

	// identity is read once during construction
	identity Identity
	// joinMode mirrors the module's configured activation mode
	joinMode JoinMode
	// joinState tracks the join procedure
	joinState JoinState

	// lastCmd is the command of the transaction in progress, kept for
	// error reporting
	lastCmd string
	// lastErr is the most recent device-reported failure, nil after a
	// clean transaction
	lastErr *LastError

	// handler is the optional downlink notification slot
	handler DownlinkHandler
	// downlinkSeen records whether a downlink arrived since the last
	// SendPayload
	downlinkSeen bool
}

// New creates a Modem over the transport produced by the configured
// dialer and runs the identity handshake: the device must identify as
// an ASR module, its own log output is silenced, and its configured
// join mode is read back so later key writes can be checked against it.
//
// The context only covers dialing; all later operations are bounded by
// the configured timeouts instead.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNoTransport
	}

	m := &Modem{
		transport:    transport,
		log:          config.Logger,
		timeout:      config.CommandTimeout,
		pollInterval: config.PollInterval,
		receiveGrace: config.ReceiveGrace,
		joinState:    NotJoined,
	}

	if err := m.init(); err != nil {
		transport.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// init performs the identity handshake and baseline setup. It is called
// during New and must complete successfully before the modem can be
// used.
func (m *Modem) init() error {
	manufacturer, err := m.inquireValue("CGMI")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialUnavailable, err)
	}
	if manufacturer != expectedManufacturer {
		return fmt.Errorf("%w: %q", ErrUnexpectedManufacturer, manufacturer)
	}
	m.identity.Manufacturer = manufacturer

	if m.identity.ModelRevision, err = m.inquireValue("CGMR"); err != nil {
		return fmt.Errorf("read model revision: %w", err)
	}
	if m.identity.SerialNumber, err = m.inquireValue("CGSN"); err != nil {
		return fmt.Errorf("read serial number: %w", err)
	}

	// Firmware log output interleaves with command replies, so turn it
	// off before anything else runs.
	if err := m.setCmd("ILOGLVL=0"); err != nil {
		return fmt.Errorf("silence module logging: %w", err)
	}

	mode, err := m.GetJoinMode()
	if err != nil {
		return fmt.Errorf("read join mode: %w", err)
	}
	m.joinMode = mode

	m.log.WithFields(logrus.Fields{
		"manufacturer": m.identity.Manufacturer,
		"revision":     m.identity.ModelRevision,
		"serial":       m.identity.SerialNumber,
		"join_mode":    mode.String(),
	}).Info("modem initialized")

	return nil
}

// Close shuts down the modem and releases the transport connection.
// After calling Close, the modem cannot be reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}

	m.closed = true

	if m.transport != nil {
		return m.transport.Close()
	}

	return nil
}

// Identity returns the device identification read at construction.
func (m *Modem) Identity() Identity {
	return m.identity
}

// LastError returns the most recent device-reported failure, or nil
// when the last transaction completed without one.
func (m *Modem) LastError() *LastError {
	if m.lastErr == nil {
		return nil
	}
	e := *m.lastErr
	return &e
}

// JoinState reports where the join procedure currently stands.
func (m *Modem) JoinState() JoinState {
	return m.joinState
}

// Joined reports whether the module has a network session.
func (m *Modem) Joined() bool {
	return m.joinState == Joined
}
