package modem_test

import (
	"errors"
	"testing"

	"i4.energy/across/loragw/modem"
)

// scriptJoinStart queues the CJOIN acceptance and the RX1 delay
// inquiry the join procedure makes to size its wait bound.
func scriptJoinStart(transport *modem.TestTransport, cmd string) {
	transport.SendLines(
		"AT+"+cmd, "OK",
		"AT+CRX1DELAY?", "+CRX1DELAY:0", "OK",
	)
}

func TestJoin(t *testing.T) {
	t.Run("Resolves to Joined on +CJOIN:OK", func(t *testing.T) {
		m, transport := newTestModem(t)

		scriptJoinStart(transport, "CJOIN=1,0,8,1")
		transport.SendLines("+CJOIN:OK")

		if err := m.Join(1, 0, 8, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Joined() {
			t.Error("expected joined state after +CJOIN:OK")
		}
	})

	t.Run("Resolves to JoinFailed on +CJOIN:FAIL", func(t *testing.T) {
		m, transport := newTestModem(t)

		scriptJoinStart(transport, "CJOIN=1,0,8,1")
		transport.SendLines("+CJOIN:FAIL")

		err := m.Join(1, 0, 8, 1)
		if !errors.Is(err, modem.ErrJoinFailed) {
			t.Fatalf("expected ErrJoinFailed, got: %v", err)
		}
		if m.JoinState() != modem.JoinFailed {
			t.Errorf("expected JoinFailed state, got %v", m.JoinState())
		}
		if m.Joined() {
			t.Error("failed join must not report a session")
		}
	})

	t.Run("ErrReceiveTimeout when nothing resolves the join", func(t *testing.T) {
		m, transport := newTestModem(t)

		// retries 1 and RX1 delay 0 bound the wait to one second
		scriptJoinStart(transport, "CJOIN=1,0,8,1")

		err := m.Join(1, 0, 8, 1)
		if !errors.Is(err, modem.ErrReceiveTimeout) {
			t.Fatalf("expected ErrReceiveTimeout, got: %v", err)
		}
		if m.JoinState() != modem.NotJoined {
			t.Errorf("expected NotJoined after timeout, got %v", m.JoinState())
		}
	})

	t.Run("Stop join returns to NotJoined without waiting", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendLines("AT+CJOIN=0,0,8,1", "OK")

		if err := m.Join(0, 0, 8, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.JoinState() != modem.NotJoined {
			t.Errorf("expected NotJoined after stop, got %v", m.JoinState())
		}
	})

	t.Run("ErrAlreadyJoined without touching the wire", func(t *testing.T) {
		m, transport := newTestModem(t)

		scriptJoinStart(transport, "CJOIN=1,0,8,1")
		transport.SendLines("+CJOIN:OK")
		if err := m.Join(1, 0, 8, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		before := len(transport.Writes())
		if err := m.Join(1, 0, 8, 1); !errors.Is(err, modem.ErrAlreadyJoined) {
			t.Fatalf("expected ErrAlreadyJoined, got: %v", err)
		}
		if after := len(transport.Writes()); after != before {
			t.Error("rejected join must not reach the wire")
		}
	})

	t.Run("New attempt allowed after failure", func(t *testing.T) {
		m, transport := newTestModem(t)

		scriptJoinStart(transport, "CJOIN=1,0,8,1")
		transport.SendLines("+CJOIN:FAIL")
		if err := m.Join(1, 0, 8, 1); !errors.Is(err, modem.ErrJoinFailed) {
			t.Fatalf("expected ErrJoinFailed, got: %v", err)
		}

		scriptJoinStart(transport, "CJOIN=1,0,8,1")
		transport.SendLines("+CJOIN:OK")
		if err := m.Join(1, 0, 8, 1); err != nil {
			t.Fatalf("retry after failure should work, got: %v", err)
		}
		if !m.Joined() {
			t.Error("expected joined state after retry")
		}
	})

	t.Run("Parameter validation writes nothing", func(t *testing.T) {
		cases := []struct {
			name                            string
			start, autoJoin, interval, retries int
		}{
			{name: "Bad start", start: 2, autoJoin: 0, interval: 8, retries: 8},
			{name: "Bad autojoin", start: 1, autoJoin: 5, interval: 8, retries: 8},
			{name: "Interval too small", start: 1, autoJoin: 0, interval: 0, retries: 8},
			{name: "Retries too large", start: 1, autoJoin: 0, interval: 8, retries: 300},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m, transport := newTestModem(t)
				before := len(transport.Writes())

				err := m.Join(tc.start, tc.autoJoin, tc.interval, tc.retries)
				if !errors.Is(err, modem.ErrInvalidParam) {
					t.Fatalf("expected ErrInvalidParam, got: %v", err)
				}
				if after := len(transport.Writes()); after != before {
					t.Error("validation failure reached the wire")
				}
			})
		}
	})
}

func TestGetJoinInfo(t *testing.T) {
	m, transport := newTestModem(t)

	transport.SendLines("AT+CJOIN?", "+CJOIN:1,0,10,8", "OK")

	info, err := m.GetJoinInfo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := modem.JoinInfo{Start: 1, AutoJoin: 0, Interval: 10, Retries: 8}
	if info != expected {
		t.Errorf("expected %+v, got %+v", expected, info)
	}
}
