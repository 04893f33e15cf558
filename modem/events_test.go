package modem_test

import (
	"errors"
	"testing"

	"i4.energy/across/loragw/modem"
)

func TestSetDownlinkHandler(t *testing.T) {
	t.Run("Accepts a handler", func(t *testing.T) {
		m, _ := newTestModem(t)

		if !m.SetDownlinkHandler(func(modem.DownlinkMessage) {}) {
			t.Error("expected registration to succeed")
		}
	})

	t.Run("Rejects nil and keeps the existing handler", func(t *testing.T) {
		m, transport := newTestModem(t)

		var got []modem.DownlinkMessage
		if !m.SetDownlinkHandler(func(msg modem.DownlinkMessage) {
			got = append(got, msg)
		}) {
			t.Fatal("expected registration to succeed")
		}

		if m.SetDownlinkHandler(nil) {
			t.Error("nil handler must be rejected")
		}

		transport.SendLines("OK+RECV:1,2,4,deadbeef")
		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("original handler should still be registered, got %d calls", len(got))
		}
	})
}

func TestCheckDownlink(t *testing.T) {
	t.Run("Dispatches a downlink exactly once", func(t *testing.T) {
		m, transport := newTestModem(t)

		var got []modem.DownlinkMessage
		m.SetDownlinkHandler(func(msg modem.DownlinkMessage) {
			got = append(got, msg)
		})

		transport.SendLines("OK+RECV:1,2,4,deadbeef")

		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected exactly one dispatch, got %d", len(got))
		}

		msg := got[0]
		if msg.MsgType != 1 || msg.Port != 2 || msg.Length != 4 {
			t.Errorf("unexpected header fields: %+v", msg)
		}
		if msg.Payload != "deadbeef" {
			t.Errorf("expected payload %q, got %q", "deadbeef", msg.Payload)
		}
		if !m.DownlinkReceived() {
			t.Error("expected DownlinkReceived after dispatch")
		}

		// a second pass over the drained transport must not re-dispatch
		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("downlink dispatched again, got %d calls", len(got))
		}
	})

	t.Run("Payload commas arrive verbatim", func(t *testing.T) {
		m, transport := newTestModem(t)

		var got []modem.DownlinkMessage
		m.SetDownlinkHandler(func(msg modem.DownlinkMessage) {
			got = append(got, msg)
		})

		transport.SendLines("OK+RECV:2,10,11,de,ad,beef,00")

		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one dispatch, got %d", len(got))
		}
		if got[0].Payload != "de,ad,beef,00" {
			t.Errorf("payload mangled: %q", got[0].Payload)
		}
	})

	t.Run("Downlink without a handler is dropped quietly", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendLines("OK+RECV:1,2,4,deadbeef")

		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.DownlinkReceived() {
			t.Error("undispatched downlink must not set the received flag")
		}
	})

	t.Run("Malformed downlink is dropped, not fatal", func(t *testing.T) {
		m, transport := newTestModem(t)

		var calls int
		m.SetDownlinkHandler(func(modem.DownlinkMessage) { calls++ })

		transport.SendLines(
			"OK+RECV:1,2",            // too few fields
			"OK+RECV:x,2,4,deadbeef", // non-numeric type
		)

		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 0 {
			t.Errorf("malformed downlinks must not be dispatched, got %d calls", calls)
		}
	})

	t.Run("Join status lines update join state", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendLines("+CJOIN:OK")
		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.Joined() {
			t.Error("late +CJOIN:OK should move the state to Joined")
		}

		transport.SendLines("+CJOIN:FAIL")
		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.JoinState() != modem.JoinFailed {
			t.Errorf("expected JoinFailed, got %v", m.JoinState())
		}
	})

	t.Run("ERR+SEND terminates the drain with ErrSendFailed", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendLines("ERR+SEND:5")

		err := m.CheckDownlink()
		if !errors.Is(err, modem.ErrSendFailed) {
			t.Fatalf("expected ErrSendFailed, got: %v", err)
		}
		lastErr := m.LastError()
		if lastErr == nil {
			t.Fatal("expected LastError to be recorded")
		}
		if lastErr.Kind != "ERR+SEND" || lastErr.Code != 5 {
			t.Errorf("unexpected LastError: %+v", lastErr)
		}
	})

	t.Run("Noise is absorbed", func(t *testing.T) {
		m, transport := newTestModem(t)

		transport.SendLines("", "fnord", "ASR6501:~#")

		if err := m.CheckDownlink(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
