package modem

import (
	"fmt"
	"regexp"
)

// Hex field shapes the module accepts. Addresses are 32-bit, EUIs are
// 64-bit and keys are 128-bit, always upper-case hex. A field that
// fails its shape check is rejected before anything goes on the wire.
var (
	hexAddr = regexp.MustCompile(`^([0-9A-F][0-9A-F]){4}$`)
	hexEui  = regexp.MustCompile(`^([0-9A-F][0-9A-F]){8}$`)
	hexKey  = regexp.MustCompile(`^([0-9A-F][0-9A-F]){16}$`)
)

// requireMode guards key writes that are only meaningful in one
// activation mode. The module silently accepts them in the other mode
// but the session then fails in confusing ways, so the driver refuses
// up front.
func (m *Modem) requireMode(mode JoinMode) error {
	if m.joinMode != mode {
		return fmt.Errorf("join mode is %s, operation needs %s: %w", m.joinMode, mode, ErrWrongJoinMode)
	}
	return nil
}

// inRange validates a numeric command parameter before it is rendered
// into a set command.
func inRange(name string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%s must be %d..%d, got %d: %w", name, lo, hi, value, ErrInvalidParam)
	}
	return nil
}
