package modem

import (
	"fmt"
	"time"
)

// JoinState tracks the join procedure.
type JoinState int

const (
	NotJoined  JoinState = iota // no session, no join in progress
	Joining                     // CJOIN accepted, waiting for the result
	Joined                      // session established
	JoinFailed                  // last attempt resolved with +CJOIN:FAIL
)

func (s JoinState) String() string {
	switch s {
	case NotJoined:
		return "not joined"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	case JoinFailed:
		return "join failed"
	default:
		return fmt.Sprintf("JoinState(%d)", int(s))
	}
}

// joinWait is the overall bound for a join attempt: one RX1 window plus
// a second of slack per trial the module makes.
func joinWait(retries, rx1Delay int) time.Duration {
	return time.Duration(retries*(rx1Delay+1)) * time.Second
}

// Join runs the join procedure. start 1 begins (or restarts) joining,
// start 0 stops a join in progress. interval is the pause in seconds
// between the module's attempts and retries bounds how many it makes.
//
// With start 1 the call blocks until the module reports a result or the
// attempt budget is exhausted. A module that is already joined rejects
// a new join without touching the wire.
func (m *Modem) Join(start, autoJoin, interval, retries int) error {
	if start < 0 || start > 1 {
		return fmt.Errorf("start must be 0 or 1, got %d: %w", start, ErrInvalidParam)
	}
	if autoJoin < 0 || autoJoin > 1 {
		return fmt.Errorf("autojoin must be 0 or 1, got %d: %w", autoJoin, ErrInvalidParam)
	}
	if interval < 1 || interval > 255 {
		return fmt.Errorf("interval must be 1..255, got %d: %w", interval, ErrInvalidParam)
	}
	if retries < 1 || retries > 256 {
		return fmt.Errorf("retries must be 1..256, got %d: %w", retries, ErrInvalidParam)
	}

	if m.joinState == Joined && start != 0 {
		m.log.Warn("join requested but module already joined")
		return ErrAlreadyJoined
	}

	cmd := fmt.Sprintf("CJOIN=%d,%d,%d,%d", start, autoJoin, interval, retries)
	if err := m.setCmd(cmd); err != nil {
		return err
	}

	if start == 0 {
		m.joinState = NotJoined
		m.log.Info("join stopped")
		return nil
	}

	m.joinState = Joining

	rx1, err := m.GetRX1Delay()
	if err != nil {
		m.joinState = NotJoined
		return fmt.Errorf("read RX1 delay for join bound: %w", err)
	}

	wait := joinWait(retries, rx1)
	m.log.WithField("bound", wait.String()).Info("waiting for join result")

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if err := m.drainEvents(); err != nil {
			m.joinState = NotJoined
			return err
		}
		if m.joinState != Joining {
			break
		}
		time.Sleep(m.pollInterval)
	}

	switch m.joinState {
	case Joined:
		return nil
	case JoinFailed:
		return ErrJoinFailed
	default:
		m.joinState = NotJoined
		return fmt.Errorf("no join result within %s: %w", wait, ErrReceiveTimeout)
	}
}

// JoinInfo is the module's configured join parameter set.
type JoinInfo struct {
	Start    int
	AutoJoin int
	Interval int
	Retries  int
}

// GetJoinInfo reads back the CJOIN parameters.
func (m *Modem) GetJoinInfo() (JoinInfo, error) {
	value, err := m.inquireValue("CJOIN")
	if err != nil {
		return JoinInfo{}, err
	}

	fields, err := csvInts("CJOIN", value, 4)
	if err != nil {
		return JoinInfo{}, err
	}

	return JoinInfo{
		Start:    fields[0],
		AutoJoin: fields[1],
		Interval: fields[2],
		Retries:  fields[3],
	}, nil
}
