package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"i4.energy/across/loragw/modem"
)

// ErrQueueFull is returned by Enqueue when the uplink queue cannot
// accept another job.
var ErrQueueFull = errors.New("uplink queue full")

// errModuleBusy marks a transmission attempt deferred because the
// module still reported a send in flight.
var errModuleBusy = errors.New("module busy sending")

// UplinkJob is one queued transmission. Confirm, when set, overrides
// the configured default for this job only.
type UplinkJob struct {
	ID      string `json:"id,omitempty"`
	Payload string `json:"payload"`
	Confirm *bool  `json:"confirm,omitempty"`

	attempts int
}

// GatewayStatus is the snapshot reported on the status endpoint.
type GatewayStatus struct {
	Identity     modem.Identity `json:"identity"`
	JoinState    string         `json:"join_state"`
	ModuleStatus string         `json:"module_status"`
	QueueDepth   int            `json:"queue_depth"`
}

// Gateway owns the modem and serializes every interaction with it
// behind one mutex: the driver itself is single-threaded by contract,
// so the uplink worker, the HTTP handlers and the downlink poll all
// take g.mu before touching it.
type Gateway struct {
	config *Config
	log    *logrus.Logger

	mu    sync.Mutex // guards modem
	modem *modem.Modem

	limiter *DutyCycleLimiter
	jobs    chan UplinkJob

	dlMu         sync.Mutex
	lastDownlink *modem.DownlinkMessage

	// publish forwards dispatched downlinks to the MQTT bridge when
	// one is connected.
	publish func(modem.DownlinkMessage)
}

// NewGateway wraps an initialized modem. The gateway registers itself
// as the downlink handler; dispatched downlinks land in the
// last-downlink slot, the log, and the MQTT bridge once attached.
func NewGateway(config *Config, log *logrus.Logger, m *modem.Modem) *Gateway {
	g := &Gateway{
		config:  config,
		log:     log,
		modem:   m,
		limiter: NewDutyCycleLimiter(config.Uplink.DutyCycle, paramsForDataRate(config.Device.DataRate)),
		jobs:    make(chan UplinkJob, config.Uplink.QueueSize),
	}
	m.SetDownlinkHandler(g.onDownlink)
	return g
}

// onDownlink runs on the goroutine draining modem events, under g.mu.
// It must not call back into the modem.
func (g *Gateway) onDownlink(msg modem.DownlinkMessage) {
	g.log.WithFields(logrus.Fields{
		"type":   msg.MsgType,
		"port":   msg.Port,
		"length": msg.Length,
	}).Info("downlink received")

	g.dlMu.Lock()
	g.lastDownlink = &msg
	g.dlMu.Unlock()

	if g.publish != nil {
		g.publish(msg)
	}
}

// SetDownlinkPublisher attaches the MQTT forwarding hook.
func (g *Gateway) SetDownlinkPublisher(publish func(modem.DownlinkMessage)) {
	g.publish = publish
}

// LastDownlink returns the most recently dispatched downlink, or nil.
func (g *Gateway) LastDownlink() *modem.DownlinkMessage {
	g.dlMu.Lock()
	defer g.dlMu.Unlock()
	if g.lastDownlink == nil {
		return nil
	}
	msg := *g.lastDownlink
	return &msg
}

// Provision pushes the configured session and radio parameters into
// the module and joins the network. Called once at startup, before the
// worker runs.
func (g *Gateway) Provision() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	device := g.config.Device
	m := g.modem

	if err := m.RestoreMACConfig(); err != nil {
		return fmt.Errorf("restore MAC defaults: %w", err)
	}
	if err := m.SetRX1Delay(device.RX1Delay); err != nil {
		return fmt.Errorf("set RX1 delay: %w", err)
	}

	// A fixed data rate only sticks while ADR is off, so the write is
	// bracketed and ADR restored afterwards if requested.
	if err := m.SetADR(0); err != nil {
		return fmt.Errorf("disable ADR: %w", err)
	}
	if err := m.SetDataRate(device.DataRate); err != nil {
		return fmt.Errorf("set data rate: %w", err)
	}
	if device.ADR {
		if err := m.SetADR(1); err != nil {
			return fmt.Errorf("enable ADR: %w", err)
		}
	}

	mtype := 0
	if g.config.Uplink.Confirm {
		mtype = 1
	}
	if err := m.SetNbTrials(mtype, device.Trials); err != nil {
		return fmt.Errorf("set trials: %w", err)
	}

	// The TX power write triggers a radio recalibration, so skip it
	// when the module already runs at the requested index.
	current, err := m.GetTXPower()
	if err != nil {
		return fmt.Errorf("read TX power: %w", err)
	}
	if current != device.TXPower {
		if err := m.SetTXPower(device.TXPower); err != nil {
			return fmt.Errorf("set TX power: %w", err)
		}
	}

	if err := m.SetRXWindow(device.RX1DROffset, device.RX2DataRate, device.RX2Frequency); err != nil {
		return fmt.Errorf("set RX windows: %w", err)
	}
	if err := m.SetAppPort(device.AppPort); err != nil {
		return fmt.Errorf("set application port: %w", err)
	}

	if err := g.programKeys(); err != nil {
		return err
	}

	g.log.WithField("mode", device.JoinMode).Info("joining network")
	if err := m.Join(1, 0, device.JoinInterval, device.JoinRetries); err != nil {
		if errors.Is(err, modem.ErrAlreadyJoined) {
			g.log.Info("module already joined")
			return nil
		}
		return fmt.Errorf("join: %w", err)
	}
	return nil
}

// programKeys writes the identity material matching the configured
// activation mode. Empty fields are left at whatever the module has
// stored.
func (g *Gateway) programKeys() error {
	device := g.config.Device
	m := g.modem

	switch device.JoinMode {
	case "otaa":
		if err := m.SetJoinMode(modem.OTAA); err != nil {
			return fmt.Errorf("set join mode: %w", err)
		}
		if device.DevEui != "" {
			if err := m.SetDevEui(device.DevEui); err != nil {
				return fmt.Errorf("set DevEui: %w", err)
			}
		}
		if device.AppEui != "" {
			if err := m.SetAppEui(device.AppEui); err != nil {
				return fmt.Errorf("set AppEui: %w", err)
			}
		}
		if device.AppKey != "" {
			if err := m.SetAppKey(device.AppKey); err != nil {
				return fmt.Errorf("set AppKey: %w", err)
			}
		}

	case "abp":
		if err := m.SetJoinMode(modem.ABP); err != nil {
			return fmt.Errorf("set join mode: %w", err)
		}
		if device.DevAddr != "" {
			if err := m.SetDevAddr(device.DevAddr); err != nil {
				return fmt.Errorf("set DevAddr: %w", err)
			}
		}
		if device.NwkSKey != "" {
			if err := m.SetNwkSKey(device.NwkSKey); err != nil {
				return fmt.Errorf("set NwkSKey: %w", err)
			}
		}
		if device.AppSKey != "" {
			if err := m.SetAppSKey(device.AppSKey); err != nil {
				return fmt.Errorf("set AppSKey: %w", err)
			}
		}
	}
	return nil
}

// Enqueue accepts an uplink job, assigning an id when the caller did
// not supply one. It never blocks; a full queue is an error the caller
// reports back.
func (g *Gateway) Enqueue(job UplinkJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	select {
	case g.jobs <- job:
		g.log.WithField("id", job.ID).Debug("uplink queued")
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// QueueDepth reports how many jobs are waiting.
func (g *Gateway) QueueDepth() int {
	return len(g.jobs)
}

// Status snapshots the gateway for the status endpoint.
func (g *Gateway) Status() (GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status, err := g.modem.GetStatus()
	if err != nil {
		return GatewayStatus{}, fmt.Errorf("read module status: %w", err)
	}
	return GatewayStatus{
		Identity:     g.modem.Identity(),
		JoinState:    g.modem.JoinState().String(),
		ModuleStatus: status.String(),
		QueueDepth:   len(g.jobs),
	}, nil
}

// Run is the uplink worker loop. It owns all transmissions: jobs are
// paced by the duty cycle limiter, retried with jittered backoff, and
// between jobs the modem is polled for downlinks pushed outside any
// send window (class C traffic).
func (g *Gateway) Run(ctx context.Context) {
	poll := time.NewTicker(time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-poll.C:
			g.pollDownlink()

		case job := <-g.jobs:
			if err := g.dispatch(ctx, job); err != nil {
				g.retry(ctx, job, err)
			}
		}
	}
}

// pollDownlink makes one non-blocking pass over buffered module
// output.
func (g *Gateway) pollDownlink() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.modem.CheckDownlink(); err != nil {
		g.log.WithError(err).Warn("downlink poll failed")
	}
}

// dispatch transmits one job, honoring the duty cycle budget and the
// module's own busy state.
func (g *Gateway) dispatch(ctx context.Context, job UplinkJob) error {
	if wait := g.limiter.Delay(time.Now()); wait > 0 {
		g.log.WithFields(logrus.Fields{
			"id":   job.ID,
			"wait": wait.String(),
		}).Debug("duty cycle pause")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	status, err := g.modem.GetStatus()
	if err != nil {
		return fmt.Errorf("read module status: %w", err)
	}
	if status == modem.StatusSending {
		return errModuleBusy
	}

	confirm := 0
	if g.config.Uplink.Confirm {
		confirm = 1
	}
	if job.Confirm != nil {
		confirm = 0
		if *job.Confirm {
			confirm = 1
		}
	}

	if err := g.modem.SendPayload(job.Payload, confirm, g.config.Device.Trials); err != nil {
		return err
	}

	silence := g.limiter.Record(time.Now(), len(job.Payload))
	g.log.WithFields(logrus.Fields{
		"id":      job.ID,
		"bytes":   len(job.Payload),
		"silence": silence.String(),
	}).Info("uplink sent")
	return nil
}

// retry requeues a failed job with jittered backoff until its attempt
// budget is spent. Validation failures are permanent and dropped
// immediately.
func (g *Gateway) retry(ctx context.Context, job UplinkJob, cause error) {
	if errors.Is(cause, modem.ErrNoPayload) {
		g.log.WithField("id", job.ID).Warn("dropping uplink with empty payload")
		return
	}

	job.attempts++
	if job.attempts > g.config.Uplink.MaxRetries {
		g.log.WithError(cause).WithField("id", job.ID).Error("uplink failed permanently")
		return
	}

	backoff := time.Duration(800+rand.Intn(600)) * time.Millisecond * time.Duration(job.attempts)
	g.log.WithError(cause).WithFields(logrus.Fields{
		"id":      job.ID,
		"attempt": job.attempts,
		"backoff": backoff.String(),
	}).Warn("uplink failed, retrying")

	select {
	case <-ctx.Done():
	case <-time.After(backoff):
		select {
		case g.jobs <- job:
		default:
			g.log.WithField("id", job.ID).Error("uplink dropped, queue full on retry")
		}
	}
}

// Close shuts the modem down.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.modem.Close()
}
