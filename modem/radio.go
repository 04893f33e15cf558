package modem

import (
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/loragw/at"
)

// SetConfirm selects unconfirmed (0) or confirmed (1) uplink frames.
func (m *Modem) SetConfirm(confirm int) error {
	if err := inRange("confirm", confirm, 0, 1); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CCONFIRM=%d", confirm))
}

// GetConfirm reads the configured uplink message type.
func (m *Modem) GetConfirm() (int, error) {
	return m.inquireInt("CCONFIRM")
}

// SetAppPort sets the port uplinks are sent on. Ports outside 1..223
// are reserved by LoRaWAN.
func (m *Modem) SetAppPort(port int) error {
	if err := inRange("application port", port, 1, 223); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CAPPPORT=%d", port))
}

// GetAppPort reads the configured uplink port.
func (m *Modem) GetAppPort() (int, error) {
	return m.inquireInt("CAPPPORT")
}

// SetDataRate fixes the uplink data rate. Only meaningful with ADR
// off.
func (m *Modem) SetDataRate(dr int) error {
	if err := inRange("data rate", dr, 0, 5); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CDATARATE=%d", dr))
}

// GetDataRate reads the current data rate.
func (m *Modem) GetDataRate() (int, error) {
	return m.inquireInt("CDATARATE")
}

// GetRSSI measures the signal strength on every channel of a
// frequency band. The module answers with one indexed line per
// channel; the result maps channel index to RSSI in dBm.
func (m *Modem) GetRSSI(freqBandIdx int) (map[int]int, error) {
	_, list, err := m.inquire(fmt.Sprintf("CRSSI 000%d", freqBandIdx))
	if err != nil {
		return nil, err
	}

	rssi := make(map[int]int, len(list))
	for _, line := range list {
		reply := at.Parse(line, true)
		if reply.Type != at.TypeListItem {
			continue
		}
		value, err := strconv.Atoi(strings.TrimSpace(reply.Value))
		if err != nil {
			m.log.WithField("line", line).Warn("unparseable RSSI entry")
			continue
		}
		rssi[reply.Index] = value
	}
	return rssi, nil
}

// GetNbTrials reads the uplink message type (0 unconfirmed, 1
// confirmed) and the transmission budget.
func (m *Modem) GetNbTrials() (mtype, trials int, err error) {
	value, err := m.inquireValue("CNBTRIALS")
	if err != nil {
		return 0, 0, err
	}
	fields, err := csvInts("CNBTRIALS", value, 2)
	if err != nil {
		return 0, 0, err
	}
	return fields[0], fields[1], nil
}

// SetNbTrials sets the message type and how many times an uplink may
// be transmitted before the module gives up on it.
func (m *Modem) SetNbTrials(mtype, trials int) error {
	if err := inRange("message type", mtype, 0, 1); err != nil {
		return err
	}
	if err := inRange("trials", trials, 1, 15); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CNBTRIALS=%d,%d", mtype, trials))
}

// GetReportMode reads the report mode and, when periodic, the upload
// interval. A non-periodic module answers with the mode alone.
func (m *Modem) GetReportMode() (mode, interval int, err error) {
	value, err := m.inquireValue("CRM")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(value, ",")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("CRM: unexpected reply %q: %w", value, ErrPatternMismatch)
	}
	if mode, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("CRM: non-numeric mode %q: %w", parts[0], ErrPatternMismatch)
	}
	if len(parts) == 2 {
		if interval, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return 0, 0, fmt.Errorf("CRM: non-numeric interval %q: %w", parts[1], ErrPatternMismatch)
		}
	}
	return mode, interval, nil
}

// SetReportMode selects non-periodic (0) or periodic reporting with
// an interval in seconds. Has to be issued before sending data.
func (m *Modem) SetReportMode(mode, interval int) error {
	if mode == 0 {
		return m.setCmd("CRM=0")
	}
	return m.setCmd(fmt.Sprintf("CRM=%d,%d", mode, interval))
}

// LinkQuality is the answer the network returned to a link check.
type LinkQuality struct {
	Status      int // 0 success, anything else failed
	DemodMargin int // demodulation margin in dB
	Gateways    int // gateways that heard the uplink
	RSSI        int
	SNR         int
}

// EnableLinkCheck arms a MAC link check, 1 for the next uplink only
// or 2 for every uplink. 0 disarms.
func (m *Modem) EnableLinkCheck(mode int) error {
	return m.setCmd(fmt.Sprintf("CLINKCHECK=%d", mode))
}

// GetLinkCheck reads the result of the last armed link check. The
// module answers with an error until an uplink has carried one out.
func (m *Modem) GetLinkCheck() (LinkQuality, error) {
	value, err := m.inquireValue("CLINKCHECK")
	if err != nil {
		return LinkQuality{}, err
	}
	fields, err := csvInts("CLINKCHECK", value, 5)
	if err != nil {
		return LinkQuality{}, err
	}
	return LinkQuality{
		Status:      fields[0],
		DemodMargin: fields[1],
		Gateways:    fields[2],
		RSSI:        fields[3],
		SNR:         fields[4],
	}, nil
}

// SetADR turns adaptive data rate on (1) or off (0).
func (m *Modem) SetADR(enable int) error {
	if err := inRange("ADR", enable, 0, 1); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CADR=%d", enable))
}

// GetADR reads the adaptive data rate flag.
func (m *Modem) GetADR() (int, error) {
	return m.inquireInt("CADR")
}

// SetTXPower selects the transmit power index. The index maps to dBm
// through the regional parameters of the active band.
func (m *Modem) SetTXPower(power int) error {
	if err := inRange("TX power index", power, 0, 7); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CTXP=%d", power))
}

// GetTXPower reads the transmit power index.
func (m *Modem) GetTXPower() (int, error) {
	return m.inquireInt("CTXP")
}

// RXWindow is the receive window configuration reported by the
// module.
type RXWindow struct {
	RX1DataRate  int
	RX2DataRate  int
	RX2Frequency int // Hz
}

// SetRXWindow configures the RX1 data rate offset and the RX2 window.
// The transmitter needs settling time after a frequency change.
func (m *Modem) SetRXWindow(rx1DROffset, rx2DataRate, rx2Frequency int) error {
	if err := inRange("RX1 DR offset", rx1DROffset, 0, 5); err != nil {
		return err
	}
	if err := inRange("RX2 data rate", rx2DataRate, 0, 5); err != nil {
		return err
	}
	if err := inRange("RX2 frequency", rx2Frequency, 433000000, 999000000); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CRXP=%d,%d,%d", rx1DROffset, rx2DataRate, rx2Frequency))
}

// GetRXWindow reads the receive window parameters.
func (m *Modem) GetRXWindow() (RXWindow, error) {
	value, err := m.inquireValue("CRXP")
	if err != nil {
		return RXWindow{}, err
	}
	fields, err := csvInts("CRXP", value, 3)
	if err != nil {
		return RXWindow{}, err
	}
	return RXWindow{
		RX1DataRate:  fields[0],
		RX2DataRate:  fields[1],
		RX2Frequency: fields[2],
	}, nil
}

// SetFrequencyTable would write the channel frequency table. The
// command table documents it but the firmware rejects it, so the
// driver refuses without touching the wire.
func (m *Modem) SetFrequencyTable(uldl, method, number int, freqList string) error {
	return fmt.Errorf("frequency table write: %w", ErrUnsupported)
}

// SetRX1Delay sets the delay in seconds before the RX1 window opens.
// Public network servers open RX1 five seconds after the uplink, so
// larger values are rejected.
func (m *Modem) SetRX1Delay(delay int) error {
	if err := inRange("RX1 delay", delay, 0, 5); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CRX1DELAY=%d", delay))
}

// GetRX1Delay reads the RX1 window delay in seconds. Join and send
// use it to bound how long they wait for asynchronous results.
func (m *Modem) GetRX1Delay() (int, error) {
	return m.inquireInt("CRX1DELAY")
}

// SaveMACConfig persists the MAC configuration to module flash.
func (m *Modem) SaveMACConfig() error {
	return m.setCmd("CSAVE")
}

// RestoreMACConfig restores the factory MAC configuration.
func (m *Modem) RestoreMACConfig() error {
	return m.setCmd("CRESTORE")
}

// GetPingSlotInfo reads the configured ping slot periodicity.
func (m *Modem) GetPingSlotInfo() (int, error) {
	return m.inquireInt("CPINGSLOTINFOREQ")
}

// SetPingSlotPeriod asks the network for a new ping slot period. Ping
// slots only exist in class B, so the current class is checked first.
func (m *Modem) SetPingSlotPeriod(period int) error {
	if err := inRange("ping slot period", period, 0, 7); err != nil {
		return err
	}
	class, err := m.GetClass()
	if err != nil {
		return fmt.Errorf("read device class: %w", err)
	}
	if class != ClassB {
		return fmt.Errorf("device reports class %d: %w", class, ErrWrongClass)
	}
	return m.setCmd(fmt.Sprintf("CPINGSLOTINFOREQ=%d", period))
}

// SetLowPower turns the module's automatic low power mode on (1) or
// off (0).
func (m *Modem) SetLowPower(enable int) error {
	if err := inRange("low power", enable, 0, 1); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CLPM=%d", enable))
}

// SetKeysProtect locks (1) or unlocks (0) the session keys against
// readout.
func (m *Modem) SetKeysProtect(protect int) error {
	if err := inRange("keys protect", protect, 0, 1); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CKEYSPROTECT=%d", protect))
}

// GetKeysProtect reads the key protection flag.
func (m *Modem) GetKeysProtect() (int, error) {
	return m.inquireInt("CKEYSPROTECT")
}

// PowerTest selects one of the module's low power test commands.
type PowerTest int

const (
	PowerTestSleep   PowerTest = iota // CSLEEP, radio and MCU sleep
	PowerTestMCU                      // CMCU, MCU sleep only
	PowerTestStandby                  // CSTDBY, standby mode
)

// LowPowerTest puts the module into one of its low power test states.
// Only a reset wakes it up again.
func (m *Modem) LowPowerTest(which PowerTest) error {
	switch which {
	case PowerTestSleep:
		return m.setCmd("CSLEEP")
	case PowerTestMCU:
		return m.setCmd("CMCU")
	case PowerTestStandby:
		return m.setCmd("CSTDBY")
	default:
		return fmt.Errorf("power test %d: %w", int(which), ErrInvalidParam)
	}
}

// RXTest opens the radio receiver on a fixed frequency for antenna
// and sensitivity checks.
func (m *Modem) RXTest(freq, dataRate int) error {
	if err := inRange("frequency", freq, 150000000, 960000000); err != nil {
		return err
	}
	if err := inRange("data rate", dataRate, 0, 5); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CRX=%d,%d", freq, dataRate))
}

// TXTest transmits test frames on a fixed frequency.
func (m *Modem) TXTest(freq, dataRate, power int) error {
	if err := inRange("frequency", freq, 150000000, 960000000); err != nil {
		return err
	}
	if err := inRange("data rate", dataRate, 0, 5); err != nil {
		return err
	}
	if err := inRange("power", power, 0, 22); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CTX=%d,%d,%d", freq, dataRate, power))
}

// TXContinuousWave transmits an unmodulated carrier for regulatory
// measurements.
func (m *Modem) TXContinuousWave(freq, power, paOpt int) error {
	if err := inRange("frequency", freq, 150000000, 960000000); err != nil {
		return err
	}
	if err := inRange("power", power, 0, 22); err != nil {
		return err
	}
	if err := inRange("PA option", paOpt, 0, 3); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CTXCW=%d,%d,%d", freq, power, paOpt))
}
