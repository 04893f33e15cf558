package modem

import "fmt"

// Reboot modes accepted by the module.
const (
	RebootNow        = 0 // drop everything and restart
	RebootGraceful   = 1 // restart after the current transmission finishes
	RebootBootloader = 7 // restart into the boot loader
)

// GetManufacturerID asks the module who made it. A healthy ASR6501
// answers "ASR".
func (m *Modem) GetManufacturerID() (string, error) {
	return m.inquireValue("CGMI")
}

// GetModelRevision reads the firmware revision string.
func (m *Modem) GetModelRevision() (string, error) {
	return m.inquireValue("CGMR")
}

// GetSerialNumber reads the module serial number.
func (m *Modem) GetSerialNumber() (string, error) {
	return m.inquireValue("CGSN")
}

// GetBaud reads the configured serial rate.
func (m *Modem) GetBaud() (int, error) {
	return m.inquireInt("CGBR")
}

// SetBaud changes the module serial rate. The module switches
// immediately, so the caller has to reopen the port at the new rate
// afterwards.
func (m *Modem) SetBaud(baud int) error {
	return m.setCmd(fmt.Sprintf("CGBR=%d", baud))
}

// Reboot restarts the LoRaWAN unit. Boot produces a burst of
// unsolicited output, which is drained before returning so it cannot
// bleed into the next transaction.
func (m *Modem) Reboot(mode int) error {
	switch mode {
	case RebootNow, RebootGraceful, RebootBootloader:
	default:
		return fmt.Errorf("reboot mode must be 0, 1 or 7, got %d: %w", mode, ErrInvalidParam)
	}
	if err := m.setCmd(fmt.Sprintf("IREBOOT=%d", mode)); err != nil {
		return err
	}
	return m.drainEvents()
}

// SetLogLevel sets the module's own log verbosity. Anything above 0
// interleaves firmware chatter with command replies, so construction
// forces 0.
func (m *Modem) SetLogLevel(level int) error {
	if err := inRange("log level", level, 0, 5); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("ILOGLVL=%d", level))
}

// GetLogLevel reads the module log verbosity.
func (m *Modem) GetLogLevel() (int, error) {
	return m.inquireInt("ILOGLVL")
}

// GetBatteryLevel reads the battery level the module reports to the
// network on a device status request.
func (m *Modem) GetBatteryLevel() (int, error) {
	return m.inquireInt("CBL")
}

// Status is the module activity state reported by CSTATUS.
type Status int

// CSTATUS codes. The join codes only appear around the first join
// procedure after boot.
const (
	StatusIdle             Status = 0
	StatusSending          Status = 1
	StatusSendFailed       Status = 2
	StatusSendOK           Status = 3
	StatusJoinOK           Status = 4
	StatusJoinFailed       Status = 5
	StatusNetworkAbnormal  Status = 6
	StatusSentNoDownlink   Status = 7
	StatusSentWithDownlink Status = 8
)

var statusText = map[Status]string{
	StatusIdle:             "no data operation",
	StatusSending:          "data is being sent",
	StatusSendFailed:       "data sent but failed",
	StatusSendOK:           "data sent successfully",
	StatusJoinOK:           "join succeeded",
	StatusJoinFailed:       "join failed",
	StatusNetworkAbnormal:  "network may be abnormal",
	StatusSentNoDownlink:   "data sent, no downlink",
	StatusSentWithDownlink: "data sent, downlink available",
}

func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("status %d", int(s))
}

// GetStatus reads the module activity state.
func (m *Modem) GetStatus() (Status, error) {
	n, err := m.inquireInt("CSTATUS")
	if err != nil {
		return 0, err
	}
	return Status(n), nil
}

// GetWorkMode reads the module work mode.
func (m *Modem) GetWorkMode() (int, error) {
	return m.inquireInt("CWORKMODE")
}

// SetWorkMode sets the module work mode. The command table defines no
// mode other than 2, normal, so everything else is rejected here.
func (m *Modem) SetWorkMode(mode int) error {
	if mode != 2 {
		return fmt.Errorf("work mode must be 2, got %d: %w", mode, ErrInvalidParam)
	}
	return m.setCmd(fmt.Sprintf("CWORKMODE=%d", mode))
}

// GetJoinMode reads the activation mode, 0 for OTAA or 1 for ABP.
func (m *Modem) GetJoinMode() (JoinMode, error) {
	n, err := m.inquireInt("CJOINMODE")
	if err != nil {
		return 0, err
	}
	return JoinMode(n), nil
}

// SetJoinMode switches between OTAA and ABP activation. The driver
// tracks the mode to guard the key setters, so the mode has to be
// changed through here rather than with a raw command.
func (m *Modem) SetJoinMode(mode JoinMode) error {
	if mode != OTAA && mode != ABP {
		return fmt.Errorf("join mode must be 0 (OTAA) or 1 (ABP), got %d: %w", int(mode), ErrInvalidParam)
	}
	if err := m.setCmd(fmt.Sprintf("CJOINMODE=%d", int(mode))); err != nil {
		return err
	}
	m.joinMode = mode
	return nil
}

// GetDevEui reads the device EUI.
func (m *Modem) GetDevEui() (string, error) {
	return m.inquireValue("CDEVEUI")
}

// SetDevEui writes the device EUI for OTAA activation.
func (m *Modem) SetDevEui(devEui string) error {
	if err := m.requireMode(OTAA); err != nil {
		return fmt.Errorf("set DevEui: %w", err)
	}
	if !hexEui.MatchString(devEui) {
		return ErrInvalidDevEui
	}
	return m.setCmd("CDEVEUI=" + devEui)
}

// GetAppEui reads the application EUI.
func (m *Modem) GetAppEui() (string, error) {
	return m.inquireValue("CAPPEUI")
}

// SetAppEui writes the application EUI for OTAA activation.
func (m *Modem) SetAppEui(appEui string) error {
	if err := m.requireMode(OTAA); err != nil {
		return fmt.Errorf("set AppEui: %w", err)
	}
	if !hexEui.MatchString(appEui) {
		return ErrInvalidAppEui
	}
	return m.setCmd("CAPPEUI=" + appEui)
}

// GetAppKey reads the application key, unless key protection hides it.
func (m *Modem) GetAppKey() (string, error) {
	return m.inquireValue("CAPPKEY")
}

// SetAppKey writes the application key for OTAA activation.
func (m *Modem) SetAppKey(appKey string) error {
	if err := m.requireMode(OTAA); err != nil {
		return fmt.Errorf("set AppKey: %w", err)
	}
	if !hexKey.MatchString(appKey) {
		return ErrInvalidAppKey
	}
	return m.setCmd("CAPPKEY=" + appKey)
}

// GetDevAddr reads the device address of the ABP session.
func (m *Modem) GetDevAddr() (string, error) {
	return m.inquireValue("CDEVADDR")
}

// SetDevAddr writes the device address for ABP activation.
func (m *Modem) SetDevAddr(devAddr string) error {
	if err := m.requireMode(ABP); err != nil {
		return fmt.Errorf("set DevAddr: %w", err)
	}
	if !hexAddr.MatchString(devAddr) {
		return ErrInvalidDevAddr
	}
	return m.setCmd("CDEVADDR=" + devAddr)
}

// GetAppSKey reads the application session key.
func (m *Modem) GetAppSKey() (string, error) {
	return m.inquireValue("CAPPSKEY")
}

// SetAppSKey writes the application session key for ABP activation.
func (m *Modem) SetAppSKey(appSKey string) error {
	if err := m.requireMode(ABP); err != nil {
		return fmt.Errorf("set AppSKey: %w", err)
	}
	if !hexKey.MatchString(appSKey) {
		return ErrInvalidAppSKey
	}
	return m.setCmd("CAPPSKEY=" + appSKey)
}

// GetNwkSKey reads the network session key.
func (m *Modem) GetNwkSKey() (string, error) {
	return m.inquireValue("CNWKSKEY")
}

// SetNwkSKey writes the network session key for ABP activation.
func (m *Modem) SetNwkSKey(nwkSKey string) error {
	if err := m.requireMode(ABP); err != nil {
		return fmt.Errorf("set NwkSKey: %w", err)
	}
	if !hexKey.MatchString(nwkSKey) {
		return ErrInvalidNwkSKey
	}
	return m.setCmd("CNWKSKEY=" + nwkSKey)
}

// GetFreqBandMask reads the frequency band mask.
func (m *Modem) GetFreqBandMask() (int, error) {
	return m.inquireInt("CFREQBANDMASK")
}

// SetFreqBandMask selects the active frequency band group. The module
// wants the mask zero padded to four characters.
func (m *Modem) SetFreqBandMask(mask int) error {
	return m.setCmd(fmt.Sprintf("CFREQBANDMASK=000%d", mask))
}

// GetULDLMode reads the uplink/downlink frequency relationship.
func (m *Modem) GetULDLMode() (int, error) {
	return m.inquireInt("CULDLMODE")
}

// SetULDLMode sets the uplink/downlink frequency relationship, 1 for
// same-band downlinks and 2 for cross-band.
func (m *Modem) SetULDLMode(mode int) error {
	if err := inRange("ULDL mode", mode, 1, 2); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CULDLMODE=%d", mode))
}

// Device classes as numbered by CCLASS.
const (
	ClassA = 0 // listens only in RX1/RX2 after an uplink
	ClassB = 1 // scheduled ping slots
	ClassC = 2 // always listening
)

// GetClass reads the current device class.
func (m *Modem) GetClass() (int, error) {
	return m.inquireInt("CCLASS")
}

// SetClass switches the device to class A or C, which take no
// parameters. Class B needs ping slot parameters and is set through
// SetClassB or SetClassBWithBeacon.
func (m *Modem) SetClass(deviceClass int) error {
	switch deviceClass {
	case ClassA, ClassC:
		return m.setCmd(fmt.Sprintf("CCLASS=%d", deviceClass))
	case ClassB:
		return fmt.Errorf("class B needs ping slot parameters, use SetClassB: %w", ErrUnknownClassCombination)
	default:
		return fmt.Errorf("class %d: %w", deviceClass, ErrUnknownClassCombination)
	}
}

// SetClassB switches to class B with the given ping slot periodicity.
// The slot period is 0.96 * 2^periodicity seconds.
func (m *Modem) SetClassB(pingSlotPeriodicity int) error {
	if err := inRange("ping slot periodicity", pingSlotPeriodicity, 0, 7); err != nil {
		return err
	}
	return m.setCmd(fmt.Sprintf("CCLASS=1,%d", pingSlotPeriodicity))
}

// SetClassBWithBeacon switches to class B pinning the beacon and ping
// slot channels, for networks that do not announce them. Frequencies
// are in Hz.
func (m *Modem) SetClassBWithBeacon(beaconFreq, beaconDR, pingSlotFreq, pingSlotDR int) error {
	return m.setCmd(fmt.Sprintf("CCLASS=1,%d,%d,%d,%d", beaconFreq, beaconDR, pingSlotFreq, pingSlotDR))
}

// AddMulticastAddr registers a multicast address blob with the module.
// The MUTICAST spelling is the device's own.
func (m *Modem) AddMulticastAddr(addr string) error {
	if len(addr) != 32 {
		return fmt.Errorf("multicast address must be 32 characters, got %d: %w", len(addr), ErrInvalidParam)
	}
	return m.setCmd("CADDMUTICAST=" + addr)
}

// DeleteMulticastAddr removes a registered multicast address.
func (m *Modem) DeleteMulticastAddr(addr string) error {
	if len(addr) != 32 {
		return fmt.Errorf("multicast address must be 32 characters, got %d: %w", len(addr), ErrInvalidParam)
	}
	return m.setCmd("CDELMUTICAST=" + addr)
}

// GetMulticastCount reports how many multicast addresses are
// registered.
func (m *Modem) GetMulticastCount() (int, error) {
	return m.inquireInt("CNUMMUTICAST")
}
