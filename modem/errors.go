package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoTransport is returned when the dialer produces neither a
	// transport nor an error.
	ErrNoTransport = errors.New("dialer returned no transport")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrReadTimeout is returned by Transport.ReadLine when no complete
	// line arrived within the allowed time. The transaction engine turns
	// it into ErrReceiveTimeout once the overall deadline has passed.
	ErrReadTimeout = errors.New("read timed out")

	// ErrReceiveTimeout is returned when the module produced no terminal
	// reply before the transaction deadline.
	ErrReceiveTimeout = errors.New("no reply before deadline")

	// ErrCommandFailed is returned when the module answers a command with
	// +CME ERROR. The numeric code is available through LastError.
	ErrCommandFailed = errors.New("command rejected by module")

	// ErrSendFailed is returned when the module reports ERR+SEND for an
	// uplink, meaning the frame never left the radio. The code is
	// available through LastError.
	ErrSendFailed = errors.New("uplink send failed")

	// ErrSentFailed is returned when the module reports ERR+SENT, meaning
	// the frame was transmitted but not confirmed. The code is available
	// through LastError.
	ErrSentFailed = errors.New("uplink not confirmed")

	// ErrPatternMismatch is returned when a transaction terminated with OK
	// but no value could be extracted from the reply lines.
	ErrPatternMismatch = errors.New("reply did not contain a value")

	// ErrUnsupported is returned for operations the module firmware
	// documents but rejects in practice.
	ErrUnsupported = errors.New("operation not supported by module firmware")

	// ErrUnexpectedManufacturer is returned during construction when the
	// device identifies as something other than an ASR module.
	//
	// Talking the ASR command set to an unknown device is unlikely to work
	// and may reconfigure it, so construction refuses to continue.
	ErrUnexpectedManufacturer = errors.New("unexpected manufacturer")

	// ErrSerialUnavailable is returned during construction when the device
	// does not answer the identity inquiry at all. The port exists but
	// nothing ASR-shaped is talking on it.
	ErrSerialUnavailable = errors.New("module not responding")

	// ErrAlreadyJoined is returned by Join when the module already has a
	// network session. Leave the network first, or reboot the module, to
	// join again.
	ErrAlreadyJoined = errors.New("already joined")

	// ErrJoinFailed is returned when the join procedure resolved with
	// +CJOIN:FAIL, or drained without reporting success.
	ErrJoinFailed = errors.New("join failed")

	// ErrWrongJoinMode is returned when an OTAA-only key is written in ABP
	// mode or vice versa. Switch modes with SetJoinMode first.
	ErrWrongJoinMode = errors.New("operation not valid in current join mode")

	// ErrWrongClass is returned when an operation needs a device class
	// the module is not in, such as a ping slot request outside
	// class B.
	ErrWrongClass = errors.New("operation not valid in current device class")

	// ErrNoPayload is returned by SendPayload for an empty payload.
	ErrNoPayload = errors.New("no payload specified")

	// Validation failures for the fixed-length upper-case hex fields.
	// Nothing is written to the module when one of these is returned.
	ErrInvalidDevEui  = errors.New("DevEui must be a 16 char upper-case hex string")
	ErrInvalidAppEui  = errors.New("AppEui must be a 16 char upper-case hex string")
	ErrInvalidAppKey  = errors.New("AppKey must be a 32 char upper-case hex string")
	ErrInvalidDevAddr = errors.New("DevAddr must be an 8 char upper-case hex string")
	ErrInvalidNwkSKey = errors.New("NwkSKey must be a 32 char upper-case hex string")
	ErrInvalidAppSKey = errors.New("AppSKey must be a 32 char upper-case hex string")

	// ErrInvalidParam is returned for out-of-range numeric parameters,
	// wrapped with the offending field and range.
	ErrInvalidParam = errors.New("parameter out of range")

	// ErrUnknownClassCombination is returned by SetClass for a class and
	// parameter-branch pairing the firmware does not define.
	ErrUnknownClassCombination = errors.New("unknown device class combination")
)
