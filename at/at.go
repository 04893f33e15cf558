package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Every command starts with this prefix and the module echoes the
	// full command line back before answering.
	CommandPrefix = "AT+"

	// Response Codes
	OK       = "OK"
	CmeError = "+CME ERROR:"

	// Asynchronous result markers
	JoinOK    = "+CJOIN:OK"
	JoinFail  = "+CJOIN:FAIL"
	SendAck   = "OK+SEND:"
	SentAck   = "OK+SENT:"
	Recv      = "OK+RECV:"
	SendError = "ERR+SEND:"
	SentError = "ERR+SENT:"

	// RSSI list replies open with this header and close with OK
	RssiHeader = "+CRSSI:"
)

// Error kinds as recorded in a device error report.
const (
	KindCme  = "+CME ERROR"
	KindSend = "ERR+SEND"
	KindSent = "ERR+SENT"
)

type ReplyType int

const (
	TypeEcho      ReplyType = iota // command echoed back by the module
	TypeOK                         // bare OK: success, or end of a list reply
	TypeValue                      // +KEY:VALUE or +KEY=VALUE
	TypeListStart                  // +CRSSI: header
	TypeListItem                   // <index>:<value> inside a list reply
	TypeError                      // +CME ERROR:, ERR+SEND:, ERR+SENT:
	TypeStatus                     // unsolicited status line
	TypeUnknown                    // anything else (shell banner, noise)
)

type EventType int

const (
	EventJoined        EventType = iota // +CJOIN:OK
	EventJoinFailed                     // +CJOIN:FAIL
	EventSendAccepted                   // OK+SEND:<bytes>
	EventSentConfirmed                  // OK+SENT:<trials>
	EventReceived                       // OK+RECV:<type>,<port>,<len>,<payload>
)

// Reply is one line of module output broken into its classified parts.
// Raw always carries the full line; the other fields are populated
// according to Type: Key/Value for TypeValue, Index/Value for
// TypeListItem, ErrKind/ErrCode for TypeError, Event/Payload for
// TypeStatus.
type Reply struct {
	Type ReplyType

	Raw     string
	Key     string
	Value   string
	Index   int
	ErrKind string
	ErrCode int
	Event   EventType
	Payload string
}

// Inquire renders the wire form of a read command, e.g.
// "CJOINMODE" -> "AT+CJOINMODE?\r\n".
func Inquire(mnemonic string) []byte {
	return []byte(CommandPrefix + mnemonic + "?" + CRLF)
}

// Set renders the wire form of a write command with its parameters
// already joined, e.g. "CDATARATE=3" -> "AT+CDATARATE=3\r\n".
func Set(command string) []byte {
	return []byte(CommandPrefix + command + CRLF)
}
