package at

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Splitter is used for tokenizing module output. It uses the signature
// of bufio.SplitFunc so it can be used directly with bufio.Scanner, or
// called by hand on an accumulation buffer.
//
// It splits the input on LF and strips a trailing CR, which covers the
// module's CRLF framing as well as the occasional bare-LF line around
// its boot banner.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, dropCR(data[0:i]), nil
	}

	if atEOF {
		return len(data), dropCR(data), nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[0 : len(data)-1]
	}
	return data
}

// Parse classifies one received line. inList tells the parser that an
// RSSI list reply is in progress, which gives "<index>:<value>" lines
// their list-item meaning.
//
// Value extraction splits at the last ':' or '=' in the line: the
// module answers identity inquiries with '=' (+CGMI=ASR) and uses ':'
// everywhere else.
func Parse(line string, inList bool) Reply {
	r := Reply{Raw: line}

	switch {
	case strings.HasPrefix(line, CommandPrefix):
		r.Type = TypeEcho
	case line == OK:
		r.Type = TypeOK
	case line == RssiHeader:
		r.Type = TypeListStart
	case strings.HasPrefix(line, CmeError):
		r.Type = TypeError
		r.ErrKind = KindCme
		r.ErrCode = parseCode(line[len(CmeError):])
	case strings.HasPrefix(line, SendError):
		r.Type = TypeError
		r.ErrKind = KindSend
		r.ErrCode = parseCode(line[len(SendError):])
	case strings.HasPrefix(line, SentError):
		r.Type = TypeError
		r.ErrKind = KindSent
		r.ErrCode = parseCode(line[len(SentError):])
	case line == JoinOK:
		r.Type = TypeStatus
		r.Event = EventJoined
	case line == JoinFail:
		r.Type = TypeStatus
		r.Event = EventJoinFailed
	case strings.HasPrefix(line, SendAck):
		r.Type = TypeStatus
		r.Event = EventSendAccepted
		r.Payload = line[len(SendAck):]
	case strings.HasPrefix(line, SentAck):
		r.Type = TypeStatus
		r.Event = EventSentConfirmed
		r.Payload = line[len(SentAck):]
	case strings.HasPrefix(line, Recv):
		r.Type = TypeStatus
		r.Event = EventReceived
		r.Payload = line[len(Recv):]
	default:
		if inList {
			if index, value, ok := splitListItem(line); ok {
				r.Type = TypeListItem
				r.Index = index
				r.Value = value
				return r
			}
		}
		if i := strings.LastIndexAny(line, ":="); i >= 0 {
			r.Type = TypeValue
			r.Key = line[:i]
			r.Value = line[i+1:]
			return r
		}
		r.Type = TypeUnknown
	}
	return r
}

func parseCode(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// splitListItem matches "<digits>:<value>" list entries.
func splitListItem(line string) (index int, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return 0, "", false
	}
	for _, c := range line[:i] {
		if c < '0' || c > '9' {
			return 0, "", false
		}
	}
	index, err := strconv.Atoi(line[:i])
	if err != nil {
		return 0, "", false
	}
	return index, line[i+1:], true
}
