package modem_test

import (
	"fmt"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/loragw/modem"
)

// MockSequenceBuilder scripts ordered transport expectations, one full
// AT exchange per step: flush, write, echo, replies.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Inquiry records an AT+<cmd>? transaction answered with the given
// lines followed by OK.
func (b *MockSequenceBuilder) Inquiry(cmd string, replies ...string) *MockSequenceBuilder {
	wire := "AT+" + cmd + "?\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().DiscardInput().Return(nil),
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().ReadLine(gomock.Any()).Return("AT+"+cmd+"?", nil),
	)
	for _, reply := range replies {
		b.calls = append(b.calls,
			b.transport.EXPECT().ReadLine(gomock.Any()).Return(reply, nil),
		)
	}
	b.calls = append(b.calls,
		b.transport.EXPECT().ReadLine(gomock.Any()).Return("OK", nil),
	)
	return b
}

// Set records an AT+<cmd> set transaction answered with OK.
func (b *MockSequenceBuilder) Set(cmd string) *MockSequenceBuilder {
	wire := "AT+" + cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().DiscardInput().Return(nil),
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().ReadLine(gomock.Any()).Return("AT+"+cmd, nil),
		b.transport.EXPECT().ReadLine(gomock.Any()).Return("OK", nil),
	)
	return b
}

// SetFails records a set transaction the module rejects with
// +CME ERROR:<code>.
func (b *MockSequenceBuilder) SetFails(cmd string, code int) *MockSequenceBuilder {
	wire := "AT+" + cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().DiscardInput().Return(nil),
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().ReadLine(gomock.Any()).Return("AT+"+cmd, nil),
		b.transport.EXPECT().ReadLine(gomock.Any()).Return(fmt.Sprintf("+CME ERROR:%d", code), nil),
	)
	return b
}

func (b *MockSequenceBuilder) Manufacturer(id string) *MockSequenceBuilder {
	return b.Inquiry("CGMI", "+CGMI="+id)
}

func (b *MockSequenceBuilder) ModelRevision(revision string) *MockSequenceBuilder {
	return b.Inquiry("CGMR", "+CGMR="+revision)
}

func (b *MockSequenceBuilder) SerialNumber(serial string) *MockSequenceBuilder {
	return b.Inquiry("CGSN", "+CGSN="+serial)
}

func (b *MockSequenceBuilder) QuietLogging() *MockSequenceBuilder {
	return b.Set("ILOGLVL=0")
}

func (b *MockSequenceBuilder) JoinMode(mode int) *MockSequenceBuilder {
	return b.Inquiry("CJOINMODE", fmt.Sprintf("+CJOINMODE:%d", mode))
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls is the construction handshake every successful New
// performs.
func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).
		Manufacturer("ASR").
		ModelRevision("v4.3").
		SerialNumber("00A1B2C3D4").
		QuietLogging().
		JoinMode(0).
		Build()
}
