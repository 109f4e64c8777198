package insteon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	mu    sync.Mutex
	sent  []sentCommand
	reply func(Command) (*Response, error)
}

type sentCommand struct {
	Addr Address
	Cmd  Command
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) SendCommand(_ context.Context, addr Address, cmd Command) (*Response, error) {
	m.mu.Lock()
	m.sent = append(m.sent, sentCommand{Addr: addr, Cmd: cmd})
	reply := m.reply
	m.mu.Unlock()

	if reply == nil {
		return nil, ErrTimeout
	}
	return reply(cmd)
}

func (m *MockTransport) SetReply(fn func(Command) (*Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = fn
}

func (m *MockTransport) GetSent() []sentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentCommand(nil), m.sent...)
}

// MockLogger records log calls.
type MockLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *MockLogger) record(level, msg string, kv ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, kv))
}

func (l *MockLogger) Debug(msg string, kv ...any) { l.record("DEBUG", msg, kv...) }
func (l *MockLogger) Info(msg string, kv ...any)  { l.record("INFO", msg, kv...) }
func (l *MockLogger) Warn(msg string, kv ...any)  { l.record("WARN", msg, kv...) }
func (l *MockLogger) Error(msg string, kv ...any) { l.record("ERROR", msg, kv...) }

func (l *MockLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

var testAddr = MustParseAddress("1A.2B.3C")

func newTestLight(t *testing.T, transport Transport) (*Light, *[]Event) {
	t.Helper()
	light, err := NewLight(LightOptions{Address: testAddr, Transport: transport})
	if err != nil {
		t.Fatalf("NewLight() error = %v", err)
	}
	var events []Event
	light.Subscribe(func(ev Event) { events = append(events, ev) })
	return light, &events
}

func ackResponse(cmd2 byte) *Response {
	return &Response{Standard: &Message{From: testAddr, Flags: 0x2B, Cmd1: 0x00, Cmd2: cmd2}}
}

func extendedResponse(data []byte) *Response {
	return &Response{
		Standard: &Message{From: testAddr, Flags: 0x2B, Cmd1: 0x2E},
		Extended: &Message{From: testAddr, Flags: 0x1B, Cmd1: 0x2E, Data: data},
	}
}

// ─── Construction ───────────────────────────────────────────────────

func TestNewLight_Validation(t *testing.T) {
	if _, err := NewLight(LightOptions{Address: testAddr}); !errors.Is(err, ErrNoTransport) {
		t.Errorf("NewLight without transport: error = %v, want ErrNoTransport", err)
	}
	_, err := NewLight(LightOptions{Transport: NewMockTransport()})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("NewLight without address: error = %v, want ErrInvalidAddress", err)
	}
}

func TestNewLight_EmitOnAckDefault(t *testing.T) {
	light, _ := NewLight(LightOptions{Address: testAddr, Transport: NewMockTransport()})
	if !light.EmitOnAck() {
		t.Error("EmitOnAck default = false, want true")
	}

	light, _ = NewLight(LightOptions{Address: testAddr, Transport: NewMockTransport(), EmitOnAck: Ptr(false)})
	if light.EmitOnAck() {
		t.Error("EmitOnAck = true, want false from options")
	}
}

// ─── Operations ─────────────────────────────────────────────────────

func TestLight_OperationsSendEncodedCommands(t *testing.T) {
	ctx := context.Background()
	transport := NewMockTransport()
	transport.SetReply(func(Command) (*Response, error) { return ackResponse(0xFF), nil })
	light, _ := newTestLight(t, transport)

	tests := []struct {
		name string
		call func() *Response
		want Command
	}{
		{"turn on", func() *Response { return light.TurnOn(ctx, TurnOnOptions{Level: Ptr(50)}) }, EncodeTurnOn(TurnOnOptions{Level: Ptr(50)})},
		{"turn on fast", func() *Response { return light.TurnOnFast(ctx) }, EncodeTurnOnFast()},
		{"turn off", func() *Response { return light.TurnOff(ctx, TurnOffOptions{}) }, EncodeTurnOff(TurnOffOptions{})},
		{"turn off fast", func() *Response { return light.TurnOffFast(ctx) }, EncodeTurnOffFast()},
		{"brighten", func() *Response { return light.Brighten(ctx) }, EncodeBrighten()},
		{"dim", func() *Response { return light.Dim(ctx) }, EncodeDim()},
		{"set level", func() *Response { return light.SetLevel(ctx, 30) }, EncodeSetLevel(30)},
		{"set ramp rate", func() *Response { return light.SetRampRate(ctx, 1, RampOf(RampFast)) }, EncodeSetRampRate(1, RampOf(RampFast))},
		{"set on level", func() *Response { return light.SetOnLevel(ctx, 1, 75) }, EncodeSetOnLevel(1, 75)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(transport.GetSent())
			if resp := tt.call(); resp == nil {
				t.Fatal("response = nil, want ack")
			}
			sent := transport.GetSent()
			if len(sent) != before+1 {
				t.Fatalf("sent %d commands, want 1", len(sent)-before)
			}
			last := sent[len(sent)-1]
			if last.Addr != testAddr {
				t.Errorf("address = %v, want %v", last.Addr, testAddr)
			}
			if diff := cmp.Diff(tt.want, last.Cmd); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLight_QueryLevel(t *testing.T) {
	ctx := context.Background()
	transport := NewMockTransport()
	light, _ := newTestLight(t, transport)

	transport.SetReply(func(Command) (*Response, error) { return ackResponse(0x80), nil })
	level, ok := light.QueryLevel(ctx)
	if !ok || level != 51 {
		t.Errorf("QueryLevel() = (%d, %v), want (51, true)", level, ok)
	}

	// Device reports zero: a value, not an absence.
	transport.SetReply(func(Command) (*Response, error) { return ackResponse(0x00), nil })
	level, ok = light.QueryLevel(ctx)
	if !ok || level != 0 {
		t.Errorf("QueryLevel() = (%d, %v), want (0, true)", level, ok)
	}
}

func TestLight_QueryWithoutUsableResponse(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		reply func(Command) (*Response, error)
	}{
		{"transport error", func(Command) (*Response, error) { return nil, errors.New("serial gone") }},
		{"nil response", func(Command) (*Response, error) { return nil, nil }},
		{"empty response", func(Command) (*Response, error) { return &Response{}, nil }},
		{"ack without extended reply", func(Command) (*Response, error) { return ackResponse(0x10), nil }},
		{"short extended reply", func(Command) (*Response, error) { return extendedResponse([]byte{0x01, 0x00}), nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewMockTransport()
			transport.SetReply(tt.reply)
			logger := &MockLogger{}
			light, err := NewLight(LightOptions{Address: testAddr, Transport: transport, Logger: logger})
			if err != nil {
				t.Fatalf("NewLight() error = %v", err)
			}

			if v, ok := light.QueryRampRate(ctx, 1); ok {
				t.Errorf("QueryRampRate() = %d, want absent", v)
			}
			if v, ok := light.QueryOnLevel(ctx, 1); ok {
				t.Errorf("QueryOnLevel() = %d, want absent", v)
			}
			if len(logger.Lines()) == 0 {
				t.Error("expected a log line for the missing reply")
			}
		})
	}
}

func TestLight_QueryExtendedData(t *testing.T) {
	ctx := context.Background()
	transport := NewMockTransport()
	light, _ := newTestLight(t, transport)

	data := make([]byte, extendedDataLength)
	data[0] = 0x01
	data[replyRampRateOffset] = 0x1B
	data[replyOnLevelOffset] = 0xFF
	transport.SetReply(func(Command) (*Response, error) { return extendedResponse(data), nil })

	ms, ok := light.QueryRampRate(ctx, 1)
	if !ok || ms != 2000 {
		t.Errorf("QueryRampRate() = (%d, %v), want (2000, true)", ms, ok)
	}

	level, ok := light.QueryOnLevel(ctx, 0)
	if !ok || level != 100 {
		t.Errorf("QueryOnLevel() = (%d, %v), want (100, true)", level, ok)
	}

	sent := transport.GetSent()
	if !sent[0].Cmd.ExpectExtendedReply || sent[0].Cmd.Data[0] != 0x01 {
		t.Errorf("query command = %+v, want get-data for button 1", sent[0].Cmd)
	}
}

func TestLight_OperationWithoutReplyReturnsNil(t *testing.T) {
	transport := NewMockTransport() // no reply configured: ErrTimeout
	logger := &MockLogger{}
	light, _ := NewLight(LightOptions{Address: testAddr, Transport: transport, Logger: logger})

	if resp := light.TurnOn(context.Background(), TurnOnOptions{}); resp != nil {
		t.Errorf("TurnOn() = %+v, want nil", resp)
	}
	if len(logger.Lines()) != 1 {
		t.Errorf("log lines = %v, want one warning", logger.Lines())
	}
}

// ─── Event dispatch ─────────────────────────────────────────────────

func broadcast(group int, cmd1, cmd2 byte) Notification {
	return Notification{Origin: OriginBroadcast, Group: group, Cmd1: cmd1, Cmd2: cmd2}
}

func ack(cmd1, cmd2 byte) Notification {
	return Notification{Origin: OriginDirectAck, Cmd1: cmd1, Cmd2: cmd2}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestHandleNotification_Broadcast(t *testing.T) {
	tests := []struct {
		name string
		in   []Notification
		want []EventKind
	}{
		{"on", []Notification{broadcast(1, 0x11, 0x00)}, []EventKind{EventCommand, EventTurnOn}},
		{"on fast", []Notification{broadcast(1, 0x12, 0x00)}, []EventKind{EventCommand, EventTurnOnFast}},
		{"off", []Notification{broadcast(1, 0x13, 0x00)}, []EventKind{EventCommand, EventTurnOff}},
		{"off fast", []Notification{broadcast(1, 0x14, 0x00)}, []EventKind{EventCommand, EventTurnOffFast}},
		{
			"dim ramp",
			[]Notification{broadcast(1, 0x17, 0x00), broadcast(1, 0x18, 0x00)},
			[]EventKind{EventCommand, EventDimming, EventCommand, EventDimmed},
		},
		{
			"brighten ramp",
			[]Notification{broadcast(1, 0x17, 0x01), broadcast(1, 0x18, 0x00)},
			[]EventKind{EventCommand, EventBrightening, EventCommand, EventBrightened},
		},
		{
			"direction persists across completes",
			[]Notification{broadcast(1, 0x17, 0x00), broadcast(1, 0x18, 0x00), broadcast(1, 0x18, 0x00)},
			[]EventKind{EventCommand, EventDimming, EventCommand, EventDimmed, EventCommand, EventDimmed},
		},
		{
			"new ramp start overwrites direction",
			[]Notification{broadcast(1, 0x17, 0x00), broadcast(1, 0x17, 0x01), broadcast(1, 0x18, 0x00)},
			[]EventKind{EventCommand, EventDimming, EventCommand, EventBrightening, EventCommand, EventBrightened},
		},
		{"complete without start reads brighten", []Notification{broadcast(1, 0x18, 0x00)}, []EventKind{EventCommand, EventBrightened}},
		{"unknown code", []Notification{broadcast(1, 0x99, 0x00)}, []EventKind{EventCommand}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			light, events := newTestLight(t, NewMockTransport())
			for _, n := range tt.in {
				light.HandleNotification(n)
			}
			if diff := cmp.Diff(tt.want, kinds(*events)); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleNotification_BroadcastCarriesGroup(t *testing.T) {
	light, events := newTestLight(t, NewMockTransport())
	light.HandleNotification(broadcast(3, 0x11, 0x00))

	want := []Event{
		{Kind: EventCommand, Group: Ptr(3), Cmd1: 0x11},
		{Kind: EventTurnOn, Group: Ptr(3), Cmd1: 0x11},
	}
	if diff := cmp.Diff(want, *events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleNotification_Ack(t *testing.T) {
	tests := []struct {
		name string
		in   Notification
		want []Event
	}{
		{
			"on full byte",
			ack(0x11, 0xFF),
			[]Event{{Kind: EventCommand, Cmd1: 0x11, Cmd2: 0xFF}, {Kind: EventTurnOn, Level: Ptr(100), Cmd1: 0x11, Cmd2: 0xFF}},
		},
		{
			"on half",
			ack(0x11, 0x80),
			[]Event{{Kind: EventCommand, Cmd1: 0x11, Cmd2: 0x80}, {Kind: EventTurnOn, Level: Ptr(51), Cmd1: 0x11, Cmd2: 0x80}},
		},
		{
			"instant change",
			ack(0x21, 0x40),
			[]Event{{Kind: EventCommand, Cmd1: 0x21, Cmd2: 0x40}, {Kind: EventTurnOn, Level: Ptr(26), Cmd1: 0x21, Cmd2: 0x40}},
		},
		{
			"on with ramp full nibble",
			ack(0x2E, 0xF6),
			[]Event{{Kind: EventCommand, Cmd1: 0x2E, Cmd2: 0xF6}, {Kind: EventTurnOn, Level: Ptr(100), Cmd1: 0x2E, Cmd2: 0xF6}},
		},
		{
			"on fast",
			ack(0x12, 0xFF),
			[]Event{{Kind: EventCommand, Cmd1: 0x12, Cmd2: 0xFF}, {Kind: EventTurnOnFast, Cmd1: 0x12, Cmd2: 0xFF}},
		},
		{
			"off",
			ack(0x13, 0x00),
			[]Event{{Kind: EventCommand, Cmd1: 0x13}, {Kind: EventTurnOff, Cmd1: 0x13}},
		},
		{
			"off fast collapses to off",
			ack(0x14, 0x00),
			[]Event{{Kind: EventCommand, Cmd1: 0x14}, {Kind: EventTurnOff, Cmd1: 0x14}},
		},
		{
			"off with ramp collapses to off",
			ack(0x2F, 0x06),
			[]Event{{Kind: EventCommand, Cmd1: 0x2F, Cmd2: 0x06}, {Kind: EventTurnOff, Cmd1: 0x2F, Cmd2: 0x06}},
		},
		{
			"brighten",
			ack(0x15, 0x00),
			[]Event{{Kind: EventCommand, Cmd1: 0x15}, {Kind: EventBrightened, Cmd1: 0x15}},
		},
		{
			"dim",
			ack(0x16, 0x00),
			[]Event{{Kind: EventCommand, Cmd1: 0x16}, {Kind: EventDimmed, Cmd1: 0x16}},
		},
		{
			"unknown code",
			ack(0x99, 0x00),
			[]Event{{Kind: EventCommand, Cmd1: 0x99}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			light, events := newTestLight(t, NewMockTransport())
			light.HandleNotification(tt.in)
			if diff := cmp.Diff(tt.want, *events); diff != "" {
				t.Errorf("events mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandleNotification_AckDoesNotTouchDirection(t *testing.T) {
	light, events := newTestLight(t, NewMockTransport())

	light.HandleNotification(broadcast(1, 0x17, 0x00))
	light.HandleNotification(ack(0x15, 0x00))
	light.HandleNotification(broadcast(1, 0x18, 0x00))

	want := []EventKind{EventCommand, EventDimming, EventCommand, EventBrightened, EventCommand, EventDimmed}
	if diff := cmp.Diff(want, kinds(*events)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if !light.Dimming() {
		t.Error("Dimming() = false, want true")
	}
}

func TestHandleNotification_EmitOnAckOff(t *testing.T) {
	light, events := newTestLight(t, NewMockTransport())
	light.SetEmitOnAck(false)

	light.HandleNotification(ack(0x11, 0xFF))
	if len(*events) != 0 {
		t.Errorf("events = %v, want none while acks are suppressed", kinds(*events))
	}

	light.HandleNotification(broadcast(1, 0x11, 0x00))
	if diff := cmp.Diff([]EventKind{EventCommand, EventTurnOn}, kinds(*events)); diff != "" {
		t.Errorf("broadcast events mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	light, err := NewLight(LightOptions{Address: testAddr, Transport: NewMockTransport()})
	if err != nil {
		t.Fatalf("NewLight() error = %v", err)
	}

	var first, second int
	unsubFirst := light.Subscribe(func(Event) { first++ })
	light.Subscribe(func(Event) { second++ })

	light.HandleNotification(broadcast(1, 0x11, 0x00))
	unsubFirst()
	unsubFirst() // idempotent
	light.HandleNotification(broadcast(1, 0x13, 0x00))

	if first != 2 {
		t.Errorf("first subscriber saw %d events, want 2", first)
	}
	if second != 4 {
		t.Errorf("second subscriber saw %d events, want 4", second)
	}
}

func TestSubscribe_HandlerMayUnsubscribeItself(t *testing.T) {
	light, _ := NewLight(LightOptions{Address: testAddr, Transport: NewMockTransport()})

	calls := 0
	var unsub func()
	unsub = light.Subscribe(func(Event) {
		calls++
		unsub()
	})

	light.HandleNotification(broadcast(1, 0x11, 0x00))
	light.HandleNotification(broadcast(1, 0x11, 0x00))

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
