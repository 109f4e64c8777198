package insteon

import (
	"context"
	"fmt"
	"sync"
)

// Request kinds used in log lines when a reply is missing.
const (
	reqTurnOn        = "turnOn"
	reqTurnOnFast    = "turnOnFast"
	reqTurnOff       = "turnOff"
	reqTurnOffFast   = "turnOffFast"
	reqBrighten      = "brighten"
	reqDim           = "dim"
	reqSetLevel      = "setLevel"
	reqQueryLevel    = "level"
	reqSetRampRate   = "setRampRate"
	reqQueryRampRate = "rampRate"
	reqSetOnLevel    = "setOnLevel"
	reqQueryOnLevel  = "onLevel"
)

// Transport sends a command to a device and waits for its reply.
// A nil response with a nil error means the device said nothing usable.
type Transport interface {
	SendCommand(ctx context.Context, addr Address, cmd Command) (*Response, error)
}

// Light is the handle for one dimmable light.
//
// It encodes semantic operations into commands, decodes replies, and turns
// notifications into events for its subscribers.
//
// Thread Safety: All methods are safe for concurrent use. Notifications for
// one light must be delivered serially for the dimming flag to be meaningful.
type Light struct {
	addr      Address
	transport Transport

	mu        sync.Mutex
	emitOnAck bool

	// dimming is set by a broadcast ramp-start and read by the matching
	// ramp-complete. Nothing else resets it.
	dimming bool

	subsMu    sync.RWMutex
	subs      []subscriber
	nextSubID int

	logger   Logger
	loggerMu sync.RWMutex
}

type subscriber struct {
	id      int
	handler EventHandler
}

// LightOptions holds configuration for creating a Light.
type LightOptions struct {
	// Address is the device address.
	Address Address

	// Transport carries commands to the device.
	Transport Transport

	// EmitOnAck controls whether direct acks produce events.
	// Nil means true.
	EmitOnAck *bool

	// Logger is optional structured logger.
	Logger Logger
}

// NewLight creates a handle for the device at opts.Address.
func NewLight(opts LightOptions) (*Light, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if opts.Address.IsZero() {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}

	emitOnAck := true
	if opts.EmitOnAck != nil {
		emitOnAck = *opts.EmitOnAck
	}

	return &Light{
		addr:      opts.Address,
		transport: opts.Transport,
		emitOnAck: emitOnAck,
		logger:    opts.Logger,
	}, nil
}

// Address returns the device address.
func (l *Light) Address() Address {
	return l.addr
}

// SetEmitOnAck turns event emission for direct acks on or off. Broadcasts
// always produce events.
func (l *Light) SetEmitOnAck(emit bool) {
	l.mu.Lock()
	l.emitOnAck = emit
	l.mu.Unlock()
}

// EmitOnAck reports whether direct acks produce events.
func (l *Light) EmitOnAck() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.emitOnAck
}

// Dimming reports the direction of the last broadcast ramp-start.
func (l *Light) Dimming() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dimming
}

// Subscribe registers handler for this light's events.
//
// Returns:
//   - func(): Removes the registration; safe to call more than once
func (l *Light) Subscribe(handler EventHandler) func() {
	l.subsMu.Lock()
	l.nextSubID++
	id := l.nextSubID
	l.subs = append(l.subs, subscriber{id: id, handler: handler})
	l.subsMu.Unlock()

	return func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

// ─── Operations ─────────────────────────────────────────────────────

// TurnOn turns the light on. See EncodeTurnOn for the wire forms.
func (l *Light) TurnOn(ctx context.Context, opts TurnOnOptions) *Response {
	return l.send(ctx, reqTurnOn, EncodeTurnOn(opts))
}

// TurnOnFast turns the light fully on without ramping.
func (l *Light) TurnOnFast(ctx context.Context) *Response {
	return l.send(ctx, reqTurnOnFast, EncodeTurnOnFast())
}

// TurnOff turns the light off, optionally over a ramp.
func (l *Light) TurnOff(ctx context.Context, opts TurnOffOptions) *Response {
	return l.send(ctx, reqTurnOff, EncodeTurnOff(opts))
}

// TurnOffFast turns the light off without ramping.
func (l *Light) TurnOffFast(ctx context.Context) *Response {
	return l.send(ctx, reqTurnOffFast, EncodeTurnOffFast())
}

// Brighten raises the level by one step.
func (l *Light) Brighten(ctx context.Context) *Response {
	return l.send(ctx, reqBrighten, EncodeBrighten())
}

// Dim lowers the level by one step.
func (l *Light) Dim(ctx context.Context) *Response {
	return l.send(ctx, reqDim, EncodeDim())
}

// SetLevel jumps to level with no ramp.
func (l *Light) SetLevel(ctx context.Context, level int) *Response {
	return l.send(ctx, reqSetLevel, EncodeSetLevel(level))
}

// QueryLevel asks the device for its current level.
//
// Returns:
//   - int: Level 0-100
//   - bool: false when the device gave no usable answer
func (l *Light) QueryLevel(ctx context.Context) (int, bool) {
	resp := l.send(ctx, reqQueryLevel, EncodeQueryLevel())
	level, ok := DecodeLevel(resp)
	if !ok && resp != nil {
		l.logNoResponse(reqQueryLevel)
	}
	return level, ok
}

// SetRampRate stores the default ramp rate for a button (0 means 1).
func (l *Light) SetRampRate(ctx context.Context, button int, rate RampRate) *Response {
	return l.send(ctx, reqSetRampRate, EncodeSetRampRate(button, rate))
}

// QueryRampRate reads the default ramp rate of a button (0 means 1).
//
// Returns:
//   - int: Ramp duration in milliseconds
//   - bool: false when the device gave no usable answer
func (l *Light) QueryRampRate(ctx context.Context, button int) (int, bool) {
	resp := l.send(ctx, reqQueryRampRate, EncodeQueryRampRate(button))
	ms, ok := DecodeRampRate(resp)
	if !ok && resp != nil {
		l.logNoResponse(reqQueryRampRate)
	}
	return ms, ok
}

// SetOnLevel stores the level a button turns on to (0 means button 1).
func (l *Light) SetOnLevel(ctx context.Context, button int, level int) *Response {
	return l.send(ctx, reqSetOnLevel, EncodeSetOnLevel(button, level))
}

// QueryOnLevel reads the on-level of a button (0 means 1).
//
// Returns:
//   - int: Level 0-100
//   - bool: false when the device gave no usable answer
func (l *Light) QueryOnLevel(ctx context.Context, button int) (int, bool) {
	resp := l.send(ctx, reqQueryOnLevel, EncodeQueryOnLevel(button))
	level, ok := DecodeOnLevel(resp)
	if !ok && resp != nil {
		l.logNoResponse(reqQueryOnLevel)
	}
	return level, ok
}

// send hands cmd to the transport. Transport errors and empty replies
// become a nil response plus a log line.
func (l *Light) send(ctx context.Context, request string, cmd Command) *Response {
	resp, err := l.transport.SendCommand(ctx, l.addr, cmd)
	if err != nil {
		l.logWarn("no response for request",
			"request", request,
			"device", l.addr.String(),
			"error", err)
		return nil
	}
	if resp.IsEmpty() {
		l.logNoResponse(request)
		return nil
	}
	return resp
}

// ─── Notifications ──────────────────────────────────────────────────

// HandleNotification classifies an inbound notification and emits events.
// Unknown codes are logged at debug level and otherwise ignored.
func (l *Light) HandleNotification(n Notification) {
	switch n.Origin {
	case OriginBroadcast:
		l.handleBroadcast(n.Group, n.Cmd1, n.Cmd2)
	case OriginDirectAck:
		l.handleAck(n.Cmd1, n.Cmd2)
	default:
		l.logDebug("notification with unknown origin", "device", l.addr.String(), "origin", int(n.Origin))
	}
}

func (l *Light) handleBroadcast(group int, cmd1, cmd2 byte) {
	g := &group
	l.emit(Event{Kind: EventCommand, Group: g, Cmd1: cmd1, Cmd2: cmd2})

	switch cmd1 {
	case CmdOn:
		l.emit(Event{Kind: EventTurnOn, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	case CmdOnFast:
		l.emit(Event{Kind: EventTurnOnFast, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	case CmdOff:
		l.emit(Event{Kind: EventTurnOff, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	case CmdOffFast:
		l.emit(Event{Kind: EventTurnOffFast, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	case CmdStartRamp:
		dimming := cmd2 == 0x00
		l.mu.Lock()
		l.dimming = dimming
		l.mu.Unlock()
		kind := EventBrightening
		if dimming {
			kind = EventDimming
		}
		l.emit(Event{Kind: kind, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	case CmdStopRamp:
		kind := EventBrightened
		if l.Dimming() {
			kind = EventDimmed
		}
		l.emit(Event{Kind: kind, Group: g, Cmd1: cmd1, Cmd2: cmd2})
	default:
		l.logDebug("no event for command",
			"device", l.addr.String(),
			"origin", OriginBroadcast.String(),
			"cmd1", fmt.Sprintf("0x%02X", cmd1))
	}
}

func (l *Light) handleAck(cmd1, cmd2 byte) {
	if !l.EmitOnAck() {
		return
	}

	l.emit(Event{Kind: EventCommand, Cmd1: cmd1, Cmd2: cmd2})

	switch cmd1 {
	case CmdOn, CmdInstantChange:
		l.emit(Event{Kind: EventTurnOn, Level: Ptr(ByteToLevel(cmd2)), Cmd1: cmd1, Cmd2: cmd2})
	case CmdOnFast:
		l.emit(Event{Kind: EventTurnOnFast, Cmd1: cmd1, Cmd2: cmd2})
	case CmdOnWithRamp:
		l.emit(Event{Kind: EventTurnOn, Level: Ptr(NibbleToLevel(cmd2 >> nibbleShift)), Cmd1: cmd1, Cmd2: cmd2})
	case CmdOff, CmdOffFast, CmdOffWithRamp:
		l.emit(Event{Kind: EventTurnOff, Cmd1: cmd1, Cmd2: cmd2})
	case CmdBrighten:
		l.emit(Event{Kind: EventBrightened, Cmd1: cmd1, Cmd2: cmd2})
	case CmdDim:
		l.emit(Event{Kind: EventDimmed, Cmd1: cmd1, Cmd2: cmd2})
	default:
		l.logDebug("no event for command",
			"device", l.addr.String(),
			"origin", OriginDirectAck.String(),
			"cmd1", fmt.Sprintf("0x%02X", cmd1))
	}
}

// emit calls every subscriber in registration order.
func (l *Light) emit(ev Event) {
	l.subsMu.RLock()
	subs := make([]subscriber, len(l.subs))
	copy(subs, l.subs)
	l.subsMu.RUnlock()

	for _, s := range subs {
		s.handler(ev)
	}
}

// SetLogger sets the logger for this light.
func (l *Light) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Light) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func (l *Light) logNoResponse(request string) {
	l.logWarn("no response for request", "request", request, "device", l.addr.String())
}

func (l *Light) logWarn(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (l *Light) logDebug(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
