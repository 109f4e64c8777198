package insteon

// EventKind names a semantic light event.
type EventKind string

// Event kinds emitted by Light.
const (
	// EventCommand is emitted first for every notification that is not
	// suppressed, carrying the raw codes.
	EventCommand EventKind = "command"

	EventTurnOn      EventKind = "turnOn"
	EventTurnOnFast  EventKind = "turnOnFast"
	EventTurnOff     EventKind = "turnOff"
	EventTurnOffFast EventKind = "turnOffFast"

	// Ramp started (broadcast 0x17).
	EventBrightening EventKind = "brightening"
	EventDimming     EventKind = "dimming"

	// Ramp finished (broadcast 0x18) or one-step change acknowledged.
	EventBrightened EventKind = "brightened"
	EventDimmed     EventKind = "dimmed"
)

// Origin tells where a notification came from.
type Origin int

const (
	// OriginBroadcast is an all-link group broadcast.
	OriginBroadcast Origin = iota + 1

	// OriginDirectAck is the device's direct acknowledgement of a command.
	OriginDirectAck
)

// String returns "broadcast" or "ack".
func (o Origin) String() string {
	switch o {
	case OriginBroadcast:
		return "broadcast"
	case OriginDirectAck:
		return "ack"
	default:
		return "unknown"
	}
}

// Notification is an unsolicited inbound message for one device.
type Notification struct {
	Origin Origin
	Group  int // broadcast only
	Cmd1   byte
	Cmd2   byte
	Data   []byte // extended messages only
}

// Event is a semantic event emitted to a light's subscribers.
type Event struct {
	Kind EventKind

	// Group is the all-link group for broadcast-origin events, nil for acks.
	Group *int

	// Level is set on turnOn events decoded from an ack.
	Level *int

	// Cmd1 and Cmd2 are the raw codes of the notification.
	Cmd1 byte
	Cmd2 byte
}

// EventHandler receives events. It is called synchronously, in arrival
// order, from the notification path and must not block for long.
type EventHandler func(Event)
