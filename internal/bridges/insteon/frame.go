package insteon

import (
	"bufio"
	"fmt"
	"io"
)

// PowerLinc modem serial framing.
//
// Every frame starts with 0x02 followed by a one-byte frame code. Frames the
// host sends are echoed back by the modem with a trailing ACK (0x06) or
// NAK (0x15).
const (
	frameStart byte = 0x02

	codeStandardReceived byte = 0x50
	codeExtendedReceived byte = 0x51
	codeSendMessage      byte = 0x62

	modemACK byte = 0x06
	modemNAK byte = 0x15

	// flagsExtended marks an extended (user data) message.
	flagsExtended byte = 0x10

	// flagsMaxHops sets max hops 3 and hops left 3, the usual default.
	flagsMaxHops byte = 0x0F

	// standardBodyLen is from(3) + to(3) + flags + cmd1 + cmd2.
	standardBodyLen = 9

	// sendBodyLen is to(3) + flags + cmd1 + cmd2.
	sendBodyLen = 6

	// messageTypeShift extracts the message type from the flags byte.
	messageTypeShift = 5
)

// frameBodyLengths gives the fixed body length (after the frame code) of the
// inbound frames the modem can emit. 0x62 is variable and handled separately.
var frameBodyLengths = map[byte]int{
	codeStandardReceived: standardBodyLen,
	codeExtendedReceived: standardBodyLen + extendedDataLength,
	0x52:                 2,  // X10 received
	0x53:                 8,  // all-linking completed
	0x54:                 1,  // button event
	0x55:                 0,  // user reset
	0x56:                 4,  // all-link cleanup failure report
	0x57:                 8,  // all-link record response
	0x58:                 1,  // all-link cleanup status report
	0x60:                 7,  // get IM info echo
	0x61:                 4,  // send all-link command echo
	0x64:                 3,  // start all-linking echo
	0x65:                 1,  // cancel all-linking echo
	0x67:                 1,  // reset IM echo
	0x69:                 1,  // get first all-link record echo
	0x6A:                 1,  // get next all-link record echo
	0x6B:                 2,  // set IM configuration echo
	0x6F:                 10, // manage all-link record echo
	0x73:                 4,  // get IM configuration echo
}

// MessageType is the 3-bit message type carried in the flags byte.
type MessageType byte

// Insteon message types.
const (
	MsgDirect           MessageType = 0b000
	MsgDirectAck        MessageType = 0b001
	MsgAllLinkCleanup   MessageType = 0b010
	MsgCleanupAck       MessageType = 0b011
	MsgBroadcast        MessageType = 0b100
	MsgDirectNAK        MessageType = 0b101
	MsgAllLinkBroadcast MessageType = 0b110
	MsgCleanupNAK       MessageType = 0b111
)

// Message is an Insteon message received through the modem.
type Message struct {
	From  Address
	To    Address
	Flags byte
	Cmd1  byte
	Cmd2  byte
	Data  []byte // D1..D14, extended messages only
}

// Type returns the message type from the flags byte.
func (m *Message) Type() MessageType {
	return MessageType(m.Flags >> messageTypeShift)
}

// IsExtended reports whether the message carries user data.
func (m *Message) IsExtended() bool {
	return m.Flags&flagsExtended != 0
}

// String returns a compact description for logs.
func (m *Message) String() string {
	return fmt.Sprintf("%s->%s flags=%02X cmd1=%02X cmd2=%02X", m.From, m.To, m.Flags, m.Cmd1, m.Cmd2)
}

// EncodeSendFrame builds the 0x62 frame that sends cmd to addr.
//
// Parameters:
//   - addr: Target device
//   - cmd: Command descriptor
//
// Returns:
//   - []byte: 8 bytes for standard commands, 22 for extended
func EncodeSendFrame(addr Address, cmd Command) []byte {
	flags := flagsMaxHops
	if cmd.Extended {
		flags |= flagsExtended
	}

	buf := make([]byte, 0, 2+sendBodyLen+extendedDataLength)
	buf = append(buf, frameStart, codeSendMessage)
	buf = append(buf, addr[:]...)
	buf = append(buf, flags, cmd.Cmd1, cmd.Cmd2)
	if cmd.Extended {
		data := make([]byte, extendedDataLength)
		copy(data, cmd.Data)
		buf = append(buf, data...)
	}
	return buf
}

// frame is one decoded inbound modem frame.
type frame struct {
	code byte
	body []byte

	// msg is set for 0x50/0x51 frames.
	msg *Message

	// ack is set for 0x62 echoes: modemACK or modemNAK.
	ack byte
}

// frameReader splits the modem byte stream into frames.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// next reads the next complete frame. Bytes outside a frame (line noise,
// a bare NAK from a busy modem) are skipped. Unknown frame codes return
// ErrInvalidFrame so the caller can count them; the stream resynchronises
// on the next 0x02.
func (f *frameReader) next() (frame, error) {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return frame{}, err
		}
		if b != frameStart {
			continue
		}

		code, err := f.r.ReadByte()
		if err != nil {
			return frame{}, err
		}

		if code == codeSendMessage {
			return f.readSendEcho()
		}

		n, ok := frameBodyLengths[code]
		if !ok {
			return frame{}, fmt.Errorf("%w: unknown frame code 0x%02X", ErrInvalidFrame, code)
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(f.r, body); err != nil {
			return frame{}, err
		}

		fr := frame{code: code, body: body}
		if code == codeStandardReceived || code == codeExtendedReceived {
			fr.msg = parseMessage(body)
		}
		return fr, nil
	}
}

// readSendEcho reads the echo of a 0x62 frame. The length depends on the
// extended flag in the echoed flags byte.
func (f *frameReader) readSendEcho() (frame, error) {
	head := make([]byte, sendBodyLen)
	if _, err := io.ReadFull(f.r, head); err != nil {
		return frame{}, err
	}

	body := head
	if head[3]&flagsExtended != 0 {
		data := make([]byte, extendedDataLength)
		if _, err := io.ReadFull(f.r, data); err != nil {
			return frame{}, err
		}
		body = append(body, data...)
	}

	ack, err := f.r.ReadByte()
	if err != nil {
		return frame{}, err
	}

	return frame{code: codeSendMessage, body: body, ack: ack}, nil
}

// parseMessage decodes the body of a 0x50 or 0x51 frame.
func parseMessage(body []byte) *Message {
	m := &Message{
		Flags: body[6],
		Cmd1:  body[7],
		Cmd2:  body[8],
	}
	copy(m.From[:], body[0:3])
	copy(m.To[:], body[3:6])
	if len(body) > standardBodyLen {
		m.Data = append([]byte(nil), body[standardBodyLen:]...)
	}
	return m
}
