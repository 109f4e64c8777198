package insteon

// Offsets into the D1..D14 data of an extended get-data reply.
const (
	replyRampRateOffset = 6 // D7
	replyOnLevelOffset  = 7 // D8
)

// Response is what a device sent back for one command: the direct ack
// and, for queries, the extended data reply. Either may be missing.
type Response struct {
	Standard *Message
	Extended *Message
}

// IsEmpty reports whether no part of the reply arrived.
func (r *Response) IsEmpty() bool {
	return r == nil || (r.Standard == nil && r.Extended == nil)
}

// DecodeLevel extracts the current brightness from a status reply.
//
// Returns:
//   - int: Level 0-100 from cmd2 of the direct ack
//   - bool: false when there is no usable direct ack
func DecodeLevel(resp *Response) (int, bool) {
	if resp == nil || resp.Standard == nil {
		return 0, false
	}
	return ByteToLevel(resp.Standard.Cmd2), true
}

// DecodeRampRate extracts the default ramp rate from an extended reply.
//
// Returns:
//   - int: Ramp duration in milliseconds
//   - bool: false when the extended reply is missing or short
func DecodeRampRate(resp *Response) (int, bool) {
	if resp == nil || resp.Extended == nil || len(resp.Extended.Data) <= replyRampRateOffset {
		return 0, false
	}
	return RateByteToMillis(resp.Extended.Data[replyRampRateOffset]), true
}

// DecodeOnLevel extracts the configured on-level from an extended reply.
// The field is a full byte.
//
// Returns:
//   - int: Level 0-100
//   - bool: false when the extended reply is missing or short
func DecodeOnLevel(resp *Response) (int, bool) {
	if resp == nil || resp.Extended == nil || len(resp.Extended.Data) <= replyOnLevelOffset {
		return 0, false
	}
	return ByteToLevel(resp.Extended.Data[replyOnLevelOffset]), true
}
