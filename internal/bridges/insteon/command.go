package insteon

// Wire command codes for dimmable lighting devices.
const (
	CmdOn             byte = 0x11
	CmdOnFast         byte = 0x12
	CmdOff            byte = 0x13
	CmdOffFast        byte = 0x14
	CmdBrighten       byte = 0x15
	CmdDim            byte = 0x16
	CmdStartRamp      byte = 0x17 // cmd2 0x00 = dim direction, otherwise brighten
	CmdStopRamp       byte = 0x18
	CmdStatusRequest  byte = 0x19
	CmdInstantChange  byte = 0x21
	CmdOnWithRamp     byte = 0x2E // also the extended set/get family
	CmdOffWithRamp    byte = 0x2F
	CmdExtendedSetGet byte = 0x2E
)

// extendedDataLength is the number of user-data bytes (D1..D14) in an
// extended message.
const extendedDataLength = 14

// Sub-commands carried in D2 of an extended set/get command.
const (
	subGetData     byte = 0x00
	subSetRampRate byte = 0x05
	subSetOnLevel  byte = 0x06
)

// defaultButton is the button (D1) addressed when the caller passes zero.
const defaultButton = 1

// Command is a protocol command descriptor.
//
// Invariant: Data is empty when Extended is false; when Extended is true it
// holds exactly 14 bytes (D1..D14) with D1 the button index and D14 the
// checksum.
type Command struct {
	Cmd1     byte
	Cmd2     byte
	Extended bool
	Data     []byte

	// ExpectExtendedReply marks queries whose answer arrives as an extended
	// message after the direct ack.
	ExpectExtendedReply bool
}

// TurnOnOptions holds the optional arguments of TurnOn.
type TurnOnOptions struct {
	// Level is the target brightness (0-100). Nil means 100.
	Level *int

	// Rate selects the on-with-ramp form when set.
	Rate *RampRate
}

// TurnOffOptions holds the optional arguments of TurnOff.
type TurnOffOptions struct {
	// Rate selects the off-with-ramp form when set.
	Rate *RampRate
}

// Ptr returns a pointer to v, for filling optional option fields.
func Ptr[T any](v T) *T {
	return &v
}

// EncodeTurnOn builds an "on" command.
//
// With a rate the on-with-ramp form packs the level nibble (high) and the
// rate nibble (low) into cmd2; without one the plain form carries the
// full level byte.
func EncodeTurnOn(opts TurnOnOptions) Command {
	level := maxLevel
	if opts.Level != nil {
		level = *opts.Level
	}

	if opts.Rate != nil {
		rate := MillisToRateNibble(opts.Rate.ToMillis())
		return Command{
			Cmd1: CmdOnWithRamp,
			Cmd2: LevelToNibble(level)<<nibbleShift | rate,
		}
	}

	return Command{Cmd1: CmdOn, Cmd2: LevelToByte(level)}
}

// EncodeTurnOff builds an "off" command. With a rate the level nibble is
// zero and only the rate nibble is set.
func EncodeTurnOff(opts TurnOffOptions) Command {
	if opts.Rate != nil {
		return Command{
			Cmd1: CmdOffWithRamp,
			Cmd2: MillisToRateNibble(opts.Rate.ToMillis()),
		}
	}
	return Command{Cmd1: CmdOff}
}

// EncodeTurnOnFast builds a fast-on command (skips the ramp, full level).
func EncodeTurnOnFast() Command { return Command{Cmd1: CmdOnFast} }

// EncodeTurnOffFast builds a fast-off command.
func EncodeTurnOffFast() Command { return Command{Cmd1: CmdOffFast} }

// EncodeBrighten builds a one-step brighten command.
func EncodeBrighten() Command { return Command{Cmd1: CmdBrighten} }

// EncodeDim builds a one-step dim command.
func EncodeDim() Command { return Command{Cmd1: CmdDim} }

// EncodeSetLevel builds an instant-change command: jump to level with no ramp.
func EncodeSetLevel(level int) Command {
	return Command{Cmd1: CmdInstantChange, Cmd2: LevelToByte(level)}
}

// EncodeQueryLevel builds a status request. The level comes back in cmd2
// of the direct ack.
func EncodeQueryLevel() Command {
	return Command{Cmd1: CmdStatusRequest}
}

// EncodeSetRampRate builds an extended command that stores the default ramp
// rate for a button.
func EncodeSetRampRate(button int, rate RampRate) Command {
	return extendedCommand(CmdExtendedSetGet, 0x00,
		buttonByte(button), subSetRampRate, MillisToRateByte(rate.ToMillis()))
}

// EncodeSetOnLevel builds an extended command that stores the level a
// button turns on to.
func EncodeSetOnLevel(button int, level int) Command {
	return extendedCommand(CmdExtendedSetGet, 0x00,
		buttonByte(button), subSetOnLevel, LevelToByte(level))
}

// EncodeQueryRampRate builds an extended get-data request for a button.
// The ramp rate is read from the extended reply.
func EncodeQueryRampRate(button int) Command {
	return encodeGetData(button)
}

// EncodeQueryOnLevel builds an extended get-data request for a button.
// The on-level is read from the extended reply.
func EncodeQueryOnLevel(button int) Command {
	return encodeGetData(button)
}

func encodeGetData(button int) Command {
	cmd := extendedCommand(CmdExtendedSetGet, subGetData, buttonByte(button))
	cmd.ExpectExtendedReply = true
	return cmd
}

// buttonByte applies the default button and truncates to a byte.
func buttonByte(button int) byte {
	if button <= 0 {
		return defaultButton
	}
	return byte(button)
}

// extendedCommand pads payload to D1..D13 and appends the D14 checksum.
func extendedCommand(cmd1, cmd2 byte, payload ...byte) Command {
	data := make([]byte, extendedDataLength)
	copy(data, payload)
	data[extendedDataLength-1] = Checksum(cmd1, cmd2, data[:extendedDataLength-1])

	return Command{
		Cmd1:     cmd1,
		Cmd2:     cmd2,
		Extended: true,
		Data:     data,
	}
}

// Checksum computes the D14 checksum of an extended message: the two's
// complement of the sum of cmd1, cmd2 and D1..D13.
func Checksum(cmd1, cmd2 byte, data []byte) byte {
	sum := cmd1 + cmd2
	for _, b := range data {
		sum += b
	}
	return -sum
}
