package insteon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ext builds the expected 14-byte data block: payload padded with zeros and
// the checksum in D14.
func ext(cmd1, cmd2 byte, payload ...byte) []byte {
	data := make([]byte, extendedDataLength)
	copy(data, payload)
	data[13] = Checksum(cmd1, cmd2, data[:13])
	return data
}

func TestEncodeTurnOn(t *testing.T) {
	slow := RampOf(RampSlow)
	fast := RampOf(RampFast)

	tests := []struct {
		name string
		opts TurnOnOptions
		want Command
	}{
		{
			name: "defaults to full level",
			opts: TurnOnOptions{},
			want: Command{Cmd1: CmdOn, Cmd2: 0xFF},
		},
		{
			name: "level without rate uses full byte",
			opts: TurnOnOptions{Level: Ptr(50)},
			want: Command{Cmd1: CmdOn, Cmd2: 0x80},
		},
		{
			name: "level zero",
			opts: TurnOnOptions{Level: Ptr(0)},
			want: Command{Cmd1: CmdOn, Cmd2: 0x00},
		},
		{
			name: "level and slow rate pack nibbles",
			opts: TurnOnOptions{Level: Ptr(50), Rate: &slow},
			want: Command{Cmd1: CmdOnWithRamp, Cmd2: 0x86},
		},
		{
			name: "fast rate at default level",
			opts: TurnOnOptions{Rate: &fast},
			want: Command{Cmd1: CmdOnWithRamp, Cmd2: 0xFF},
		},
		{
			name: "numeric rate",
			opts: TurnOnOptions{Level: Ptr(100), Rate: Ptr(RampMillis(2000))},
			want: Command{Cmd1: CmdOnWithRamp, Cmd2: 0xFD},
		},
		{
			name: "overshoot clamps",
			opts: TurnOnOptions{Level: Ptr(120)},
			want: Command{Cmd1: CmdOn, Cmd2: 0xFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeTurnOn(tt.opts)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EncodeTurnOn() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeTurnOff(t *testing.T) {
	slow := RampOf(RampSlow)

	if diff := cmp.Diff(Command{Cmd1: CmdOff}, EncodeTurnOff(TurnOffOptions{})); diff != "" {
		t.Errorf("EncodeTurnOff() mismatch (-want +got):\n%s", diff)
	}

	got := EncodeTurnOff(TurnOffOptions{Rate: &slow})
	want := Command{Cmd1: CmdOffWithRamp, Cmd2: 0x06}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeTurnOff(slow) mismatch (-want +got):\n%s", diff)
	}
	if got.Cmd2>>nibbleShift != 0 {
		t.Errorf("level nibble = %d, want 0", got.Cmd2>>nibbleShift)
	}
}

func TestEncodeSimpleCommands(t *testing.T) {
	tests := []struct {
		name string
		got  Command
		cmd1 byte
	}{
		{"on fast", EncodeTurnOnFast(), 0x12},
		{"off fast", EncodeTurnOffFast(), 0x14},
		{"brighten", EncodeBrighten(), 0x15},
		{"dim", EncodeDim(), 0x16},
		{"query level", EncodeQueryLevel(), 0x19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Command{Cmd1: tt.cmd1}
			if diff := cmp.Diff(want, tt.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeSetLevel(t *testing.T) {
	got := EncodeSetLevel(25)
	want := Command{Cmd1: CmdInstantChange, Cmd2: 0x40}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeSetLevel(25) mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeExtendedCommands(t *testing.T) {
	tests := []struct {
		name string
		got  Command
		want Command
	}{
		{
			name: "set ramp rate default button",
			got:  EncodeSetRampRate(0, RampMillis(2000)),
			want: Command{Cmd1: 0x2E, Extended: true, Data: ext(0x2E, 0x00, 0x01, 0x05, 0x1B)},
		},
		{
			name: "set ramp rate button 3 slow",
			got:  EncodeSetRampRate(3, RampOf(RampSlow)),
			want: Command{Cmd1: 0x2E, Extended: true, Data: ext(0x2E, 0x00, 0x03, 0x05, 0x0D)},
		},
		{
			name: "set on level",
			got:  EncodeSetOnLevel(1, 100),
			want: Command{Cmd1: 0x2E, Extended: true, Data: ext(0x2E, 0x00, 0x01, 0x06, 0xFF)},
		},
		{
			name: "query ramp rate",
			got:  EncodeQueryRampRate(0),
			want: Command{Cmd1: 0x2E, Extended: true, Data: ext(0x2E, 0x00, 0x01), ExpectExtendedReply: true},
		},
		{
			name: "query on level button 2",
			got:  EncodeQueryOnLevel(2),
			want: Command{Cmd1: 0x2E, Extended: true, Data: ext(0x2E, 0x00, 0x02), ExpectExtendedReply: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if len(tt.got.Data) != extendedDataLength {
				t.Errorf("len(Data) = %d, want %d", len(tt.got.Data), extendedDataLength)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	// 0x2E + 0x00 + 0x01 + 0x05 + 0x1B = 0x4F; two's complement is 0xB1.
	data := make([]byte, 13)
	data[0], data[1], data[2] = 0x01, 0x05, 0x1B
	if got := Checksum(0x2E, 0x00, data); got != 0xB1 {
		t.Errorf("Checksum() = 0x%02X, want 0xB1", got)
	}

	// The whole message sums to zero.
	cmd := EncodeSetOnLevel(1, 42)
	sum := cmd.Cmd1 + cmd.Cmd2
	for _, b := range cmd.Data {
		sum += b
	}
	if sum != 0 {
		t.Errorf("message sum = 0x%02X, want 0", sum)
	}
}

func TestEncodersAreDeterministic(t *testing.T) {
	a := EncodeTurnOn(TurnOnOptions{Level: Ptr(33), Rate: Ptr(RampMillis(500))})
	b := EncodeTurnOn(TurnOnOptions{Level: Ptr(33), Rate: Ptr(RampMillis(500))})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same inputs encoded differently:\n%s", diff)
	}
}
