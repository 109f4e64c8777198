package insteon

import "errors"

// Domain errors for the Insteon bridge package.
var (
	// ErrNotConnected is returned when an operation requires the modem
	// but the serial link is closed or failed.
	ErrNotConnected = errors.New("insteon: modem not connected")

	// ErrConnectionFailed is returned when the serial port cannot be opened.
	ErrConnectionFailed = errors.New("insteon: modem connection failed")

	// ErrInvalidAddress is returned when a device address string
	// cannot be parsed.
	ErrInvalidAddress = errors.New("insteon: invalid device address")

	// ErrInvalidRampRate is returned when a ramp rate is neither a known
	// category nor a non-negative duration.
	ErrInvalidRampRate = errors.New("insteon: invalid ramp rate")

	// ErrModemNAK is returned when the modem refuses a send (usually busy).
	ErrModemNAK = errors.New("insteon: modem rejected message")

	// ErrDeviceNAK is returned when the target device answers with a
	// direct NAK.
	ErrDeviceNAK = errors.New("insteon: device rejected command")

	// ErrTimeout is returned when no reply arrives within the response timeout.
	ErrTimeout = errors.New("insteon: operation timed out")

	// ErrInvalidFrame is returned when bytes read from the modem do not
	// form a valid frame.
	ErrInvalidFrame = errors.New("insteon: invalid modem frame")

	// ErrNoTransport is returned when a light is created without a transport.
	ErrNoTransport = errors.New("insteon: transport is required")
)
