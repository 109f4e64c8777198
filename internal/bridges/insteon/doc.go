// Package insteon implements the Insteon dimmable-light bridge for Gray Logic.
//
// This package drives Insteon lights through a PowerLinc modem (PLM) on a
// serial port. It translates between Gray Logic's MQTT messages and Insteon
// commands, and turns the lights' own broadcasts into events.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐  serial  ┌─────────┐
//	│   Gray Logic    │   MQTT   │ Insteon Bridge  │◄────────►│   PLM   │◄──► lights
//	│      Core       │◄────────►│   (this pkg)    │          └─────────┘
//	└─────────────────┘          └─────────────────┘
//
// # Layers
//
//   - Codecs: level (0-100) to byte and nibble, ramp duration to rate byte
//   - Command encoding: semantic operations to cmd1/cmd2 and extended data
//   - Light: per-device handle with operations, replies and event dispatch
//   - Modem: PLM framing, one command in flight, ordered notifications
//   - Bridge: MQTT commands, requests, state, events, history and health
//
// # Levels and Ramp Rates
//
// Levels are percentages. On the wire a level is a full byte (0-255) or,
// when paired with a ramp rate in one byte, a nibble (0-15). Ramp rates are
// durations looked up in a fixed 32-entry table, or the named categories
// "fast" (0.1 s) and "slow" (47 s).
//
// Example:
//
//	light, err := insteon.NewLight(insteon.LightOptions{
//	    Address:   insteon.MustParseAddress("1A.2B.3C"),
//	    Transport: modem,
//	})
//	if err != nil {
//	    return err
//	}
//	unsubscribe := light.Subscribe(func(ev insteon.Event) {
//	    fmt.Println(ev.Kind)
//	})
//	defer unsubscribe()
//	light.TurnOn(ctx, insteon.TurnOnOptions{Level: insteon.Ptr(50), Rate: &slow})
//
// # Events
//
// A light's group broadcasts always produce a "command" event followed by
// the semantic event (turnOn, dimming, brightened, ...). Ramp direction is
// remembered from the ramp-start broadcast so the ramp-complete can be
// reported as brightened or dimmed. Direct acks produce events only while
// EmitOnAck is set.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package insteon
