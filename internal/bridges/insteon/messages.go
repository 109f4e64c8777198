package insteon

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Protocol is the protocol identifier used in topics and payloads.
const Protocol = "insteon"

// CommandMessage is sent from Core to Bridge to drive a light.
// Topic: graylogic/command/insteon/{address}
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`

	// Command is one of the Command* names below.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50, "rate": "slow"} for on
	//   {"button": 1, "rate": 2000} for set_ramp_rate
	Parameters map[string]any `json:"parameters,omitempty"`

	Source string `json:"source"`
	UserID string `json:"user_id,omitempty"`
}

// Command names accepted on the command topic.
const (
	CommandOn          = "on"
	CommandOff         = "off"
	CommandOnFast      = "on_fast"
	CommandOffFast     = "off_fast"
	CommandBrighten    = "brighten"
	CommandDim         = "dim"
	CommandSetLevel    = "set_level"
	CommandSetRampRate = "set_ramp_rate"
	CommandSetOnLevel  = "set_on_level"
)

// Request actions accepted on the request topic.
const (
	ActionReadLevel    = "read_level"
	ActionReadRampRate = "read_ramp_rate"
	ActionReadOnLevel  = "read_on_level"
	ActionReadHistory  = "read_history"
)

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the device acknowledged the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/insteon/{address}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNoResponse        = "NO_RESPONSE"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from Bridge to Core when a light changes.
// Topic: graylogic/state/insteon/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State is {"on": bool} plus "level" when it is known.
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// EventMessage carries one light event.
// Topic: graylogic/event/insteon/{address}
// QoS: 1, Retained: No
type EventMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Event     EventKind `json:"event"`

	// Origin is "broadcast" or "ack".
	Origin string `json:"origin"`
	Group  *int   `json:"group,omitempty"`
	Level  *int   `json:"level,omitempty"`

	Cmd1     string `json:"cmd1"`
	Cmd2     string `json:"cmd2"`
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline is published by the broker from the LWT.
	HealthOffline HealthStatus = "offline"

	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: graylogic/health/insteon
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Connection     *ConnectionStatus `json:"connection,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	Reason         string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the modem link.
type ConnectionStatus struct {
	Status       string     `json:"status"`
	Port         string     `json:"port"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains modem counters.
type BridgeStatistics struct {
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesDropped  uint64 `json:"messages_dropped"`
	Errors           uint64 `json:"errors"`
}

// RequestMessage is sent from Core to Bridge for request/response operations.
// Topic: graylogic/request/insteon/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is one of the Action* names above.
	Action string `json:"action"`

	DeviceID   string         `json:"device_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from Bridge to Core in response to a request.
// Topic: graylogic/response/insteon/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts RFC 3339 timestamps and tolerates a missing one.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, addr Address) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   addr.String(),
	}
}

// NewAckError creates a failed or timed-out acknowledgment.
func NewAckError(cmd CommandMessage, addr Address, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeNoResponse {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, addr)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for a light.
func NewStateMessage(deviceID string, addr Address, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   addr.String(),
	}
}

// NewEventMessage creates the payload for one light event.
func NewEventMessage(deviceID string, addr Address, ev Event) EventMessage {
	origin := OriginDirectAck
	if ev.Group != nil {
		origin = OriginBroadcast
	}
	return EventMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Event:     ev.Kind,
		Origin:    origin.String(),
		Group:     ev.Group,
		Level:     ev.Level,
		Cmd1:      fmt.Sprintf("%02X", ev.Cmd1),
		Cmd2:      fmt.Sprintf("%02X", ev.Cmd2),
		Protocol:  Protocol,
		Address:   addr.String(),
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version, port string, status HealthStatus, stats ModemStats, deviceCount int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: deviceCount,
		Connection: &ConnectionStatus{
			Status: "disconnected",
			Port:   port,
		},
		Statistics: &BridgeStatistics{
			MessagesReceived: stats.MessagesRx,
			MessagesSent:     stats.MessagesTx,
			MessagesDropped:  stats.MessagesDropped,
			Errors:           stats.ErrorsTotal,
		},
	}

	if stats.Connected {
		lastActivity := stats.LastActivity
		msg.Connection.Status = "connected"
		msg.Connection.LastActivity = &lastActivity
	}

	return msg
}

// NewLWTMessage creates the Last Will and Testament published by the broker
// if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// CommandTopic returns the command topic for a light.
// Example: graylogic/command/insteon/1A.2B.3C
func CommandTopic(addr Address) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, addr)
}

// AckTopic returns the acknowledgment topic for a light.
func AckTopic(addr Address) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, addr)
}

// StateTopic returns the retained state topic for a light.
func StateTopic(addr Address) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, addr)
}

// EventTopic returns the event topic for a light.
func EventTopic(addr Address) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, Protocol, addr)
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// RequestTopic returns the topic for a request.
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, Protocol, requestID)
}

// ResponseTopic returns the topic for a response.
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, Protocol, requestID)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// RequestSubscribeTopic returns the subscription pattern for all requests.
func RequestSubscribeTopic() string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, Protocol)
}

// AddressFromTopic extracts the device address from a command topic.
func AddressFromTopic(topic string) (Address, error) {
	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 {
		return Address{}, fmt.Errorf("%w: topic %q has no address", ErrInvalidAddress, topic)
	}
	return ParseAddress(topic[idx+1:])
}
