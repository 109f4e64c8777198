package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic topic.
//
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{id};
// service lifecycle topics live under graylogic/system.
const TopicPrefix = "graylogic"

// Bridge topic categories.
const (
	CategoryCommand  = "command"
	CategoryAck      = "ack"
	CategoryState    = "state"
	CategoryEvent    = "event"
	CategoryRequest  = "request"
	CategoryResponse = "response"
	CategoryHealth   = "health"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Bridge(mqtt.CategoryState, "insteon", "1A.2B.3C")
//	// Returns: "graylogic/state/insteon/1A.2B.3C"
type Topics struct{}

// Bridge returns a per-device or per-request bridge topic.
func (Topics) Bridge(category, protocol, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, protocol, id)
}

// BridgeWildcard returns a subscription pattern covering every id
// in one category of one protocol.
//
// Pattern: graylogic/{category}/{protocol}/+
func (Topics) BridgeWildcard(category, protocol string) string {
	return fmt.Sprintf("%s/%s/%s/+", TopicPrefix, category, protocol)
}

// BridgeHealth returns the retained health topic of a protocol bridge.
//
// Example: graylogic/health/insteon
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryHealth, protocol)
}

// ServiceStatus returns the retained online/offline topic for one MQTT client.
// Each service owns its own topic so several services can share a broker.
//
// Example: graylogic/system/status/graylogic-insteon
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/system/status/%s", TopicPrefix, clientID)
}

// AllServiceStatus matches the status topic of every service.
//
// Pattern: graylogic/system/status/+
func (Topics) AllServiceStatus() string {
	return fmt.Sprintf("%s/system/status/+", TopicPrefix)
}
