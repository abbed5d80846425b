package mqtt

import "fmt"

// DefaultTopicPrefix is the root of every AM43 topic.
const DefaultTopicPrefix = "am43"

// Topics provides builders for the AM43 MQTT topic hierarchy.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	{prefix}/gateway/{gateway}/request/{request_id}   service -> BLE gateway
//	{prefix}/gateway/{gateway}/response/{request_id}  BLE gateway -> service
//	{prefix}/gateway/{gateway}/notify/{address}       drive notifications
//	{prefix}/state/{address}                          retained drive state
//	{prefix}/event/{type}                             dispatch events
//	{prefix}/system/status                            online/offline (LWT)
//
// The zero value uses DefaultTopicPrefix:
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DriveState("02:4e:30:1a:c4:9f")
//	// Returns: "am43/state/02:4e:30:1a:c4:9f"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix.
func NewTopics(prefix string) Topics {
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Gateway Topics
// =============================================================================

// GatewayRequest returns the topic for a request to a BLE gateway.
//
// Example: am43/gateway/ble-gateway-01/request/7c9e6679-...
func (t Topics) GatewayRequest(gatewayID, requestID string) string {
	return fmt.Sprintf("%s/gateway/%s/request/%s", t.root(), gatewayID, requestID)
}

// GatewayResponse returns the topic for a BLE gateway's response.
//
// Example: am43/gateway/ble-gateway-01/response/7c9e6679-...
func (t Topics) GatewayResponse(gatewayID, requestID string) string {
	return fmt.Sprintf("%s/gateway/%s/response/%s", t.root(), gatewayID, requestID)
}

// GatewayNotify returns the topic a BLE gateway forwards drive
// notifications on.
//
// Example: am43/gateway/ble-gateway-01/notify/02:4e:30:1a:c4:9f
func (t Topics) GatewayNotify(gatewayID, address string) string {
	return fmt.Sprintf("%s/gateway/%s/notify/%s", t.root(), gatewayID, address)
}

// =============================================================================
// Service Topics
// =============================================================================

// DriveState returns the retained state topic for one drive.
//
// Example: am43/state/02:4e:30:1a:c4:9f
func (t Topics) DriveState(address string) string {
	return fmt.Sprintf("%s/state/%s", t.root(), address)
}

// Event returns the topic for service events.
//
// Example: am43/event/dispatch
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.root(), eventType)
}

// SystemStatus returns the system status topic.
//
// Example: am43/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.root())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllGatewayResponses returns a pattern matching every response from one
// gateway.
//
// Pattern: am43/gateway/{gateway}/response/+
func (t Topics) AllGatewayResponses(gatewayID string) string {
	return fmt.Sprintf("%s/gateway/%s/response/+", t.root(), gatewayID)
}

// AllGatewayNotifications returns a pattern matching every drive
// notification forwarded by one gateway.
//
// Pattern: am43/gateway/{gateway}/notify/+
func (t Topics) AllGatewayNotifications(gatewayID string) string {
	return fmt.Sprintf("%s/gateway/%s/notify/+", t.root(), gatewayID)
}

// AllDriveStates returns a pattern matching every retained drive state.
//
// Pattern: am43/state/+
func (t Topics) AllDriveStates() string {
	return fmt.Sprintf("%s/state/+", t.root())
}

// AllEvents returns a pattern matching all service events.
//
// Pattern: am43/event/+
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", t.root())
}

// AllTopics returns a pattern matching every AM43 topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: am43/#
func (t Topics) AllTopics() string {
	return t.root() + "/#"
}
