// Package mqtt provides MQTT client connectivity for the AM43 drive service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker carries two kinds of traffic. The BLE gateway (an ESP32 or a
// BlueZ proxy near the blinds) exchanges request/response and notification
// messages with the link package's MQTT transport. The service also
// publishes retained drive state and dispatch events for home automation
// consumers.
//
//	AM43 service ↔ MQTT Broker ↔ BLE gateway ↔ AM43 drives
//	                    ↓
//	             state / event consumers
//
// # Security Considerations
//
//   - TLS should be enabled when the broker is not on localhost
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDriveStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(topics.Event("dispatch"), []byte(`{"status":"OK"}`), 1, false)
package mqtt
