// Package link manages connections to AM43 drives.
//
// A Transport is the wireless capability (connect to an address, scan for
// peripherals). A Dialer opens Links on top of it, retrying connection
// establishment a fixed number of times with a fixed delay. A Link writes
// framed commands, checks the write acknowledgment and optionally waits for
// the notification the drive pushes in reply.
//
//	┌────────────┐  Dialer.Connect   ┌──────┐  Transport   ┌───────────┐
//	│ dispatcher │ ────────────────► │ Link │ ───────────► │ AM43 drive│
//	└────────────┘   (retry/backoff) └──────┘   (Conn)     └───────────┘
//
// # Transports
//
//   - MQTTTransport: drives a BLE gateway (ESP32 or BlueZ proxy) through the
//     MQTT broker. Requests and responses are correlated by request id.
//   - SimulatedTransport: in-memory drives for development and tests.
//
// # Resource Contract
//
// Every Link obtained from Connect must be closed exactly once. WithLink
// wraps a session so that Close runs on every exit path.
//
// # Thread Safety
//
// Dialer and the transports are safe for concurrent use. A Link belongs to
// one session and must not be shared.
package link
