// Package am43 implements the AM43 blind drive wire protocol.
//
// AM43-class drives (A-OK, Zemismart and rebadged clones) expose a single
// writable GATT characteristic. Commands and notifications share one frame
// layout:
//
//	┌──────┬────┬─────┬─────────────────┬──────────┐
//	│ 0x9A │ id │ len │ payload (len B) │ checksum │
//	└──────┴────┴─────┴─────────────────┴──────────┘
//
// The checksum is the XOR of every preceding byte, start byte included.
//
// # Commands
//
//   - 0x0D move to position (payload: percent, 0 = open, 100 = closed)
//   - 0x0A stop (payload: 0xCC)
//   - 0xA2 / 0xAA / 0xA7 request a battery / light / position report (payload: 0x01)
//
// # Notifications
//
// Drives answer report requests asynchronously. DecodeNotification extracts
// the value carried by a notification and an Accumulator merges the values
// received during one status session into a Snapshot.
//
// Example:
//
//	frame, err := am43.MoveCommand(40).Encode()
//	if err != nil {
//	    return err
//	}
//	// frame = 9A 0D 01 28 BE
//
// # Thread Safety
//
// Frame encoding and decoding are pure functions. Accumulator is owned by a
// single session and is not safe for concurrent use.
package am43
