package link

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Address identifies a peripheral on the wireless transport.
// It is the hardware address in lower-case, colon separated form
// (e.g. "02:4e:30:1a:c4:9f").
type Address string

// String returns the address text.
func (a Address) String() string {
	return string(a)
}

// macOctets is the number of octets in a hardware address.
const macOctets = 6

// ParseAddress normalises a hardware address.
// Colons, dashes and upper-case hex digits are accepted.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, "-", ":")

	parts := strings.Split(s, ":")
	if len(parts) != macOctets {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	for _, p := range parts {
		if len(p) != 2 || !isHex(p[0]) || !isHex(p[1]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
	}
	return Address(s), nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// Ack is the acknowledgment a transport reports for a characteristic write.
type Ack string

const (
	// AckWrite is a write response from the peripheral: the only
	// acknowledgment that counts as a successful command.
	AckWrite Ack = "wr"

	// AckNone means the transport saw no response.
	AckNone Ack = ""
)

// Conn is an open connection to one peripheral.
type Conn interface {
	// Address returns the peer address.
	Address() Address

	// Write sends a frame to the control characteristic and reports the
	// acknowledgment the transport received.
	Write(ctx context.Context, frame []byte) (Ack, error)

	// Notifications delivers frames pushed by the peripheral. The channel
	// is closed when the connection closes.
	Notifications() <-chan []byte

	// Close releases the connection.
	Close() error
}

// ReadSupporter is implemented by connections that know whether the control
// characteristic supports reads (and therefore status notifications).
// Connections that do not implement it are assumed to support reads.
type ReadSupporter interface {
	SupportsRead() bool
}

// Transport is the wireless capability used to reach drives.
type Transport interface {
	// Name identifies the transport in logs and health output.
	Name() string

	// Connect opens a connection to one peripheral. A single attempt.
	Connect(ctx context.Context, addr Address) (Conn, error)

	// Scan lists the addresses of advertising peripherals.
	Scan(ctx context.Context, timeout time.Duration) ([]Address, error)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
