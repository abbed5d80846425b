package link

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/am43-core/internal/am43"
)

// notifyBuffer is the notification queue depth of a simulated connection.
const notifyBuffer = 8

// SimulatedDrive describes the behaviour of one in-memory AM43 drive.
type SimulatedDrive struct {
	Position uint8 // 0 = open, 100 = closed
	Battery  uint8
	Light    uint8 // light sensor step; reported value is Light*12.5

	// FailConnects makes the next N connection attempts fail.
	FailConnects int

	// Unreachable makes every connection attempt fail.
	Unreachable bool

	// Hidden keeps the drive out of scan results.
	Hidden bool

	// RejectWrites makes writes complete without a write acknowledgment.
	RejectWrites bool

	// NoRead marks the control characteristic as not readable.
	NoRead bool

	// Mute lists report request ids the drive never answers.
	Mute []byte
}

// SimulatedTransport is an in-memory Transport modelling AM43 drives.
// It allows one open connection per drive, like a BLE peripheral.
type SimulatedTransport struct {
	mu       sync.Mutex
	drives   map[Address]*SimulatedDrive
	open     map[Address]*simConn
	attempts map[Address]int
	writes   map[Address][][]byte
	scans    int
	failScan int
}

// Ensure SimulatedTransport implements Transport.
var _ Transport = (*SimulatedTransport)(nil)

// NewSimulatedTransport creates an empty simulated transport.
func NewSimulatedTransport() *SimulatedTransport {
	return &SimulatedTransport{
		drives:   make(map[Address]*SimulatedDrive),
		open:     make(map[Address]*simConn),
		attempts: make(map[Address]int),
		writes:   make(map[Address][][]byte),
	}
}

// Name identifies the transport.
func (s *SimulatedTransport) Name() string {
	return "simulated"
}

// AddDrive registers (or replaces) a drive at addr.
func (s *SimulatedTransport) AddDrive(addr Address, drive SimulatedDrive) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := drive
	d.Mute = slices.Clone(drive.Mute)
	s.drives[addr] = &d
}

// Drive returns a copy of the drive state at addr.
func (s *SimulatedTransport) Drive(addr Address) (SimulatedDrive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drives[addr]
	if !ok {
		return SimulatedDrive{}, false
	}
	return *d, true
}

// ConnectAttempts returns how many connection attempts addr has received.
func (s *SimulatedTransport) ConnectAttempts(addr Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[addr]
}

// Writes returns the frames written to addr, in order.
func (s *SimulatedTransport) Writes(addr Address) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes[addr]))
	for i, f := range s.writes[addr] {
		out[i] = slices.Clone(f)
	}
	return out
}

// OpenConnections returns the number of connections not yet closed.
func (s *SimulatedTransport) OpenConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// FailScans makes the next n scans fail.
func (s *SimulatedTransport) FailScans(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failScan = n
}

// Scans returns how many scans were requested.
func (s *SimulatedTransport) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Connect opens a connection to a simulated drive.
func (s *SimulatedTransport) Connect(ctx context.Context, addr Address) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[addr]++
	d, ok := s.drives[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	if d.Unreachable {
		return nil, fmt.Errorf("%w: %s: out of range", ErrDeviceNotFound, addr)
	}
	if d.FailConnects > 0 {
		d.FailConnects--
		return nil, fmt.Errorf("simulated connect failure: %s", addr)
	}
	if _, busy := s.open[addr]; busy {
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, addr)
	}

	c := &simConn{
		transport: s,
		addr:      addr,
		notify:    make(chan []byte, notifyBuffer),
		readable:  !d.NoRead,
	}
	s.open[addr] = c
	return c, nil
}

// Scan lists the addresses of visible drives in sorted order.
func (s *SimulatedTransport) Scan(ctx context.Context, _ time.Duration) ([]Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans++
	if s.failScan > 0 {
		s.failScan--
		return nil, fmt.Errorf("simulated scan failure")
	}

	var out []Address
	for addr, d := range s.drives {
		if !d.Hidden && !d.Unreachable {
			out = append(out, addr)
		}
	}
	slices.Sort(out)
	return out, nil
}

// handle applies a frame to the drive and returns the notification it
// pushes in reply, if any. Called with s.mu held.
func (s *SimulatedTransport) handle(addr Address, frame []byte) (Ack, []byte, error) {
	d, ok := s.drives[addr]
	if !ok {
		return AckNone, nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	if err := am43.VerifyFrame(frame); err != nil {
		return AckNone, nil, err
	}
	s.writes[addr] = append(s.writes[addr], slices.Clone(frame))

	if d.RejectWrites {
		return AckNone, nil, nil
	}

	id := frame[1]
	payload := frame[3 : len(frame)-1]

	var reply []byte
	switch id {
	case am43.IDMove:
		if len(payload) > 0 && payload[0] <= am43.PositionClosed {
			d.Position = payload[0]
		}
	case am43.IDStop:
	case am43.IDBattery:
		reply = am43.BatteryReport(d.Battery)
	case am43.IDLight:
		reply = am43.LightReport(d.Light)
	case am43.IDPosition:
		reply = am43.PositionReport(d.Position)
	}

	if reply != nil && slices.Contains(d.Mute, id) {
		reply = nil
	}
	return AckWrite, reply, nil
}

// simConn is a connection to a simulated drive.
type simConn struct {
	transport *SimulatedTransport
	addr      Address
	notify    chan []byte
	readable  bool
	closed    bool // guarded by transport.mu
}

func (c *simConn) Address() Address {
	return c.addr
}

func (c *simConn) SupportsRead() bool {
	return c.readable
}

func (c *simConn) Notifications() <-chan []byte {
	return c.notify
}

func (c *simConn) Write(ctx context.Context, frame []byte) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return AckNone, err
	}

	s := c.transport
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return AckNone, ErrClosed
	}

	ack, reply, err := s.handle(c.addr, frame)
	if err != nil {
		return AckNone, err
	}
	if reply != nil && c.readable {
		select {
		case c.notify <- reply:
		default:
		}
	}
	return ack, nil
}

func (c *simConn) Close() error {
	s := c.transport
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true
	if s.open[c.addr] == c {
		delete(s.open, c.addr)
	}
	close(c.notify)
	return nil
}
