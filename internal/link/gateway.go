package link

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/am43-core/internal/infrastructure/mqtt"
)

// Gateway operations.
const (
	opConnect    = "connect"
	opWrite      = "write"
	opDisconnect = "disconnect"
	opScan       = "scan"
)

// defaultRequestTimeout bounds a gateway request when none is configured.
const defaultRequestTimeout = 15 * time.Second

// MQTTClient is the subset of the MQTT client used by MQTTTransport.
// The infrastructure client satisfies it through a small adapter.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
}

// GatewayConfig configures an MQTTTransport.
type GatewayConfig struct {
	// GatewayID names the BLE gateway on the broker.
	GatewayID string

	// Topics builds the gateway topic names.
	Topics mqtt.Topics

	// Service and Characteristic identify the AM43 control characteristic.
	Service        string
	Characteristic string

	// RequestTimeout bounds each request/response exchange.
	// Default: 15 seconds.
	RequestTimeout time.Duration

	// QoS for requests and subscriptions.
	QoS byte
}

// gatewayRequest is published to {prefix}/gateway/{id}/request/{request_id}.
type gatewayRequest struct {
	RequestID      string    `json:"request_id"`
	Op             string    `json:"op"`
	Address        string    `json:"address,omitempty"`
	Service        string    `json:"service,omitempty"`
	Characteristic string    `json:"characteristic,omitempty"`
	Data           string    `json:"data,omitempty"`
	TimeoutMS      int64     `json:"timeout_ms,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// gatewayResponse arrives on {prefix}/gateway/{id}/response/{request_id}.
type gatewayResponse struct {
	RequestID string   `json:"request_id"`
	OK        bool     `json:"ok"`
	Ack       string   `json:"ack,omitempty"`
	Error     string   `json:"error,omitempty"`
	Readable  *bool    `json:"readable,omitempty"`
	Devices   []string `json:"devices,omitempty"`
}

// gatewayNotification arrives on {prefix}/gateway/{id}/notify/{address}.
type gatewayNotification struct {
	Address string `json:"address"`
	Data    string `json:"data"`
}

// MQTTTransport reaches drives through a BLE gateway listening on the
// MQTT broker. Each operation is a request correlated by a uuid and
// answered on the gateway's response topic.
type MQTTTransport struct {
	client MQTTClient
	cfg    GatewayConfig

	started atomic.Bool

	mu      sync.Mutex
	pending map[string]chan gatewayResponse
	conns   map[Address]*gatewayConn

	logger   Logger
	loggerMu sync.RWMutex

	requestsTx      atomic.Uint64
	requestTimeouts atomic.Uint64
	notificationsRx atomic.Uint64
	notifyDropped   atomic.Uint64
}

// Ensure MQTTTransport implements Transport.
var _ Transport = (*MQTTTransport)(nil)

// NewMQTTTransport creates a gateway transport. Call Start before use.
func NewMQTTTransport(client MQTTClient, cfg GatewayConfig) *MQTTTransport {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &MQTTTransport{
		client:  client,
		cfg:     cfg,
		pending: make(map[string]chan gatewayResponse),
		conns:   make(map[Address]*gatewayConn),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the transport.
func (t *MQTTTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	defer t.loggerMu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	t.logger = logger
}

func (t *MQTTTransport) log() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

// Name identifies the transport.
func (t *MQTTTransport) Name() string {
	return "mqtt:" + t.cfg.GatewayID
}

// Start subscribes to the gateway's response and notification topics.
func (t *MQTTTransport) Start() error {
	topics := t.cfg.Topics
	if err := t.client.Subscribe(topics.AllGatewayResponses(t.cfg.GatewayID), t.cfg.QoS, t.handleResponse); err != nil {
		return fmt.Errorf("subscribing to gateway responses: %w", err)
	}
	if err := t.client.Subscribe(topics.AllGatewayNotifications(t.cfg.GatewayID), t.cfg.QoS, t.handleNotification); err != nil {
		return fmt.Errorf("subscribing to gateway notifications: %w", err)
	}
	t.started.Store(true)
	t.log().Info("BLE gateway transport started", "gateway", t.cfg.GatewayID)
	return nil
}

// Stop unsubscribes from the gateway topics and closes every open
// connection locally.
func (t *MQTTTransport) Stop() error {
	if !t.started.Swap(false) {
		return nil
	}

	t.mu.Lock()
	conns := make([]*gatewayConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	for _, c := range conns {
		c.closeLocal()
	}

	topics := t.cfg.Topics
	var errs []string
	if err := t.client.Unsubscribe(topics.AllGatewayResponses(t.cfg.GatewayID)); err != nil {
		errs = append(errs, err.Error())
	}
	if err := t.client.Unsubscribe(topics.AllGatewayNotifications(t.cfg.GatewayID)); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("stopping gateway transport: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GatewayStats holds operational statistics for the gateway transport.
type GatewayStats struct {
	RequestsTx      uint64
	RequestTimeouts uint64
	NotificationsRx uint64
	NotifyDropped   uint64 // Notifications for closed links or full queues
	OpenConns       int
	Started         bool
}

// Stats returns current operational statistics.
func (t *MQTTTransport) Stats() GatewayStats {
	t.mu.Lock()
	open := len(t.conns)
	t.mu.Unlock()
	return GatewayStats{
		RequestsTx:      t.requestsTx.Load(),
		RequestTimeouts: t.requestTimeouts.Load(),
		NotificationsRx: t.notificationsRx.Load(),
		NotifyDropped:   t.notifyDropped.Load(),
		OpenConns:       open,
		Started:         t.started.Load(),
	}
}

// Connect asks the gateway to connect to addr and enable notifications.
func (t *MQTTTransport) Connect(ctx context.Context, addr Address) (Conn, error) {
	t.mu.Lock()
	_, busy := t.conns[addr]
	t.mu.Unlock()
	if busy {
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, addr)
	}

	resp, err := t.request(ctx, gatewayRequest{
		Op:             opConnect,
		Address:        addr.String(),
		Service:        t.cfg.Service,
		Characteristic: t.cfg.Characteristic,
	}, t.cfg.RequestTimeout)
	if err != nil {
		if errors.Is(err, ErrGatewayTimeout) || ctx.Err() != nil {
			t.abandon(addr)
		}
		return nil, err
	}

	readable := true
	if resp.Readable != nil {
		readable = *resp.Readable
	}
	c := &gatewayConn{
		transport: t,
		addr:      addr,
		notify:    make(chan []byte, notifyBuffer),
		readable:  readable,
	}

	t.mu.Lock()
	t.conns[addr] = c
	t.mu.Unlock()
	return c, nil
}

// Scan asks the gateway for advertising peripherals.
func (t *MQTTTransport) Scan(ctx context.Context, timeout time.Duration) ([]Address, error) {
	resp, err := t.request(ctx, gatewayRequest{
		Op:        opScan,
		Service:   t.cfg.Service,
		TimeoutMS: timeout.Milliseconds(),
	}, timeout+t.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	out := make([]Address, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		addr, err := ParseAddress(d)
		if err != nil {
			t.log().Warn("gateway reported invalid address", "address", d)
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

// request publishes req and waits for the correlated response.
func (t *MQTTTransport) request(ctx context.Context, req gatewayRequest, timeout time.Duration) (gatewayResponse, error) {
	if !t.started.Load() {
		return gatewayResponse{}, ErrNotStarted
	}

	req.RequestID = uuid.NewString()
	req.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(req)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("marshalling gateway request: %w", err)
	}

	ch := make(chan gatewayResponse, 1)
	t.mu.Lock()
	t.pending[req.RequestID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.RequestID)
		t.mu.Unlock()
	}()

	topic := t.cfg.Topics.GatewayRequest(t.cfg.GatewayID, req.RequestID)
	if err := t.client.Publish(topic, payload, t.cfg.QoS, false); err != nil {
		return gatewayResponse{}, fmt.Errorf("publishing %s request: %w", req.Op, err)
	}
	t.requestsTx.Add(1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.OK {
			return resp, fmt.Errorf("%w: %s %s: %s", ErrGatewayRejected, req.Op, req.Address, resp.Error)
		}
		return resp, nil
	case <-timer.C:
		t.requestTimeouts.Add(1)
		return gatewayResponse{}, fmt.Errorf("%w: %s %s after %v", ErrGatewayTimeout, req.Op, req.Address, timeout)
	case <-ctx.Done():
		return gatewayResponse{}, ctx.Err()
	}
}

// abandon asks the gateway to drop a connection whose connect request went
// unanswered. The gateway may still complete it, which would refuse the
// next attempt to the same drive. No response is awaited.
func (t *MQTTTransport) abandon(addr Address) {
	req := gatewayRequest{
		RequestID: uuid.NewString(),
		Op:        opDisconnect,
		Address:   addr.String(),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return
	}
	topic := t.cfg.Topics.GatewayRequest(t.cfg.GatewayID, req.RequestID)
	if err := t.client.Publish(topic, payload, t.cfg.QoS, false); err != nil {
		t.log().Warn("abandoning gateway connection failed", "address", addr, "error", err)
		return
	}
	t.requestsTx.Add(1)
	t.log().Debug("abandoned unanswered gateway connection", "address", addr)
}

// handleResponse routes a gateway response to its waiting request.
func (t *MQTTTransport) handleResponse(topic string, payload []byte) error {
	var resp gatewayResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing gateway response on %s: %w", topic, err)
	}
	if resp.RequestID == "" {
		resp.RequestID = topic[strings.LastIndex(topic, "/")+1:]
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.RequestID]
	t.mu.Unlock()
	if !ok {
		t.log().Debug("response for unknown request", "request_id", resp.RequestID)
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}

// handleNotification forwards a drive notification to its open connection.
func (t *MQTTTransport) handleNotification(topic string, payload []byte) error {
	var n gatewayNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return fmt.Errorf("parsing gateway notification on %s: %w", topic, err)
	}
	if n.Address == "" {
		n.Address = topic[strings.LastIndex(topic, "/")+1:]
	}

	addr, err := ParseAddress(n.Address)
	if err != nil {
		return err
	}
	frame, err := hex.DecodeString(n.Data)
	if err != nil {
		return fmt.Errorf("decoding notification data from %s: %w", addr, err)
	}

	t.mu.Lock()
	c, ok := t.conns[addr]
	t.mu.Unlock()
	if !ok || !c.deliver(frame) {
		t.notifyDropped.Add(1)
		return nil
	}
	t.notificationsRx.Add(1)
	return nil
}

// gatewayConn is a drive connection held by the BLE gateway.
type gatewayConn struct {
	transport *MQTTTransport
	addr      Address
	readable  bool

	mu     sync.Mutex
	notify chan []byte
	closed bool
}

func (c *gatewayConn) Address() Address {
	return c.addr
}

func (c *gatewayConn) SupportsRead() bool {
	return c.readable
}

func (c *gatewayConn) Notifications() <-chan []byte {
	return c.notify
}

func (c *gatewayConn) Write(ctx context.Context, frame []byte) (Ack, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return AckNone, ErrClosed
	}

	t := c.transport
	resp, err := t.request(ctx, gatewayRequest{
		Op:             opWrite,
		Address:        c.addr.String(),
		Service:        t.cfg.Service,
		Characteristic: t.cfg.Characteristic,
		Data:           hex.EncodeToString(frame),
	}, t.cfg.RequestTimeout)
	if err != nil {
		return AckNone, err
	}
	return Ack(resp.Ack), nil
}

// Close asks the gateway to disconnect. The local side is released even
// when the gateway does not answer.
func (c *gatewayConn) Close() error {
	if !c.closeLocal() {
		return ErrClosed
	}

	t := c.transport
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.RequestTimeout)
	defer cancel()
	_, err := t.request(ctx, gatewayRequest{Op: opDisconnect, Address: c.addr.String()}, t.cfg.RequestTimeout)
	return err
}

// closeLocal releases the connection without talking to the gateway.
// It reports whether this call closed it.
func (c *gatewayConn) closeLocal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.notify)

	t := c.transport
	t.mu.Lock()
	if t.conns[c.addr] == c {
		delete(t.conns, c.addr)
	}
	t.mu.Unlock()
	return true
}

// deliver queues a notification frame. It reports false when the
// connection is closed or its queue is full.
func (c *gatewayConn) deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.notify <- frame:
		return true
	default:
		return false
	}
}
