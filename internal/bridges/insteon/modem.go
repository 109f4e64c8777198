package insteon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial.v1"
)

// Default modem settings.
const (
	// DefaultBaudRate is the fixed speed of PowerLinc modems.
	DefaultBaudRate = 19200

	// defaultResponseTimeout bounds the wait for a device reply.
	defaultResponseTimeout = 3 * time.Second

	// echoTimeout bounds the wait for the modem to echo a sent frame.
	echoTimeout = 1 * time.Second

	// notificationQueueSize is the buffer between the reader and the
	// notification worker.
	notificationQueueSize = 100
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ModemConfig holds serial modem settings.
type ModemConfig struct {
	// Port is the serial device, e.g. "/dev/ttyUSB0".
	Port string

	// BaudRate defaults to 19200.
	BaudRate int

	// ResponseTimeout bounds the wait for a device reply.
	// Default: 3 seconds.
	ResponseTimeout time.Duration
}

// ModemStats holds operational statistics.
type ModemStats struct {
	MessagesTx      uint64
	MessagesRx      uint64
	MessagesDropped uint64 // notifications dropped due to a full queue
	ErrorsTotal     uint64
	LastActivity    time.Time
	Connected       bool
}

// Connector is the modem as seen by the bridge.
// This allows mocking the modem in tests.
type Connector interface {
	Transport
	SetOnNotification(callback func(Address, Notification))
	IsConnected() bool
	Stats() ModemStats
	Close() error
}

// Ensure Modem implements Connector.
var _ Connector = (*Modem)(nil)

// Modem drives a PowerLinc modem over a serial link.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - One command is in flight at a time; concurrent SendCommand calls queue
//     on a mutex.
//   - Notifications are delivered by a single worker goroutine, in the order
//     they were received.
type Modem struct {
	cfg  ModemConfig
	port io.ReadWriteCloser

	connected atomic.Bool

	// sendMu is held for the whole of a SendCommand call.
	sendMu sync.Mutex

	pending   *pendingCommand
	late      *lateAck
	pendingMu sync.Mutex

	onNotification func(Address, Notification)
	callbackMu     sync.RWMutex
	queue          chan inboundNotification

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	messagesTx      atomic.Uint64
	messagesRx      atomic.Uint64
	messagesDropped atomic.Uint64
	errorsTotal     atomic.Uint64
	lastActivity    atomic.Int64
}

// pendingCommand collects the reply to the command in flight.
type pendingCommand struct {
	addr         Address
	cmd1         byte
	wantExtended bool

	// quiet keeps the reply's direct ack out of the notification stream.
	// Status replies carry a database delta in cmd1 and extended set/get
	// acks echo 0x2E, so neither describes a light change.
	quiet bool

	echo chan byte
	done chan struct{}

	// Guarded by Modem.pendingMu.
	resp     Response
	nak      bool
	finished bool
}

// lateAck is the direct ack still owed by a quiet command that gave up
// waiting. Guarded by Modem.pendingMu.
type lateAck struct {
	addr     Address
	cmd1     byte
	anyCmd1  bool // status acks carry a database delta in cmd1
	deadline time.Time
}

type inboundNotification struct {
	from Address
	n    Notification
}

// OpenModem opens the serial port and starts reading from it.
//
// Parameters:
//   - cfg: Serial settings
//
// Returns:
//   - *Modem: Running modem
//   - error: ErrConnectionFailed if the port cannot be opened
func OpenModem(cfg ModemConfig) (*Modem, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnectionFailed, cfg.Port, err)
	}

	return NewModem(port, cfg), nil
}

// NewModem wraps an already open byte stream (a serial port, or a pipe in
// tests) and starts the reader and notification worker.
func NewModem(port io.ReadWriteCloser, cfg ModemConfig) *Modem {
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = defaultResponseTimeout
	}

	m := &Modem{
		cfg:   cfg,
		port:  port,
		queue: make(chan inboundNotification, notificationQueueSize),
		done:  make(chan struct{}),
	}
	m.connected.Store(true)
	m.lastActivity.Store(time.Now().Unix())

	m.wg.Add(2)
	go m.readLoop()
	go m.notificationWorker()

	return m
}

// SendCommand writes cmd to addr and waits for the reply.
//
// Standard commands complete on the device's direct ack. Commands with
// ExpectExtendedReply complete on the extended reply that follows. If the
// response timeout passes first, whatever arrived so far is returned; an
// empty reply yields ErrTimeout.
//
// Parameters:
//   - ctx: Context for cancellation
//   - addr: Target device
//   - cmd: Command descriptor
//
// Returns:
//   - *Response: Reply parts received
//   - error: ErrNotConnected, ErrModemNAK, ErrDeviceNAK, ErrTimeout, or a write error
func (m *Modem) SendCommand(ctx context.Context, addr Address, cmd Command) (*Response, error) {
	if !m.IsConnected() {
		return nil, ErrNotConnected
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	p := &pendingCommand{
		addr:         addr,
		cmd1:         cmd.Cmd1,
		wantExtended: cmd.ExpectExtendedReply,
		quiet:        cmd.Extended || cmd.Cmd1 == CmdStatusRequest,
		echo:         make(chan byte, 1),
		done:         make(chan struct{}),
	}
	m.pendingMu.Lock()
	m.pending = p
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		m.pending = nil
		if p.quiet && p.resp.Standard == nil && !p.nak {
			m.late = &lateAck{
				addr:     p.addr,
				cmd1:     p.cmd1,
				anyCmd1:  p.cmd1 == CmdStatusRequest,
				deadline: time.Now().Add(m.cfg.ResponseTimeout),
			}
		}
		m.pendingMu.Unlock()
	}()

	if _, err := m.port.Write(EncodeSendFrame(addr, cmd)); err != nil {
		m.errorsTotal.Add(1)
		return nil, fmt.Errorf("write to modem: %w", err)
	}
	m.messagesTx.Add(1)
	m.lastActivity.Store(time.Now().Unix())

	select {
	case ack := <-p.echo:
		if ack != modemACK {
			return nil, ErrModemNAK
		}
	case <-time.After(echoTimeout):
		return nil, fmt.Errorf("%w: no echo from modem", ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrNotConnected
	}

	timer := time.NewTimer(m.cfg.ResponseTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrNotConnected
	}

	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	if p.nak {
		return nil, ErrDeviceNAK
	}
	if p.resp.Standard == nil && p.resp.Extended == nil {
		return nil, ErrTimeout
	}
	resp := p.resp
	return &resp, nil
}

// SetOnNotification sets the callback for broadcasts and direct acks.
//
// The callback runs on a single worker goroutine, one notification at a
// time, in arrival order. Panics in the callback are recovered and logged.
func (m *Modem) SetOnNotification(callback func(Address, Notification)) {
	m.callbackMu.Lock()
	m.onNotification = callback
	m.callbackMu.Unlock()
}

// SetLogger sets the logger for this modem.
func (m *Modem) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// IsConnected returns true while the serial link is usable.
func (m *Modem) IsConnected() bool {
	return m.connected.Load()
}

// Stats returns current operational statistics.
func (m *Modem) Stats() ModemStats {
	return ModemStats{
		MessagesTx:      m.messagesTx.Load(),
		MessagesRx:      m.messagesRx.Load(),
		MessagesDropped: m.messagesDropped.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		LastActivity:    time.Unix(m.lastActivity.Load(), 0),
		Connected:       m.IsConnected(),
	}
}

// Close stops the reader and worker and closes the port.
// Safe to call multiple times.
func (m *Modem) Close() error {
	var err error
	m.doneOnce.Do(func() {
		close(m.done)
		m.connected.Store(false)
		err = m.port.Close()
		m.wg.Wait()
		m.logInfo("modem closed")
	})
	return err
}

func (m *Modem) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// readLoop reads frames until the port fails or Close is called.
func (m *Modem) readLoop() {
	defer m.wg.Done()

	fr := newFrameReader(m.port)
	for {
		f, err := fr.next()
		if err != nil {
			if m.isClosed() {
				return
			}
			if errors.Is(err, ErrInvalidFrame) {
				m.errorsTotal.Add(1)
				m.logDebug("skipping frame", "error", err)
				continue
			}
			m.errorsTotal.Add(1)
			m.connected.Store(false)
			m.logError("modem read failed", err)
			return
		}

		m.lastActivity.Store(time.Now().Unix())
		m.handleFrame(f)
	}
}

// handleFrame routes one frame to the pending command and/or the
// notification queue.
func (m *Modem) handleFrame(f frame) {
	switch f.code {
	case codeSendMessage:
		m.pendingMu.Lock()
		p := m.pending
		m.pendingMu.Unlock()
		if p != nil {
			select {
			case p.echo <- f.ack:
			default:
			}
		}
	case codeStandardReceived, codeExtendedReceived:
		m.messagesRx.Add(1)
		m.handleMessage(f.msg)
	default:
		m.logDebug("ignoring modem frame", "code", fmt.Sprintf("0x%02X", f.code))
	}
}

func (m *Modem) handleMessage(msg *Message) {
	if m.completePending(msg) || m.dropLateAck(msg) {
		return
	}

	switch msg.Type() {
	case MsgAllLinkBroadcast:
		m.enqueue(msg.From, Notification{
			Origin: OriginBroadcast,
			Group:  int(msg.To[2]),
			Cmd1:   msg.Cmd1,
			Cmd2:   msg.Cmd2,
		})
	case MsgDirectAck:
		if msg.IsExtended() {
			return
		}
		m.enqueue(msg.From, Notification{
			Origin: OriginDirectAck,
			Cmd1:   msg.Cmd1,
			Cmd2:   msg.Cmd2,
		})
	case MsgAllLinkCleanup:
		// Direct repeat of a broadcast already delivered; cmd2 holds the group.
		m.logDebug("ignoring all-link cleanup", "message", msg.String())
	default:
		m.logDebug("ignoring message", "message", msg.String())
	}
}

// completePending attaches msg to the command in flight when it is the
// reply the command is waiting for. It reports whether msg was consumed and
// must not be delivered as a notification.
func (m *Modem) completePending(msg *Message) bool {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	p := m.pending
	if p == nil || p.finished || msg.From != p.addr {
		return false
	}

	switch msg.Type() {
	case MsgDirectNAK:
		p.nak = true
		p.finish()
		return true
	case MsgDirectAck, MsgDirect:
		if msg.IsExtended() {
			if p.wantExtended {
				p.resp.Extended = msg
				p.finish()
				return true
			}
			return false
		}
		if msg.Type() != MsgDirectAck || p.resp.Standard != nil {
			return false
		}
		p.resp.Standard = msg
		if !p.wantExtended {
			p.finish()
		}
		return p.quiet
	}
	return false
}

// dropLateAck reports whether msg is the overdue ack of a quiet command
// that already timed out. The ack is consumed once; after the grace window
// acks are delivered normally.
func (m *Modem) dropLateAck(msg *Message) bool {
	if msg.Type() != MsgDirectAck || msg.IsExtended() {
		return false
	}

	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()

	l := m.late
	if l == nil {
		return false
	}
	if time.Now().After(l.deadline) {
		m.late = nil
		return false
	}
	if msg.From != l.addr || (!l.anyCmd1 && msg.Cmd1 != l.cmd1) {
		return false
	}

	m.late = nil
	m.logDebug("dropping late ack", "message", msg.String())
	return true
}

func (p *pendingCommand) finish() {
	p.finished = true
	close(p.done)
}

// enqueue hands a notification to the worker, dropping it if the queue is full.
func (m *Modem) enqueue(from Address, n Notification) {
	m.callbackMu.RLock()
	hasCallback := m.onNotification != nil
	m.callbackMu.RUnlock()
	if !hasCallback {
		return
	}

	select {
	case m.queue <- inboundNotification{from: from, n: n}:
	default:
		m.messagesDropped.Add(1)
		m.errorsTotal.Add(1)
		m.logError("notification queue full, dropping message", nil)
	}
}

// notificationWorker delivers queued notifications one at a time.
func (m *Modem) notificationWorker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case item := <-m.queue:
			m.callbackMu.RLock()
			callback := m.onNotification
			m.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							m.logError("notification callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(item.from, item.n)
				}()
			}
		}
	}
}

func (m *Modem) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Modem) logInfo(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (m *Modem) logDebug(msg string, keysAndValues ...any) {
	if logger := m.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (m *Modem) logError(msg string, err error) {
	if logger := m.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
