package insteon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds one MQTT command or request, including the
	// modem queue wait.
	commandTimeout = 10 * time.Second

	// workQueueSize is the buffer of MQTT commands and requests awaiting the
	// bridge worker.
	workQueueSize = 64

	// defaultHistoryLimit is the read_history page size when none is given.
	defaultHistoryLimit = 20

	// maxHistoryLimit caps read_history pages.
	maxHistoryLimit = 500
)

// Bridge connects Insteon lights on a PowerLinc modem to MQTT.
// It handles:
//   - Commands and requests from Core, executed through per-device Light handles
//   - Light events, published as events and retained state
//   - Event history and level metrics (both optional)
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *Config
	mqtt    MQTTClient
	modem   Connector
	health  *HealthReporter
	history EventRecorder // optional
	metrics MetricsWriter // optional

	lights   map[Address]*managedLight
	byID     map[string]*managedLight
	lightsMu sync.RWMutex

	// Last published state per device, for change detection.
	stateCache   map[string]map[string]any
	stateCacheMu sync.Mutex

	// MQTT work is executed in arrival order by one worker, since the modem
	// handles one command at a time anyway.
	work chan func()

	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// managedLight is a configured device and its handle.
type managedLight struct {
	DeviceMapping
	light       *Light
	unsubscribe func()
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// EventRecord is one light event as stored in the history log.
type EventRecord struct {
	ID        string    `json:"id,omitempty"`
	DeviceID  string    `json:"device_id"`
	Address   string    `json:"address"`
	Event     string    `json:"event"`
	Origin    string    `json:"origin"`
	Group     *int      `json:"group,omitempty"`
	Level     *int      `json:"level,omitempty"`
	Cmd1      byte      `json:"cmd1"`
	Cmd2      byte      `json:"cmd2"`
	Timestamp time.Time `json:"timestamp"`
}

// EventRecorder persists light events.
// This interface is satisfied by the history store (via adapter in main.go).
// It is optional: if nil, events are only published.
type EventRecorder interface {
	RecordEvent(ctx context.Context, rec EventRecord) error
	RecentEvents(ctx context.Context, deviceID string, limit int) ([]EventRecord, error)
}

// MetricsWriter receives time-series points. Writes are fire-and-forget.
// This interface is satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Modem is the PowerLinc modem connection.
	Modem Connector

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger

	// History is an optional event log.
	History EventRecorder

	// Metrics is an optional time-series writer.
	Metrics MetricsWriter
}

// NewBridge creates a new bridge instance and a Light for every configured
// device. Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Modem == nil {
		return nil, fmt.Errorf("modem is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        opts.Config,
		mqtt:       opts.MQTTClient,
		modem:      opts.Modem,
		history:    opts.History,
		metrics:    opts.Metrics,
		lights:     make(map[Address]*managedLight),
		byID:       make(map[string]*managedLight),
		stateCache: make(map[string]map[string]any),
		work:       make(chan func(), workQueueSize),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	for _, dev := range opts.Config.BuildDeviceIndex() {
		if err := b.addLight(dev); err != nil {
			ctxCancel()
			return nil, fmt.Errorf("device %s: %w", dev.DeviceID, err)
		}
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   version,
		Port:      opts.Config.Modem.Port,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Modem:     opts.Modem,
	})
	b.health.SetDeviceCount(len(b.lights))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

func (b *Bridge) addLight(dev DeviceMapping) error {
	light, err := NewLight(LightOptions{
		Address:   dev.Address,
		Transport: b.modem,
		EmitOnAck: dev.EmitOnAck,
		Logger:    b.logger,
	})
	if err != nil {
		return err
	}

	ml := &managedLight{DeviceMapping: dev, light: light}
	ml.unsubscribe = light.Subscribe(func(ev Event) {
		b.handleLightEvent(ml, ev)
	})

	b.lightsMu.Lock()
	b.lights[dev.Address] = ml
	b.byID[dev.DeviceID] = ml
	b.lightsMu.Unlock()
	return nil
}

// Light returns the handle for a configured device.
func (b *Bridge) Light(deviceID string) (*Light, bool) {
	b.lightsMu.RLock()
	defer b.lightsMu.RUnlock()
	ml, ok := b.byID[deviceID]
	if !ok {
		return nil, false
	}
	return ml.light, true
}

// Start begins bridge operation.
// This subscribes to MQTT topics, routes modem notifications to the lights,
// and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.modem.SetOnNotification(b.handleNotification)

	b.wg.Add(1)
	go b.workLoop()

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)

	b.lightsMu.RLock()
	deviceCount := len(b.lights)
	b.lightsMu.RUnlock()

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", deviceCount)

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.modem.SetOnNotification(nil)

		b.health.Stop()
		b.wg.Wait()

		b.lightsMu.Lock()
		for _, ml := range b.lights {
			ml.unsubscribe()
		}
		b.lightsMu.Unlock()

		b.logInfo("bridge stopped")
	})
}

func (b *Bridge) isStopping() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// enqueue hands work to the bridge worker. Work arriving after Stop or while
// the queue is full is dropped.
func (b *Bridge) enqueue(fn func()) bool {
	if b.isStopping() {
		return false
	}
	select {
	case b.work <- fn:
		return true
	default:
		return false
	}
}

func (b *Bridge) workLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case fn := <-b.work:
			fn()
		}
	}
}

// ─── Inbound notifications ──────────────────────────────────────────

// handleNotification routes a modem notification to the light it belongs to.
func (b *Bridge) handleNotification(from Address, n Notification) {
	b.lightsMu.RLock()
	ml, ok := b.lights[from]
	b.lightsMu.RUnlock()

	if !ok {
		b.logDebug("notification from unconfigured device",
			"address", from.String(),
			"origin", n.Origin.String(),
			"cmd1", fmt.Sprintf("0x%02X", n.Cmd1))
		return
	}

	ml.light.HandleNotification(n)
}

// handleLightEvent publishes, records and measures one light event.
func (b *Bridge) handleLightEvent(ml *managedLight, ev Event) {
	b.publishEvent(ml, ev)
	b.recordEvent(ml, ev)
	b.writeEventMetric(ml, ev)

	switch ev.Kind {
	case EventTurnOn:
		if ev.Level != nil {
			b.publishLevel(ml, *ev.Level)
		} else {
			b.publishState(ml, map[string]any{"on": true})
		}
	case EventTurnOnFast:
		b.publishLevel(ml, maxLevel)
	case EventTurnOff, EventTurnOffFast:
		b.publishLevel(ml, 0)
	case EventBrightened, EventDimmed:
		// The event carries no level; ask the device once the ramp is done.
		if !b.enqueue(func() { b.refreshLevel(ml) }) {
			b.logDebug("level refresh skipped", "device_id", ml.DeviceID)
		}
	}
}

// refreshLevel queries the current level and publishes it.
func (b *Bridge) refreshLevel(ml *managedLight) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	level, ok := ml.light.QueryLevel(ctx)
	if !ok {
		return
	}
	b.publishLevel(ml, level)
}

func (b *Bridge) publishLevel(ml *managedLight, level int) {
	b.publishState(ml, map[string]any{"on": level > 0, "level": level})
	if b.metrics != nil {
		b.metrics.WriteDeviceMetric(ml.DeviceID, "level", float64(level))
	}
}

// publishState publishes retained state when it differs from the last one.
func (b *Bridge) publishState(ml *managedLight, state map[string]any) {
	if b.stateUnchanged(ml.DeviceID, state) {
		return
	}

	payload, err := json.Marshal(NewStateMessage(ml.DeviceID, ml.Address, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	if err := b.mqtt.Publish(StateTopic(ml.Address), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// stateUnchanged compares against the cache and updates it.
func (b *Bridge) stateUnchanged(deviceID string, state map[string]any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	prev, ok := b.stateCache[deviceID]
	if ok && len(prev) == len(state) {
		same := true
		for k, v := range state {
			if pv, ok := prev[k]; !ok || pv != v {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	cached := make(map[string]any, len(state))
	for k, v := range state {
		cached[k] = v
	}
	b.stateCache[deviceID] = cached
	return false
}

func (b *Bridge) publishEvent(ml *managedLight, ev Event) {
	payload, err := json.Marshal(NewEventMessage(ml.DeviceID, ml.Address, ev))
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}

	if err := b.mqtt.Publish(EventTopic(ml.Address), payload, 1, false); err != nil {
		b.logError("failed to publish event", err)
	}
}

func (b *Bridge) recordEvent(ml *managedLight, ev Event) {
	if b.history == nil {
		return
	}

	rec := EventRecord{
		DeviceID:  ml.DeviceID,
		Address:   ml.Address.String(),
		Event:     string(ev.Kind),
		Origin:    eventOrigin(ev).String(),
		Group:     ev.Group,
		Level:     ev.Level,
		Cmd1:      ev.Cmd1,
		Cmd2:      ev.Cmd2,
		Timestamp: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if err := b.history.RecordEvent(ctx, rec); err != nil {
		b.logError("failed to record event", err)
	}
}

func (b *Bridge) writeEventMetric(ml *managedLight, ev Event) {
	if b.metrics == nil || ev.Kind == EventCommand {
		return
	}
	b.metrics.WritePoint("insteon_event",
		map[string]string{
			"device_id": ml.DeviceID,
			"event":     string(ev.Kind),
			"origin":    eventOrigin(ev).String(),
		},
		map[string]interface{}{"count": 1},
	)
}

func eventOrigin(ev Event) Origin {
	if ev.Group != nil {
		return OriginBroadcast
	}
	return OriginDirectAck
}

// ─── MQTT commands ──────────────────────────────────────────────────

// handleMQTTMessage routes incoming MQTT messages to the worker.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	var fn func()
	switch parts[1] {
	case "command":
		fn = func() { b.handleCommand(topic, payload) }
	case "request":
		fn = func() { b.handleRequest(payload) }
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
		return
	}

	if !b.enqueue(fn) {
		b.logError("bridge busy, dropping message", fmt.Errorf("topic: %s", topic))
	}
}

// handleCommand executes a command message and acknowledges it.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	ml, ok := b.resolveCommandTarget(topic, cmd.DeviceID)
	if !ok {
		addr, _ := AddressFromTopic(topic)
		b.publishAckError(cmd, addr, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", cmd.DeviceID))
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = ml.DeviceID
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	resp, err := b.executeCommand(ctx, ml.light, cmd)
	if err != nil {
		code := ErrCodeInvalidParameters
		if errors.Is(err, errUnknownCommand) {
			code = ErrCodeInvalidCommand
		}
		b.publishAckError(cmd, ml.Address, code, err.Error())
		return
	}
	if resp == nil {
		b.publishAckError(cmd, ml.Address, ErrCodeNoResponse, "device did not respond")
		return
	}

	b.publishAck(cmd, ml.Address, AckAccepted)
}

// resolveCommandTarget finds the device by topic address, falling back to
// the device ID in the payload.
func (b *Bridge) resolveCommandTarget(topic, deviceID string) (*managedLight, bool) {
	b.lightsMu.RLock()
	defer b.lightsMu.RUnlock()

	if addr, err := AddressFromTopic(topic); err == nil {
		if ml, ok := b.lights[addr]; ok {
			return ml, true
		}
	}
	ml, ok := b.byID[deviceID]
	return ml, ok
}

var errUnknownCommand = errors.New("unknown command")

// executeCommand runs one command against a light.
//
// Returns:
//   - *Response: Device reply, nil when the device did not answer
//   - error: Invalid command or parameters (nothing was sent)
func (b *Bridge) executeCommand(ctx context.Context, light *Light, cmd CommandMessage) (*Response, error) {
	params := cmd.Parameters

	switch cmd.Command {
	case CommandOn:
		var opts TurnOnOptions
		if _, ok := params["level"]; ok {
			level, err := levelParam(params)
			if err != nil {
				return nil, err
			}
			opts.Level = &level
		}
		rate, err := rateParam(params, false)
		if err != nil {
			return nil, err
		}
		opts.Rate = rate
		return light.TurnOn(ctx, opts), nil

	case CommandOff:
		rate, err := rateParam(params, false)
		if err != nil {
			return nil, err
		}
		return light.TurnOff(ctx, TurnOffOptions{Rate: rate}), nil

	case CommandOnFast:
		return light.TurnOnFast(ctx), nil
	case CommandOffFast:
		return light.TurnOffFast(ctx), nil
	case CommandBrighten:
		return light.Brighten(ctx), nil
	case CommandDim:
		return light.Dim(ctx), nil

	case CommandSetLevel:
		level, err := levelParam(params)
		if err != nil {
			return nil, err
		}
		return light.SetLevel(ctx, level), nil

	case CommandSetRampRate:
		button, err := buttonParam(params)
		if err != nil {
			return nil, err
		}
		rate, err := rateParam(params, true)
		if err != nil {
			return nil, err
		}
		return light.SetRampRate(ctx, button, *rate), nil

	case CommandSetOnLevel:
		button, err := buttonParam(params)
		if err != nil {
			return nil, err
		}
		level, err := levelParam(params)
		if err != nil {
			return nil, err
		}
		return light.SetOnLevel(ctx, button, level), nil

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownCommand, cmd.Command)
	}
}

// levelParam reads a required 0-100 "level" parameter.
func levelParam(params map[string]any) (int, error) {
	v, ok := params["level"]
	if !ok {
		return 0, fmt.Errorf("missing 'level' parameter")
	}
	level, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("'level' must be a number")
	}
	if level < 0 || level > maxLevel {
		return 0, fmt.Errorf("'level' must be 0-100, got %.2f", level)
	}
	return int(math.Round(level)), nil
}

// rateParam reads the "rate" parameter ("fast", "slow" or milliseconds).
func rateParam(params map[string]any, required bool) (*RampRate, error) {
	v, ok := params["rate"]
	if !ok {
		if required {
			return nil, fmt.Errorf("missing 'rate' parameter")
		}
		return nil, nil
	}
	rate, err := ParseRampRate(v)
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// buttonParam reads the optional "button" parameter. Absent means button 1.
func buttonParam(params map[string]any) (int, error) {
	v, ok := params["button"]
	if !ok {
		return defaultButton, nil
	}
	button, ok := v.(float64)
	if !ok || button != math.Trunc(button) || button < 1 || button > math.MaxUint8 {
		return 0, fmt.Errorf("'button' must be an integer 1-255")
	}
	return int(button), nil
}

func (b *Bridge) publishAck(cmd CommandMessage, addr Address, status AckStatus) {
	b.publishAckMessage(addr, NewAckMessage(cmd, status, addr))
}

func (b *Bridge) publishAckError(cmd CommandMessage, addr Address, code, message string) {
	b.publishAckMessage(addr, NewAckError(cmd, addr, code, message))
	b.logError("command failed",
		fmt.Errorf("command_id=%s code=%s message=%s", cmd.ID, code, message))
}

func (b *Bridge) publishAckMessage(addr Address, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.mqtt.Publish(AckTopic(addr), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// ─── MQTT requests ──────────────────────────────────────────────────

// handleRequest answers a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	resp := b.executeRequest(ctx, req)

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func (b *Bridge) executeRequest(ctx context.Context, req RequestMessage) ResponseMessage {
	switch req.Action {
	case ActionReadLevel, ActionReadRampRate, ActionReadOnLevel:
		return b.handleRead(ctx, req)
	case ActionReadHistory:
		return b.handleReadHistory(ctx, req)
	default:
		return errorResponse(req, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// handleRead queries one value from a light.
func (b *Bridge) handleRead(ctx context.Context, req RequestMessage) ResponseMessage {
	if req.DeviceID == "" {
		return errorResponse(req, ErrCodeInvalidParameters, "device_id is required")
	}
	light, ok := b.Light(req.DeviceID)
	if !ok {
		return errorResponse(req, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", req.DeviceID))
	}

	var (
		key   string
		value int
		found bool
	)
	switch req.Action {
	case ActionReadLevel:
		key = "level"
		value, found = light.QueryLevel(ctx)
	case ActionReadRampRate:
		button, err := buttonParam(req.Parameters)
		if err != nil {
			return errorResponse(req, ErrCodeInvalidParameters, err.Error())
		}
		key = "ramp_rate_ms"
		value, found = light.QueryRampRate(ctx, button)
	case ActionReadOnLevel:
		button, err := buttonParam(req.Parameters)
		if err != nil {
			return errorResponse(req, ErrCodeInvalidParameters, err.Error())
		}
		key = "on_level"
		value, found = light.QueryOnLevel(ctx, button)
	}

	if !found {
		return errorResponse(req, ErrCodeNoResponse, "device did not respond")
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"device_id": req.DeviceID,
			key:         value,
		},
	}
}

// handleReadHistory returns the most recent events, newest first.
func (b *Bridge) handleReadHistory(ctx context.Context, req RequestMessage) ResponseMessage {
	if b.history == nil {
		return errorResponse(req, ErrCodeNotConfigured, "event history is not enabled")
	}

	limit := defaultHistoryLimit
	if v, ok := req.Parameters["limit"]; ok {
		n, ok := v.(float64)
		if !ok || n < 1 || n > maxHistoryLimit {
			return errorResponse(req, ErrCodeInvalidParameters,
				fmt.Sprintf("'limit' must be 1-%d", maxHistoryLimit))
		}
		limit = int(n)
	}

	events, err := b.history.RecentEvents(ctx, req.DeviceID, limit)
	if err != nil {
		b.logError("failed to read history", err)
		return errorResponse(req, ErrCodeBridgeError, "history unavailable")
	}
	if events == nil {
		events = []EventRecord{}
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"events": events,
			"count":  len(events),
		},
	}
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
		},
	}
}

// ─── Logging & metrics ──────────────────────────────────────────────

// SetLogger sets the logger for the bridge, its lights and its reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.lightsMu.RLock()
	for _, ml := range b.lights {
		ml.light.SetLogger(logger)
	}
	b.lightsMu.RUnlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics is a snapshot of bridge counters.
type BridgeMetrics struct {
	Connected       bool
	MessagesTx      uint64
	MessagesRx      uint64
	MessagesDropped uint64
	DevicesManaged  int
}

// GetMetrics returns current bridge counters.
func (b *Bridge) GetMetrics() BridgeMetrics {
	b.lightsMu.RLock()
	deviceCount := len(b.lights)
	b.lightsMu.RUnlock()

	stats := b.modem.Stats()
	return BridgeMetrics{
		Connected:       b.modem.IsConnected(),
		MessagesTx:      stats.MessagesTx,
		MessagesRx:      stats.MessagesRx,
		MessagesDropped: stats.MessagesDropped,
		DevicesManaged:  deviceCount,
	}
}
