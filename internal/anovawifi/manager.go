package anovawifi

import (
	"context"
	"sync"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/metrics"
	"go.uber.org/zap"
)

// wildcardSubscriber is the key used to register a callback that fires
// for every device id, alongside any per-id subscriber.
const wildcardSubscriber = "*"

// Manager is the registry of connected appliances: at most one live
// Device per ID, a monitor goroutine per Device, and fan-out of
// connect/disconnect/state/event notifications to subscribers.
type Manager struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	devices map[string]*Device
	cancels map[string]context.CancelFunc

	connMu      sync.Mutex
	onConnected []func(id string)

	discMu             sync.RWMutex
	onDisconnectedWild func(id string)
	onDisconnectedByID map[string]func(id string)

	stateMu         sync.RWMutex
	onStateWild     StateChangeCallback
	onStateByID     map[string]StateChangeCallback

	eventMu     sync.RWMutex
	onEventWild DeviceEventCallback
	onEventByID map[string]DeviceEventCallback

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewManager creates an empty Manager. Call HandleConnection as the
// Server's OnConnectionFunc to wire appliances into it.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:             logger,
		devices:            make(map[string]*Device),
		cancels:            make(map[string]context.CancelFunc),
		onDisconnectedByID: make(map[string]func(id string)),
		onStateByID:        make(map[string]StateChangeCallback),
		onEventByID:        make(map[string]DeviceEventCallback),
		ctx:                ctx,
		cancel:             cancel,
	}
}

// GetDevice looks up a connected device by its ID card.
func (m *Manager) GetDevice(id string) (*Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	return d, ok
}

// Devices returns a snapshot of every currently connected device.
func (m *Manager) Devices() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	return out
}

// Count returns the number of currently connected devices.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// OnConnected registers a subscriber invoked for every newly handshaken
// device, in registration order.
func (m *Manager) OnConnected(cb func(id string)) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.onConnected = append(m.onConnected, cb)
}

// SetMetrics wires the gateway's counters into every Device this Manager
// constructs from here on. Nil-safe when unset.
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// OnDisconnected registers a subscriber for device disconnection. Pass
// "*" for the wildcard subscriber.
func (m *Manager) OnDisconnected(id string, cb func(id string)) {
	m.discMu.Lock()
	defer m.discMu.Unlock()
	if id == wildcardSubscriber {
		m.onDisconnectedWild = cb
	} else {
		m.onDisconnectedByID[id] = cb
	}
}

// OnStateChange registers a subscriber for device state changes. Pass
// "*" for the wildcard subscriber.
func (m *Manager) OnStateChange(id string, cb StateChangeCallback) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if id == wildcardSubscriber {
		m.onStateWild = cb
	} else {
		m.onStateByID[id] = cb
	}
}

// OnEvent registers a subscriber for raw device events. Pass "*" for the
// wildcard subscriber.
func (m *Manager) OnEvent(id string, cb DeviceEventCallback) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()
	if id == wildcardSubscriber {
		m.onEventWild = cb
	} else {
		m.onEventByID[id] = cb
	}
}

// HandleConnection is the Server's OnConnectionFunc: it runs the
// handshake, evicts any prior device with the same ID, installs the new
// device, and spawns its monitor goroutine.
func (m *Manager) HandleConnection(conn *Connection) {
	device := NewDevice(conn, m.logger)
	device.SetMetrics(m.metrics)

	hsCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := device.Handshake(hsCtx); err != nil {
		m.logger.Warn("handshake failed, tearing down connection", zap.Error(err))
		_ = conn.Close()
		return
	}

	id := device.ID()
	m.disconnect(id) // evict a prior live device with the same ID, if any

	device.SetStateChangeCallback(func(devID string, state DeviceState) {
		m.fanoutState(devID, state)
	})
	device.SetEventCallback(func(devID string, evt event.Event) {
		m.fanoutEvent(devID, evt)
	})

	monitorCtx, monitorCancel := context.WithCancel(m.ctx)

	m.mu.Lock()
	m.devices[id] = device
	m.cancels[id] = monitorCancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitor(monitorCtx, id, device)

	m.fanoutConnected(id)
}

// disconnect removes id's device (if any), cancels its monitor, closes
// its connection, and fires the disconnected subscribers.
func (m *Manager) disconnect(id string) {
	m.mu.Lock()
	device, ok := m.devices[id]
	if ok {
		delete(m.devices, id)
	}
	if cancel, ok2 := m.cancels[id]; ok2 {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()

	if ok {
		_ = device.Close()
		m.fanoutDisconnected(id)
	}
}

// monitor runs the heartbeat sequence every HeartbeatInterval until
// cancelled or until a heartbeat fails, in which case it triggers
// disconnection before exiting.
func (m *Manager) monitor(ctx context.Context, id string, device *Device) {
	defer m.wg.Done()

	for {
		if err := device.Heartbeat(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("heartbeat failed, disconnecting device",
				zap.String("device_id", id), zap.Error(err))
			m.disconnect(id)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(HeartbeatInterval):
		}
	}
}

// Stop cancels all monitor tasks, closes all device sockets, and waits
// for every monitor goroutine to exit before returning.
func (m *Manager) Stop() {
	m.shutdownOnce.Do(func() {
		m.cancel()

		m.mu.Lock()
		devices := make([]*Device, 0, len(m.devices))
		for _, d := range m.devices {
			devices = append(devices, d)
		}
		m.devices = make(map[string]*Device)
		m.cancels = make(map[string]context.CancelFunc)
		m.mu.Unlock()

		for _, d := range devices {
			_ = d.Close()
		}
		m.wg.Wait()
	})
}

func (m *Manager) fanoutConnected(id string) {
	m.connMu.Lock()
	cbs := make([]func(string), len(m.onConnected))
	copy(cbs, m.onConnected)
	m.connMu.Unlock()

	for _, cb := range cbs {
		cb(id)
	}
}

func (m *Manager) fanoutDisconnected(id string) {
	m.discMu.RLock()
	wildcard := m.onDisconnectedWild
	byID := m.onDisconnectedByID[id]
	m.discMu.RUnlock()

	if wildcard != nil {
		wildcard(id)
	}
	if byID != nil {
		byID(id)
	}
}

func (m *Manager) fanoutState(id string, state DeviceState) {
	m.stateMu.RLock()
	wildcard := m.onStateWild
	byID := m.onStateByID[id]
	m.stateMu.RUnlock()

	if wildcard != nil {
		wildcard(id, state)
	}
	if byID != nil {
		byID(id, state)
	}
}

func (m *Manager) fanoutEvent(id string, evt event.Event) {
	m.eventMu.RLock()
	wildcard := m.onEventWild
	byID := m.onEventByID[id]
	m.eventMu.RUnlock()

	if wildcard != nil {
		wildcard(id, evt)
	}
	if byID != nil {
		byID(id, evt)
	}
}
