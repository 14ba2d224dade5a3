package anovawifi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi/command"
	"github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/gwerrors"
	"github.com/anova4all/gateway/internal/metrics"
	"go.uber.org/zap"
)

// HeartbeatInterval is how often the Manager's monitor task runs a
// Device's heartbeat command sequence.
const HeartbeatInterval = 3 * time.Second

// DeviceState is the in-memory, per-appliance state mirror.
type DeviceState struct {
	Status              command.Status `json:"status"`
	CurrentTemperature  float64        `json:"current_temperature"`
	TargetTemperature   float64        `json:"target_temperature"`
	TimerRunning        bool           `json:"timer_running"`
	TimerValue          int            `json:"timer_value"`
	Unit                command.Unit   `json:"unit"`
	SpeakerStatus       bool           `json:"speaker_status"`
}

// StateChangeCallback is invoked with a snapshot every time the Device's
// state changes, either from a command response or from an event.
type StateChangeCallback func(id string, state DeviceState)

// DeviceEventCallback forwards a raw parsed event to whichever subscriber
// the Manager has wired up.
type DeviceEventCallback func(id string, evt event.Event)

// Device mirrors one connected appliance: its identity, live state, and
// the command dispatch that keeps the two in sync.
type Device struct {
	conn    *Connection
	logger  *zap.Logger
	metrics *metrics.Metrics

	idCard    string
	version   string
	secretKey string

	mu    sync.RWMutex
	state DeviceState

	subMu         sync.RWMutex
	onStateChange StateChangeCallback
	onEvent       DeviceEventCallback
}

// NewDevice wraps conn and registers the Device as its event callback.
// The Device has no identity until Handshake succeeds.
func NewDevice(conn *Connection, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Device{
		conn:   conn,
		logger: logger,
		state:  DeviceState{Status: command.StatusStopped},
	}
	conn.SetEventCallback(d.handleEvent)
	return d
}

// ID returns the appliance's identity (its ID card), empty before a
// successful Handshake.
func (d *Device) ID() string { return d.idCard }

// Version returns the appliance's reported firmware version.
func (d *Device) Version() string { return d.version }

// SecretKey returns the appliance's reported secret key.
func (d *Device) SecretKey() string { return d.secretKey }

// State returns a snapshot of the device's current state.
func (d *Device) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetMetrics wires the gateway's counters into this Device's command
// dispatch. Wired by the Manager; nil-safe when unset.
func (d *Device) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// SetStateChangeCallback installs the (single) state-change subscriber.
// Wired and cleared by the Manager.
func (d *Device) SetStateChangeCallback(cb StateChangeCallback) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.onStateChange = cb
}

// SetEventCallback installs the (single) raw-event subscriber. Wired and
// cleared by the Manager.
func (d *Device) SetEventCallback(cb DeviceEventCallback) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.onEvent = cb
}

// Close tears down the underlying connection.
func (d *Device) Close() error {
	return d.conn.Close()
}

// Handshake runs the fixed GetIDCard -> GetVersion -> GetSecretKey ->
// GetDeviceStatus sequence. Failure of any step surfaces and the caller
// should tear the connection down.
func (d *Device) Handshake(ctx context.Context) error {
	idCard, err := d.GetIDCard(ctx)
	if err != nil {
		return gwerrors.ErrFatal("handshake: GetIDCard failed", err)
	}
	d.idCard = idCard

	version, err := d.GetVersion(ctx)
	if err != nil {
		return gwerrors.ErrFatal("handshake: GetVersion failed", err)
	}
	d.version = version

	secretKey, err := d.GetSecretKey(ctx)
	if err != nil {
		return gwerrors.ErrFatal("handshake: GetSecretKey failed", err)
	}
	d.secretKey = secretKey

	if _, err := d.GetDeviceStatus(ctx); err != nil {
		return gwerrors.ErrFatal("handshake: GetDeviceStatus failed", err)
	}
	return nil
}

// Heartbeat runs the fixed periodic command sequence. A connection-reset
// error is logged and swallowed; any other error propagates so the
// Manager's monitor task can decide whether to disconnect.
func (d *Device) Heartbeat(ctx context.Context) error {
	steps := []func(context.Context) error{
		func(ctx context.Context) error { _, err := d.GetDeviceStatus(ctx); return err },
		func(ctx context.Context) error { _, err := d.GetTargetTemperature(ctx); return err },
		func(ctx context.Context) error { _, err := d.GetCurrentTemperature(ctx); return err },
		func(ctx context.Context) error { _, err := d.GetTemperatureUnit(ctx); return err },
		func(ctx context.Context) error { _, err := d.GetTimerStatus(ctx); return err },
		func(ctx context.Context) error { _, err := d.GetSpeakerStatus(ctx); return err },
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			if isConnectionReset(err) {
				d.logger.Warn("heartbeat step failed with connection reset, continuing", zap.Error(err))
				continue
			}
			return err
		}
	}
	return nil
}

func isConnectionReset(err error) bool {
	var ge *gwerrors.GatewayError
	if errors.As(err, &ge) {
		return ge.Kind == gwerrors.KindConnection
	}
	return false
}

// sendWifi enforces Wi-Fi transport support, sends cmd, and returns the
// raw response text, recording command metrics when a Metrics is wired.
func (d *Device) sendWifi(ctx context.Context, cmd command.Command) (string, error) {
	if err := command.CheckTransport(cmd, command.TransportWifi); err != nil {
		return "", err
	}
	start := time.Now()
	if d.metrics != nil {
		d.metrics.CommandSent()
	}
	resp, err := d.conn.SendCommand(ctx, cmd.Text())
	if d.metrics != nil {
		d.metrics.RecordCommandTime(time.Since(start))
		if err != nil {
			if kind, ok := gwerrors.KindOf(err); ok && kind == gwerrors.KindCommandTimeout {
				d.metrics.CommandTimedOut()
			} else {
				d.metrics.CommandFailed()
			}
		}
	}
	return resp, err
}

func (d *Device) notifyStateChange() {
	d.subMu.RLock()
	cb := d.onStateChange
	d.subMu.RUnlock()
	if cb != nil {
		cb(d.idCard, d.State())
	}
}

func (d *Device) setState(mutate func(*DeviceState)) {
	d.mu.Lock()
	mutate(&d.state)
	d.mu.Unlock()
	d.notifyStateChange()
}

// --- Command dispatch: each method enforces transport, sends, decodes,
// applies the state update implied by the command, and returns the typed
// value. ---

func (d *Device) GetIDCard(ctx context.Context) (string, error) {
	resp, err := d.sendWifi(ctx, command.NewGetIDCard())
	if err != nil {
		return "", err
	}
	return command.DecodeIDCard(resp)
}

func (d *Device) GetVersion(ctx context.Context) (string, error) {
	resp, err := d.sendWifi(ctx, command.NewGetVersion())
	if err != nil {
		return "", err
	}
	return command.DecodeString(resp)
}

func (d *Device) GetSecretKey(ctx context.Context) (string, error) {
	resp, err := d.sendWifi(ctx, command.NewGetSecretKey())
	if err != nil {
		return "", err
	}
	return command.DecodeString(resp)
}

func (d *Device) GetDeviceStatus(ctx context.Context) (command.Status, error) {
	resp, err := d.sendWifi(ctx, command.NewGetDeviceStatus())
	if err != nil {
		return "", err
	}
	status, err := command.DecodeDeviceStatus(resp)
	if err != nil {
		return "", err
	}
	d.setState(func(s *DeviceState) { s.Status = status })
	return status, nil
}

func (d *Device) GetCurrentTemperature(ctx context.Context) (float64, error) {
	resp, err := d.sendWifi(ctx, command.NewGetCurrentTemperature())
	if err != nil {
		return 0, err
	}
	v, err := command.DecodeFloat(resp)
	if err != nil {
		return 0, err
	}
	d.setState(func(s *DeviceState) { s.CurrentTemperature = v })
	return v, nil
}

func (d *Device) GetTargetTemperature(ctx context.Context) (float64, error) {
	resp, err := d.sendWifi(ctx, command.NewGetTargetTemperature())
	if err != nil {
		return 0, err
	}
	v, err := command.DecodeFloat(resp)
	if err != nil {
		return 0, err
	}
	d.setState(func(s *DeviceState) { s.TargetTemperature = v })
	return v, nil
}

// SetTargetTemperature validates (when unitKnown) and sets the target
// temperature, returning the appliance-echoed value.
func (d *Device) SetTargetTemperature(ctx context.Context, t float64, unit command.Unit, unitKnown bool) (float64, error) {
	cmd, err := command.NewSetTargetTemperature(t, unit, unitKnown)
	if err != nil {
		return 0, err
	}
	resp, err := d.sendWifi(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := command.DecodeFloat(resp)
	if err != nil {
		return 0, err
	}
	d.setState(func(s *DeviceState) { s.TargetTemperature = v })
	return v, nil
}

func (d *Device) GetTemperatureUnit(ctx context.Context) (command.Unit, error) {
	resp, err := d.sendWifi(ctx, command.NewGetTemperatureUnit())
	if err != nil {
		return "", err
	}
	u, err := command.DecodeUnit(resp)
	if err != nil {
		return "", err
	}
	d.setState(func(s *DeviceState) { s.Unit = u })
	return u, nil
}

func (d *Device) SetTemperatureUnit(ctx context.Context, unit command.Unit) (command.Unit, error) {
	cmd, err := command.NewSetTemperatureUnit(unit)
	if err != nil {
		return "", err
	}
	resp, err := d.sendWifi(ctx, cmd)
	if err != nil {
		return "", err
	}
	u, err := command.DecodeUnit(resp)
	if err != nil {
		return "", err
	}
	d.setState(func(s *DeviceState) { s.Unit = u })
	return u, nil
}

func (d *Device) StartDevice(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewStartDevice())
	if err != nil {
		return false, err
	}
	return command.DecodeSuccess(resp, "start")
}

func (d *Device) StopDevice(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewStopDevice())
	if err != nil {
		return false, err
	}
	return command.DecodeSuccess(resp, "stop")
}

func (d *Device) StartTimer(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewStartTimer())
	if err != nil {
		return false, err
	}
	return command.DecodeSuccess(resp)
}

func (d *Device) StopTimer(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewStopTimer())
	if err != nil {
		return false, err
	}
	return command.DecodeSuccess(resp, "stop time")
}

func (d *Device) GetTimerStatus(ctx context.Context) (command.TimerStatus, error) {
	resp, err := d.sendWifi(ctx, command.NewGetTimerStatus())
	if err != nil {
		return command.TimerStatus{}, err
	}
	ts, err := command.DecodeTimerStatus(resp)
	if err != nil {
		return command.TimerStatus{}, err
	}
	d.setState(func(s *DeviceState) {
		s.TimerValue = ts.Minutes
		s.TimerRunning = ts.Running
	})
	return ts, nil
}

func (d *Device) SetTimer(ctx context.Context, minutes int) (int, error) {
	cmd, err := command.NewSetTimer(minutes)
	if err != nil {
		return 0, err
	}
	resp, err := d.sendWifi(ctx, cmd)
	if err != nil {
		return 0, err
	}
	n, err := command.DecodeInt(resp)
	if err != nil {
		return 0, err
	}
	d.setState(func(s *DeviceState) { s.TimerValue = n })
	return n, nil
}

func (d *Device) ClearAlarm(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewClearAlarm())
	if err != nil {
		return false, err
	}
	return command.DecodeSuccess(resp, "clear alarm")
}

func (d *Device) GetSpeakerStatus(ctx context.Context) (bool, error) {
	resp, err := d.sendWifi(ctx, command.NewGetSpeakerStatus())
	if err != nil {
		return false, err
	}
	on, err := command.DecodeSpeakerStatus(resp)
	if err != nil {
		return false, err
	}
	d.setState(func(s *DeviceState) { s.SpeakerStatus = on })
	return on, nil
}

// handleEvent is registered as the Connection's event callback. It
// applies the event's state effect (if any), notifies the state-change
// subscriber, and forwards the raw event to the event subscriber.
func (d *Device) handleEvent(evt event.Event) {
	switch evt.Type {
	case event.TypeTempReached:
		d.setState(func(s *DeviceState) { s.CurrentTemperature = s.TargetTemperature })
	case event.TypeLowWater:
		d.setState(func(s *DeviceState) { s.Status = command.StatusLowWater })
	case event.TypeStart:
		d.setState(func(s *DeviceState) { s.Status = command.StatusRunning })
	case event.TypeStop:
		d.setState(func(s *DeviceState) { s.Status = command.StatusStopped })
	case event.TypeTimeStart:
		d.setState(func(s *DeviceState) { s.TimerRunning = true })
	case event.TypeTimeStop, event.TypeTimeFinish:
		d.setState(func(s *DeviceState) { s.TimerRunning = false })
	case event.TypeChangeTemp, event.TypeChangeParam:
		// notification only, no state effect
	}

	d.subMu.RLock()
	cb := d.onEvent
	d.subMu.RUnlock()
	if cb != nil {
		cb(d.idCard, evt)
	}
}
