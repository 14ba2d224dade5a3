package anovawifi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/anova4all/gateway/internal/anovawifi/command"
	"github.com/anova4all/gateway/internal/anovawifi/event"
	"github.com/anova4all/gateway/internal/anovawifi/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedAppliance replies to each incoming command with the next entry
// in a fixed response script, matching original recorded traffic used in
// the external scenarios this package implements.
type scriptedAppliance struct {
	conn    net.Conn
	script  []string
	calls   []string
}

func (a *scriptedAppliance) run(t *testing.T) {
	var stream frame.Stream
	buf := make([]byte, 4096)
	i := 0
	for {
		n, err := a.conn.Read(buf)
		if err != nil {
			return
		}
		messages, decodeErr := stream.Feed(buf[:n])
		require.NoError(t, decodeErr)
		for _, m := range messages {
			a.calls = append(a.calls, m)
			if i >= len(a.script) {
				continue
			}
			resp := a.script[i]
			i++
			if _, err := a.conn.Write(frame.Encode(resp)); err != nil {
				return
			}
		}
	}
}

// S2 — Handshake scenario.
func TestS2HandshakeScenario(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	appliance := &scriptedAppliance{
		conn: serverEnd,
		script: []string{
			"anova abcdef",
			"1.0.0",
			"a1b2c3d4e5",
			"stopped",
		},
	}
	go appliance.run(t)

	conn := anovawifi.NewConnection(clientEnd, zap.NewNop())
	conn.StartListening()
	device := anovawifi.NewDevice(conn, zap.NewNop())

	require.NoError(t, device.Handshake(context.Background()))

	assert.Equal(t, "abcdef", device.ID())
	assert.Equal(t, "1.0.0", device.Version())
	assert.Equal(t, "a1b2c3d4e5", device.SecretKey())
	assert.Equal(t, command.StatusStopped, device.State().Status)
}

// S4 — Event path scenario.
func TestS4EventUpdatesStateAndNotifiesSubscribers(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	conn := anovawifi.NewConnection(clientEnd, zap.NewNop())
	conn.StartListening()
	device := anovawifi.NewDevice(conn, zap.NewNop())

	stateChanges := make(chan anovawifi.DeviceState, 4)
	events := make(chan event.Event, 4)
	device.SetStateChangeCallback(func(id string, s anovawifi.DeviceState) { stateChanges <- s })
	device.SetEventCallback(func(id string, e event.Event) { events <- e })

	go func() {
		_, _ = serverEnd.Write(frame.Encode("event start"))
	}()

	select {
	case e := <-events:
		assert.Equal(t, event.TypeStart, e.Type)
	case <-time.After(time.Second):
		t.Fatal("event subscriber was never notified")
	}

	select {
	case s := <-stateChanges:
		assert.Equal(t, command.StatusRunning, s.Status)
	case <-time.After(time.Second):
		t.Fatal("state-change subscriber was never notified")
	}

	assert.Equal(t, command.StatusRunning, device.State().Status)
}

func TestHeartbeatSequence(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer clientEnd.Close()
	defer serverEnd.Close()

	appliance := &scriptedAppliance{
		conn: serverEnd,
		script: []string{
			"running",  // GetDeviceStatus
			"57.5",     // GetTargetTemperature
			"55.0",     // GetCurrentTemperature
			"c",        // GetTemperatureUnit
			"10 running", // GetTimerStatus
			"speaker is on", // GetSpeakerStatus
		},
	}
	go appliance.run(t)

	conn := anovawifi.NewConnection(clientEnd, zap.NewNop())
	conn.StartListening()
	device := anovawifi.NewDevice(conn, zap.NewNop())

	require.NoError(t, device.Heartbeat(context.Background()))

	want := []string{"status", "read set temp", "read temp", "read unit", "read timer", "speaker status"}
	assert.Equal(t, want, appliance.calls)

	state := device.State()
	assert.Equal(t, command.StatusRunning, state.Status)
	assert.Equal(t, 57.5, state.TargetTemperature)
	assert.Equal(t, 55.0, state.CurrentTemperature)
	assert.Equal(t, command.UnitCelsius, state.Unit)
	assert.Equal(t, 10, state.TimerValue)
	assert.True(t, state.TimerRunning)
	assert.True(t, state.SpeakerStatus)
}
