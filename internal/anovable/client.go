// Package anovable drives the appliance's BLE provisioning protocol: scan
// for an advertising appliance, connect, and run a line-based
// request/response exchange over one GATT characteristic.
package anovable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"

	"github.com/anova4all/gateway/internal/anovawifi/command"
	"github.com/anova4all/gateway/internal/gwerrors"
	"go.uber.org/zap"
)

const (
	// LocalName is the advertised name appliances use in BLE mode.
	LocalName = "Anova"
	// ServiceUUID is the short-form service UUID carrying the command
	// characteristic.
	ServiceUUID = "ffe0"
	// CharacteristicUUID is the short-form characteristic used for both
	// writes and notifications.
	CharacteristicUUID = "ffe1"

	// ScanTimeout bounds how long Scan waits for a matching advertisement.
	ScanTimeout = 5 * time.Second
	// CommandTimeout bounds a single request/response exchange.
	CommandTimeout = 20 * time.Second

	responseTerminator = '\r'
)

// DeviceFactory creates the platform BLE adapter; overridable in tests.
var DeviceFactory = func() (ble.Device, error) {
	return linux.NewDevice()
}

// DialFunc dials an appliance's GATT server; overridable in tests so a
// session can be driven without a real radio.
var DialFunc = func(ctx context.Context, addr string) (ble.Client, error) {
	return ble.Dial(ctx, ble.NewAddr(addr))
}

// ScanResult identifies one advertising appliance.
type ScanResult struct {
	Address string
	Name    string
}

// ScanDevice discovers the first appliance advertising LocalName and
// ServiceUUID, returning its dial address and advertised name. It gives up
// after ScanTimeout.
func ScanDevice(ctx context.Context) (ScanResult, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return ScanResult{}, gwerrors.ErrConnection("failed to acquire BLE adapter", err)
	}
	ble.SetDefaultDevice(dev)

	scanCtx, cancel := context.WithTimeout(ctx, ScanTimeout)
	defer cancel()

	found := make(chan ScanResult, 1)
	filter := func(a ble.Advertisement) bool {
		return isTargetAppliance(a)
	}
	handler := func(a ble.Advertisement) {
		select {
		case found <- ScanResult{Address: a.Addr().String(), Name: a.LocalName()}:
		default:
		}
	}

	err = ble.Scan(scanCtx, false, handler, filter)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return ScanResult{}, gwerrors.ErrConnection("ble scan failed", err)
	}

	select {
	case result := <-found:
		return result, nil
	default:
		return ScanResult{}, gwerrors.ErrNotFound("no device found")
	}
}

// Scan is ScanDevice without the advertised name, for callers that only
// need a dial address.
func Scan(ctx context.Context) (string, error) {
	result, err := ScanDevice(ctx)
	if err != nil {
		return "", err
	}
	return result.Address, nil
}

func isTargetAppliance(a ble.Advertisement) bool {
	if !strings.EqualFold(a.LocalName(), LocalName) {
		return false
	}
	for _, svc := range a.Services() {
		if strings.EqualFold(svc.String(), ServiceUUID) || strings.Contains(strings.ToLower(svc.String()), ServiceUUID) {
			return true
		}
	}
	return false
}

// Session is a scoped GATT connection to one appliance: the command
// characteristic is subscribed once, and every SendCommand call is
// serialized through a session-local mutex.
type Session struct {
	logger *zap.Logger
	client ble.Client
	char   *ble.Characteristic

	mu     sync.Mutex
	chunks chan []byte
}

// Connect dials addr, discovers its GATT profile, and subscribes to the
// command characteristic. The caller must call Close on every exit path.
func Connect(ctx context.Context, addr string, logger *zap.Logger) (*Session, error) {
	client, err := DialFunc(ctx, addr)
	if err != nil {
		return nil, gwerrors.ErrConnection(fmt.Sprintf("ble dial to %s failed", addr), err)
	}
	return ConnectWithClient(client, logger)
}

// ConnectWithClient wires a Session around an already-dialed ble.Client,
// discovering its profile and subscribing to the command characteristic.
// Exposed so tests can inject a fake client without a real radio.
func ConnectWithClient(client ble.Client, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, gwerrors.ErrConnection("ble profile discovery failed", err)
	}

	char := findCharacteristic(profile, CharacteristicUUID)
	if char == nil {
		_ = client.CancelConnection()
		return nil, gwerrors.ErrNotFound(fmt.Sprintf("characteristic %s not found", CharacteristicUUID))
	}

	session := &Session{
		logger: logger,
		client: client,
		char:   char,
		chunks: make(chan []byte, 64),
	}

	if err := client.Subscribe(char, false, session.onNotify); err != nil {
		_ = client.CancelConnection()
		return nil, gwerrors.ErrConnection("ble subscribe failed", err)
	}

	return session, nil
}

func findCharacteristic(profile *ble.Profile, shortUUID string) *ble.Characteristic {
	for _, svc := range profile.Services {
		for _, c := range svc.Characteristics {
			if strings.Contains(strings.ToLower(c.UUID.String()), shortUUID) {
				return c
			}
		}
	}
	return nil
}

func (s *Session) onNotify(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	select {
	case s.chunks <- chunk:
	default:
		s.logger.Warn("ble notification dropped, subscriber backlog full")
	}
}

// SendCommand writes cmd's text followed by CR, then reassembles notify
// payloads until a CR byte is seen. CheckTransport rejects a Wi-Fi-only
// command before it ever touches the radio.
func (s *Session) SendCommand(ctx context.Context, cmd command.Command) (string, error) {
	if err := command.CheckTransport(cmd, command.TransportBLE); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmdCtx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	payload := []byte(cmd.Text() + "\r")
	if err := s.client.WriteCharacteristic(s.char, payload, false); err != nil {
		return "", gwerrors.ErrConnection("ble write failed", err)
	}

	var buf []byte
	for {
		select {
		case chunk := <-s.chunks:
			buf = append(buf, chunk...)
			if idx := indexByte(buf, responseTerminator); idx >= 0 {
				return strings.TrimSpace(string(buf[:idx])), nil
			}
		case <-cmdCtx.Done():
			return "", gwerrors.ErrCommandTimeout(fmt.Sprintf("%s: ble command timed out", cmd.Name()))
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Close unsubscribes and tears down the GATT connection. Safe to call
// multiple times.
func (s *Session) Close() error {
	_ = s.client.Unsubscribe(s.char, false)
	if err := s.client.CancelConnection(); err != nil {
		return gwerrors.ErrConnection("ble disconnect failed", err)
	}
	return nil
}

// WithSession scans for the appliance (unless addr is non-empty), connects,
// runs fn, and guarantees the session is closed on every exit path:
// success, error, or context cancellation.
func WithSession(ctx context.Context, addr string, logger *zap.Logger, fn func(*Session) error) error {
	if addr == "" {
		var err error
		addr, err = Scan(ctx)
		if err != nil {
			return err
		}
	}

	session, err := Connect(ctx, addr, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	return fn(session)
}
