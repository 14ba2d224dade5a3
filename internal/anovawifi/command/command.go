package command

import (
	"fmt"
	"math"

	"github.com/anova4all/gateway/internal/gwerrors"
)

// Command is the common shape of every entry in the catalogue: a fixed
// on-wire text (already validated at construction time) and the set of
// transports it may legally travel over.
type Command interface {
	Name() string
	Transport() Transport
	Text() string
}

type simpleCommand struct {
	name      string
	text      string
	transport Transport
}

func (c simpleCommand) Name() string        { return c.name }
func (c simpleCommand) Transport() Transport { return c.transport }
func (c simpleCommand) Text() string         { return c.text }

// CheckTransport returns a gwerrors TransportUnsupported error if cmd
// cannot legally travel over the given transport; it is the caller's
// responsibility to invoke this before ever writing to the wire.
func CheckTransport(cmd Command, t Transport) error {
	if cmd.Transport()&t == 0 {
		return gwerrors.ErrTransportUnsupported(
			fmt.Sprintf("%s: command not supported on this transport", cmd.Name()))
	}
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// --- Read-only commands (no arguments, no local validation) ---

func NewGetIDCard() Command {
	return simpleCommand{"GetIDCard", "get id card", both}
}

func NewGetVersion() Command {
	return simpleCommand{"GetVersion", "version", both}
}

func NewGetSecretKey() Command {
	return simpleCommand{"GetSecretKey", "get number", wifiOnly}
}

func NewGetDeviceStatus() Command {
	return simpleCommand{"GetDeviceStatus", "status", both}
}

func NewGetCurrentTemperature() Command {
	return simpleCommand{"GetCurrentTemperature", "read temp", both}
}

func NewGetTargetTemperature() Command {
	return simpleCommand{"GetTargetTemperature", "read set temp", both}
}

func NewGetTemperatureUnit() Command {
	return simpleCommand{"GetTemperatureUnit", "read unit", both}
}

func NewStartDevice() Command {
	return simpleCommand{"StartDevice", "start", both}
}

func NewStopDevice() Command {
	return simpleCommand{"StopDevice", "stop", both}
}

func NewStartTimer() Command {
	return simpleCommand{"StartTimer", "start time", both}
}

func NewStopTimer() Command {
	return simpleCommand{"StopTimer", "stop time", both}
}

func NewGetTimerStatus() Command {
	return simpleCommand{"GetTimerStatus", "read timer", both}
}

func NewClearAlarm() Command {
	return simpleCommand{"ClearAlarm", "clear alarm", both}
}

func NewGetSpeakerStatus() Command {
	return simpleCommand{"GetSpeakerStatus", "speaker status", both}
}

func NewStartSmartlink() Command {
	return simpleCommand{"StartSmartlink", "smartlink start", bleOnly}
}

func NewGetDate() Command {
	return simpleCommand{"GetDate", "read date", bleOnly}
}

func NewGetTemperatureHistory() Command {
	return simpleCommand{"GetTemperatureHistory", "read data", bleOnly}
}

func NewGetCalibrationFactor() Command {
	return simpleCommand{"GetCalibrationFactor", "read cal", bleOnly}
}

// --- Commands with validated arguments ---

// NewSetTargetTemperature builds a set-temperature command. The range
// check only runs when unitKnown is true, per the appliance's own rule:
// the constraint is enforced only when a unit is provided, otherwise the
// command is sent unchecked.
func NewSetTargetTemperature(t float64, unit Unit, unitKnown bool) (Command, error) {
	t = round1(t)
	if unitKnown {
		min, max := TemperatureRange(unit)
		if t < min || t > max {
			return nil, gwerrors.ErrValidation(
				fmt.Sprintf("target temperature %.1f out of range [%.1f, %.1f] for unit %q", t, min, max, unit))
		}
	}
	return simpleCommand{"SetTargetTemperature", fmt.Sprintf("set temp %.1f", t), both}, nil
}

func NewSetTemperatureUnit(u Unit) (Command, error) {
	if u != UnitCelsius && u != UnitFahrenheit {
		return nil, gwerrors.ErrValidation(fmt.Sprintf("invalid temperature unit %q", u))
	}
	return simpleCommand{"SetTemperatureUnit", fmt.Sprintf("set unit %s", u), both}, nil
}

func NewSetTimer(minutes int) (Command, error) {
	if minutes < 0 || minutes > 6000 {
		return nil, gwerrors.ErrValidation(fmt.Sprintf("timer minutes %d out of range [0, 6000]", minutes))
	}
	return simpleCommand{"SetTimer", fmt.Sprintf("set timer %d", minutes), both}, nil
}

func NewSetWifiCredentials(ssid, password string) (Command, error) {
	if ssid == "" {
		return nil, gwerrors.ErrValidation("ssid must not be empty")
	}
	return simpleCommand{"SetWifiCredentials",
		fmt.Sprintf("wifi para 2 %s %s WPA2PSK AES", ssid, password), bleOnly}, nil
}

// NewSetServerInfo builds a set-server-info command, defaulting to the
// vendor cloud's own address when ip/port are left empty/zero.
func NewSetServerInfo(ip string, port int) Command {
	if ip == "" {
		ip = "pc.anovaculinary.com"
	}
	if port == 0 {
		port = 8080
	}
	return simpleCommand{"SetServerInfo", fmt.Sprintf("server para %s %d", ip, port), bleOnly}
}

func NewSetSecretKey(key string) (Command, error) {
	if !secretKeyPattern.MatchString(key) {
		return nil, gwerrors.ErrValidation(fmt.Sprintf("secret key %q must match ^[a-z0-9]{10}$", key))
	}
	return simpleCommand{"SetSecretKey", fmt.Sprintf("set number %s", key), bleOnly}, nil
}

func NewSetLED(r, g, b int) (Command, error) {
	for _, ch := range []int{r, g, b} {
		if ch < 0 || ch > 255 {
			return nil, gwerrors.ErrValidation(fmt.Sprintf("LED channel %d out of range [0, 255]", ch))
		}
	}
	return simpleCommand{"SetLED", fmt.Sprintf("set led %d %d %d", r, g, b), bleOnly}, nil
}

func NewSetCalibrationFactor(f float64) (Command, error) {
	f = round1(f)
	if f < -9.9 || f > 9.9 {
		return nil, gwerrors.ErrValidation(fmt.Sprintf("calibration factor %.1f out of range [-9.9, 9.9]", f))
	}
	return simpleCommand{"SetCalibrationFactor", fmt.Sprintf("cal %.1f", f), bleOnly}, nil
}

func NewSetDeviceName(name string) (Command, error) {
	if name == "" {
		return nil, gwerrors.ErrValidation("device name must not be empty")
	}
	return simpleCommand{"SetDeviceName", fmt.Sprintf("set name %s", name), bleOnly}, nil
}

func NewSetSpeaker(on bool) Command {
	state := "off"
	if on {
		state = "on"
	}
	return simpleCommand{"SetSpeaker", fmt.Sprintf("set speaker %s", state), bleOnly}
}
