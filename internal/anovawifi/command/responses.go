package command

import (
	"strconv"
	"strings"

	"github.com/anova4all/gateway/internal/gwerrors"
)

// TimerStatus is the decoded result of GetTimerStatus.
type TimerStatus struct {
	Minutes int
	Running bool
}

func isOK(resp string, extra ...string) bool {
	r := strings.ToLower(strings.TrimSpace(resp))
	if r == "ok" {
		return true
	}
	for _, e := range extra {
		if r == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// DecodeIDCard strips the "anova " prefix the appliance prepends.
func DecodeIDCard(resp string) (string, error) {
	resp = strings.TrimSpace(resp)
	return strings.TrimPrefix(resp, "anova "), nil
}

// DecodeString passes a response through unchanged (GetVersion,
// GetSecretKey, GetDate).
func DecodeString(resp string) (string, error) {
	return strings.TrimSpace(resp), nil
}

// DecodeDeviceStatus maps the first whitespace-separated token of the
// response onto a Status.
func DecodeDeviceStatus(resp string) (Status, error) {
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return "", gwerrors.ErrValidation("empty device status response")
	}
	status := ParseStatus(fields[0])
	if status == StatusUnknown {
		return "", gwerrors.ErrValidation("unrecognized device status: " + fields[0])
	}
	return status, nil
}

// DecodeFloat parses a bare float response (temperatures, calibration
// factor).
func DecodeFloat(resp string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, gwerrors.ErrValidation("malformed float response: " + resp)
	}
	return f, nil
}

// DecodeUnit parses a single-character unit response.
func DecodeUnit(resp string) (Unit, error) {
	u, ok := ParseUnit(resp)
	if !ok {
		return "", gwerrors.ErrValidation("malformed unit response: " + resp)
	}
	return u, nil
}

// DecodeSuccess interprets success if the response equals any of the
// accepted tokens, case-insensitively.
func DecodeSuccess(resp string, accepted ...string) (bool, error) {
	return isOK(resp, accepted...), nil
}

// DecodeTimerStatus parses GetTimerStatus's response.
func DecodeTimerStatus(resp string) (TimerStatus, error) {
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return TimerStatus{}, gwerrors.ErrValidation("empty timer status response")
	}
	trailing := strings.ToLower(fields[len(fields)-1])
	switch trailing {
	case "stopped":
		return TimerStatus{Minutes: 0, Running: false}, nil
	case "running":
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return TimerStatus{}, gwerrors.ErrValidation("malformed timer minutes: " + resp)
		}
		return TimerStatus{Minutes: n, Running: true}, nil
	default:
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return TimerStatus{}, gwerrors.ErrValidation("malformed timer minutes: " + resp)
		}
		return TimerStatus{Minutes: n, Running: false}, nil
	}
}

// DecodeInt parses a bare integer response (SetTimer's echoed minutes).
func DecodeInt(resp string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, gwerrors.ErrValidation("malformed integer response: " + resp)
	}
	return n, nil
}

// DecodeSpeakerStatus reports true iff the response ends with " on".
func DecodeSpeakerStatus(resp string) (bool, error) {
	return strings.HasSuffix(strings.ToLower(strings.TrimRight(resp, "\r\n")), " on"), nil
}

// DecodeServerInfoEcho reports whether the appliance echoed back the
// exact "<ip> <port>" that was written.
func DecodeServerInfoEcho(resp, wantIP string, wantPort int) (bool, error) {
	want := wantIP + " " + strconv.Itoa(wantPort)
	return strings.TrimSpace(resp) == want, nil
}

// DecodeTemperatureHistory parses the "read data "-prefixed, space
// separated list of floats GetTemperatureHistory returns.
func DecodeTemperatureHistory(resp string) ([]float64, error) {
	resp = strings.TrimPrefix(strings.TrimSpace(resp), "read data ")
	if resp == "" {
		return nil, nil
	}
	fields := strings.Fields(resp)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, gwerrors.ErrValidation("malformed temperature history entry: " + f)
		}
		out = append(out, v)
	}
	return out, nil
}
