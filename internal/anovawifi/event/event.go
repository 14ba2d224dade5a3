// Package event parses the appliance's unsolicited event notifications
// into a tagged value with an originator.
package event

import (
	"strings"

	"github.com/anova4all/gateway/internal/gwerrors"
)

// Type identifies the kind of unsolicited notification.
type Type string

const (
	TypeTempReached Type = "temp_reached"
	TypeLowWater    Type = "low_water"
	TypeStart       Type = "start"
	TypeStop        Type = "stop"
	TypeChangeTemp  Type = "change_temp"
	TypeChangeParam Type = "change_param"
	TypeTimeStart   Type = "time_start"
	TypeTimeStop    Type = "time_stop"
	TypeTimeFinish  Type = "time_finish"
)

// Originator identifies which interface reported the event.
type Originator string

const (
	OriginatorWifi   Originator = "wifi"
	OriginatorBLE    Originator = "ble"
	OriginatorDevice Originator = "device"
)

// Event is a parsed unsolicited notification.
type Event struct {
	Type       Type       `json:"type"`
	Originator Originator `json:"originator"`
}

// IsEvent reports whether a decoded line is an event per §4.3: it begins
// with "event" or "user changed".
func IsEvent(line string) bool {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "event") || strings.HasPrefix(lower, "user changed")
}

// Parse classifies a line already known to satisfy IsEvent.
func Parse(line string) (Event, error) {
	trimmed := strings.TrimSpace(line)
	rest := trimmed

	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "event "):
		rest = rest[len("event "):]
	case strings.HasPrefix(lower, "event"):
		rest = rest[len("event"):]
	case strings.HasPrefix(lower, "user changed"):
		// "user changed" is itself the body; fall through to
		// classification below without stripping a leading "event".
	default:
		return Event{}, gwerrors.ErrFrame("unknown event")
	}
	rest = strings.TrimSpace(rest)

	originator := OriginatorDevice
	lowerRest := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lowerRest, "wifi "):
		originator = OriginatorWifi
		rest = strings.TrimSpace(rest[len("wifi "):])
	case strings.HasPrefix(lowerRest, "ble "):
		originator = OriginatorBLE
		rest = strings.TrimSpace(rest[len("ble "):])
	}

	typ, err := classify(rest)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Originator: originator}, nil
}

func classify(body string) (Type, error) {
	lower := strings.ToLower(body)
	switch lower {
	case "stop":
		return TypeStop, nil
	case "start":
		return TypeStart, nil
	case "low water":
		return TypeLowWater, nil
	case "time start":
		return TypeTimeStart, nil
	case "time stop":
		return TypeTimeStop, nil
	case "time finish":
		return TypeTimeFinish, nil
	}
	switch {
	case strings.HasPrefix(lower, "temp has reached"):
		return TypeTempReached, nil
	case strings.HasPrefix(lower, "user changed"):
		return TypeChangeParam, nil
	}
	return "", gwerrors.ErrFrame("unknown event")
}
