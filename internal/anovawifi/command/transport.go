// Package command implements the appliance's command catalogue: each
// command's on-wire text encoding, typed response decoding, and which
// transport(s) (Wi-Fi, BLE) it may travel over.
package command

// Transport is a bit flag identifying which physical link a command may
// travel over.
type Transport uint8

const (
	TransportWifi Transport = 1 << iota
	TransportBLE
)

func (t Transport) SupportsWifi() bool { return t&TransportWifi != 0 }
func (t Transport) SupportsBLE() bool  { return t&TransportBLE != 0 }

const (
	wifiOnly = TransportWifi
	bleOnly  = TransportBLE
	both     = TransportWifi | TransportBLE
)
