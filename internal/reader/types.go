package reader

import "time"

// Mode selects how a reader delivers tag events: host mode is polled via
// the mutation protocol engine's inventory routine; notification mode
// additionally pushes asynchronous events to a listener.
type Mode string

const (
	ModeHost         Mode = "host"
	ModeNotification Mode = "notification"
)

// Config describes a single reader endpoint.
type Config struct {
	Name     string
	Address  string
	Port     int
	Mode     Mode
	Antennas []int
}

// AntennaMask is the bitwise-OR of 1<<(n-1) for each configured antenna.
func (c Config) AntennaMask() uint16 {
	var mask uint16
	for _, n := range c.Antennas {
		if n >= 1 && n <= 8 {
			mask |= 1 << uint(n-1)
		}
	}
	return mask
}

// EventKind discriminates a NotificationEvent's payload shape.
type EventKind string

const (
	EventKindTag            EventKind = "TAG_EVENT"
	EventKindIdentification EventKind = "IDENTIFICATION_EVENT"
)

// RSSISample is a single per-antenna signal-strength reading attached to a
// NotificationEvent.
type RSSISample struct {
	Antenna uint8
	RSSI    int32
}

// NotificationEvent is a timestamped, immutable record of an asynchronous
// tag event delivered by a reader in notification mode.
type NotificationEvent struct {
	Timestamp       time.Time
	Kind            EventKind
	TagIDHex        string
	RSSI            []RSSISample
	ReaderTimestamp *time.Time
	ReaderType      string
	FirmwareVersion string
}
