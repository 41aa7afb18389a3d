package state

import (
	"encoding/json"
	"slices"
	"time"
)

// DeviceState is the operational state reported for an instrument.
type DeviceState string

const (
	DeviceIdle         DeviceState = "idle"
	DeviceBusy         DeviceState = "busy"
	DeviceError        DeviceState = "error"
	DeviceDisconnected DeviceState = "disconnected"
)

// String returns the string representation of the device state.
func (s DeviceState) String() string {
	return string(s)
}

// Valid reports whether s is one of the four known device states.
func (s DeviceState) Valid() bool {
	switch s {
	case DeviceIdle, DeviceBusy, DeviceError, DeviceDisconnected:
		return true
	}
	return false
}

// DeviceStatus is the last known connection and operational status of one
// instrument. LastUpdate is owned by the store: whatever the caller puts there
// is overwritten when the status is dispatched.
type DeviceStatus struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Connected  bool        `json:"connected"`
	Status     DeviceState `json:"status"`
	LastUpdate time.Time   `json:"lastUpdate"`
}

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Title returns the heading shown above a notification of this type.
func (t NotificationType) Title() string {
	switch t {
	case NotificationSuccess:
		return "Success"
	case NotificationError:
		return "Error"
	case NotificationWarning:
		return "Warning"
	case NotificationInfo:
		return "Information"
	default:
		return ""
	}
}

// Notification is a transient user-facing message. Notifications are never
// mutated once created; they leave the queue by dismissal, clear or expiry.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`

	// Duration is the time until auto-expiry. nil means the notification
	// stays until it is dismissed or cleared.
	Duration *time.Duration `json:"-"`
}

// DurationMs returns the expiry duration in milliseconds and whether one is set.
func (n Notification) DurationMs() (int64, bool) {
	if n.Duration == nil {
		return 0, false
	}
	return n.Duration.Milliseconds(), true
}

// MarshalJSON encodes Duration as whole milliseconds under "duration",
// omitted when the notification does not expire.
func (n Notification) MarshalJSON() ([]byte, error) {
	type wire Notification
	var ms *int64
	if d, ok := n.DurationMs(); ok {
		ms = &d
	}
	return json.Marshal(struct {
		wire
		Duration *int64 `json:"duration,omitempty"`
	}{wire: wire(n), Duration: ms})
}

// State is a complete snapshot of the console's application state.
//
// Snapshots returned by [Store.Snapshot] are deep copies: a consumer may keep
// or modify one without affecting the store or any other consumer.
type State struct {
	BackendConnected bool           `json:"backendConnected"`
	Devices          []DeviceStatus `json:"devices"`
	GlobalError      *string        `json:"globalError"`
	IsLoading        bool           `json:"isLoading"`
	Notifications    []Notification `json:"notifications"`
}

// Device returns the status entry for id.
func (s State) Device(id string) (DeviceStatus, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceStatus{}, false
}

// Surfaced returns the notification currently shown to the user: the most
// recently added one still in the queue.
func (s State) Surfaced() (Notification, bool) {
	if len(s.Notifications) == 0 {
		return Notification{}, false
	}
	return s.Notifications[len(s.Notifications)-1], true
}

// Clone returns a deep copy of the snapshot.
func (s State) Clone() State {
	cp := s
	cp.Devices = slices.Clone(s.Devices)
	if s.GlobalError != nil {
		msg := *s.GlobalError
		cp.GlobalError = &msg
	}
	if s.Notifications != nil {
		cp.Notifications = make([]Notification, len(s.Notifications))
		for i, n := range s.Notifications {
			if n.Duration != nil {
				d := *n.Duration
				n.Duration = &d
			}
			cp.Notifications[i] = n
		}
	}
	return cp
}
