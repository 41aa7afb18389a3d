package state

import (
	"slices"
	"time"
)

// Action is a state transition accepted by [Store.Dispatch].
//
// The set of actions is closed: Action is sealed by an unexported method, and
// every implementation is handled by reduce. Adding an action means adding a
// type here and a case there.
type Action interface {
	isAction()
}

// SetBackendConnection replaces the backend connectivity flag.
type SetBackendConnection struct {
	Connected bool
}

// UpdateDeviceStatus replaces the fields of the device entry with the same ID
// and stamps its LastUpdate. Unknown IDs are ignored; the device table never
// grows or shrinks after construction.
type UpdateDeviceStatus struct {
	Device DeviceStatus
}

// SetGlobalError replaces the system-wide error. A nil Message clears it.
type SetGlobalError struct {
	Message *string
}

// SetLoading replaces the global busy flag.
type SetLoading struct {
	Loading bool
}

// AddNotification appends a notification. The store assigns its ID and
// Timestamp.
type AddNotification struct {
	Type     NotificationType
	Message  string
	Duration *time.Duration
}

// RemoveNotification removes the notification with the given ID, if present.
type RemoveNotification struct {
	ID string
}

// ClearNotifications empties the notification queue.
type ClearNotifications struct{}

func (SetBackendConnection) isAction() {}
func (UpdateDeviceStatus) isAction()   {}
func (SetGlobalError) isAction()       {}
func (SetLoading) isAction()           {}
func (AddNotification) isAction()      {}
func (RemoveNotification) isAction()   {}
func (ClearNotifications) isAction()   {}

// GlobalError returns a SetGlobalError action carrying msg.
func GlobalError(msg string) SetGlobalError {
	return SetGlobalError{Message: &msg}
}

// ClearGlobalError returns a SetGlobalError action that clears the slot.
func ClearGlobalError() SetGlobalError {
	return SetGlobalError{}
}

// env holds the only external inputs a reduction may read.
type env struct {
	now   time.Time
	newID func() string
}

// reduce derives the next state from prev and a. It never modifies prev:
// slices that change are copied first, unchanged ones are shared.
func reduce(prev State, a Action, e env) State {
	next := prev

	switch a := a.(type) {
	case SetBackendConnection:
		next.BackendConnected = a.Connected

	case UpdateDeviceStatus:
		idx := slices.IndexFunc(prev.Devices, func(d DeviceStatus) bool {
			return d.ID == a.Device.ID
		})
		if idx < 0 {
			return prev
		}
		updated := a.Device
		if updated.Name == "" {
			updated.Name = prev.Devices[idx].Name
		}
		updated.LastUpdate = e.now

		next.Devices = slices.Clone(prev.Devices)
		next.Devices[idx] = updated

	case SetGlobalError:
		if a.Message == nil {
			next.GlobalError = nil
		} else {
			msg := *a.Message
			next.GlobalError = &msg
		}

	case SetLoading:
		next.IsLoading = a.Loading

	case AddNotification:
		n := Notification{
			ID:        e.newID(),
			Type:      a.Type,
			Message:   a.Message,
			Timestamp: e.now,
		}
		if a.Duration != nil {
			d := *a.Duration
			n.Duration = &d
		}
		next.Notifications = make([]Notification, len(prev.Notifications), len(prev.Notifications)+1)
		copy(next.Notifications, prev.Notifications)
		next.Notifications = append(next.Notifications, n)

	case RemoveNotification:
		idx := slices.IndexFunc(prev.Notifications, func(n Notification) bool {
			return n.ID == a.ID
		})
		if idx < 0 {
			return prev
		}
		next.Notifications = slices.Delete(slices.Clone(prev.Notifications), idx, idx+1)

	case ClearNotifications:
		next.Notifications = []Notification{}
	}

	return next
}
