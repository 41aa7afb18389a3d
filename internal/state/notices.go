package state

import "time"

// Default display durations for the notice helpers.
const (
	DefaultSuccessDuration = 3 * time.Second
	DefaultErrorDuration   = 5 * time.Second
	DefaultWarningDuration = 4 * time.Second
	DefaultInfoDuration    = 3 * time.Second
)

// Success builds an AddNotification of type success with the default duration.
func Success(msg string) AddNotification {
	return notice(NotificationSuccess, msg, DefaultSuccessDuration)
}

// Error builds an AddNotification of type error with the default duration.
func Error(msg string) AddNotification {
	return notice(NotificationError, msg, DefaultErrorDuration)
}

// Warning builds an AddNotification of type warning with the default duration.
func Warning(msg string) AddNotification {
	return notice(NotificationWarning, msg, DefaultWarningDuration)
}

// Info builds an AddNotification of type info with the default duration.
func Info(msg string) AddNotification {
	return notice(NotificationInfo, msg, DefaultInfoDuration)
}

// Sticky builds an AddNotification that never expires on its own.
func Sticky(t NotificationType, msg string) AddNotification {
	return AddNotification{Type: t, Message: msg}
}

// WithDuration returns a copy of a with its expiry set to d.
func (a AddNotification) WithDuration(d time.Duration) AddNotification {
	a.Duration = &d
	return a
}

func notice(t NotificationType, msg string, d time.Duration) AddNotification {
	return AddNotification{Type: t, Message: msg, Duration: &d}
}
