// Package state holds the console's application state and the store that owns
// it.
//
// The main components are:
//
//   - [State]: an immutable snapshot of backend connectivity, the device
//     status table, the global error slot, the busy flag and the notification
//     queue
//   - [Action]: the closed set of transitions (SetBackendConnection,
//     UpdateDeviceStatus, SetGlobalError, SetLoading, AddNotification,
//     RemoveNotification, ClearNotifications)
//   - [Store]: applies actions one at a time and publishes snapshots
//
// The device table has fixed cardinality: it is seeded at construction and
// dispatches only ever replace entries in place.
package state
