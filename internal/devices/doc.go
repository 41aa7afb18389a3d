// Package devices is the console's boundary to the per-device backend
// routes.
//
// The backend answers device calls in two shapes: a bare resource such as
// {"connected": true} or a {status, message, data} envelope. [Normalize]
// folds both into one [Outcome] so nothing past this package sees the
// difference. [Client] performs the calls and [Reporter] turns their outcomes
// into store actions and notices.
package devices
