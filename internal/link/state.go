// Package link implements the producer-side link transport: the state
// machine, FIFO queue, and exponential-backoff reconnect loop described in
// §4.3/§4.5 of the tracing and logging fabric this module implements.
// Its reconnect shape is grounded on
// pkg/messaging/rabbitmq/connection.go's connectionManager, with the AMQP
// dial swapped for a WebSocket dial.
package link

import "fmt"

// State is one of the link's lifecycle states (§4.5).
type State int

const (
	// StateDisconnected is the initial state and the state re-entered after
	// every lost connection.
	StateDisconnected State = iota
	// StateConnecting means a dial attempt is in flight.
	StateConnecting
	// StateConnected means frames may be sent immediately.
	StateConnected
	// StateGaveUp is terminal: reconnects have been exhausted.
	StateGaveUp
	// StateClosed is terminal: Close was called explicitly.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGaveUp:
		return "gaveUp"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
