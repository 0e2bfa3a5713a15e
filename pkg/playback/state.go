// ABOUTME: Playback lifecycle states and ping results
// ABOUTME: String forms are used in logs, the shell, and the remote endpoint
package playback

import "fmt"

// State is the controller lifecycle state
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopping // transient, always followed by StateIdle
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// PingResult is the outcome of a liveness probe
type PingResult int

const (
	// PingAlive means the playback goroutine answered
	PingAlive PingResult = iota
	// PingStopped means a session ended, or the player is closed, while waiting
	PingStopped
	// PingTimeout means no answer arrived in time
	PingTimeout
)

// String returns the result name
func (r PingResult) String() string {
	switch r {
	case PingAlive:
		return "alive"
	case PingStopped:
		return "stopped"
	case PingTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ping(%d)", int(r))
	}
}
