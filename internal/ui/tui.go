// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channel of operator actions
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

// ActionKind identifies an operator request from the TUI
type ActionKind int

const (
	ActionVolume ActionKind = iota
	ActionMute
	ActionPause
	ActionStop
	ActionPlay
)

// Action is an operator request. Value carries the volume level, the mute
// flag (non-zero mutes), or the library index to play.
type Action struct {
	Kind  ActionKind
	Value int
}

// QuitMsg is sent when the operator quits the TUI
type QuitMsg struct{}

// Controls holds channels from the TUI to the daemon
type Controls struct {
	Actions chan Action
	Quit    chan QuitMsg
}

// NewControls creates a control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, name string) Model {
	return Model{
		name:      name,
		state:     "idle",
		volume:    85,
		volumeMin: 0,
		volumeMax: 100,
		controls:  controls,
	}
}

// Run creates the TUI program; the caller starts it with Run on the result
func Run(controls *Controls, name string) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls, name), tea.WithAltScreen())
	return p, nil
}

// FromStatus converts an engine snapshot into a TUI update
func FromStatus(st playback.Status) StatusMsg {
	return StatusMsg{
		Ready:       &st.Ready,
		State:       st.State.String(),
		Path:        st.Path,
		SessionID:   st.SessionID,
		Volume:      &st.Volume,
		VolumeMin:   &st.VolumeMin,
		VolumeMax:   &st.VolumeMax,
		Muted:       &st.Muted,
		Packets:     st.Stats.Packets,
		Blocks:      st.Stats.Blocks,
		Silence:     st.Stats.SilenceBlocks,
		SlowDecodes: st.Stats.SlowDecodes,
		DecodeTime:  st.Stats.DecodeTime,
		LastError:   st.Stats.LastError,
	}
}
