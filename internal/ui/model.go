// ABOUTME: Bubbletea model for the speaker console
// ABOUTME: Shows playback state and statistics, turns keys into actions
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	name     string
	controls *Controls

	// Playback
	ready   bool
	state   string
	path    string
	session string
	volume  int
	muted   bool

	// Accepted volume range
	volumeMin int
	volumeMax int

	// Stats
	packets     int64
	blocks      int64
	silence     int64
	slowDecodes int64
	decodeTime  time.Duration
	lastError   string

	// Liveness
	watchdogLosses int
	controllers    int

	// Track selection
	selected int

	showDebug bool

	width  int
	height int
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Ready       *bool
	State       string
	Path        string
	SessionID   string
	Volume      *int
	VolumeMin   *int
	VolumeMax   *int
	Muted       *bool
	Packets     int64
	Blocks      int64
	Silence     int64
	SlowDecodes int64
	DecodeTime  time.Duration
	LastError   string

	WatchdogLosses *int
	Controllers    *int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := m.renderHeader()
	s += m.renderNowPlaying()
	s += m.renderControls()
	s += m.renderStats()
	if m.showDebug {
		s += m.renderDebug()
	}
	s += m.renderHelp()
	return s
}

func (m Model) renderHeader() string {
	ready := "Audio path not ready"
	if m.ready {
		ready = "Audio path ready"
	}
	return fmt.Sprintf(`┌─ %-51s┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(m.name, 50), ready)
}

func (m Model) renderNowPlaying() string {
	icon := "■"
	switch m.state {
	case "playing":
		icon = "▶"
	case "paused":
		icon = "⏸"
	}

	s := fmt.Sprintf("│ %s %-51s│\n", icon, strings.ToUpper(m.state))
	if m.path != "" {
		s += fmt.Sprintf("│   File: %-45s│\n", truncate(m.path, 45))
	} else {
		s += "│   (No file)                                          │\n"
	}
	if m.lastError != "" {
		s += fmt.Sprintf("│   Error: %-44s│\n", truncate(m.lastError, 44))
	}
	return s
}

func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n"+
		"│ Track:  #%-44d│\n",
		renderBar(m.volume-m.volumeMin, m.volumeMax-m.volumeMin, 10), m.volume, muteIcon, "", m.selected)
}

func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Packets: %d  Blocks: %d  Silence: %d%-6s │
│ Decode: %-10s Slow: %-4d Watchdog losses: %-6d │
`, m.packets, m.blocks, m.silence, "", m.decodeTime.Round(time.Millisecond), m.slowDecodes, m.watchdogLosses)
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  space:Pause  s:Stop  ←/→:Track    │
│ enter:Play  d:Debug  q:Quit                          │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session: %-42s│
│   Controllers: %-38d│
`, truncate(m.session, 42), m.controllers)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+5, m.volumeMax)
		m.send(Action{Kind: ActionVolume, Value: m.volume})
	case "down":
		m.volume = max(m.volume-5, m.volumeMin)
		m.send(Action{Kind: ActionVolume, Value: m.volume})
	case "m":
		m.muted = !m.muted
		value := 0
		if m.muted {
			value = 1
		}
		m.send(Action{Kind: ActionMute, Value: value})
	case " ":
		m.send(Action{Kind: ActionPause})
	case "s":
		m.send(Action{Kind: ActionStop})
	case "right":
		m.selected++
	case "left":
		if m.selected > 1 {
			m.selected--
		}
	case "enter":
		if m.selected > 0 {
			m.send(Action{Kind: ActionPlay, Value: m.selected})
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// send forwards an action without blocking the UI
func (m Model) send(a Action) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Actions <- a:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Ready != nil {
		m.ready = *msg.Ready
	}
	if msg.State != "" {
		m.state = msg.State
		m.path = msg.Path
		m.session = msg.SessionID
		m.packets = msg.Packets
		m.blocks = msg.Blocks
		m.silence = msg.Silence
		m.slowDecodes = msg.SlowDecodes
		m.decodeTime = msg.DecodeTime
		m.lastError = msg.LastError
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.VolumeMin != nil && msg.VolumeMax != nil && *msg.VolumeMax > *msg.VolumeMin {
		m.volumeMin = *msg.VolumeMin
		m.volumeMax = *msg.VolumeMax
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.WatchdogLosses != nil {
		m.watchdogLosses = *msg.WatchdogLosses
	}
	if msg.Controllers != nil {
		m.controllers = *msg.Controllers
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
