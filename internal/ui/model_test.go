// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and emitted actions
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil, "Kitchen") // Controls are optional for testing

	if model.ready {
		t.Error("expected ready to be false initially")
	}
	if model.state != "idle" {
		t.Errorf("expected idle state, got %q", model.state)
	}
	if model.volume != 85 {
		t.Errorf("expected default volume 85, got %d", model.volume)
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestApplyStatusFromPlayback(t *testing.T) {
	model := NewModel(nil, "Kitchen")

	model.applyStatus(FromStatus(playback.Status{
		State:     playback.StatePlaying,
		Ready:     true,
		Volume:    60,
		Muted:     true,
		Path:      "/lfs/audio/a.opus",
		SessionID: "abc",
		Stats: playback.Stats{
			Packets:       12,
			Blocks:        12,
			SilenceBlocks: 2,
			DecodeTime:    3 * time.Millisecond,
		},
	}))

	if !model.ready || model.state != "playing" || model.path != "/lfs/audio/a.opus" {
		t.Errorf("unexpected playback fields: %+v", model)
	}
	if model.volume != 60 || !model.muted {
		t.Errorf("expected volume 60 muted, got %d %t", model.volume, model.muted)
	}
	if model.packets != 12 || model.silence != 2 {
		t.Errorf("unexpected stats: packets=%d silence=%d", model.packets, model.silence)
	}
}

func TestPartialStatusKeepsFields(t *testing.T) {
	model := NewModel(nil, "Kitchen")
	model.applyStatus(FromStatus(playback.Status{State: playback.StatePlaying, Volume: 40}))

	losses := 2
	model.applyStatus(StatusMsg{WatchdogLosses: &losses})

	if model.state != "playing" || model.volume != 40 {
		t.Error("watchdog-only update must not reset playback fields")
	}
	if model.watchdogLosses != 2 {
		t.Errorf("expected 2 losses, got %d", model.watchdogLosses)
	}
}

func TestVolumeKeysEmitActions(t *testing.T) {
	controls := NewControls()
	var m tea.Model = NewModel(controls, "Kitchen")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})

	if got := m.(Model).volume; got != 100 {
		t.Errorf("expected volume capped at 100, got %d", got)
	}

	var last Action
	for len(controls.Actions) > 0 {
		last = <-controls.Actions
	}
	if last.Kind != ActionVolume || last.Value != 100 {
		t.Errorf("expected last action volume 100, got %+v", last)
	}
}

func TestConfiguredVolumeRange(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, "Kitchen")
	model.applyStatus(FromStatus(playback.Status{
		State:     playback.StateIdle,
		Volume:    150,
		VolumeMin: 50,
		VolumeMax: 200,
	}))

	if got := renderBar(model.volume-model.volumeMin, model.volumeMax-model.volumeMin, 10); got != "██████░░░░" {
		t.Errorf("expected bar relative to 50..200, got %q", got)
	}

	var m tea.Model = model
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	for i := 0; i < 12; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	if got := m.(Model).volume; got != 200 {
		t.Errorf("expected volume capped at configured max 200, got %d", got)
	}
	for i := 0; i < 40; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if got := m.(Model).volume; got != 50 {
		t.Errorf("expected volume floored at configured min 50, got %d", got)
	}
	if !strings.Contains(m.View(), "░░░░░░░░░░") {
		t.Errorf("expected empty bar at min:\n%s", m.View())
	}
}

func TestMuteKeyFollowsUserMute(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, "Kitchen")
	model.applyStatus(FromStatus(playback.Status{State: playback.StatePlaying, Muted: true, OutputOn: true}))

	var m tea.Model = model
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})

	a := <-controls.Actions
	if a.Kind != ActionMute || a.Value != 0 {
		t.Errorf("expected unmute action, got %+v", a)
	}
}

func TestPlaybackKeys(t *testing.T) {
	tests := []struct {
		name     string
		keys     []tea.KeyMsg
		expected Action
	}{
		{"pause", []tea.KeyMsg{{Type: tea.KeySpace, Runes: []rune{' '}}}, Action{Kind: ActionPause}},
		{"stop", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'s'}}}, Action{Kind: ActionStop}},
		{"mute", []tea.KeyMsg{{Type: tea.KeyRunes, Runes: []rune{'m'}}}, Action{Kind: ActionMute, Value: 1}},
		{"play second", []tea.KeyMsg{{Type: tea.KeyRight}, {Type: tea.KeyRight}, {Type: tea.KeyEnter}}, Action{Kind: ActionPlay, Value: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := NewControls()
			var m tea.Model = NewModel(controls, "Kitchen")
			for _, k := range tt.keys {
				m, _ = m.Update(k)
			}

			select {
			case a := <-controls.Actions:
				if a != tt.expected {
					t.Errorf("expected %+v, got %+v", tt.expected, a)
				}
			default:
				t.Fatal("expected an action")
			}
		})
	}
}

func TestEnterWithoutSelection(t *testing.T) {
	controls := NewControls()
	var m tea.Model = NewModel(controls, "Kitchen")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if len(controls.Actions) != 0 {
		t.Error("enter without a selected track must not play")
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, "Kitchen")

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit notification")
	}
}

func TestView(t *testing.T) {
	model := NewModel(nil, "Kitchen")
	if model.View() != "Loading..." {
		t.Error("expected loading view before window size")
	}

	m, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(FromStatus(playback.Status{State: playback.StatePaused, Ready: true, Path: "/lfs/audio/a.opus"}))

	view := m.View()
	for _, want := range []string{"Kitchen", "PAUSED", "a.opus", "Audio path ready"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderBar(t *testing.T) {
	if got := renderBar(50, 100, 10); got != "█████░░░░░" {
		t.Errorf("unexpected bar %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := truncate("short", 8); got != "short" {
		t.Errorf("unexpected truncation %q", got)
	}
}
