// ABOUTME: Remote control message types
// ABOUTME: JSON envelopes exchanged over the control WebSocket
package remote

import (
	"encoding/json"
	"time"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

// Message types
const (
	TypeHello   = "speaker/hello"
	TypeCommand = "speaker/command"
	TypeResult  = "speaker/result"
	TypeStatus  = "speaker/status"
)

// Message is the top-level wrapper for all control messages
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello is sent by the speaker when a connection opens
type Hello struct {
	ServerID     string `json:"server_id"`
	ConnectionID string `json:"connection_id"`
	Name         string `json:"name"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	Version      string `json:"version"`
}

// Command carries one shell command line
type Command struct {
	Line string `json:"line"`
}

// Result answers a Command with the same message ID
type Result struct {
	OK       bool   `json:"ok"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Category string `json:"category,omitempty"`
}

// Status is pushed on every state change and after each command
type Status struct {
	State       string        `json:"state"`
	Ready       bool          `json:"ready"`
	Playing     bool          `json:"playing"`
	Paused      bool          `json:"paused"`
	Volume      int           `json:"volume"`
	Muted       bool          `json:"muted"`
	OutputOn    bool          `json:"output_on"`
	Path        string        `json:"path,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
	Packets     int64         `json:"packets"`
	Blocks      int64         `json:"blocks"`
	DecodeTime  time.Duration `json:"decode_time_ns"`
	TagsSkipped int64         `json:"tags_skipped"`
	LastError   string        `json:"last_error,omitempty"`
}

// StatusFrom converts an engine snapshot
func StatusFrom(st playback.Status) Status {
	return Status{
		State:       st.State.String(),
		Ready:       st.Ready,
		Playing:     st.Playing,
		Paused:      st.Paused,
		Volume:      st.Volume,
		Muted:       st.Muted,
		OutputOn:    st.OutputOn,
		Path:        st.Path,
		SessionID:   st.SessionID,
		Packets:     st.Stats.Packets,
		Blocks:      st.Stats.Blocks,
		DecodeTime:  st.Stats.DecodeTime,
		TagsSkipped: st.Stats.TagsSkipped,
		LastError:   st.Stats.LastError,
	}
}

func newMessage(msgType, id string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, ID: id, Payload: data}, nil
}
