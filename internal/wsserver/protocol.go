// Package wsserver streams committed preference changes to an external view
// process (the tray surface) over a localhost WebSocket.
//
// # Protocol
//
// Server to client, one JSON text frame per change:
//
//	{"type":"changes","seq":3,"source":"commit","domains":["ViewRefresh"]}
//
// Client to server:
//
//	{"action":"subscribe","domains":["ViewRefresh","HotkeyRebind"]}
//	{"action":"unsubscribe","domains":["ViewRefresh"]}
//
// A client with no subscriptions receives every change. Otherwise a frame
// carries only the subscribed domains and is skipped when none match.
package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
)

const changesType = "changes"

// ChangeEvent is one change notification frame.
type ChangeEvent struct {
	Type    string   `json:"type"`
	Seq     uint64   `json:"seq"`
	Source  string   `json:"source"` // "commit", "reload" or "reset"
	Domains []string `json:"domains"`
}

// EncodeChangeEvent validates ev and marshals it with Type set.
func EncodeChangeEvent(ev ChangeEvent) ([]byte, error) {
	if ev.Source == "" {
		return nil, errors.New("wsserver: encode change event: source must not be empty")
	}
	if len(ev.Domains) == 0 {
		return nil, errors.New("wsserver: encode change event: no domains")
	}
	ev.Type = changesType
	return json.Marshal(ev)
}

// DecodeChangeEvent parses a frame produced by EncodeChangeEvent.
func DecodeChangeEvent(frame []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("wsserver: decode change event: %w", err)
	}
	if ev.Type != changesType {
		return ChangeEvent{}, fmt.Errorf("wsserver: decode change event: unexpected type %q", ev.Type)
	}
	return ev, nil
}
