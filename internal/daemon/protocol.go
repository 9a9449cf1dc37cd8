// Package daemon drives the toolkit's run process in machine mode.
//
// The run process speaks a line-oriented JSON protocol over stdio. Every
// stdout line that starts with '[' or '{' carries one or more event
// envelopes; everything else is plain log output. Requests are written to
// stdin as single-element arrays, one per line.
package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event names reported by the run process.
const (
	EventDaemonConnected  = "daemon.connected"
	EventDaemonLogMessage = "daemon.logMessage"
	EventAppStart         = "app.start"
	EventAppStarted       = "app.started"
	EventAppDebugPort     = "app.debugPort"
	EventAppProgress      = "app.progress"
	EventAppLog           = "app.log"
	EventAppStop          = "app.stop"
)

// MethodAppRestart is the request method for both reload and restart.
const MethodAppRestart = "app.restart"

// ReloadReason tags every request peek sends.
const ReloadReason = "peek"

// Event is one inbound envelope.
type Event struct {
	Event  string          `json:"event"`
	Params json.RawMessage `json:"params,omitempty"`
	// Responses to our own requests carry an id and no event name.
	ID *int64 `json:"id,omitempty"`
}

// AppID extracts params.appId, which most app.* events carry.
func (e Event) AppID() string {
	if len(e.Params) == 0 {
		return ""
	}
	var p struct {
		AppID string `json:"appId"`
	}
	if err := json.Unmarshal(e.Params, &p); err != nil {
		return ""
	}
	return p.AppID
}

// RestartParams are the parameters of an app.restart request.
type RestartParams struct {
	AppID       string `json:"appId"`
	FullRestart bool   `json:"fullRestart"`
	Pause       bool   `json:"pause"`
	Reason      string `json:"reason"`
}

// Request is one outbound envelope.
type Request struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params RestartParams `json:"params"`
}

// IsRestart reports whether the request asks for a full restart.
func (r Request) IsRestart() bool {
	return r.Params.FullRestart
}

// IsEnvelope reports whether a stdout line looks like protocol traffic
// rather than plain output.
func IsEnvelope(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}
	return (line[0] == '[' && line[len(line)-1] == ']') ||
		(line[0] == '{' && line[len(line)-1] == '}')
}

// DecodeEvents parses one envelope line holding either an array of events
// or a single event.
func DecodeEvents(line []byte) ([]Event, error) {
	line = bytes.TrimSpace(line)
	if !IsEnvelope(line) {
		return nil, fmt.Errorf("not an envelope: %q", line)
	}

	if line[0] == '{' {
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}

	var events []Event
	if err := json.Unmarshal(line, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// EncodeRequest serializes req as a single protocol line including the
// trailing newline.
func EncodeRequest(req Request) ([]byte, error) {
	data, err := json.Marshal([]Request{req})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
