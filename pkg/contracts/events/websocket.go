// Package events defines the messages pushed to websocket clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeConnection is the welcome frame sent after registration
	MessageTypeConnection MessageType = "connection"

	// Analysis lifecycle, in order of emission
	MessageTypeAnalysisStarted   MessageType = "analysis:started"
	MessageTypeAnalysisProgress  MessageType = "analysis:progress"
	MessageTypeAnalysisCompleted MessageType = "analysis:completed"
	MessageTypeAnalysisFailed    MessageType = "analysis:failed"

	// MessageTypeHeartbeat is sent by clients to keep the connection open
	MessageTypeHeartbeat MessageType = "heartbeat"
)

// ProtocolVersion is reported in the welcome frame
const ProtocolVersion = "1.0"

// Message is the envelope of every server push
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Welcome is the data of a connection message
type Welcome struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Protocol string `json:"protocol"`
}

// AnalysisEvent is the data of every analysis message. Payload is one of
// AnalysisStarted, AnalysisProgress, AnalysisFailed or, on completion, the
// report summary.
type AnalysisEvent struct {
	AnalysisID string      `json:"analysis_id"`
	Payload    interface{} `json:"payload"`
}

// AnalysisStarted describes the input of a new analysis
type AnalysisStarted struct {
	Source string `json:"source"`
	Name   string `json:"name"`
}

// AnalysisProgress names the stage that is starting
type AnalysisProgress struct {
	Stage string `json:"stage"`
}

// AnalysisFailed carries the error that ended an analysis
type AnalysisFailed struct {
	Error string `json:"error"`
}
