package websocket

import "ecomeda/pkg/contracts/events"

// Message types pushed to clients
const (
	TypeConnection        = string(events.MessageTypeConnection)
	TypeAnalysisStarted   = string(events.MessageTypeAnalysisStarted)
	TypeAnalysisProgress  = string(events.MessageTypeAnalysisProgress)
	TypeAnalysisCompleted = string(events.MessageTypeAnalysisCompleted)
	TypeAnalysisFailed    = string(events.MessageTypeAnalysisFailed)
)

// Message is the envelope of every server push
type Message = events.Message

// heartbeat is the keepalive frame sent by browser clients
const heartbeat = `{"type":"` + string(events.MessageTypeHeartbeat) + `"}`
