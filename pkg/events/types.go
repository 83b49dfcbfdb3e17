// Package events defines observability events emitted by the router and the orchestrator,
// and the publishers that deliver them.
package events

// Event kinds.
const (
	KindRoute = "route"
	KindTurn  = "turn"
)

// RouteEvent is emitted once per routed request.
type RouteEvent struct {
	RequestID    string  `json:"requestId"`
	Method       string  `json:"method"`
	SourceWorker string  `json:"sourceWorker,omitempty"`
	TargetWorker string  `json:"targetWorker"`
	Success      bool    `json:"success"`
	ErrorCode    int     `json:"errorCode,omitempty"`
	DurationMs   float64 `json:"durationMs"`
	Timestamp    string  `json:"timestamp"`
}

// TurnEvent is emitted once per orchestrator turn.
type TurnEvent struct {
	SessionID string `json:"sessionId"`
	FromStage string `json:"fromStage"`
	ToStage   string `json:"toStage"`
	Timestamp string `json:"timestamp"`
}

// Envelope wraps an event for transports that multiplex kinds on one channel.
type Envelope struct {
	Kind  string      `json:"kind"`
	Route *RouteEvent `json:"route,omitempty"`
	Turn  *TurnEvent  `json:"turn,omitempty"`
}
