package commsutil

import (
	"fmt"
	"strings"
)

// Default subjects.
const (
	SubjectRouter = "procurement.router.v1"
	SubjectChat   = "procurement.chat.v1"
	SubjectEvents = "procurement.events"
)

// BuildRouteEventSubject builds the per-worker route event subject.
func BuildRouteEventSubject(workerID string) string {
	return fmt.Sprintf("%s.route.%s", SubjectEvents, sanitizeToken(workerID))
}

// BuildTurnEventSubject builds the per-stage turn event subject.
func BuildTurnEventSubject(stage string) string {
	return fmt.Sprintf("%s.turn.%s", SubjectEvents, sanitizeToken(stage))
}

// sanitizeToken makes s safe as a single subject token.
func sanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
