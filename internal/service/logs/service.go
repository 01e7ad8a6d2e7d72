// Package logs streams deployment pipeline log lines to connected clients.
// The durable copy of a deployment's log lives on its deployment record;
// this service only handles live fan-out.
package logs

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Mayuresh-22/NimbusWave/internal/ws"
)

// Service broadcasts pipeline log lines over the websocket hub.
type Service struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a log streaming service.
func New(hub *ws.Hub, logger *slog.Logger) Service {
	return Service{hub: hub, logger: logger}
}

// Broadcast sends one pipeline log line to the project's subscribers.
func (s Service) Broadcast(projectID, line string) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"project_id": projectID,
		"source":     "pipeline",
		"message":    line,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("failed to marshal log payload", "error", err)
		return
	}
	s.hub.Broadcast(projectID, payload)
}

// Hub returns the websocket hub (used by the HTTP layer to register clients).
func (s Service) Hub() *ws.Hub {
	return s.hub
}
