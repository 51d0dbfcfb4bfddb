// Package health contiene DTOs para /healthz.
package health

import "time"

// HealthStatus representa el estado de un componente.
type HealthStatus struct {
	Status  string `json:"status"` // "ok" | "error" | "disabled" | "cooling_down"
	Message string `json:"message,omitempty"`
}

// HealthResponse es la respuesta completa.
type HealthResponse struct {
	Status     string                  `json:"status"` // "ready" | "degraded" | "unavailable"
	Components map[string]HealthStatus `json:"components"`
	Version    string                  `json:"version,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
}
