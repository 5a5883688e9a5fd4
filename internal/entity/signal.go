// Structure of the ephemeral UI signals held by Agora outside of the shared cache.

package entity

import "time"

// One entry of the live activity feed.
type Activity struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	Action       string        `json:"action"`
	ThreadID     string        `json:"thread_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAfter time.Duration `json:"expires_after"`
}

// Single-slot system status banner.
type SystemStatus struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Message      string        `json:"message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAfter time.Duration `json:"expires_after"`
}

// One entry of the performance alert queue.
type PerformanceAlert struct {
	ID        string    `json:"id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Point-in-time copy of every ephemeral signal, read by the UI.
type SignalSnapshot struct {
	LiveUserCount     int                `json:"liveUserCount"`
	ActiveUsers       []string           `json:"activeUsers"`
	UserActivity      []Activity         `json:"userActivity"`
	SystemStatus      *SystemStatus      `json:"systemStatus"`
	PerformanceAlerts []PerformanceAlert `json:"performanceAlerts"`
}
