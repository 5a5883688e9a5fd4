// Structure of Server-Side-Events (SSE) Model in Agora.

package entity

// Kinds of notice streamed to the UI.
const (
	NoticeCache    = "cache"
	NoticeSignal   = "signal"
	NoticeNavigate = "navigate"
)

// Notice tells the UI something it renders from has changed.
type Notice struct {
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"`
	Change string `json:"change,omitempty"`
	Signal string `json:"signal,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Uniquely defines an incoming client.
type SSEClient struct {
	// Unique Client ID
	ID string
	// Client channel
	Channel chan Notice
}
