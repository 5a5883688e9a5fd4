// Structure of the forum models cached by Agora.

package entity

import "slices"

// Roles a user can hold inside a thread.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
	RoleBanned    = "banned"
)

// Cached as thread:<id>. Detail view of one thread.
type Thread struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Admin           string   `json:"admin"`
	Moderators      []string `json:"moderators"`
	SubscriberCount int      `json:"subscriber_count"`
	PostCount       int      `json:"post_count"`
}

// Clone returns a deep copy so handlers never mutate a snapshot another reader holds.
func (t Thread) Clone() Thread {
	t.Moderators = slices.Clone(t.Moderators)
	return t
}

// ThreadSummary is one row of a paginated thread list.
type ThreadSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	SubscriberCount int    `json:"subscriber_count"`
	PostCount       int    `json:"post_count"`
}

// Cached as threads:list:<page>.
type ThreadPage struct {
	Page    int             `json:"page"`
	Items   []ThreadSummary `json:"items"`
	HasMore bool            `json:"has_more"`
}

// Clone returns a deep copy of the page.
func (p ThreadPage) Clone() ThreadPage {
	p.Items = slices.Clone(p.Items)
	return p
}

// Cached as thread:<id>:subscribers.
type SubscriberList struct {
	ThreadID  string   `json:"thread_id"`
	Usernames []string `json:"usernames"`
	Total     int      `json:"total"`
}

// Clone returns a deep copy of the list.
func (s SubscriberList) Clone() SubscriberList {
	s.Usernames = slices.Clone(s.Usernames)
	return s
}

// Cached as thread:<id>:role:<username>.
type UserRole struct {
	ThreadID string `json:"thread_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
