// Structure of the realtime wire events exchanged over the Agora event channel.

package entity

import "encoding/json"

// Inbound event names pushed by the server.
const (
	EventMemberJoined     = "member-joined-room"
	EventMemberLeft       = "member-left-room"
	EventModeratorAdded   = "moderator-added"
	EventModeratorRemoved = "moderator-removed"
	EventUserBanned       = "user-banned"
	EventUserUnbanned     = "user-unbanned"
	EventAdminTransferred = "admin-transferred"
	EventContentCreated   = "new-content-created"
	EventSubthreadUpdated = "subthread-updated"
	EventLiveUserCount    = "live-user-count"
	EventActiveUsers      = "active-users"
	EventUserActivity     = "user-activity"
	EventSystemStatus     = "system-status"
	EventPerformanceAlert = "performance-alert"
)

// Outbound event names emitted by the client.
const (
	EmitJoinRoom        = "join-room"
	EmitLeaveRoom       = "leave-room"
	EmitUserActivity    = "user-activity"
	EmitPostShare       = "post-share"
	EmitMention         = "mention"
	EmitBanUser         = "ban-user"
	EmitUnbanUser       = "unban-user"
	EmitSubthreadUpdate = "subthread-update"
)

// Frame is the unit exchanged on the wire: { "event": name, "payload": {...} }.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload of join-room and leave-room.
type RoomRequest struct {
	Room string `json:"room" valid:"required,roomid"`
}

// Payload of member-joined-room and member-left-room.
type MembershipEvent struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Username string `json:"username" valid:"optional,nospace"`
}

// Payload of moderator-added, moderator-removed, user-banned and user-unbanned.
type UserScopeEvent struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Username string `json:"username" valid:"required,nospace"`
}

// Payload of admin-transferred.
type AdminTransferEvent struct {
	ThreadID      string `json:"threadId" valid:"required,roomid"`
	NewAdmin      string `json:"newAdmin" valid:"required,nospace"`
	PreviousAdmin string `json:"previousAdmin" valid:"optional,nospace"`
}

// Payload of new-content-created.
type ContentEvent struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Kind     string `json:"kind" valid:"optional,in(post|comment)"`
	Author   string `json:"author" valid:"optional"`
}

// Payload of subthread-updated.
type SubthreadEvent struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Title    string `json:"title" valid:"required"`
}

// Payload of live-user-count.
type LiveUserCountEvent struct {
	Count *int `json:"count" valid:"required"`
}

// Payload of active-users.
type ActiveUsersEvent struct {
	Usernames []string `json:"usernames" valid:"-"`
}

// Payload of user-activity (both directions).
type ActivityEvent struct {
	Username string `json:"username" valid:"required,nospace"`
	Action   string `json:"action" valid:"required"`
	ThreadID string `json:"threadId" valid:"optional,roomid"`
}

// Payload of system-status.
type SystemStatusEvent struct {
	Status  string `json:"status" valid:"required"`
	Message string `json:"message" valid:"optional"`
}

// Payload of performance-alert.
type PerformanceAlertEvent struct {
	Metric    string  `json:"metric" valid:"required"`
	Value     float64 `json:"value" valid:"-"`
	Threshold float64 `json:"threshold" valid:"-"`
	Message   string  `json:"message" valid:"optional"`
}

// Payload of post-share.
type PostShare struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	PostID   string `json:"postId" valid:"required"`
	Channel  string `json:"channel" valid:"optional"`
}

// Payload of mention.
type Mention struct {
	ThreadID  string `json:"threadId" valid:"required,roomid"`
	PostID    string `json:"postId" valid:"optional"`
	From      string `json:"from" valid:"required,nospace"`
	Mentioned string `json:"mentioned" valid:"required,nospace"`
}

// Payload of ban-user and unban-user.
type BanRequest struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Username string `json:"username" valid:"required,nospace"`
	Reason   string `json:"reason" valid:"optional"`
}

// Payload of subthread-update.
type SubthreadUpdate struct {
	ThreadID string `json:"threadId" valid:"required,roomid"`
	Title    string `json:"title" valid:"required"`
}
