package core

import "github.com/voxroom/signaling/internal/domain"

// Frame is a raw outbound payload (JSON-encoded signal message).
type Frame []byte

type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a user and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	User() *domain.User
	Signal() SignalConnection
}

// PublishResult reports who actually got a frame and who dropped it on
// backpressure. Delivered feeds the watermark advancement; Dropped feeds
// the backpressure policy.
type PublishResult struct {
	Delivered []MemberSession
	Dropped   []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)
	Member(userID domain.UserID) (MemberSession, bool)
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(id domain.RoomID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
