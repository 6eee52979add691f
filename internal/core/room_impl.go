package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room   *domain.Room
	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	byUser map[domain.UserID]SessionID
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:   room,
		bySID:  make(map[SessionID]MemberSession),
		byUser: make(map[domain.UserID]SessionID),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	u := ms.User().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	r.byUser[u] = sid
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ms, ok := r.bySID[sid]; ok {
		delete(r.byUser, ms.User().ID)
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Member(userID domain.UserID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	ms, ok := r.bySID[sid]
	return ms, ok
}

// Broadcast fans a frame out to every member except the sender. Delivery
// here means "handed to the member's send queue"; the watermark layer
// treats that as consumption.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.Delivered = append(res.Delivered, m)
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", len(res.Delivered)).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		u := ms.User()
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	return out
}
