package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
	"github.com/voxroom/signaling/internal/recovery"
)

// Join puts the session into a room and runs the reconnection check.
// The returned ReconnectInfo tells the transport whether to drive a
// replay before normal traffic resumes.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID) recovery.ReconnectInfo {
	if prev, _, ok := o.Registry.RoomOf(sid); ok {
		o.Leave(ctx, sid)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room")
	}

	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return recovery.ReconnectInfo{}
	}

	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomID)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("added to room")

	return o.Recovery.HandleConnect(ctx, roomID, session.User().ID)
}

// Leave removes the session from its room, records the disconnect and
// lets the lifecycle manager reclaim an empty room.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) {
	roomID, session, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room := o.Rooms.GetOrCreate(roomID)
	room.RemoveMember(sid)
	o.Registry.RemoveRoom(sid)

	o.Recovery.HandleDisconnect(ctx, roomID, session.User().ID)
}

// Disconnect is the connection-close path: leave the room, then drop the
// session binding entirely. conn is the connection that is closing; when
// the session has since been rebound to a newer connection (the client
// re-dialed before the old socket timed out) the teardown is skipped so
// the live binding survives. Pass nil to tear down unconditionally.
func (o *Orchestrator) Disconnect(ctx context.Context, sid core.SessionID, conn core.SignalConnection) {
	if conn != nil {
		if sess, ok := o.Registry.GetSession(sid); ok && sess.Signal() != conn {
			log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("stale connection closed, newer binding kept")
			return
		}
	}
	o.Leave(ctx, sid)
	o.Registry.Unbind(sid)
}
