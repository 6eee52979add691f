package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxroom/signaling/internal/app"
	"github.com/voxroom/signaling/internal/core"
	"github.com/voxroom/signaling/internal/domain"
	"github.com/voxroom/signaling/internal/recovery"
)

var ErrNotInRoom = errors.New("not in a room")

// Orchestrator glues the live in-process plane (registry, rooms, fan-out)
// to the cross-process recovery plane (sequencer, buffer, tracker,
// coordinator). Recovery calls are best-effort by contract: a dead store
// never stops a frame from reaching connected members.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy

	Sequencer *recovery.Sequencer
	Buffer    *recovery.MessageBuffer
	Tracker   *recovery.ParticipantTracker
	Recovery  *recovery.Coordinator
}

// ChatMessage is the wire envelope for room messages. The same bytes go
// to live members and into the replay buffer, so a replayed message is
// indistinguishable from a live one apart from arrival time.
type ChatMessage struct {
	Type     string         `json:"type"`
	Room     domain.RoomID  `json:"room"`
	Sequence uint64         `json:"sequence,omitempty"`
	From     core.MemberDTO `json:"from"`
	Body     string         `json:"body"`
	SentAt   time.Time      `json:"sent_at"`
}

// PublishChat sequences, buffers and fans out one room message.
// Returns the assigned sequence (0 when the sequencer was unreachable;
// the message is then delivered live but not replayable).
func (o *Orchestrator) PublishChat(ctx context.Context, sid core.SessionID, body string) (uint64, error) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return 0, ErrNotInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0, ErrNotInRoom
	}
	user := o.Registry.GetOrCreateUser(sid)

	seq, err := o.Sequencer.Next(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Msg("sequencer unavailable, sending without buffering")
		seq = 0
	}

	msg := ChatMessage{
		Type:     "chat",
		Room:     roomID,
		Sequence: seq,
		From:     core.MemberDTO{ID: user.ID, Username: user.Username},
		Body:     body,
		SentAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	if seq > 0 {
		if err := o.Buffer.Append(ctx, roomID, seq, data); err != nil {
			log.Warn().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Uint64("seq", seq).Msg("buffer append failed")
		}
	}

	res := room.Broadcast(sid, core.Frame(data))

	if seq > 0 {
		// The sender has obviously seen its own message too.
		o.advanceWatermark(ctx, roomID, user.ID, seq)
		for _, member := range res.Delivered {
			o.advanceWatermark(ctx, roomID, member.User().ID, seq)
		}
	}

	o.applyBackpressure(roomID, room, res.Dropped)
	return seq, nil
}

// RelayTo forwards a frame to one member of the sender's room, used for
// SDP offer/answer/candidate signaling between peers.
func (o *Orchestrator) RelayTo(sid core.SessionID, target domain.UserID, data core.Frame) bool {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	ms, ok := room.Member(target)
	if !ok {
		return false
	}
	if err := ms.Signal().TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("target", string(target)).Msg("relay dropped on backpressure")
		return false
	}
	return true
}

func (o *Orchestrator) advanceWatermark(ctx context.Context, roomID domain.RoomID, userID domain.UserID, seq uint64) {
	if err := o.Tracker.AdvanceWatermark(ctx, roomID, userID, seq); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Str("user", string(userID)).Uint64("seq", seq).Msg("watermark advance failed")
	}
}

func (o *Orchestrator) applyBackpressure(roomID domain.RoomID, room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			for _, snap := range o.Registry.MembersOfRoom(roomID) {
				if snap.Session == slow {
					o.Leave(context.Background(), snap.SID)
				}
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
