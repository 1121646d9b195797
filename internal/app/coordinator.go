package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/core"
	"github.com/dkeye/Lockstep/internal/domain"
	"github.com/dkeye/Lockstep/internal/protocol"
)

// Coordinator is the only component that mutates room and session
// state. Each operation resolves the caller's session, self-heals
// stale room references, and reports protocol violations as logged
// no-ops, never as connection-fatal errors.
type Coordinator struct {
	Registry *Registry
	Rooms    *core.RoomRegistry
	Clock    clockwork.Clock
}

func NewCoordinator(reg *Registry, rooms *core.RoomRegistry, clock clockwork.Clock) *Coordinator {
	return &Coordinator{Registry: reg, Rooms: rooms, Clock: clock}
}

// Connect binds a fresh session to conn and greets it with its identity.
func (c *Coordinator) Connect(conn core.SignalConnection, cancel context.CancelFunc) core.SessionID {
	sid := c.Registry.Bind(conn, cancel)
	c.send(conn, sid, protocol.NewSessionCreated(string(sid)))
	return sid
}

// Disconnect evicts the session from its room, if any, then removes it.
func (c *Coordinator) Disconnect(sid core.SessionID) {
	if _, ok := c.Registry.RoomOf(sid); ok {
		c.Evict(sid)
	}
	c.Registry.Remove(sid)
}

// CreateRoom registers a room with sid as host and sole member. A
// session already in a room keeps it: the call is an idempotent no-op
// returning the existing room id.
func (c *Coordinator) CreateRoom(sid core.SessionID, name domain.RoomName) domain.RoomID {
	if roomID, ok := c.Registry.RoomOf(sid); ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("tried to create a room while in one")
		return roomID
	}
	conn, ok := c.Registry.Conn(sid)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("create from unknown session")
		return ""
	}
	if len(name) > domain.MaxRoomNameLen {
		name = name[:domain.MaxRoomNameLen]
	}

	room := c.Rooms.Create(sid, conn, name)
	roomID := room.Meta().ID
	c.Registry.SetRoom(sid, roomID)
	c.send(conn, sid, protocol.NewJoinedRoom(string(roomID), string(sid)))
	return roomID
}

// Join appends sid to the room and sends it the membership
// confirmation followed by a live-projected snapshot. Joining a
// nonexistent room is a logged silent drop; a session already in a
// room stays where it is.
func (c *Coordinator) Join(sid core.SessionID, roomID domain.RoomID) {
	if cur, ok := c.Registry.RoomOf(sid); ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(cur)).Msg("tried to join while in a room")
		return
	}
	room, ok := c.Rooms.Get(roomID)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("join to nonexistent room dropped")
		return
	}
	conn, ok := c.Registry.Conn(sid)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("join from unknown session")
		return
	}
	if !room.AddMember(sid, conn) {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("already a member")
		return
	}
	c.Registry.SetRoom(sid, roomID)
	c.send(conn, sid, protocol.NewJoinedRoom(string(roomID), string(room.Host())))
	c.sendSnapshot(sid, conn, room)
}

// Evict removes sid from its room. Host departure dissolves the room:
// every member is notified and unlinked, then the room is deleted.
func (c *Coordinator) Evict(sid core.SessionID) {
	roomID, ok := c.Registry.RoomOf(sid)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("tried to leave but isn't in a room")
		return
	}
	room, ok := c.Rooms.Get(roomID)
	if !ok {
		c.Registry.ClearRoom(sid)
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("session had stale room reference")
		return
	}

	if room.Host() == sid {
		for _, m := range room.MembersSnapshot() {
			log.Info().Str("module", "app.coordinator").Str("sid", string(m.SID)).Str("room", string(roomID)).Msg("evicting member")
			c.send(m.Conn, m.SID, protocol.NewLeaveRoom())
			c.Registry.ClearRoom(m.SID)
		}
		log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).Msg("host left, closing room")
		c.Rooms.Delete(roomID)
		return
	}

	room.RemoveMember(sid)
	c.Registry.ClearRoom(sid)
	if conn, ok := c.Registry.Conn(sid); ok {
		c.send(conn, sid, protocol.NewLeaveRoom())
	}
}

// UpdateVideoInfo merges the present fields of u into the room's video
// state and stamps it with the current instant.
func (c *Coordinator) UpdateVideoInfo(sid core.SessionID, u domain.VideoUpdate) {
	room, ok := c.resolveRoom(sid)
	if !ok {
		return
	}
	room.Patch(u, c.Clock.Now())
}

// ForceSync sends the caller, and only the caller, a live-projected
// snapshot of its room.
func (c *Coordinator) ForceSync(sid core.SessionID) {
	room, ok := c.resolveRoom(sid)
	if !ok {
		return
	}
	conn, ok := c.Registry.Conn(sid)
	if !ok {
		return
	}
	c.sendSnapshot(sid, conn, room)
}

// Broadcast fans payload out to the caller's room. includeOrigin
// selects whether the caller receives its own message back.
func (c *Coordinator) Broadcast(sid core.SessionID, payload core.Frame, includeOrigin bool) {
	room, ok := c.resolveRoom(sid)
	if !ok {
		return
	}
	if _, err := room.Broadcast(sid, payload, includeOrigin); err != nil {
		if errors.Is(err, core.ErrNoActiveVideo) {
			log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("broadcast to a room that isn't watching")
		}
	}
}

// UpdateAndBroadcast performs the write and the fan-out as one atomic
// step on the room, so no member observes a payload older than the
// update that triggered it.
func (c *Coordinator) UpdateAndBroadcast(sid core.SessionID, u domain.VideoUpdate, payload core.Frame, includeOrigin bool) {
	room, ok := c.resolveRoom(sid)
	if !ok {
		return
	}
	if _, err := room.UpdateAndBroadcast(sid, u, c.Clock.Now(), payload, includeOrigin); err != nil {
		if errors.Is(err, core.ErrNoActiveVideo) {
			log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("broadcast to a room that isn't watching")
		}
	}
}

// resolveRoom maps the session to its live room. A reference to a room
// that no longer exists is cleared and treated as not-in-a-room.
func (c *Coordinator) resolveRoom(sid core.SessionID) (*core.Room, bool) {
	roomID, ok := c.Registry.RoomOf(sid)
	if !ok {
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Msg("not in a room")
		return nil, false
	}
	room, ok := c.Rooms.Get(roomID)
	if !ok {
		c.Registry.ClearRoom(sid)
		log.Warn().Str("module", "app.coordinator").Str("sid", string(sid)).Str("room", string(roomID)).Msg("session had stale room reference")
		return nil, false
	}
	return room, true
}

func (c *Coordinator) sendSnapshot(sid core.SessionID, conn core.SignalConnection, room *core.Room) {
	now := c.Clock.Now()
	st := room.State()
	c.send(conn, sid, protocol.NewSyncVideo(st.URL, st.Projected(now), st.Playing, now.UnixMilli()))
}

func (c *Coordinator) send(conn core.SignalConnection, sid core.SessionID, msg protocol.ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("marshal outbound message")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "app.coordinator").Str("sid", string(sid)).Msg("send skipped")
	}
}
