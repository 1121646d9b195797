package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/core"
	"github.com/dkeye/Lockstep/internal/domain"
)

type sessionEntry struct {
	RoomID domain.RoomID // empty while unjoined
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry owns session identities. It is the only way other
// components reach a transport; a lookup miss after disconnect is a
// recoverable race, not a fault.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

// Bind allocates a fresh session id for conn. The transport handle is
// borrowed; Remove closes it.
func (r *Registry) Bind(conn core.SignalConnection, cancel context.CancelFunc) core.SessionID {
	sid := core.SessionID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session bound")
	return sid
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// RoomOf reports the room the session currently belongs to, if any.
func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) SetRoom(sid core.SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = roomID
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room set")
	return true
}

// ClearRoom drops the session's room reference. Also used to self-heal
// a reference to a room that no longer exists.
func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.RoomID = ""
	}
}

// Remove closes the transport and drops the entry. Idempotent.
func (r *Registry) Remove(sid core.SessionID) {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if ok {
		delete(r.sessions, sid)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	e.Conn.Close()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session removed")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
