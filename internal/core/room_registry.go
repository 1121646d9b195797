package core

import (
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/domain"
)

const (
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"
	RoomIDLength   = 6
)

// RoomRegistry creates, looks up and destroys rooms. It does not evict
// members; that is the coordinator's job.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	clock clockwork.Clock
	newID func() domain.RoomID
}

func NewRoomRegistry(clock clockwork.Clock) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*Room),
		clock: clock,
		newID: randomRoomID,
	}
}

func randomRoomID() domain.RoomID {
	b := make([]byte, RoomIDLength)
	for i := range b {
		b[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
	}
	return domain.RoomID(b)
}

// Create registers a room with host as its sole member. Candidate ids
// are drawn until one is unique among live rooms; collisions are
// unlikely but the retry loop is mandatory.
func (rr *RoomRegistry) Create(host SessionID, conn SignalConnection, name domain.RoomName) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	id := rr.newID()
	for _, taken := rr.rooms[id]; taken; _, taken = rr.rooms[id] {
		id = rr.newID()
	}

	room := NewRoom(&domain.Room{ID: id, Name: name}, host, conn, rr.clock.Now())
	rr.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Str("host", string(host)).Msg("room created")
	return room
}

func (rr *RoomRegistry) Get(id domain.RoomID) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.rooms[id]
	return room, ok
}

// Delete is idempotent.
func (rr *RoomRegistry) Delete(id domain.RoomID) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.rooms, id)
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room deleted")
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
	Watching    bool            `json:"watching"`
}

func (rr *RoomRegistry) List() []RoomInfo {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rr.rooms))
	for id, r := range rr.rooms {
		out = append(out, RoomInfo{
			ID:          id,
			Name:        r.Meta().Name,
			MemberCount: r.MemberCount(),
			Watching:    r.State().URL != "",
		})
	}
	return out
}
