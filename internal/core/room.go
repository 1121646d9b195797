package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/domain"
)

// Room owns the authoritative playback state and the ordered membership
// of one watch party. All mutation happens under one mutex, so an
// update and the fan-out it triggers are never interleaved with another
// writer on the same room.
type Room struct {
	meta *domain.Room
	host SessionID

	mu      sync.Mutex
	members []MemberEntry // ordered, host first
	video   domain.VideoState
}

func NewRoom(meta *domain.Room, host SessionID, conn SignalConnection, now time.Time) *Room {
	return &Room{
		meta:    meta,
		host:    host,
		members: []MemberEntry{{SID: host, Conn: conn}},
		video:   domain.VideoState{LastUpdated: now},
	}
}

func (r *Room) Meta() *domain.Room { return r.meta }
func (r *Room) Host() SessionID    { return r.host }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// AddMember appends sid to the membership. Returns false if sid is
// already a member.
func (r *Room) AddMember(sid SessionID, conn SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.SID == sid {
			return false
		}
	}
	r.members = append(r.members, MemberEntry{SID: sid, Conn: conn})
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("sid", string(sid)).Msg("member added")
	return true
}

func (r *Room) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.SID == sid {
			r.members = append(r.members[:i], r.members[i+1:]...)
			log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("sid", string(sid)).Msg("member removed")
			return
		}
	}
}

func (r *Room) MembersSnapshot() []MemberEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberEntry, len(r.members))
	copy(out, r.members)
	return out
}

// State returns a copy of the authoritative video state.
func (r *Room) State() domain.VideoState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.video
}

// Patch merges the present fields of u into the video state.
func (r *Room) Patch(u domain.VideoUpdate, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video.Apply(u, now)
}

// Broadcast sends payload to every member; from is skipped unless
// includeOrigin. Refuses with ErrNoActiveVideo when the room is not
// watching anything.
func (r *Room) Broadcast(from SessionID, payload Frame, includeOrigin bool) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.video.URL == "" {
		return PublishResult{}, ErrNoActiveVideo
	}
	return r.fanOut(from, payload, includeOrigin), nil
}

// UpdateAndBroadcast applies u and fans payload out under the same lock,
// so members never observe a payload older than the write that caused it.
// Authoritative fan-out (includeOrigin) skips the active-video gate:
// a stop announcement clears the URL yet must still reach everyone.
func (r *Room) UpdateAndBroadcast(from SessionID, u domain.VideoUpdate, now time.Time, payload Frame, includeOrigin bool) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video.Apply(u, now)
	if !includeOrigin && r.video.URL == "" {
		return PublishResult{}, ErrNoActiveVideo
	}
	return r.fanOut(from, payload, includeOrigin), nil
}

// fanOut must be called with r.mu held. Sends are non-blocking; a
// closed or saturated connection is reported, not retried.
func (r *Room) fanOut(from SessionID, payload Frame, includeOrigin bool) PublishResult {
	res := PublishResult{}
	for _, m := range r.members {
		if !includeOrigin && m.SID == from {
			continue
		}
		if err := m.Conn.TrySend(payload); err != nil {
			res.Dropped = append(res.Dropped, m.SID)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
