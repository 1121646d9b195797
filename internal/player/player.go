// Package player is the client side of the sync protocol: a media
// player abstraction, the reconciler that applies inbound state to it,
// and a WebSocket client tying both to a server.
package player

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MediaPlayer is the local media element the reconciler drives.
type MediaPlayer interface {
	CurrentTime() float64
	Seek(seconds float64)
	Play()
	Pause()
	Paused() bool
	// Ready reports whether the player has enough data to play from
	// the current position.
	Ready() bool
}

// SimPlayer is a headless stand-in for a video element: its position
// advances with the clock while playing. Used by cmd/client and tests.
type SimPlayer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	base    float64
	at      time.Time
	playing bool
}

func NewSimPlayer(clock clockwork.Clock) *SimPlayer {
	return &SimPlayer{clock: clock, at: clock.Now()}
}

func (p *SimPlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *SimPlayer) position() float64 {
	if !p.playing {
		return p.base
	}
	return p.base + p.clock.Now().Sub(p.at).Seconds()
}

func (p *SimPlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = seconds
	p.at = p.clock.Now()
}

func (p *SimPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.at = p.clock.Now()
	p.playing = true
}

func (p *SimPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.base = p.position()
	p.playing = false
}

func (p *SimPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing
}

func (p *SimPlayer) Ready() bool { return true }
