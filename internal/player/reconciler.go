package player

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/protocol"
)

// Reconciliation states. Local events are emitted only while idle, so
// applying an inbound snapshot cannot echo back as a new local event.
const (
	stateIdle int32 = iota
	stateReconciling
)

const (
	defaultTolerance    = 1.0 // seconds of drift accepted without a seek
	defaultSeekTimeout  = 5 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// Reconciler converts inbound sync messages into local seek/play/pause
// actions and stamps outbound local events. It is driven from a single
// goroutine; the state flag is advisory, races with near-simultaneous
// local actions resolve through the squashing rule (newest wall-clock
// stamp wins).
type Reconciler struct {
	player MediaPlayer
	clock  clockwork.Clock
	send   func(protocol.ClientMessage)

	state           atomic.Int32
	lastStateChange atomic.Int64 // wall-clock ms of the last local action

	tolerance    float64
	seekTimeout  time.Duration
	pollInterval time.Duration
}

func NewReconciler(player MediaPlayer, clock clockwork.Clock, send func(protocol.ClientMessage)) *Reconciler {
	return &Reconciler{
		player:       player,
		clock:        clock,
		send:         send,
		tolerance:    defaultTolerance,
		seekTimeout:  defaultSeekTimeout,
		pollInterval: defaultPollInterval,
	}
}

// OnLocalPlay reports a locally initiated play.
func (r *Reconciler) OnLocalPlay() { r.emit(protocol.UpdatePlay) }

// OnLocalPause reports a locally initiated pause.
func (r *Reconciler) OnLocalPause() { r.emit(protocol.UpdatePause) }

// OnLocalSeeked reports a locally initiated seek; the play state the
// player landed in decides the relayed action.
func (r *Reconciler) OnLocalSeeked() {
	if r.player.Paused() {
		r.emit(protocol.UpdatePause)
	} else {
		r.emit(protocol.UpdatePlay)
	}
}

func (r *Reconciler) emit(action string) {
	if r.state.Load() != stateIdle {
		return
	}
	nowMs := r.clock.Now().UnixMilli()
	r.lastStateChange.Store(nowMs)
	r.send(protocol.NewUpdateStream(action, nowMs, r.player.CurrentTime()))
}

// ApplyUpdateStream applies a relayed peer event. The message is
// squashed when a locally newer state change supersedes it, so
// out-of-order delivery cannot undo a fresher local action.
func (r *Reconciler) ApplyUpdateStream(m *protocol.UpdateStream) {
	if r.lastStateChange.Load() > m.Timestamp {
		log.Info().Str("module", "player.reconciler").Str("update", m.UpdateAction).Msg("squashing stale update")
		return
	}

	switch m.UpdateAction {
	case protocol.UpdatePlay:
		if r.player.Paused() {
			r.syncTimestamp(m.VideoTimestamp)
			log.Info().Str("module", "player.reconciler").Msg("playing from peer update")
			r.player.Play()
		}
	case protocol.UpdatePause:
		if !r.player.Paused() {
			r.syncTimestamp(m.VideoTimestamp)
			log.Info().Str("module", "player.reconciler").Msg("pausing from peer update")
			r.player.Pause()
		}
	default:
		log.Warn().Str("module", "player.reconciler").Str("update", m.UpdateAction).Msg("unknown update action")
	}
}

// ApplySnapshot converges the player on an authoritative snapshot. The
// target position is the snapshot position projected forward by the
// transit delay.
func (r *Reconciler) ApplySnapshot(m *protocol.SyncVideo) {
	r.state.Store(stateReconciling)
	defer r.state.Store(stateIdle)

	nowMs := r.clock.Now().UnixMilli()
	target := m.VideoTimestamp + float64(nowMs-m.Timestamp)/1000
	log.Info().Str("module", "player.reconciler").Float64("current", r.player.CurrentTime()).Float64("target", target).Msg("applying snapshot")
	r.syncTimestamp(target)

	if m.Playing && r.player.Paused() {
		r.player.Play()
	} else if !m.Playing && !r.player.Paused() {
		r.player.Pause()
	}
}

// syncTimestamp seeks to target unless the drift is within tolerance;
// sub-second drift is not worth a visible stutter.
func (r *Reconciler) syncTimestamp(target float64) {
	diff := math.Abs(r.player.CurrentTime() - target)
	if diff <= r.tolerance {
		return
	}
	log.Info().Str("module", "player.reconciler").Float64("drift", diff).Float64("target", target).Msg("seeking")
	r.player.Seek(target)
	if err := r.waitReady(r.seekTimeout); err != nil {
		log.Warn().Err(err).Str("module", "player.reconciler").Msg("seek readiness")
	}
}

// waitReady polls the player at a fixed interval until it is ready or
// the timeout elapses. Timing out is a soft failure; playback proceeds
// from wherever the seek landed.
func (r *Reconciler) waitReady(timeout time.Duration) error {
	steps := int(timeout / r.pollInterval)
	for i := 0; i < steps; i++ {
		if r.player.Ready() {
			return nil
		}
		r.clock.Sleep(r.pollInterval)
	}
	return fmt.Errorf("player wasn't ready after %s", timeout)
}
