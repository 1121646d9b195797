// Headless watch-party client: joins or creates a room with a
// simulated media player and mirrors the room's playback state.
// Useful for verifying sync behavior without a browser.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/player"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/api/ws", "server WebSocket URL")
	join := flag.String("join", "", "room id to join; empty creates a new room")
	name := flag.String("name", "cli", "room name when creating")
	watch := flag.String("watch", "", "video URL to start watching (host only)")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := clockwork.NewRealClock()
	p := player.NewSimPlayer(clock)

	c, err := player.Dial(ctx, *addr, p, clock, func(u player.RoomUpdate) {
		log.Info().Str("room", u.RoomID).Bool("host", u.IsHost).Str("url", u.VideoURL).Msg("room update")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}

	if *join != "" {
		c.JoinRoom(*join)
	} else {
		c.CreateRoom(*name)
	}

	if *watch != "" {
		// Give the create/join round trip a moment before announcing.
		time.Sleep(500 * time.Millisecond)
		p.Play()
		c.StartVideo(*watch)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			log.Info().Float64("position", p.CurrentTime()).Bool("paused", p.Paused()).Msg("player state")
		case <-ctx.Done():
			c.LeaveRoom()
			_ = c.Close()
			return
		case <-c.Done():
			return
		}
	}
}
