package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/core"
	"github.com/dkeye/Lockstep/internal/domain"
	"github.com/dkeye/Lockstep/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Coord.Disconnect(sid)
		ctl.Limiter.Forget(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(sid, data)
		}
	}
}

// handleMessage routes one inbound envelope to exactly one coordinator
// operation. Malformed or unknown messages are logged and dropped.
func (ctl *SignalWSController) handleMessage(sid core.SessionID, data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("dropping message")
		return
	}
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limit exceeded, dropping message")
		return
	}

	nowMs := ctl.Coord.Clock.Now().UnixMilli()

	switch m := msg.(type) {
	case *protocol.CreateRoom:
		ctl.Coord.CreateRoom(sid, domain.RoomName(m.Name))

	case *protocol.JoinRoom:
		ctl.Coord.Join(sid, domain.RoomID(m.RoomID))

	case *protocol.LeaveRoom:
		ctl.Coord.Evict(sid)

	case *protocol.UpdateStream:
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("update", m.UpdateAction).Msg("stream update")
		// Project the originator's position forward by the transit
		// delay, then relay the event verbatim, origin excluded.
		playing := m.UpdateAction == protocol.UpdatePlay
		ts := m.VideoTimestamp + float64(nowMs-m.Timestamp)/1000
		u := domain.VideoUpdate{Playing: &playing, Timestamp: &ts}
		ctl.Coord.UpdateAndBroadcast(sid, u, data, false)

	case *protocol.StartVideo:
		u := domain.VideoUpdate{URL: &m.VideoURL, Timestamp: &m.VideoTimestamp, Playing: &m.Playing}
		payload, ok := marshal(protocol.NewSyncVideo(m.VideoURL, m.VideoTimestamp, m.Playing, nowMs))
		if !ok {
			return
		}
		ctl.Coord.UpdateAndBroadcast(sid, u, payload, true)

	case *protocol.StopVideo:
		var (
			noURL   string
			zero    float64
			stopped bool
		)
		u := domain.VideoUpdate{URL: &noURL, Timestamp: &zero, Playing: &stopped}
		payload, ok := marshal(protocol.NewSyncVideo("", 0, false, nowMs))
		if !ok {
			return
		}
		ctl.Coord.UpdateAndBroadcast(sid, u, payload, true)

	case *protocol.ForceSync:
		ctl.Coord.ForceSync(sid)
	}
}

func marshal(msg protocol.ServerMessage) (core.Frame, bool) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal broadcast payload")
		return nil, false
	}
	return b, true
}
