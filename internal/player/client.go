package player

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/protocol"
)

// RoomUpdate is the client's room bookkeeping surfaced to its owner
// whenever membership or the watched URL changes.
type RoomUpdate struct {
	RoomID   string
	IsHost   bool
	VideoURL string
}

// Client maintains one connection to the sync server: it tracks the
// session identity, routes inbound messages to the reconciler and
// exposes the protocol's requests as methods.
type Client struct {
	conn  *websocket.Conn
	rec   *Reconciler
	clock clockwork.Clock

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	roomID    string
	isHost    bool
	videoURL  string

	onRoomUpdate func(RoomUpdate)
	done         chan struct{}
}

// Dial connects to the server and starts the read loop. onRoomUpdate
// may be nil.
func Dial(ctx context.Context, url string, p MediaPlayer, clock clockwork.Clock, onRoomUpdate func(RoomUpdate)) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:         conn,
		clock:        clock,
		onRoomUpdate: onRoomUpdate,
		done:         make(chan struct{}),
	}
	c.rec = NewReconciler(p, clock, c.sendMessage)

	go c.readLoop()
	return c, nil
}

// Reconciler exposes the reconciler so the player's local events can
// be wired to it.
func (c *Client) Reconciler() *Reconciler { return c.rec }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

func (c *Client) CreateRoom(name string) { c.sendMessage(protocol.NewCreateRoom(name)) }
func (c *Client) JoinRoom(roomID string) { c.sendMessage(protocol.NewJoinRoom(roomID)) }
func (c *Client) LeaveRoom()             { c.sendMessage(protocol.NewLeaveRoom()) }
func (c *Client) StopVideo()             { c.sendMessage(protocol.NewStopVideo()) }
func (c *Client) ForceSync()             { c.sendMessage(protocol.NewForceSync()) }

// StartVideo announces the local player's URL and position as the
// room's watch session.
func (c *Client) StartVideo(url string) {
	p := c.rec.player
	c.sendMessage(protocol.NewStartVideo(url, p.CurrentTime(), !p.Paused()))
}

func (c *Client) sendMessage(msg protocol.ClientMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "player.client").Msg("marshal outbound")
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		log.Warn().Err(err).Str("module", "player.client").Msg("send failed")
	}
}

func (c *Client) readLoop() {
	defer func() {
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "player.client").Msg("connection closed")
			return
		}

		msg, err := protocol.DecodeServer(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "player.client").Msg("dropping inbound message")
			continue
		}

		switch m := msg.(type) {
		case *protocol.SessionCreated:
			c.mu.Lock()
			c.sessionID = m.SessionID
			c.mu.Unlock()
			log.Info().Str("module", "player.client").Str("sid", m.SessionID).Msg("session started")

		case *protocol.JoinedRoom:
			c.mu.Lock()
			c.roomID = m.RoomID
			c.isHost = m.HostID == c.sessionID
			c.mu.Unlock()
			c.notifyRoomUpdate()

		case *protocol.LeaveRoom:
			c.mu.Lock()
			c.roomID = ""
			c.isHost = false
			c.mu.Unlock()
			c.notifyRoomUpdate()

		case *protocol.UpdateStream:
			c.rec.ApplyUpdateStream(m)

		case *protocol.SyncVideo:
			c.mu.Lock()
			c.videoURL = m.VideoURL
			c.mu.Unlock()
			c.notifyRoomUpdate()
			c.rec.ApplySnapshot(m)
		}
	}
}

func (c *Client) notifyRoomUpdate() {
	if c.onRoomUpdate == nil {
		return
	}
	c.mu.Lock()
	u := RoomUpdate{RoomID: c.roomID, IsHost: c.isHost, VideoURL: c.videoURL}
	c.mu.Unlock()
	c.onRoomUpdate(u)
}
