// Package protocol defines the wire envelopes of the sync protocol.
// Every message is a JSON object tagged by requestAction. Each direction
// has a closed set of types; adding an action means adding a type here
// and a case in the decode switch.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ActionSessionCreated = "sessionCreated"
	ActionCreateRoom     = "createRoom"
	ActionJoinRoom       = "joinRoom"
	ActionLeaveRoom      = "leaveRoom"
	ActionUpdateStream   = "updateStream"
	ActionStartVideo     = "startVideo"
	ActionStopVideo      = "stopVideo"
	ActionForceSync      = "forceSync"
	ActionSyncVideo      = "syncVideo"
)

// UpdateStream.UpdateAction values.
const (
	UpdatePlay  = "play"
	UpdatePause = "pause"
)

var ErrUnknownAction = errors.New("unknown request action")

// ClientMessage is a message a client may send to the server.
type ClientMessage interface{ clientMessage() }

// ServerMessage is a message the server may send to a client.
type ServerMessage interface{ serverMessage() }

// CreateRoom asks the server for a new room. The name is advisory.
type CreateRoom struct {
	RequestAction string `json:"requestAction"`
	Name          string `json:"name,omitempty"`
}

// JoinRoom (client to server) asks to join an existing room.
type JoinRoom struct {
	RequestAction string `json:"requestAction"`
	RoomID        string `json:"roomId"`
}

// LeaveRoom is both the client's leave request and the server's
// eviction notice; the payload is the bare tag either way.
type LeaveRoom struct {
	RequestAction string `json:"requestAction"`
}

// UpdateStream is a raw local play/pause/seek event. The server relays
// it verbatim to the other room members. Timestamp is wall-clock ms at
// the originator; VideoTimestamp is seconds into the media.
type UpdateStream struct {
	RequestAction  string  `json:"requestAction"`
	UpdateAction   string  `json:"updateAction"`
	Timestamp      int64   `json:"timestamp"`
	VideoTimestamp float64 `json:"videoTimestamp"`
}

// StartVideo announces the host began watching a URL.
type StartVideo struct {
	RequestAction  string  `json:"requestAction"`
	VideoURL       string  `json:"videoUrl"`
	VideoTimestamp float64 `json:"videoTimestamp"`
	Playing        bool    `json:"playing"`
}

// StopVideo ends the watch session.
type StopVideo struct {
	RequestAction string `json:"requestAction"`
}

// ForceSync requests an authoritative snapshot for the caller only.
type ForceSync struct {
	RequestAction string `json:"requestAction"`
}

// SessionCreated assigns a connection its session identity.
type SessionCreated struct {
	RequestAction string `json:"requestAction"`
	SessionID     string `json:"sessionId"`
}

// JoinedRoom confirms membership and reveals the host identity.
// Wire tag is joinRoom, same as the client request.
type JoinedRoom struct {
	RequestAction string `json:"requestAction"`
	RoomID        string `json:"roomId"`
	HostID        string `json:"hostId"`
}

// SyncVideo is the authoritative snapshot every member converges to.
// Timestamp is wall-clock ms at the server when the snapshot was taken,
// so receivers can project VideoTimestamp forward by the transit delay.
type SyncVideo struct {
	RequestAction  string  `json:"requestAction"`
	VideoURL       string  `json:"videoUrl"`
	VideoTimestamp float64 `json:"videoTimestamp"`
	Playing        bool    `json:"playing"`
	Timestamp      int64   `json:"timestamp"`
}

func (CreateRoom) clientMessage()   {}
func (JoinRoom) clientMessage()     {}
func (LeaveRoom) clientMessage()    {}
func (UpdateStream) clientMessage() {}
func (StartVideo) clientMessage()   {}
func (StopVideo) clientMessage()    {}
func (ForceSync) clientMessage()    {}

func (SessionCreated) serverMessage() {}
func (JoinedRoom) serverMessage()     {}
func (LeaveRoom) serverMessage()      {}
func (UpdateStream) serverMessage()   {}
func (SyncVideo) serverMessage()      {}

func NewCreateRoom(name string) *CreateRoom {
	return &CreateRoom{RequestAction: ActionCreateRoom, Name: name}
}

func NewJoinRoom(roomID string) *JoinRoom {
	return &JoinRoom{RequestAction: ActionJoinRoom, RoomID: roomID}
}

func NewLeaveRoom() *LeaveRoom {
	return &LeaveRoom{RequestAction: ActionLeaveRoom}
}

func NewUpdateStream(action string, timestamp int64, videoTimestamp float64) *UpdateStream {
	return &UpdateStream{
		RequestAction:  ActionUpdateStream,
		UpdateAction:   action,
		Timestamp:      timestamp,
		VideoTimestamp: videoTimestamp,
	}
}

func NewStartVideo(url string, videoTimestamp float64, playing bool) *StartVideo {
	return &StartVideo{
		RequestAction:  ActionStartVideo,
		VideoURL:       url,
		VideoTimestamp: videoTimestamp,
		Playing:        playing,
	}
}

func NewStopVideo() *StopVideo {
	return &StopVideo{RequestAction: ActionStopVideo}
}

func NewForceSync() *ForceSync {
	return &ForceSync{RequestAction: ActionForceSync}
}

func NewSessionCreated(sessionID string) *SessionCreated {
	return &SessionCreated{RequestAction: ActionSessionCreated, SessionID: sessionID}
}

func NewJoinedRoom(roomID, hostID string) *JoinedRoom {
	return &JoinedRoom{RequestAction: ActionJoinRoom, RoomID: roomID, HostID: hostID}
}

func NewSyncVideo(url string, videoTimestamp float64, playing bool, timestamp int64) *SyncVideo {
	return &SyncVideo{
		RequestAction:  ActionSyncVideo,
		VideoURL:       url,
		VideoTimestamp: videoTimestamp,
		Playing:        playing,
		Timestamp:      timestamp,
	}
}

type envelope struct {
	RequestAction string `json:"requestAction"`
}

// DecodeClient parses a client-to-server message.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.RequestAction {
	case ActionCreateRoom:
		m := &CreateRoom{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionJoinRoom:
		m := &JoinRoom{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionLeaveRoom:
		m := &LeaveRoom{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionUpdateStream:
		m := &UpdateStream{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionStartVideo:
		m := &StartVideo{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionStopVideo:
		m := &StopVideo{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionForceSync:
		m := &ForceSync{}
		err = json.Unmarshal(data, m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.RequestAction)
	}
	if err != nil {
		return nil, fmt.Errorf("bad %s payload: %w", env.RequestAction, err)
	}
	return msg, nil
}

// DecodeServer parses a server-to-client message.
func DecodeServer(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}

	var (
		msg ServerMessage
		err error
	)
	switch env.RequestAction {
	case ActionSessionCreated:
		m := &SessionCreated{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionJoinRoom:
		m := &JoinedRoom{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionLeaveRoom:
		m := &LeaveRoom{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionUpdateStream:
		m := &UpdateStream{}
		err = json.Unmarshal(data, m)
		msg = m
	case ActionSyncVideo:
		m := &SyncVideo{}
		err = json.Unmarshal(data, m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.RequestAction)
	}
	if err != nil {
		return nil, fmt.Errorf("bad %s payload: %w", env.RequestAction, err)
	}
	return msg, nil
}
