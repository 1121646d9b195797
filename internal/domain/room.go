// Package domain contains entities without transport or lifecycle logic.
package domain

type (
	RoomName string
	RoomID   string
)

const MaxRoomNameLen = 36

// Room is room meta only; membership and playback state live in core.
type Room struct {
	ID   RoomID
	Name RoomName
}
