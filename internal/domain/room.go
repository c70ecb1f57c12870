package domain

import "time"

type (
	RoomID   string
	RoomName string
)

// Room is membership-free meta; the registry owns the member set.
type Room struct {
	ID        RoomID
	Name      RoomName
	Capacity  int
	CreatedAt time.Time
}
