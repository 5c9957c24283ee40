package store

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerExists     = errors.New("player already exists")
	ErrAlreadyInRoom    = errors.New("player already in a room")
	ErrRoomFull         = errors.New("room is full")
	ErrNoRoomsAvailable = errors.New("no rooms available")
)
