package session

import "errors"

// Rejections reported to the sender of a command.
var (
	ErrRoomLocked    = errors.New("room is locked")
	ErrNameTaken     = errors.New("name already taken")
	ErrNameBanned    = errors.New("name is banned from this room")
	ErrInvalidName   = errors.New("invalid name")
	ErrNotHost       = errors.New("only the host can do this")
	ErrNotPlayer     = errors.New("only players can answer")
	ErrNotJoined     = errors.New("join the room first")
	ErrAlreadyJoined = errors.New("already joined")
	ErrHostTaken     = errors.New("room already has a host")
	ErrGameStarted   = errors.New("game already started")
	ErrNoPlayers     = errors.New("no players in the room")
	ErrInvalidAnswer = errors.New("answer does not match the question")
	ErrInvalidGrade  = errors.New("grades must be 0, 50 or 100")
	ErrPanicTooLate  = errors.New("not enough time left for panic mode")
	ErrUnknownAction = errors.New("unknown action")
)
