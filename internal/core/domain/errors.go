package domain

import "errors"

var (
	ErrNotRegistered    = errors.New("connection has no registered identity")
	ErrTargetOffline    = errors.New("target user is offline")
	ErrAlreadyInCall    = errors.New("participant already in a negotiation")
	ErrNotInCall        = errors.New("no open negotiation for participant")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrDuplicateRequest = errors.New("friend request already pending")
	ErrUnknownEvent     = errors.New("unknown event type")
)
