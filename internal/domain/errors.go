package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotEnoughFighters  = errors.New("not enough eligible fighters")
	ErrNoCurrentMatch     = errors.New("no current match")
	ErrBettingClosed      = errors.New("betting window closed")
	ErrInvalidBet         = errors.New("invalid bet parameters")
	ErrFightAborted       = errors.New("fight aborted")
	ErrLockHeld           = errors.New("lock already held")
	ErrContextDone        = errors.New("context cancelled")
)
