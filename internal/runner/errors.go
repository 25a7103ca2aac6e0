package runner

import "errors"

var (
	// ErrUserExists is returned by RegisterUser for an id that already
	// has a record; registration never overwrites.
	ErrUserExists = errors.New("user already exists")

	ErrUserNotFound = errors.New("user does not exist")
	ErrGameNotFound = errors.New("game does not exist")

	// ErrAlreadyInGame covers both directions of the membership check:
	// the user already lists the game, or the game already lists the user.
	ErrAlreadyInGame = errors.New("user is already in game")

	// ErrNotPending is returned by Promote when either side disagrees
	// about pending membership.
	ErrNotPending = errors.New("user is not pending in game")
)
