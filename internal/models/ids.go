package models

import (
	"fmt"
	"strconv"
	"strings"
)

// UserID is the chat identifier supplied by the transport. Telegram
// guarantees its uniqueness, so it is never generated internally.
type UserID int64

// GameID is generated by the repository and checked against the store
// for collisions before use.
type GameID uint64

const (
	KeyPrefixUser = "user/"
	KeyPrefixGame = "game/"
)

// Key returns the canonical store key for the user record.
func (id UserID) Key() string {
	return KeyPrefixUser + strconv.FormatInt(int64(id), 10)
}

// Key returns the canonical store key for the game record.
func (id GameID) Key() string {
	return KeyPrefixGame + strconv.FormatUint(uint64(id), 10)
}

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id GameID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseUserID parses a user id from dialogue input.
func ParseUserID(text string) (UserID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing user id %q: %w", text, err)
	}
	return UserID(v), nil
}

// ParseGameID parses a game id from dialogue input.
func ParseGameID(text string) (GameID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing game id %q: %w", text, err)
	}
	return GameID(v), nil
}
