package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// User is the persistent record of one registered participant. The three
// game lists are disjoint for any single game id: a game a user
// administers is never also pending or active for them, and a pending
// game moves to active only through promotion.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`

	AdminGames   []GameID `json:"admin_games"`
	ActiveGames  []GameID `json:"active_games"`
	PendingGames []GameID `json:"pending_games"`
}

func NewUser(id UserID, username string) *User {
	return &User{
		ID:           id,
		Username:     username,
		AdminGames:   []GameID{},
		ActiveGames:  []GameID{},
		PendingGames: []GameID{},
	}
}

func EncodeUser(u *User) ([]byte, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("marshalling user %d: %w", u.ID, err)
	}
	return raw, nil
}

func DecodeUser(raw []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("unmarshalling user: %w", err)
	}
	return &u, nil
}

func (u *User) IsAdminOf(id GameID) bool {
	return slices.Contains(u.AdminGames, id)
}

func (u *User) IsActiveIn(id GameID) bool {
	return slices.Contains(u.ActiveGames, id)
}

func (u *User) IsPendingIn(id GameID) bool {
	return slices.Contains(u.PendingGames, id)
}

func (u *User) AddAdminGame(id GameID) {
	if !slices.Contains(u.AdminGames, id) {
		u.AdminGames = append(u.AdminGames, id)
	}
}

func (u *User) AddPendingGame(id GameID) {
	if !slices.Contains(u.PendingGames, id) {
		u.PendingGames = append(u.PendingGames, id)
	}
}

// PromoteGame moves the game from the pending list to the active list.
func (u *User) PromoteGame(id GameID) {
	u.PendingGames = slices.DeleteFunc(u.PendingGames, func(g GameID) bool { return g == id })
	if !slices.Contains(u.ActiveGames, id) {
		u.ActiveGames = append(u.ActiveGames, id)
	}
}

// RemoveGame drops the game from the pending and active lists. Removing
// a game the user is not in is a no-op.
func (u *User) RemoveGame(id GameID) {
	u.PendingGames = slices.DeleteFunc(u.PendingGames, func(g GameID) bool { return g == id })
	u.ActiveGames = slices.DeleteFunc(u.ActiveGames, func(g GameID) bool { return g == id })
}

// ForgetGame drops the game from all three lists, admin included. Used
// when a game is run and its id retires.
func (u *User) ForgetGame(id GameID) {
	u.AdminGames = slices.DeleteFunc(u.AdminGames, func(g GameID) bool { return g == id })
	u.RemoveGame(id)
}

// String renders the user the way game listings show participants.
func (u *User) String() string {
	return fmt.Sprintf("Name: %s\nId: %d\n\n", u.Username, u.ID)
}
