package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Game is the persistent record of one open gift exchange. The admin is
// implicit: they are never listed among the active or pending users, and
// the two user lists are disjoint.
type Game struct {
	ID    GameID `json:"id"`
	Name  string `json:"name"`
	Admin UserID `json:"admin"`

	ActiveUsers  []UserID `json:"active_users"`
	PendingUsers []UserID `json:"pending_users"`
}

func NewGame(id GameID, name string, admin UserID) *Game {
	return &Game{
		ID:           id,
		Name:         name,
		Admin:        admin,
		ActiveUsers:  []UserID{},
		PendingUsers: []UserID{},
	}
}

func EncodeGame(g *Game) ([]byte, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshalling game %d: %w", g.ID, err)
	}
	return raw, nil
}

func DecodeGame(raw []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("unmarshalling game: %w", err)
	}
	return &g, nil
}

func (g *Game) HasActive(id UserID) bool {
	return slices.Contains(g.ActiveUsers, id)
}

func (g *Game) HasPending(id UserID) bool {
	return slices.Contains(g.PendingUsers, id)
}

func (g *Game) AddPendingUser(id UserID) {
	if !slices.Contains(g.PendingUsers, id) {
		g.PendingUsers = append(g.PendingUsers, id)
	}
}

// PromoteUser moves the user from the pending list to the active list.
func (g *Game) PromoteUser(id UserID) {
	g.PendingUsers = slices.DeleteFunc(g.PendingUsers, func(u UserID) bool { return u == id })
	if !slices.Contains(g.ActiveUsers, id) {
		g.ActiveUsers = append(g.ActiveUsers, id)
	}
}

// RemoveUser drops the user from the pending and active lists. Removing
// a user who is not in the game is a no-op.
func (g *Game) RemoveUser(id UserID) {
	g.PendingUsers = slices.DeleteFunc(g.PendingUsers, func(u UserID) bool { return u == id })
	g.ActiveUsers = slices.DeleteFunc(g.ActiveUsers, func(u UserID) bool { return u == id })
}

// String renders the game the way chat listings show it.
func (g *Game) String() string {
	return fmt.Sprintf("Name: %s\nId: %d\n\n", g.Name, g.ID)
}
