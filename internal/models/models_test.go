package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysAreInjective(t *testing.T) {
	// A user and a game with the same numeric id must not collide.
	assert.NotEqual(t, UserID(7).Key(), GameID(7).Key())
	assert.Equal(t, "user/-3", UserID(-3).Key())
	assert.Equal(t, "game/18446744073709551615", GameID(1<<64-1).Key())
}

func TestParseIDs(t *testing.T) {
	userID, err := ParseUserID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, UserID(42), userID)

	_, err = ParseUserID("forty two")
	require.Error(t, err)

	gameID, err := ParseGameID("99")
	require.NoError(t, err)
	assert.Equal(t, GameID(99), gameID)

	// Game ids are unsigned.
	_, err = ParseGameID("-1")
	require.Error(t, err)
}

func TestUserCodecRoundTrip(t *testing.T) {
	user := NewUser(1, "alice")
	user.AddAdminGame(10)
	user.AddPendingGame(20)
	user.PromoteGame(20)

	raw, err := EncodeUser(user)
	require.NoError(t, err)

	decoded, err := DecodeUser(raw)
	require.NoError(t, err)
	assert.Equal(t, user, decoded)

	again, err := EncodeUser(decoded)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestGameCodecRoundTrip(t *testing.T) {
	game := NewGame(5, "Party", 1)
	game.AddPendingUser(2)
	game.AddPendingUser(3)
	game.PromoteUser(2)

	raw, err := EncodeGame(game)
	require.NoError(t, err)

	decoded, err := DecodeGame(raw)
	require.NoError(t, err)
	assert.Equal(t, game, decoded)
}

func TestUserMembershipMoves(t *testing.T) {
	user := NewUser(1, "alice")

	user.AddPendingGame(10)
	assert.True(t, user.IsPendingIn(10))

	user.PromoteGame(10)
	assert.False(t, user.IsPendingIn(10))
	assert.True(t, user.IsActiveIn(10))

	user.RemoveGame(10)
	assert.False(t, user.IsActiveIn(10))

	// Removing again is a no-op.
	user.RemoveGame(10)
	assert.Empty(t, user.ActiveGames)
	assert.Empty(t, user.PendingGames)
}
