package runner

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyatelok/secret-santa/internal/models"
	"github.com/dyatelok/secret-santa/internal/storage/boltstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()

	store, err := boltstore.Open(filepath.Join(t.TempDir(), "santa.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return New(store)
}

func TestRegisterUserRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))

	err := r.RegisterUser(ctx, 1, "impostor")
	require.ErrorIs(t, err, ErrUserExists)

	// The original record survives.
	user, err := r.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestGetUserNotFound(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.GetUser(context.Background(), 404)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangeUsername(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.ErrorIs(t, r.ChangeUsername(ctx, 1, "nobody"), ErrUserNotFound)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, r.ChangeUsername(ctx, 1, "alicia"))

	user, err := r.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alicia", user.Username)
}

func TestCreateGameLinksAdmin(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	_, err := r.CreateGame(ctx, 1, "orphan")
	require.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))

	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)

	game, err := r.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, "Secret", game.Name)
	assert.Equal(t, models.UserID(1), game.Admin)
	assert.Empty(t, game.ActiveUsers)
	assert.Empty(t, game.PendingUsers)

	user, err := r.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, user.IsAdminOf(gameID))
	assert.False(t, user.IsActiveIn(gameID))
	assert.False(t, user.IsPendingIn(gameID))
}

func TestCreateGameIDsUnique(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))

	seen := make(map[models.GameID]bool)
	for i := 0; i < 50; i++ {
		id, err := r.CreateGame(ctx, 1, "game")
		require.NoError(t, err)
		require.False(t, seen[id], "game id %d returned twice", id)
		seen[id] = true
	}
}

func TestRequestJoin(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, r.RegisterUser(ctx, 2, "bob"))
	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)

	require.ErrorIs(t, r.RequestJoin(ctx, 2, gameID+1), ErrGameNotFound)
	require.ErrorIs(t, r.RequestJoin(ctx, 404, gameID), ErrUserNotFound)

	require.NoError(t, r.RequestJoin(ctx, 2, gameID))

	user, err := r.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, user.IsPendingIn(gameID))

	game, err := r.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.True(t, game.HasPending(2))

	// Second request in either membership state is rejected.
	require.ErrorIs(t, r.RequestJoin(ctx, 2, gameID), ErrAlreadyInGame)
	require.NoError(t, r.Promote(ctx, 2, gameID))
	require.ErrorIs(t, r.RequestJoin(ctx, 2, gameID), ErrAlreadyInGame)
}

func TestPromoteRequiresPending(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, r.RegisterUser(ctx, 2, "bob"))
	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)

	require.ErrorIs(t, r.Promote(ctx, 2, gameID), ErrNotPending)

	require.NoError(t, r.RequestJoin(ctx, 2, gameID))
	require.NoError(t, r.Promote(ctx, 2, gameID))

	user, err := r.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, user.IsActiveIn(gameID))
	assert.False(t, user.IsPendingIn(gameID))

	game, err := r.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.True(t, game.HasActive(2))
	assert.False(t, game.HasPending(2))

	// Promoting twice fails: the user is no longer pending.
	require.ErrorIs(t, r.Promote(ctx, 2, gameID), ErrNotPending)
}

func TestWithdrawIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, r.RegisterUser(ctx, 2, "bob"))
	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)
	require.NoError(t, r.RequestJoin(ctx, 2, gameID))
	require.NoError(t, r.Promote(ctx, 2, gameID))

	require.NoError(t, r.Withdraw(ctx, 2, gameID))
	after, err := r.GetUser(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, r.Withdraw(ctx, 2, gameID))
	again, err := r.GetUser(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, after, again, "second withdraw must change nothing")

	game, err := r.GetGame(ctx, gameID)
	require.NoError(t, err)
	assert.False(t, game.HasActive(2))
	assert.False(t, game.HasPending(2))
}

func TestRunGameTooFewParticipants(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, r.RegisterUser(ctx, 2, "bob"))
	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)
	require.NoError(t, r.RequestJoin(ctx, 2, gameID))
	require.NoError(t, r.Promote(ctx, 2, gameID))

	messages, err := r.RunGame(ctx, gameID)
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, models.UserID(2), messages[0].To)
	assert.Contains(t, messages[0].Text, "only one participant")
	assert.Equal(t, models.UserID(1), messages[1].To)
	assert.Contains(t, messages[1].Text, "less than 2 players")

	_, err = r.GetGame(ctx, gameID)
	require.ErrorIs(t, err, ErrGameNotFound)

	// Both records forgot the game.
	admin, err := r.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.False(t, admin.IsAdminOf(gameID))

	player, err := r.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, player.IsActiveIn(gameID))
}

func TestRunGameZeroParticipants(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "alice"))
	gameID, err := r.CreateGame(ctx, 1, "Secret")
	require.NoError(t, err)

	messages, err := r.RunGame(ctx, gameID)
	require.NoError(t, err)

	require.Len(t, messages, 1)
	assert.Equal(t, models.UserID(1), messages[0].To)
}

func TestRunGameNotFound(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.RunGame(context.Background(), 12345)
	require.ErrorIs(t, err, ErrGameNotFound)
}

func TestRunGameAssignments(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	names := map[models.UserID]string{2: "alice", 3: "bob", 4: "carol"}
	require.NoError(t, r.RegisterUser(ctx, 1, "admin"))
	for id, name := range names {
		require.NoError(t, r.RegisterUser(ctx, id, name))
	}

	gameID, err := r.CreateGame(ctx, 1, "Party")
	require.NoError(t, err)
	for id := range names {
		require.NoError(t, r.RequestJoin(ctx, id, gameID))
		require.NoError(t, r.Promote(ctx, id, gameID))
	}

	messages, err := r.RunGame(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	// Three assignment messages, one per giver, then the admin notice.
	received := make(map[string]bool, len(names))
	for _, msg := range messages[:3] {
		giverName, ok := names[msg.To]
		require.True(t, ok, "assignment sent to unknown user %d", msg.To)
		assert.Contains(t, msg.Text, "Ho Ho Ho, "+giverName+"!")
		assert.Contains(t, msg.Text, "game Party")
		assert.NotContains(t, msg.Text, "present for "+giverName+"!",
			"giver %s must not be their own receiver", giverName)

		start := strings.Index(msg.Text, "present for ")
		require.GreaterOrEqual(t, start, 0)
		rest := msg.Text[start+len("present for "):]
		receiverName := rest[:strings.IndexByte(rest, '!')]
		assert.False(t, received[receiverName], "receiver %s drawn twice", receiverName)
		received[receiverName] = true
	}
	require.Len(t, received, 3)

	assert.Equal(t, models.UserID(1), messages[3].To)
	assert.Contains(t, messages[3].Text, "sent successfully")
}

func TestRunGameStripsPendingUsers(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	require.NoError(t, r.RegisterUser(ctx, 1, "admin"))
	require.NoError(t, r.RegisterUser(ctx, 2, "active"))
	require.NoError(t, r.RegisterUser(ctx, 3, "waiting"))

	gameID, err := r.CreateGame(ctx, 1, "Party")
	require.NoError(t, err)
	require.NoError(t, r.RequestJoin(ctx, 2, gameID))
	require.NoError(t, r.Promote(ctx, 2, gameID))
	require.NoError(t, r.RequestJoin(ctx, 3, gameID))

	messages, err := r.RunGame(ctx, gameID)
	require.NoError(t, err)

	// The never-promoted user gets no message but forgets the game.
	for _, msg := range messages {
		assert.NotEqual(t, models.UserID(3), msg.To)
	}
	waiting, err := r.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.False(t, waiting.IsPendingIn(gameID))
}

// TestDualConsistency drives random join/promote/withdraw/run sequences
// and checks the bidirectional membership equivalence after every step.
func TestDualConsistency(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	rng := rand.New(rand.NewPCG(42, 7))

	users := []models.UserID{1, 2, 3, 4, 5}
	for _, id := range users {
		require.NoError(t, r.RegisterUser(ctx, id, "user"))
	}

	var games []models.GameID
	for i := 0; i < 3; i++ {
		id, err := r.CreateGame(ctx, users[i], "game")
		require.NoError(t, err)
		games = append(games, id)
	}

	for step := 0; step < 400; step++ {
		user := users[rng.IntN(len(users))]

		if len(games) == 0 {
			id, err := r.CreateGame(ctx, user, "game")
			require.NoError(t, err)
			games = append(games, id)
		}
		game := games[rng.IntN(len(games))]

		switch rng.IntN(10) {
		case 0, 1, 2, 3:
			err := r.RequestJoin(ctx, user, game)
			if err != nil {
				require.ErrorIs(t, err, ErrAlreadyInGame)
			}
		case 4, 5, 6:
			err := r.Promote(ctx, user, game)
			if err != nil {
				require.ErrorIs(t, err, ErrNotPending)
			}
		case 7, 8:
			require.NoError(t, r.Withdraw(ctx, user, game))
		case 9:
			_, err := r.RunGame(ctx, game)
			require.NoError(t, err)
			games = remove(games, game)
		}

		assertConsistent(t, ctx, r, users, games)
	}
}

func assertConsistent(t *testing.T, ctx context.Context, r *Runner, users []models.UserID, games []models.GameID) {
	t.Helper()

	loadedGames := make(map[models.GameID]*models.Game, len(games))
	for _, id := range games {
		game, err := r.GetGame(ctx, id)
		require.NoError(t, err)
		loadedGames[id] = game

		for _, u := range game.ActiveUsers {
			require.False(t, game.HasPending(u), "user %d both active and pending in game %d", u, id)
			require.NotEqual(t, game.Admin, u, "admin %d listed as active in game %d", u, id)
		}
		for _, u := range game.PendingUsers {
			require.NotEqual(t, game.Admin, u, "admin %d listed as pending in game %d", u, id)
		}
	}

	for _, id := range users {
		user, err := r.GetUser(ctx, id)
		require.NoError(t, err)

		for gid, game := range loadedGames {
			require.Equal(t, game.HasActive(id), user.IsActiveIn(gid),
				"active membership of user %d in game %d disagrees", id, gid)
			require.Equal(t, game.HasPending(id), user.IsPendingIn(gid),
				"pending membership of user %d in game %d disagrees", id, gid)
		}
	}
}

func remove(games []models.GameID, id models.GameID) []models.GameID {
	out := games[:0]
	for _, g := range games {
		if g != id {
			out = append(out, g)
		}
	}
	return out
}
