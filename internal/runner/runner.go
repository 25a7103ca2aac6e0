// Package runner owns all reads and writes of User and Game records.
// Every operation that touches both a user and a game commits through a
// single store batch, so no session ever observes a half-applied dual
// update.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/dyatelok/secret-santa/internal/models"
	"github.com/dyatelok/secret-santa/internal/storage"
)

type Runner struct {
	store storage.Store
}

func New(store storage.Store) *Runner {
	return &Runner{store: store}
}

// RegisterUser creates the user record. Telegram already guarantees id
// uniqueness across chats, so the only collision possible is a repeat
// registration, which is rejected.
func (r *Runner) RegisterUser(ctx context.Context, id models.UserID, username string) error {
	exists, err := r.store.Has(ctx, id.Key())
	if err != nil {
		return fmt.Errorf("checking user %d: %w", id, err)
	}
	if exists {
		return fmt.Errorf("registering user %d: %w", id, ErrUserExists)
	}

	return r.putUser(ctx, models.NewUser(id, username))
}

// GetUser fetches the user record, ErrUserNotFound if absent.
func (r *Runner) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	raw, err := r.store.Get(ctx, id.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
		}
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return models.DecodeUser(raw)
}

// GetGame fetches the game record, ErrGameNotFound if absent.
func (r *Runner) GetGame(ctx context.Context, id models.GameID) (*models.Game, error) {
	raw, err := r.store.Get(ctx, id.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
		}
		return nil, fmt.Errorf("getting game %d: %w", id, err)
	}
	return models.DecodeGame(raw)
}

func (r *Runner) ChangeUsername(ctx context.Context, id models.UserID, username string) error {
	user, err := r.GetUser(ctx, id)
	if err != nil {
		return err
	}

	user.Username = username
	return r.putUser(ctx, user)
}

// CreateGame generates a fresh game id, inserts the game record and adds
// it to the admin's list as one batch: there is never a game without its
// admin back-link.
func (r *Runner) CreateGame(ctx context.Context, admin models.UserID, name string) (models.GameID, error) {
	user, err := r.GetUser(ctx, admin)
	if err != nil {
		return 0, err
	}

	id, err := r.freshGameID(ctx)
	if err != nil {
		return 0, err
	}

	game := models.NewGame(id, name, admin)
	user.AddAdminGame(id)

	batch := &storage.Batch{}
	if err := batchPutUser(batch, user); err != nil {
		return 0, err
	}
	if err := batchPutGame(batch, game); err != nil {
		return 0, err
	}
	if err := r.store.Apply(ctx, batch); err != nil {
		return 0, fmt.Errorf("creating game %d: %w", id, err)
	}

	return id, nil
}

// RequestJoin puts the user on the game's waiting list, updating both
// records atomically.
func (r *Runner) RequestJoin(ctx context.Context, userID models.UserID, gameID models.GameID) error {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	// The admin is part of the game already, just not a participant.
	if game.Admin == userID || game.HasPending(userID) || game.HasActive(userID) ||
		user.IsPendingIn(gameID) || user.IsActiveIn(gameID) {
		return fmt.Errorf("user %d, game %d: %w", userID, gameID, ErrAlreadyInGame)
	}

	user.AddPendingGame(gameID)
	game.AddPendingUser(userID)

	return r.applyPair(ctx, user, game)
}

// Promote moves the user from pending to active on both sides
// atomically. If either side disagrees about pending membership the
// records are left untouched.
func (r *Runner) Promote(ctx context.Context, userID models.UserID, gameID models.GameID) error {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if !game.HasPending(userID) || !user.IsPendingIn(gameID) {
		return fmt.Errorf("user %d, game %d: %w", userID, gameID, ErrNotPending)
	}

	user.PromoteGame(gameID)
	game.PromoteUser(userID)

	return r.applyPair(ctx, user, game)
}

// Withdraw removes the user from the game's pending and active lists on
// both sides atomically. Withdrawing a non-member is a no-op, never an
// error.
func (r *Runner) Withdraw(ctx context.Context, userID models.UserID, gameID models.GameID) error {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	user.RemoveGame(gameID)
	game.RemoveUser(userID)

	return r.applyPair(ctx, user, game)
}

// Assignment is one outbound message produced by RunGame. Dispatch is
// the transport's responsibility; the runner never sends anything.
type Assignment struct {
	To   models.UserID
	Text string
}

// RunGame is the terminal action of a game: the record is deleted, every
// involved user forgets the game id, and the gift assignments are
// computed over the active users. The delete and every user update
// commit as one batch, so the game vanishes for everybody at once.
// Pending users who never got promoted receive no assignment.
func (r *Runner) RunGame(ctx context.Context, gameID models.GameID) ([]Assignment, error) {
	game, err := r.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	batch := &storage.Batch{}
	batch.Delete(gameID.Key())

	involved := make([]models.UserID, 0, 2+len(game.ActiveUsers)+len(game.PendingUsers))
	involved = append(involved, game.Admin)
	involved = append(involved, game.ActiveUsers...)
	involved = append(involved, game.PendingUsers...)

	seen := make(map[models.UserID]bool, len(involved))
	for _, id := range involved {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, err := r.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		user.ForgetGame(gameID)
		if err := batchPutUser(batch, user); err != nil {
			return nil, err
		}
	}

	if err := r.store.Apply(ctx, batch); err != nil {
		return nil, fmt.Errorf("running game %d: %w", gameID, err)
	}

	return r.composeMessages(ctx, game)
}

func (r *Runner) composeMessages(ctx context.Context, game *models.Game) ([]Assignment, error) {
	var messages []Assignment

	if len(game.ActiveUsers) <= 1 {
		for _, id := range game.ActiveUsers {
			messages = append(messages, Assignment{
				To: id,
				Text: "It looks like there's only one participant :( " +
					"We can't run this game.",
			})
		}
		messages = append(messages, Assignment{
			To: game.Admin,
			Text: "All messages have been sent successfully! " +
				"It seems like there was less than 2 players so there'll be no presents :(",
		})
		return messages, nil
	}

	for _, pair := range DistributePresents(game.ActiveUsers) {
		giver, err := r.GetUser(ctx, pair.Giver)
		if err != nil {
			return nil, err
		}
		receiver, err := r.GetUser(ctx, pair.Receiver)
		if err != nil {
			return nil, err
		}

		messages = append(messages, Assignment{
			To: giver.ID,
			Text: fmt.Sprintf(
				"Ho Ho Ho, %s!\n\n"+
					"As a result of participating in game %s. "+
					"It looks like you have to prepare a present for %s!\n\n"+
					"Have a happy new year, your secret santa bot.",
				giver.Username, game.Name, receiver.Username,
			),
		})
	}
	messages = append(messages, Assignment{
		To:   game.Admin,
		Text: "All messages have been sent successfully!",
	})

	return messages, nil
}

// freshGameID draws uniformly random candidates until one is unused.
// At 64-bit width a collision is astronomically unlikely, so the loop is
// treated as effectively terminating.
func (r *Runner) freshGameID(ctx context.Context) (models.GameID, error) {
	for {
		id := models.GameID(rand.Uint64())
		taken, err := r.store.Has(ctx, id.Key())
		if err != nil {
			return 0, fmt.Errorf("checking game id %d: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
}

func (r *Runner) putUser(ctx context.Context, user *models.User) error {
	raw, err := models.EncodeUser(user)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, user.ID.Key(), raw); err != nil {
		return fmt.Errorf("storing user %d: %w", user.ID, err)
	}
	return nil
}

func (r *Runner) applyPair(ctx context.Context, user *models.User, game *models.Game) error {
	batch := &storage.Batch{}
	if err := batchPutUser(batch, user); err != nil {
		return err
	}
	if err := batchPutGame(batch, game); err != nil {
		return err
	}
	if err := r.store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("updating user %d and game %d: %w", user.ID, game.ID, err)
	}
	return nil
}

func batchPutUser(batch *storage.Batch, user *models.User) error {
	raw, err := models.EncodeUser(user)
	if err != nil {
		return err
	}
	batch.Put(user.ID.Key(), raw)
	return nil
}

func batchPutGame(batch *storage.Batch, game *models.Game) error {
	raw, err := models.EncodeGame(game)
	if err != nil {
		return err
	}
	batch.Put(game.ID.Key(), raw)
	return nil
}
